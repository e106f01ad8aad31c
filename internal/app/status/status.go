package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/slok/devdroid/internal/log"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/storage"
)

// ServiceConfig is the configuration for the status service.
type ServiceConfig struct {
	Repository storage.CompletionRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Status"})

	return nil
}

// Service retrieves where the last install run landed.
type Service struct {
	repo   storage.CompletionRepository
	logger log.Logger
}

// NewService creates a new status service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the status request parameters.
type Request struct{}

// Run returns the completion of the last install run, model.ErrNotFound if there is none.
func (s *Service) Run(ctx context.Context, req Request) (*model.Completion, error) {
	c, err := s.repo.GetCompletion(ctx)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("no install has completed yet: %w", model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not get completion: %w", err)
	}

	s.logger.Debugf("Last run %s completed at %s", c.RunID, c.CompletedAt)
	return c, nil
}
