package snapshotremove

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/slok/devdroid/internal/log"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/storage"
)

// ServiceConfig is the configuration for the snapshot remove service.
type ServiceConfig struct {
	Repository storage.SnapshotRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.SnapshotRemove"})
	return nil
}

// Service removes snapshots.
type Service struct {
	repo   storage.SnapshotRepository
	logger log.Logger
}

// NewService creates a new snapshot remove service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the snapshot remove request parameters.
type Request struct {
	NameOrID string
}

// Run removes the snapshot archive (if it's still there) and its index entry.
func (s *Service) Run(ctx context.Context, req Request) (*model.Snapshot, error) {
	snapshot, err := storage.GetSnapshotByNameOrID(ctx, s.repo, req.NameOrID)
	if err != nil {
		return nil, err
	}

	if err := os.Remove(snapshot.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("could not remove snapshot file %s: %w", snapshot.Path, err)
	}

	if err := s.repo.DeleteSnapshot(ctx, snapshot.ID); err != nil {
		return nil, fmt.Errorf("could not delete snapshot from index: %w", err)
	}

	s.logger.Infof("Removed snapshot %s (%s)", snapshot.Name, snapshot.ID)
	return snapshot, nil
}
