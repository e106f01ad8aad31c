package snapshotrestore

import (
	"context"
	"fmt"

	"github.com/slok/devdroid/internal/log"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/storage"
)

// Archiver restores container distributions.
type Archiver interface {
	Restore(ctx context.Context, src string) error
}

// ServiceConfig is the configuration for the snapshot restore service.
type ServiceConfig struct {
	Archiver   Archiver
	Repository storage.SnapshotRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Archiver == nil {
		return fmt.Errorf("archiver is required")
	}

	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.SnapshotRestore"})

	return nil
}

// Service restores the container distribution from a snapshot.
type Service struct {
	archiver Archiver
	repo     storage.SnapshotRepository
	logger   log.Logger
}

// NewService creates a new snapshot restore service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		archiver: cfg.Archiver,
		repo:     cfg.Repository,
		logger:   cfg.Logger,
	}, nil
}

// Request represents a snapshot restore request.
type Request struct {
	NameOrID string
}

// Run replaces the distribution of the snapshot with the snapshot content.
func (s *Service) Run(ctx context.Context, req Request) (*model.Snapshot, error) {
	if req.NameOrID == "" {
		return nil, fmt.Errorf("snapshot name or id is required: %w", model.ErrNotValid)
	}

	snapshot, err := storage.GetSnapshotByNameOrID(ctx, s.repo, req.NameOrID)
	if err != nil {
		return nil, err
	}

	if err := s.archiver.Restore(ctx, snapshot.Path); err != nil {
		return nil, fmt.Errorf("could not restore snapshot %s: %w", snapshot.Name, err)
	}

	s.logger.Infof("Restored %s from snapshot %s (%s)", snapshot.Distro, snapshot.Name, snapshot.ID)
	return snapshot, nil
}
