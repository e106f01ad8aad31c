package snapshotlist

import (
	"context"
	"fmt"

	"github.com/slok/devdroid/internal/log"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/storage"
)

// ServiceConfig is the configuration for the snapshot list service.
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.SnapshotList"})

	return nil
}

// Service lists snapshots.
type Service struct {
	repo   storage.SnapshotRepository
	logger log.Logger
}

// NewService creates a new snapshot list service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the snapshot list request parameters.
type Request struct {
	// Distro filters the snapshots of a single distribution when set.
	Distro string
}

// Run lists the snapshots, newest first.
func (s *Service) Run(ctx context.Context, req Request) ([]model.Snapshot, error) {
	snapshots, err := s.repo.ListSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list snapshots: %w", err)
	}

	if req.Distro == "" {
		return snapshots, nil
	}

	filtered := make([]model.Snapshot, 0, len(snapshots))
	for _, snap := range snapshots {
		if snap.Distro == req.Distro {
			filtered = append(filtered, snap)
		}
	}

	s.logger.Debugf("%d of %d snapshots are from %s", len(filtered), len(snapshots), req.Distro)
	return filtered, nil
}
