package snapshotcreate

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/devdroid/internal/conventions"
	"github.com/slok/devdroid/internal/log"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/storage"
)

// Archiver backs up container distributions.
type Archiver interface {
	Installed(distro string) bool
	Backup(ctx context.Context, distro, dst string) (int64, error)
}

// ServiceConfig is the configuration for the snapshot create service.
type ServiceConfig struct {
	Archiver   Archiver
	Repository storage.SnapshotRepository
	DataDir    string
	Logger     log.Logger
	Now        func() time.Time
}

func (c *ServiceConfig) defaults() error {
	if c.Archiver == nil {
		return fmt.Errorf("archiver is required")
	}

	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.SnapshotCreate"})

	if c.Now == nil {
		c.Now = time.Now
	}

	return nil
}

// Service creates snapshots of the container distribution.
type Service struct {
	archiver Archiver
	repo     storage.SnapshotRepository
	dataDir  string
	logger   log.Logger
	now      func() time.Time
}

// NewService creates a new snapshot create service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		archiver: cfg.Archiver,
		repo:     cfg.Repository,
		dataDir:  cfg.DataDir,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}, nil
}

// Request represents a snapshot creation request.
type Request struct {
	Distro string
	// SnapshotName is generated from the distro and the date when empty.
	SnapshotName string
}

// Run creates a snapshot of an installed distribution.
func (s *Service) Run(ctx context.Context, req Request) (*model.Snapshot, error) {
	if req.Distro == "" {
		return nil, fmt.Errorf("distro is required: %w", model.ErrNotValid)
	}

	if req.SnapshotName != "" {
		if err := model.ValidateSnapshotName(req.SnapshotName); err != nil {
			return nil, fmt.Errorf("invalid snapshot name: %w", err)
		}
	}

	if !s.archiver.Installed(req.Distro) {
		return nil, fmt.Errorf("distro %q is not installed: %w", req.Distro, model.ErrNotFound)
	}

	snapshotName, err := s.resolveSnapshotName(ctx, req.Distro, req.SnapshotName)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	snapshotID := ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
	dstPath := conventions.SnapshotArchivePath(s.dataDir, snapshotID)

	size, err := s.archiver.Backup(ctx, req.Distro, dstPath)
	if err != nil {
		return nil, fmt.Errorf("could not create distro backup: %w", err)
	}

	snapshot := model.Snapshot{
		ID:        snapshotID,
		Name:      snapshotName,
		Distro:    req.Distro,
		Path:      dstPath,
		SizeBytes: size,
		CreatedAt: now,
	}

	if err := s.repo.CreateSnapshot(ctx, snapshot); err != nil {
		if rmErr := os.Remove(snapshot.Path); rmErr != nil {
			s.logger.Warningf("could not remove snapshot file after persistence failure: %v", rmErr)
		}
		return nil, fmt.Errorf("could not persist snapshot: %w", err)
	}

	s.logger.Infof("Created snapshot %s (%s) of %s", snapshot.Name, snapshot.ID, snapshot.Distro)

	return &snapshot, nil
}

func makeDefaultSnapshotName(distro string, now time.Time) string {
	base := sanitizeSnapshotNamePart(distro)
	if base == "" {
		base = "snapshot"
	}

	return fmt.Sprintf("%s-%s", base, now.UTC().Format("20060102-1504"))
}

func (s *Service) resolveSnapshotName(ctx context.Context, distro, requestedName string) (string, error) {
	autoName := requestedName == ""
	name := requestedName
	if autoName {
		name = makeDefaultSnapshotName(distro, s.now())
	}

	_, err := s.repo.GetSnapshotByName(ctx, name)
	if err == nil {
		if !autoName {
			return "", fmt.Errorf("snapshot with name %q already exists: %w", name, model.ErrAlreadyExists)
		}

		name = fmt.Sprintf("%s-%d", name, s.now().UTC().Unix())
		_, err = s.repo.GetSnapshotByName(ctx, name)
		if err == nil {
			return "", fmt.Errorf("snapshot with name %q already exists: %w", name, model.ErrAlreadyExists)
		}
	}

	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return "", fmt.Errorf("could not check snapshot name uniqueness: %w", err)
	}

	if err := model.ValidateSnapshotName(name); err != nil {
		return "", fmt.Errorf("invalid snapshot name: %w", err)
	}

	return name, nil
}

func sanitizeSnapshotNamePart(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	return b.String()
}
