// Package jsonfile stores the installer state as flat JSON documents in the data directory.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/slok/devdroid/internal/conventions"
	"github.com/slok/devdroid/internal/log"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/storage"
	"github.com/slok/devdroid/internal/utils/file"
)

// RepositoryConfig is the configuration of the JSON file repository.
type RepositoryConfig struct {
	DataDir string
	Logger  log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.JSONFile"})

	return nil
}

// Repository implements storage.Repository with JSON files.
type Repository struct {
	completionPath string
	snapshotsPath  string
	logger         log.Logger
	mu             sync.Mutex
}

var _ storage.Repository = &Repository{}

// NewRepository returns a new JSON file repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		completionPath: conventions.CompletionPath(cfg.DataDir),
		snapshotsPath:  conventions.SnapshotIndexPath(cfg.DataDir),
		logger:         cfg.Logger,
	}, nil
}

type completionJSON struct {
	Version         string    `json:"version"`
	CompletedAt     time.Time `json:"completed_at"`
	Distro          string    `json:"distro"`
	SuccessfulSteps int       `json:"successful_steps"`
	TotalSteps      int       `json:"total_steps"`
	FailedSteps     int       `json:"failed_steps"`
	RunID           string    `json:"run_id,omitempty"`
}

// SaveCompletion overwrites the completion file.
func (r *Repository) SaveCompletion(ctx context.Context, c model.Completion) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid completion: %w", err)
	}

	data, err := json.MarshalIndent(completionJSON{
		Version:         c.Version,
		CompletedAt:     c.CompletedAt.UTC(),
		Distro:          c.Distro,
		SuccessfulSteps: c.SuccessfulSteps,
		TotalSteps:      c.TotalSteps,
		FailedSteps:     c.FailedSteps,
		RunID:           c.RunID,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal completion: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := file.WriteAtomic(r.completionPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("could not write completion: %w", err)
	}
	r.logger.Debugf("Completion written to %s", r.completionPath)

	return nil
}

// GetCompletion reads the completion file.
func (r *Repository) GetCompletion(ctx context.Context) (*model.Completion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.completionPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("completion: %w", model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not read completion: %w", err)
	}

	var c completionJSON
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("could not parse completion %s: %w", r.completionPath, err)
	}

	return &model.Completion{
		Version:         c.Version,
		RunID:           c.RunID,
		CompletedAt:     c.CompletedAt,
		Distro:          c.Distro,
		SuccessfulSteps: c.SuccessfulSteps,
		FailedSteps:     c.FailedSteps,
		TotalSteps:      c.TotalSteps,
	}, nil
}

type snapshotJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Distro    string    `json:"distro"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

type snapshotIndexJSON struct {
	Snapshots []snapshotJSON `json:"snapshots"`
}

// CreateSnapshot adds a snapshot to the index.
func (r *Repository) CreateSnapshot(ctx context.Context, s model.Snapshot) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snaps, err := r.readSnapshots()
	if err != nil {
		return err
	}

	for _, existing := range snaps {
		if existing.ID == s.ID {
			return fmt.Errorf("snapshot with id %s: %w", s.ID, model.ErrAlreadyExists)
		}
		if existing.Name == s.Name {
			return fmt.Errorf("snapshot with name %s: %w", s.Name, model.ErrAlreadyExists)
		}
	}

	return r.writeSnapshots(append(snaps, s))
}

// GetSnapshot returns a snapshot by ID.
func (r *Repository) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	return r.findSnapshot(func(s model.Snapshot) bool { return s.ID == id }, "snapshot "+id)
}

// GetSnapshotByName returns a snapshot by name.
func (r *Repository) GetSnapshotByName(ctx context.Context, name string) (*model.Snapshot, error) {
	return r.findSnapshot(func(s model.Snapshot) bool { return s.Name == name }, "snapshot with name "+name)
}

// ListSnapshots returns the snapshots, newest first.
func (r *Repository) ListSnapshots(ctx context.Context) ([]model.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snaps, err := r.readSnapshots()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(snaps, func(i, j int) bool { return snaps[i].CreatedAt.After(snaps[j].CreatedAt) })

	return snaps, nil
}

// DeleteSnapshot removes a snapshot from the index, the archive is not touched.
func (r *Repository) DeleteSnapshot(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snaps, err := r.readSnapshots()
	if err != nil {
		return err
	}

	kept := snaps[:0]
	for _, s := range snaps {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(snaps) {
		return fmt.Errorf("snapshot %s: %w", id, model.ErrNotFound)
	}

	return r.writeSnapshots(kept)
}

func (r *Repository) findSnapshot(match func(model.Snapshot) bool, what string) (*model.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snaps, err := r.readSnapshots()
	if err != nil {
		return nil, err
	}

	for _, s := range snaps {
		if match(s) {
			return &s, nil
		}
	}

	return nil, fmt.Errorf("%s: %w", what, model.ErrNotFound)
}

func (r *Repository) readSnapshots() ([]model.Snapshot, error) {
	data, err := os.ReadFile(r.snapshotsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.Snapshot{}, nil
		}
		return nil, fmt.Errorf("could not read snapshot index: %w", err)
	}

	var idx snapshotIndexJSON
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("could not parse snapshot index %s: %w", r.snapshotsPath, err)
	}

	snaps := make([]model.Snapshot, 0, len(idx.Snapshots))
	for _, s := range idx.Snapshots {
		snaps = append(snaps, model.Snapshot{
			ID:        s.ID,
			Name:      s.Name,
			Distro:    s.Distro,
			Path:      s.Path,
			SizeBytes: s.SizeBytes,
			CreatedAt: s.CreatedAt,
		})
	}

	return snaps, nil
}

func (r *Repository) writeSnapshots(snaps []model.Snapshot) error {
	idx := snapshotIndexJSON{Snapshots: make([]snapshotJSON, 0, len(snaps))}
	for _, s := range snaps {
		idx.Snapshots = append(idx.Snapshots, snapshotJSON{
			ID:        s.ID,
			Name:      s.Name,
			Distro:    s.Distro,
			Path:      s.Path,
			SizeBytes: s.SizeBytes,
			CreatedAt: s.CreatedAt.UTC(),
		})
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal snapshot index: %w", err)
	}

	if err := file.WriteAtomic(r.snapshotsPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("could not write snapshot index: %w", err)
	}

	return nil
}
