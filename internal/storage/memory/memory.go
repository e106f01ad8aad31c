package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/slok/devdroid/internal/log"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/storage"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.Repository, used on dry runs and tests.
type Repository struct {
	completion *model.Completion
	snapshots  map[string]model.Snapshot
	mu         sync.RWMutex
	logger     log.Logger
}

var _ storage.Repository = &Repository{}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		snapshots: make(map[string]model.Snapshot),
		logger:    cfg.Logger,
	}, nil
}

// SaveCompletion replaces the stored completion.
func (r *Repository) SaveCompletion(ctx context.Context, c model.Completion) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid completion: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.completion = &c
	r.logger.Debugf("Saved completion of run %s", c.RunID)

	return nil
}

// GetCompletion returns the stored completion.
func (r *Repository) GetCompletion(ctx context.Context) (*model.Completion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.completion == nil {
		return nil, fmt.Errorf("completion: %w", model.ErrNotFound)
	}

	c := *r.completion
	return &c, nil
}

// CreateSnapshot creates a new snapshot in the repository.
func (r *Repository) CreateSnapshot(ctx context.Context, s model.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}

	if _, ok := r.snapshots[s.ID]; ok {
		return fmt.Errorf("snapshot with id %s: %w", s.ID, model.ErrAlreadyExists)
	}

	for _, existing := range r.snapshots {
		if existing.Name == s.Name {
			return fmt.Errorf("snapshot with name %s: %w", s.Name, model.ErrAlreadyExists)
		}
	}

	r.snapshots[s.ID] = s
	r.logger.Debugf("Created snapshot in repository: %s", s.ID)

	return nil
}

// GetSnapshot retrieves a snapshot by ID.
func (r *Repository) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot, ok := r.snapshots[id]
	if !ok {
		return nil, fmt.Errorf("snapshot %s: %w", id, model.ErrNotFound)
	}

	return &snapshot, nil
}

// GetSnapshotByName retrieves a snapshot by name.
func (r *Repository) GetSnapshotByName(ctx context.Context, name string) (*model.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, snapshot := range r.snapshots {
		if snapshot.Name == name {
			return &snapshot, nil
		}
	}

	return nil, fmt.Errorf("snapshot with name %s: %w", name, model.ErrNotFound)
}

// ListSnapshots returns all snapshots, newest first.
func (r *Repository) ListSnapshots(ctx context.Context) ([]model.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshots := make([]model.Snapshot, 0, len(r.snapshots))
	for _, snapshot := range r.snapshots {
		snapshots = append(snapshots, snapshot)
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt) })

	return snapshots, nil
}

// DeleteSnapshot removes a snapshot from the index.
func (r *Repository) DeleteSnapshot(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.snapshots[id]; !ok {
		return fmt.Errorf("snapshot %s: %w", id, model.ErrNotFound)
	}
	delete(r.snapshots, id)

	return nil
}
