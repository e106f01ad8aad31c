package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/slok/devdroid/internal/model"
)

// CompletionRepository persists the completion snapshot of the last run.
type CompletionRepository interface {
	// SaveCompletion replaces the stored completion.
	SaveCompletion(ctx context.Context, c model.Completion) error
	// GetCompletion returns model.ErrNotFound if no run has completed yet.
	GetCompletion(ctx context.Context) (*model.Completion, error)
}

// SnapshotRepository is the index of the environment snapshots.
type SnapshotRepository interface {
	CreateSnapshot(ctx context.Context, s model.Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error)
	GetSnapshotByName(ctx context.Context, name string) (*model.Snapshot, error)
	ListSnapshots(ctx context.Context) ([]model.Snapshot, error)
	DeleteSnapshot(ctx context.Context, id string) error
}

// Repository is the installer persistence.
type Repository interface {
	CompletionRepository
	SnapshotRepository
}

// GetSnapshotByNameOrID looks up a snapshot by name first, then by ID if the input is a ULID.
func GetSnapshotByNameOrID(ctx context.Context, repo SnapshotRepository, nameOrID string) (*model.Snapshot, error) {
	s, err := repo.GetSnapshotByName(ctx, nameOrID)
	if errors.Is(err, model.ErrNotFound) {
		if _, perr := ulid.ParseStrict(nameOrID); perr == nil {
			s, err = repo.GetSnapshot(ctx, nameOrID)
		}
	}
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("snapshot not found: %s: %w", nameOrID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not get snapshot: %w", err)
	}

	return s, nil
}
