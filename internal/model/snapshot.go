package model

import (
	"fmt"
	"regexp"
	"time"
)

var snapshotNameRegexp = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// Snapshot is a backup archive of the container distribution that can be restored later.
type Snapshot struct {
	ID        string
	Name      string
	Distro    string
	Path      string
	SizeBytes int64
	CreatedAt time.Time
}

// Validate validates the snapshot model.
func (s Snapshot) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("snapshot id is required: %w", ErrNotValid)
	}

	if err := ValidateSnapshotName(s.Name); err != nil {
		return err
	}

	if s.Distro == "" {
		return fmt.Errorf("snapshot distro is required: %w", ErrNotValid)
	}

	if s.Path == "" {
		return fmt.Errorf("snapshot path is required: %w", ErrNotValid)
	}

	if s.SizeBytes < 0 {
		return fmt.Errorf("size cannot be negative: %w", ErrNotValid)
	}

	if s.CreatedAt.IsZero() {
		return fmt.Errorf("created at is required: %w", ErrNotValid)
	}

	return nil
}

// ValidateSnapshotName validates a snapshot friendly name.
func ValidateSnapshotName(name string) error {
	if name == "" {
		return fmt.Errorf("snapshot name is required: %w", ErrNotValid)
	}

	if !snapshotNameRegexp.MatchString(name) {
		return fmt.Errorf("snapshot name %q is invalid (allowed: [a-zA-Z0-9._-]): %w", name, ErrNotValid)
	}

	return nil
}
