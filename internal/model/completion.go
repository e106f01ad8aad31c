package model

import (
	"fmt"
	"time"
)

// Completion is the snapshot of where the last run landed. It is overwritten on every run.
type Completion struct {
	Version         string
	RunID           string
	CompletedAt     time.Time
	Distro          string
	SuccessfulSteps int
	FailedSteps     int
	TotalSteps      int
}

// Validate validates the completion model.
func (c Completion) Validate() error {
	if c.CompletedAt.IsZero() {
		return fmt.Errorf("completed at is required: %w", ErrNotValid)
	}

	if c.SuccessfulSteps < 0 || c.FailedSteps < 0 || c.TotalSteps < 0 {
		return fmt.Errorf("step counts can't be negative: %w", ErrNotValid)
	}

	if c.SuccessfulSteps > c.TotalSteps {
		return fmt.Errorf("successful steps (%d) can't be greater than total steps (%d): %w", c.SuccessfulSteps, c.TotalSteps, ErrNotValid)
	}

	return nil
}
