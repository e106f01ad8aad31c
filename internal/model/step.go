package model

import (
	"fmt"
	"time"
)

// StepStatus represents the state of an installer step inside a run.
type StepStatus string

const (
	// StepStatusPending is the initial status of every registered step.
	StepStatusPending StepStatus = "pending"
	// StepStatusSuccess indicates the step unit of work completed.
	StepStatusSuccess StepStatus = "success"
	// StepStatusFailed indicates the step unit of work returned an error.
	StepStatusFailed StepStatus = "failed"
	// StepStatusSkipped indicates the unit of work intentionally did nothing.
	StepStatusSkipped StepStatus = "skipped"
	// StepStatusMissing indicates the step work ID could not be resolved to a unit of work.
	StepStatusMissing StepStatus = "missing"
)

// Valid returns true if the status is one of the known step statuses.
func (s StepStatus) Valid() bool {
	switch s {
	case StepStatusPending, StepStatusSuccess, StepStatusFailed, StepStatusSkipped, StepStatusMissing:
		return true
	}
	return false
}

// Terminal returns true if the status is a final status for a run.
func (s StepStatus) Terminal() bool {
	return s.Valid() && s != StepStatusPending
}

const (
	// MinStepEstimatedSeconds is the lowest estimation a step can have.
	MinStepEstimatedSeconds = 1
	// MaxStepEstimatedSeconds is the highest estimation a step can have.
	MaxStepEstimatedSeconds = 3600
)

// Step is a single registered unit of installable work.
type Step struct {
	// Index is the 0-based position of the step in the registry.
	Index int
	// Name is the human readable label.
	Name string
	// WorkID identifies the unit of work the step delegates to.
	WorkID string
	// EstimatedSeconds is only used to estimate progress.
	EstimatedSeconds int
	Status           StepStatus
	StartedAt        time.Time
	EndedAt          time.Time
	Duration         time.Duration
}

// Validate validates the step model.
func (s Step) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("step name is required: %w", ErrNotValid)
	}

	if s.WorkID == "" {
		return fmt.Errorf("step work id is required: %w", ErrNotValid)
	}

	if s.EstimatedSeconds < MinStepEstimatedSeconds || s.EstimatedSeconds > MaxStepEstimatedSeconds {
		return fmt.Errorf("step estimated seconds must be in [%d, %d], got %d: %w", MinStepEstimatedSeconds, MaxStepEstimatedSeconds, s.EstimatedSeconds, ErrNotValid)
	}

	if !s.Status.Valid() {
		return fmt.Errorf("unknown step status %q: %w", s.Status, ErrNotValid)
	}

	return nil
}

// Number returns the 1-based position of the step, the one shown to users.
func (s Step) Number() int { return s.Index + 1 }

// StepDefinition is the static declaration of a step before it is registered.
type StepDefinition struct {
	Name             string
	WorkID           string
	EstimatedSeconds int
}
