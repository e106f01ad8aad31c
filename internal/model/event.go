package model

import "time"

// EventAction is the transition an event record describes.
type EventAction string

const (
	EventActionRunStart    EventAction = "run_start"
	EventActionRunEnd      EventAction = "run_end"
	EventActionStepStart   EventAction = "step_start"
	EventActionStepEnd     EventAction = "step_end"
	EventActionStepWarning EventAction = "step_warning"
	EventActionCmdStart    EventAction = "cmd_start"
	EventActionCmdDone     EventAction = "cmd_done"
)

// Event is an immutable, append-only record of a state transition.
type Event struct {
	Timestamp time.Time
	RunID     string
	// StepIndex is nil for events that don't belong to a step.
	StepIndex *int
	Action    EventAction
	Status    string
	Detail    string
	Duration  time.Duration
}
