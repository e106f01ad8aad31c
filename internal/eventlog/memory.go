package eventlog

import (
	"context"
	"sync"

	"github.com/slok/devdroid/internal/model"
)

// MemoryLogger keeps the events in memory, useful to inspect what happened in a run.
type MemoryLogger struct {
	events []model.Event
	mu     sync.Mutex
}

// NewMemoryLogger returns a new in-memory event logger.
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

func (m *MemoryLogger) Log(_ context.Context, e model.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

// Events returns a copy of the logged events in order.
func (m *MemoryLogger) Events() []model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := make([]model.Event, len(m.events))
	copy(events, m.events)
	return events
}

// Actions returns the logged event actions in order.
func (m *MemoryLogger) Actions() []model.EventAction {
	events := m.Events()
	actions := make([]model.EventAction, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	return actions
}
