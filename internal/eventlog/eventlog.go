// Package eventlog records every installer state transition as one JSON object per line.
//
// Logging is best effort: a missing or unwritable log file never makes the caller fail.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/slok/devdroid/internal/log"
	"github.com/slok/devdroid/internal/model"
)

// Logger appends event records.
type Logger interface {
	Log(ctx context.Context, e model.Event)
}

// Noop is a Logger that discards every event.
var Noop Logger = noop{}

type noop struct{}

func (noop) Log(context.Context, model.Event) {}

// FileLoggerConfig is the configuration for the JSON lines file logger.
type FileLoggerConfig struct {
	// Path of the log file, when empty events are discarded.
	Path   string
	RunID  string
	Logger log.Logger
	// Now is used to timestamp events without timestamp.
	Now func() time.Time
}

func (c *FileLoggerConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "eventlog.File"})

	if c.Now == nil {
		c.Now = time.Now
	}
	return nil
}

// FileLogger appends events as JSON lines to a file.
type FileLogger struct {
	path   string
	runID  string
	logger log.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// NewFileLogger returns a new JSON lines file logger.
func NewFileLogger(cfg FileLoggerConfig) (*FileLogger, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Path == "" {
		cfg.Logger.Debugf("Event log path not set, events will be discarded")
	}

	return &FileLogger{
		path:   cfg.Path,
		runID:  cfg.RunID,
		logger: cfg.Logger,
		now:    cfg.Now,
	}, nil
}

type eventJSON struct {
	Timestamp  string `json:"timestamp"`
	RunID      string `json:"run_id,omitempty"`
	Step       *int   `json:"step"`
	Action     string `json:"action"`
	Status     string `json:"status"`
	Detail     string `json:"detail"`
	Duration   int64  `json:"duration"`
	DurationMS int64  `json:"duration_ms"`
}

// Log appends the event to the log file. Errors are only reported at debug level.
func (l *FileLogger) Log(ctx context.Context, e model.Event) {
	if l.path == "" {
		return
	}

	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}
	if e.RunID == "" {
		e.RunID = l.runID
	}

	line, err := Encode(e)
	if err != nil {
		l.logger.Debugf("Could not encode event %q: %v", e.Action, err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.appendLine(line); err != nil {
		l.logger.Debugf("Could not write event %q: %v", e.Action, err)
	}
}

func (l *FileLogger) appendLine(line []byte) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("could not create log directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("could not open event log: %w", err)
	}
	defer f.Close()

	// A single write per line keeps lines whole with O_APPEND.
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("could not append event: %w", err)
	}

	return nil
}

// Encode returns the JSON line (newline terminated) for an event.
func Encode(e model.Event) ([]byte, error) {
	dur := e.Duration
	if dur < 0 {
		dur = 0
	}

	out := eventJSON{
		Timestamp:  e.Timestamp.UTC().Format(time.RFC3339),
		RunID:      e.RunID,
		Step:       e.StepIndex,
		Action:     string(e.Action),
		Status:     e.Status,
		Detail:     e.Detail,
		Duration:   int64(dur / time.Second),
		DurationMS: dur.Milliseconds(),
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}

	return append(data, '\n'), nil
}

// StepEvent is a helper to build a step scoped event.
func StepEvent(action model.EventAction, stepIndex int, status, detail string, dur time.Duration) model.Event {
	idx := stepIndex
	return model.Event{
		StepIndex: &idx,
		Action:    action,
		Status:    status,
		Detail:    detail,
		Duration:  dur,
	}
}

// RunEvent is a helper to build an event that doesn't belong to any step.
func RunEvent(action model.EventAction, status, detail string, dur time.Duration) model.Event {
	return model.Event{
		Action:   action,
		Status:   status,
		Detail:   detail,
		Duration: dur,
	}
}

// LogStep logs a step scoped event.
func LogStep(ctx context.Context, l Logger, action model.EventAction, stepIndex int, status, detail string, dur time.Duration) {
	l.Log(ctx, StepEvent(action, stepIndex, status, detail, dur))
}

// LogRun logs a run scoped event.
func LogRun(ctx context.Context, l Logger, action model.EventAction, status, detail string, dur time.Duration) {
	l.Log(ctx, RunEvent(action, status, detail, dur))
}
