package step

import (
	"context"
	"errors"

	"github.com/slok/devdroid/internal/model"
)

// ErrSkipped is returned by a unit of work that intentionally didn't do anything (e.g. it was
// already done or it has been disabled).
var ErrSkipped = errors.New("step skipped")

// StatusSetter lets a unit of work self-report its final status.
type StatusSetter interface {
	SetStatus(status model.StepStatus)
}

// Work is the unit of work a step delegates to.
type Work interface {
	Run(ctx context.Context, status StatusSetter) error
}

// WorkFunc is a helper to use functions as Work.
type WorkFunc func(ctx context.Context, status StatusSetter) error

func (w WorkFunc) Run(ctx context.Context, status StatusSetter) error { return w(ctx, status) }

// Catalog maps work IDs to their units of work.
type Catalog map[string]Work

type ctxStepKey struct{}

// ContextWithStep returns a context that carries the step being executed.
func ContextWithStep(ctx context.Context, s model.Step) context.Context {
	return context.WithValue(ctx, ctxStepKey{}, s)
}

// FromContext returns the step being executed, if any.
func FromContext(ctx context.Context) (model.Step, bool) {
	s, ok := ctx.Value(ctxStepKey{}).(model.Step)
	return s, ok
}
