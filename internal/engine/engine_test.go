package engine_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/devdroid/internal/engine"
	"github.com/slok/devdroid/internal/eventlog"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/report"
	"github.com/slok/devdroid/internal/step"
)

func succeed() step.Work {
	return step.WorkFunc(func(context.Context, step.StatusSetter) error { return nil })
}

func fail() step.Work {
	return step.WorkFunc(func(context.Context, step.StatusSetter) error { return errors.New("boom") })
}

// fakeClock advances one second every time it's read.
func fakeClock() func() time.Time {
	t := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newEngine(t *testing.T, catalog step.Catalog, defs []model.StepDefinition) (*engine.Engine, *step.Registry, *eventlog.MemoryLogger) {
	t.Helper()

	reg, err := step.NewRegistry(step.RegistryConfig{Catalog: catalog})
	require.NoError(t, err)
	require.NoError(t, reg.Init(defs))

	events := eventlog.NewMemoryLogger()
	e, err := engine.New(engine.EngineConfig{
		Registry:    reg,
		EventLogger: events,
		Out:         &bytes.Buffer{},
		Now:         fakeClock(),
	})
	require.NoError(t, err)

	return e, reg, events
}

func stepActions(events *eventlog.MemoryLogger) []string {
	var res []string
	for _, e := range events.Events() {
		if e.Action != model.EventActionStepStart && e.Action != model.EventActionStepEnd {
			continue
		}
		res = append(res, fmt.Sprintf("%s:%d:%s", e.Action, *e.StepIndex, e.Status))
	}
	return res
}

func TestEngineRun(t *testing.T) {
	tests := map[string]struct {
		catalog        step.Catalog
		defs           []model.StepDefinition
		expStatuses    []model.StepStatus
		expAccumulated int
		expSummary     report.Summary
		expStepEvents  []string
	}{
		"A failing step should not stop the run.": {
			catalog: step.Catalog{"a": succeed(), "b": fail(), "c": succeed()},
			defs: []model.StepDefinition{
				{Name: "A", WorkID: "a", EstimatedSeconds: 2},
				{Name: "B", WorkID: "b", EstimatedSeconds: 3},
				{Name: "C", WorkID: "c", EstimatedSeconds: 1},
			},
			expStatuses:    []model.StepStatus{model.StepStatusSuccess, model.StepStatusFailed, model.StepStatusSuccess},
			expAccumulated: 6,
			expSummary:     report.Summary{Total: 3, Successful: 2, Failed: 1, StatusFailed: 1},
			expStepEvents: []string{
				"step_start:0:pending", "step_end:0:success",
				"step_start:1:pending", "step_end:1:failed",
				"step_start:2:pending", "step_end:2:success",
			},
		},

		"A self reported skipped status should not be overwritten.": {
			catalog: step.Catalog{
				"a": step.WorkFunc(func(_ context.Context, s step.StatusSetter) error {
					s.SetStatus(model.StepStatusSkipped)
					return nil
				}),
			},
			defs:           []model.StepDefinition{{Name: "A", WorkID: "a", EstimatedSeconds: 10}},
			expStatuses:    []model.StepStatus{model.StepStatusSkipped},
			expAccumulated: 10,
			expSummary:     report.Summary{Total: 1, Successful: 0, Failed: 1, Skipped: 1},
			expStepEvents:  []string{"step_start:0:pending", "step_end:0:skipped"},
		},

		"Returning the skipped error should mark the step as skipped.": {
			catalog: step.Catalog{
				"a": step.WorkFunc(func(context.Context, step.StatusSetter) error {
					return fmt.Errorf("already installed: %w", step.ErrSkipped)
				}),
			},
			defs:           []model.StepDefinition{{Name: "A", WorkID: "a", EstimatedSeconds: 10}},
			expStatuses:    []model.StepStatus{model.StepStatusSkipped},
			expAccumulated: 10,
			expSummary:     report.Summary{Total: 1, Successful: 0, Failed: 1, Skipped: 1},
			expStepEvents:  []string{"step_start:0:pending", "step_end:0:skipped"},
		},

		"A non terminal self reported status should be ignored.": {
			catalog: step.Catalog{
				"a": step.WorkFunc(func(_ context.Context, s step.StatusSetter) error {
					s.SetStatus(model.StepStatusPending)
					s.SetStatus("whatever")
					return nil
				}),
			},
			defs:           []model.StepDefinition{{Name: "A", WorkID: "a", EstimatedSeconds: 10}},
			expStatuses:    []model.StepStatus{model.StepStatusSuccess},
			expAccumulated: 10,
			expSummary:     report.Summary{Total: 1, Successful: 1},
			expStepEvents:  []string{"step_start:0:pending", "step_end:0:success"},
		},

		"An unresolved work should be missing and the run should continue.": {
			catalog: step.Catalog{"b": succeed()},
			defs: []model.StepDefinition{
				{Name: "A", WorkID: "a", EstimatedSeconds: 5},
				{Name: "B", WorkID: "b", EstimatedSeconds: 5},
			},
			expStatuses:    []model.StepStatus{model.StepStatusMissing, model.StepStatusSuccess},
			expAccumulated: 10,
			expSummary:     report.Summary{Total: 2, Successful: 1, Failed: 1, Missing: 1},
			expStepEvents: []string{
				"step_start:0:pending", "step_end:0:missing",
				"step_start:1:pending", "step_end:1:success",
			},
		},

		"A panicking work should fail and the run should continue.": {
			catalog: step.Catalog{
				"a": step.WorkFunc(func(context.Context, step.StatusSetter) error { panic("oops") }),
				"b": succeed(),
			},
			defs: []model.StepDefinition{
				{Name: "A", WorkID: "a", EstimatedSeconds: 5},
				{Name: "B", WorkID: "b", EstimatedSeconds: 5},
			},
			expStatuses:    []model.StepStatus{model.StepStatusFailed, model.StepStatusSuccess},
			expAccumulated: 10,
			expSummary:     report.Summary{Total: 2, Successful: 1, Failed: 1, StatusFailed: 1},
			expStepEvents: []string{
				"step_start:0:pending", "step_end:0:failed",
				"step_start:1:pending", "step_end:1:success",
			},
		},

		"An empty registry should finish without events.": {
			catalog:        step.Catalog{},
			defs:           nil,
			expStatuses:    []model.StepStatus{},
			expAccumulated: 0,
			expSummary:     report.Summary{},
			expStepEvents:  nil,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			e, reg, events := newEngine(t, test.catalog, test.defs)
			assert.Equal(engine.NotStarted, e.Current())

			err := e.Run(context.TODO())
			require.NoError(err)

			steps := reg.Steps()
			statuses := []model.StepStatus{}
			for _, s := range steps {
				statuses = append(statuses, s.Status)
				assert.True(s.Status.Terminal(), "step %d status %q", s.Number(), s.Status)
				assert.GreaterOrEqual(s.Duration, time.Duration(0))
				assert.False(s.StartedAt.IsZero())
				assert.False(s.EndedAt.Before(s.StartedAt))
			}
			assert.Equal(test.expStatuses, statuses)
			assert.Len(steps, reg.Totals().Steps)
			assert.Equal(test.expAccumulated, e.Accumulated())
			assert.Equal(len(steps), e.Current())
			assert.Equal(test.expSummary, report.Summarize(steps))
			assert.Equal(test.expStepEvents, stepActions(events))

			actions := events.Actions()
			require.NotEmpty(actions)
			assert.Equal(model.EventActionRunStart, actions[0])
			assert.Equal(model.EventActionRunEnd, actions[len(actions)-1])
		})
	}
}

func TestEngineRunProgress(t *testing.T) {
	assert := assert.New(t)

	catalog := step.Catalog{"a": succeed(), "b": succeed()}
	e, _, _ := newEngine(t, catalog, []model.StepDefinition{
		{Name: "A", WorkID: "a", EstimatedSeconds: 300},
		{Name: "B", WorkID: "b", EstimatedSeconds: 900},
	})

	assert.Equal(0, e.Percent())
	assert.NoError(e.Run(context.TODO()))
	assert.Equal(1200, e.Accumulated())
	assert.Equal(100, e.Percent())
}

func TestEngineRunCancelled(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	catalog := step.Catalog{
		"a": step.WorkFunc(func(context.Context, step.StatusSetter) error {
			cancel()
			return nil
		}),
		"b": succeed(),
	}
	e, reg, events := newEngine(t, catalog, []model.StepDefinition{
		{Name: "A", WorkID: "a", EstimatedSeconds: 5},
		{Name: "B", WorkID: "b", EstimatedSeconds: 5},
	})

	err := e.Run(ctx)
	require.ErrorIs(err, context.Canceled)

	steps := reg.Steps()
	assert.Equal(model.StepStatusSuccess, steps[0].Status)
	assert.Equal(model.StepStatusPending, steps[1].Status)
	assert.Equal([]string{"step_start:0:pending", "step_end:0:success"}, stepActions(events))
}

func TestEngineRunCancelledDuringLastStep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	catalog := step.Catalog{
		"a": succeed(),
		"b": step.WorkFunc(func(ctx context.Context, _ step.StatusSetter) error {
			cancel()
			return ctx.Err()
		}),
	}
	e, reg, _ := newEngine(t, catalog, []model.StepDefinition{
		{Name: "A", WorkID: "a", EstimatedSeconds: 5},
		{Name: "B", WorkID: "b", EstimatedSeconds: 5},
	})

	err := e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.StepStatusFailed, reg.Steps()[1].Status)
}

func TestEngineRunOneCancelled(t *testing.T) {
	assert := assert.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	catalog := step.Catalog{
		"a": step.WorkFunc(func(ctx context.Context, _ step.StatusSetter) error {
			cancel()
			return ctx.Err()
		}),
	}
	e, _, events := newEngine(t, catalog, []model.StepDefinition{
		{Name: "A", WorkID: "a", EstimatedSeconds: 5},
	})

	got, err := e.RunOne(ctx, "1")
	assert.ErrorIs(err, context.Canceled)
	assert.Equal("a", got.WorkID)
	assert.Equal(model.StepStatusFailed, got.Status)

	last := events.Events()[len(events.Events())-1]
	assert.Equal(model.EventActionRunEnd, last.Action)
	assert.Equal("aborted", last.Status)
}

func TestEnginePercentDuringRun(t *testing.T) {
	var e *engine.Engine
	var seen []int
	observe := step.WorkFunc(func(context.Context, step.StatusSetter) error {
		seen = append(seen, e.Percent())
		return nil
	})

	e, _, _ = newEngine(t, step.Catalog{"a": observe, "b": observe, "c": observe}, []model.StepDefinition{
		{Name: "A", WorkID: "a", EstimatedSeconds: 300},
		{Name: "B", WorkID: "b", EstimatedSeconds: 100},
		{Name: "C", WorkID: "c", EstimatedSeconds: 800},
	})

	require.NoError(t, e.Run(context.TODO()))
	assert.Equal(t, []int{0, 25, 33}, seen)
	assert.Equal(t, 100, e.Percent())
}

func TestEngineRunOne(t *testing.T) {
	defs := []model.StepDefinition{
		{Name: "Update package index", WorkID: "s1", EstimatedSeconds: 1},
		{Name: "Install base packages", WorkID: "s2", EstimatedSeconds: 2},
		{Name: "Configure SSH", WorkID: "s3", EstimatedSeconds: 3},
		{Name: "Configure remote desktop", WorkID: "s4", EstimatedSeconds: 4},
		{Name: "Create shortcuts", WorkID: "s5", EstimatedSeconds: 5},
	}

	tests := map[string]struct {
		ident          string
		catalog        step.Catalog
		expErr         error
		expIndex       int
		expStatus      model.StepStatus
		expAccumulated int
	}{
		"Running by 1-based number should only run that step.": {
			ident:          "2",
			catalog:        step.Catalog{"s1": fail(), "s2": succeed(), "s3": fail(), "s4": fail(), "s5": fail()},
			expIndex:       1,
			expStatus:      model.StepStatusSuccess,
			expAccumulated: 2,
		},

		"Running by name should only run the first match.": {
			ident:          "configure",
			catalog:        step.Catalog{"s1": fail(), "s2": fail(), "s3": fail(), "s4": succeed(), "s5": succeed()},
			expIndex:       2,
			expStatus:      model.StepStatusFailed,
			expAccumulated: 3,
		},

		"Running a step without work should be missing.": {
			ident:          "5",
			catalog:        step.Catalog{},
			expIndex:       4,
			expStatus:      model.StepStatusMissing,
			expAccumulated: 5,
		},

		"Running an unknown step should fail.": {
			ident:   "9",
			catalog: step.Catalog{},
			expErr:  model.ErrNotFound,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			e, reg, events := newEngine(t, test.catalog, defs)

			got, err := e.RunOne(context.TODO(), test.ident)
			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
				assert.Empty(events.Events())
				return
			}
			require.NoError(err)

			assert.Equal(test.expIndex, got.Index)
			assert.Equal(test.expStatus, got.Status)
			assert.Equal(test.expAccumulated, e.Accumulated())

			for _, s := range reg.Steps() {
				if s.Index == test.expIndex {
					assert.Equal(test.expStatus, s.Status)
					continue
				}
				assert.Equal(model.StepStatusPending, s.Status)
				assert.True(s.StartedAt.IsZero())
			}

			assert.Equal([]string{
				fmt.Sprintf("step_start:%d:pending", test.expIndex),
				fmt.Sprintf("step_end:%d:%s", test.expIndex, test.expStatus),
			}, stepActions(events))
		})
	}
}

func TestEngineRunOneMatchesFullRun(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	catalog := step.Catalog{"a": succeed(), "b": fail(), "c": succeed()}
	defs := []model.StepDefinition{
		{Name: "A", WorkID: "a", EstimatedSeconds: 2},
		{Name: "B", WorkID: "b", EstimatedSeconds: 3},
		{Name: "C", WorkID: "c", EstimatedSeconds: 1},
	}

	full, fullReg, _ := newEngine(t, catalog, defs)
	require.NoError(full.Run(context.TODO()))

	for k := 1; k <= len(defs); k++ {
		single, _, _ := newEngine(t, catalog, defs)
		got, err := single.RunOne(context.TODO(), fmt.Sprint(k))
		require.NoError(err)

		exp := fullReg.Steps()[k-1]
		assert.Equal(exp.Status, got.Status)
		assert.Equal(exp.Index, got.Index)
		assert.GreaterOrEqual(got.Duration, time.Duration(0))
	}
}

func TestEngineWorkSeesItsStep(t *testing.T) {
	assert := assert.New(t)

	var got []string
	w := step.WorkFunc(func(ctx context.Context, _ step.StatusSetter) error {
		s, ok := step.FromContext(ctx)
		assert.True(ok)
		got = append(got, fmt.Sprintf("%d:%s:%d", s.Index, s.WorkID, s.EstimatedSeconds))
		return nil
	})
	e, _, _ := newEngine(t, step.Catalog{"a": w, "b": w}, []model.StepDefinition{
		{Name: "A", WorkID: "a", EstimatedSeconds: 10},
		{Name: "B", WorkID: "b", EstimatedSeconds: 20},
	})

	assert.NoError(e.Run(context.TODO()))
	assert.Equal([]string{"0:a:10", "1:b:20"}, got)
}
