// Package engine walks the registered installer steps in order, delegating each one to its
// unit of work and keeping the per step timing, status and overall progress.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/slok/devdroid/internal/eventlog"
	"github.com/slok/devdroid/internal/log"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/printer"
	"github.com/slok/devdroid/internal/safemath"
	"github.com/slok/devdroid/internal/step"
	"github.com/slok/devdroid/internal/styles"
)

// NotStarted is the current step index before any step started.
const NotStarted = -1

// EngineConfig is the configuration of the Engine.
type EngineConfig struct {
	Registry    *step.Registry
	EventLogger eventlog.Logger
	Logger      log.Logger
	// Out receives the step banners.
	Out io.Writer
	// FastMode shrinks the displayed ETAs.
	FastMode bool
	Now      func() time.Time
}

func (c *EngineConfig) defaults() error {
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}

	if c.EventLogger == nil {
		c.EventLogger = eventlog.Noop
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "engine.Engine"})

	if c.Out == nil {
		c.Out = io.Discard
	}

	if c.Now == nil {
		c.Now = time.Now
	}

	return nil
}

// Engine executes the steps of a registry. The engine is the only owner of the steps state and
// the progress accumulator, it's not safe for concurrent use.
type Engine struct {
	registry    *step.Registry
	eventLogger eventlog.Logger
	logger      log.Logger
	out         io.Writer
	fastMode    bool
	now         func() time.Time
	bar         progress.Model

	current     int
	accumulated int
}

// New returns a new Engine.
func New(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	from, to := styles.ProgressGradient()
	return &Engine{
		registry:    cfg.Registry,
		eventLogger: cfg.EventLogger,
		logger:      cfg.Logger,
		out:         cfg.Out,
		fastMode:    cfg.FastMode,
		now:         cfg.Now,
		bar:         progress.New(progress.WithGradient(from, to), progress.WithWidth(30)),
		current:     NotStarted,
	}, nil
}

// Run executes all the registered steps in order. A failing step never stops the run, only
// the context cancellation (operator interruption) does.
func (e *Engine) Run(ctx context.Context) error {
	entries := e.registry.Entries()
	totals := e.registry.Totals()

	e.logRun(ctx, model.EventActionRunStart, "running", fmt.Sprintf("mode=all steps=%d estimated=%ds", totals.Steps, totals.EstimatedSeconds), 0)
	start := e.now()

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			e.logRun(ctx, model.EventActionRunEnd, "aborted", fmt.Sprintf("interrupted before step %d", entry.Number()), e.since(start))
			return fmt.Errorf("install interrupted: %w", err)
		}

		e.runStep(ctx, entry)
	}
	e.current = len(entries)

	// The last step may have been interrupted.
	if err := ctx.Err(); err != nil {
		e.logRun(ctx, model.EventActionRunEnd, "aborted", "interrupted during the last step", e.since(start))
		return fmt.Errorf("install interrupted: %w", err)
	}

	e.logRun(ctx, model.EventActionRunEnd, "done", "", e.since(start))

	return nil
}

// RunOne resolves a single step by 1-based number or name and executes only that step.
// An interruption while the step runs returns the executed step together with the error.
func (e *Engine) RunOne(ctx context.Context, ident string) (model.Step, error) {
	entry, err := e.registry.Find(ident)
	if err != nil {
		return model.Step{}, fmt.Errorf("could not resolve step %q: %w", ident, err)
	}

	if err := ctx.Err(); err != nil {
		return model.Step{}, fmt.Errorf("install interrupted: %w", err)
	}

	e.logRun(ctx, model.EventActionRunStart, "running", fmt.Sprintf("mode=single step=%d", entry.Number()), 0)
	start := e.now()

	e.runStep(ctx, entry)

	if err := ctx.Err(); err != nil {
		e.logRun(ctx, model.EventActionRunEnd, "aborted", fmt.Sprintf("interrupted during step %d", entry.Number()), e.since(start))
		return entry.Step, fmt.Errorf("install interrupted: %w", err)
	}

	e.logRun(ctx, model.EventActionRunEnd, "done", "", e.since(start))

	return entry.Step, nil
}

// Accumulated returns the estimated seconds of the steps that already ended.
func (e *Engine) Accumulated() int { return e.accumulated }

// Current returns the index of the step being executed, NotStarted before the run and the
// number of steps once all of them have been executed.
func (e *Engine) Current() int { return e.current }

// Percent returns the overall run progress estimated from the ended steps.
func (e *Engine) Percent() int {
	total := e.registry.Totals().EstimatedSeconds
	if total < 1 {
		return 0
	}

	return min(100, safemath.PercentOf(e.accumulated, total))
}

func (e *Engine) runStep(ctx context.Context, entry *step.Entry) {
	e.start(ctx, entry)
	e.execute(ctx, entry)
	e.end(ctx, entry)
}

func (e *Engine) start(ctx context.Context, entry *step.Entry) {
	e.current = entry.Index
	entry.StartedAt = e.now()

	totals := e.registry.Totals()
	pct := e.Percent()
	left, _ := safemath.Sub(totals.EstimatedSeconds, e.accumulated)
	if e.fastMode {
		left /= 4
	}

	fmt.Fprintf(e.out, "\n%s %s\n%s %3d%% %s\n",
		styles.AccentText.Render(fmt.Sprintf("[%d/%d]", entry.Number(), totals.Steps)),
		styles.Title.Render(entry.Name),
		e.bar.ViewAs(float64(pct)/100),
		pct,
		styles.MutedText.Render("(~"+printer.FormatDuration(time.Duration(left)*time.Second)+" left overall)"),
	)

	e.logStep(ctx, model.EventActionStepStart, entry, string(model.StepStatusPending), entry.Name, 0)
}

func (e *Engine) execute(ctx context.Context, entry *step.Entry) {
	logger := e.logger.WithValues(log.Kv{"step": entry.Number(), "work": entry.WorkID})

	if entry.Work == nil {
		entry.Status = model.StepStatusMissing
		logger.Errorf("Step %q has no unit of work for %q, this is an installer bug", entry.Name, entry.WorkID)
		e.logStep(ctx, model.EventActionStepWarning, entry, string(model.StepStatusMissing), "unknown work id "+entry.WorkID, 0)
		return
	}

	reported := &reportedStatus{}
	err := runWork(step.ContextWithStep(ctx, entry.Step), entry.Work, reported)

	switch {
	case err == nil && reported.set:
		entry.Status = reported.status
	case err == nil:
		entry.Status = model.StepStatusSuccess
	case errors.Is(err, step.ErrSkipped):
		entry.Status = model.StepStatusSkipped
		logger.Debugf("Step skipped: %s", err)
	default:
		entry.Status = model.StepStatusFailed
		logger.Warningf("Step %q failed, continuing: %s", entry.Name, err)
		e.logStep(ctx, model.EventActionStepWarning, entry, string(model.StepStatusFailed), err.Error(), 0)
	}
}

func (e *Engine) end(ctx context.Context, entry *step.Entry) {
	entry.EndedAt = e.now()
	entry.Duration = entry.EndedAt.Sub(entry.StartedAt)
	if entry.Duration < 0 {
		entry.Duration = 0
	}

	e.accumulated, _ = safemath.Add(e.accumulated, entry.EstimatedSeconds)

	fmt.Fprintf(e.out, "%s %s %s\n", statusSymbol(entry.Status), entry.Name,
		styles.MutedText.Render(fmt.Sprintf("(%s in %s)", entry.Status, printer.FormatDuration(entry.Duration))))

	e.logStep(ctx, model.EventActionStepEnd, entry, string(entry.Status), "", entry.Duration)
}

func (e *Engine) since(t time.Time) time.Duration {
	d := e.now().Sub(t)
	if d < 0 {
		return 0
	}
	return d
}

func (e *Engine) logStep(ctx context.Context, action model.EventAction, entry *step.Entry, status, detail string, dur time.Duration) {
	eventlog.LogStep(ctx, e.eventLogger, action, entry.Index, status, detail, dur)
}

func (e *Engine) logRun(ctx context.Context, action model.EventAction, status, detail string, dur time.Duration) {
	eventlog.LogRun(ctx, e.eventLogger, action, status, detail, dur)
}

// runWork runs the unit of work converting panics into errors so a broken unit of work can't
// crash the whole run.
func runWork(ctx context.Context, w step.Work, s step.StatusSetter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit of work panicked: %v", r)
		}
	}()

	return w.Run(ctx, s)
}

// reportedStatus records the status self-reported by a unit of work.
type reportedStatus struct {
	status model.StepStatus
	set    bool
}

// SetStatus only accepts terminal statuses, the engine owns the rest of transitions.
func (r *reportedStatus) SetStatus(status model.StepStatus) {
	if !status.Terminal() {
		return
	}
	r.status = status
	r.set = true
}

func statusSymbol(s model.StepStatus) string {
	switch s {
	case model.StepStatusSuccess:
		return styles.SuccessText.Render(styles.SymbolSuccess)
	case model.StepStatusSkipped:
		return styles.MutedText.Render(styles.SymbolSkipped)
	case model.StepStatusMissing:
		return styles.WarningText.Render(styles.SymbolWarning)
	default:
		return styles.ErrorText.Render(styles.SymbolFailure)
	}
}
