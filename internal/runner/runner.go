// Package runner executes one background operation at a time while rendering a live progress
// line estimated from the elapsed time against the expected duration.
package runner

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/slok/devdroid/internal/eventlog"
	"github.com/slok/devdroid/internal/log"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/retry"
	"github.com/slok/devdroid/internal/styles"
	"github.com/slok/devdroid/internal/utils/env"
)

// Poll delay bounds in milliseconds.
const (
	DefaultPollDelayMS = 20
	MinPollDelayMS     = 5
	MaxPollDelayMS     = 1000
)

// DefaultTailLines is the number of output lines shown when an operation fails.
const DefaultTailLines = 12

// Request is a single operation run.
type Request struct {
	// Label is the human name of the operation.
	Label string
	// EstimatedSeconds is validated with ValidEstimate.
	EstimatedSeconds int
	Work             Work
	// Retry defaults to no retries.
	Retry retry.Config
	// StepIndex is the owning step for the event records, if any.
	StepIndex *int
}

func (r *Request) defaults() error {
	if r.Work == nil {
		return fmt.Errorf("work is required: %w", model.ErrNotValid)
	}
	if r.Label == "" {
		if s, ok := r.Work.(fmt.Stringer); ok {
			r.Label = s.String()
		} else {
			r.Label = "operation"
		}
	}
	r.EstimatedSeconds = ValidEstimate(r.EstimatedSeconds)

	return nil
}

// RunnerConfig is the configuration of the Runner.
type RunnerConfig struct {
	// Out receives the status lines, normally the terminal.
	Out         io.Writer
	Logger      log.Logger
	EventLogger eventlog.Logger
	// PollDelay is how often the status line is refreshed, by default it's read from the
	// DEVDROID_POLL_DELAY_MS env var.
	PollDelay time.Duration
	// Interactive redraws the status line in place, otherwise only the final lines are printed.
	Interactive bool
	Width       int
	TailLines   int
	FastMode    bool
	Now         func() time.Time
}

func (c *RunnerConfig) defaults() error {
	if c.Out == nil {
		c.Out = io.Discard
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "runner.Runner"})

	if c.EventLogger == nil {
		c.EventLogger = eventlog.Noop
	}

	if c.PollDelay <= 0 {
		c.PollDelay = time.Duration(env.Int(env.PollDelayMS, DefaultPollDelayMS, MinPollDelayMS, MaxPollDelayMS)) * time.Millisecond
	}

	if c.Width <= 0 {
		c.Width = 80
	}

	if c.TailLines <= 0 {
		c.TailLines = DefaultTailLines
	}

	if c.Now == nil {
		c.Now = time.Now
	}

	return nil
}

// Runner runs operations with a live progress status line.
type Runner struct {
	out         io.Writer
	logger      log.Logger
	eventLogger eventlog.Logger
	pollDelay   time.Duration
	interactive bool
	tailLines   int
	now         func() time.Time
	render      statusRenderer
}

// NewRunner returns a new Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{
		out:         cfg.Out,
		logger:      cfg.Logger,
		eventLogger: cfg.EventLogger,
		pollDelay:   cfg.PollDelay,
		interactive: cfg.Interactive,
		tailLines:   cfg.TailLines,
		now:         cfg.Now,
		render:      newStatusRenderer(cfg.Width, cfg.FastMode),
	}, nil
}

// Run executes the request work in the background and blocks until it ends, rendering the
// progress in the meantime. It returns the exit code of the operation (0 on success) and the
// error that made it fail.
//
// There is no timeout, cancelling the context is the only way of stopping the work.
func (r *Runner) Run(ctx context.Context, req Request) (int, error) {
	if err := req.defaults(); err != nil {
		return 1, fmt.Errorf("invalid request: %w", err)
	}

	logger := r.logger.WithValues(log.Kv{"op": req.Label})
	tail := newTailBuffer(r.tailLines)

	retryCfg := req.Retry
	onRetry := retryCfg.OnRetry
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warningf("Attempt %d failed, retrying in %s: %s", attempt, delay, err)
		if onRetry != nil {
			onRetry(attempt, err, delay)
		}
	}

	r.log(ctx, req, model.EventActionCmdStart, "running", req.Label, 0)
	start := r.now()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("operation panicked: %v", rec)
			}
		}()

		done <- retry.Do(ctx, retryCfg, func(ctx context.Context, attempt int) error {
			if attempt > 1 {
				fmt.Fprintf(tail, "--- attempt %d ---\n", attempt)
			}
			return req.Work.Run(ctx, tail)
		})
	}()

	err := r.wait(req, start, done)
	dur := r.now().Sub(start)
	if dur < 0 {
		dur = 0
	}

	code := ExitCode(err)
	r.clearLine()
	if err == nil {
		fmt.Fprintln(r.out, r.render.success(req.Label, dur))
		r.log(ctx, req, model.EventActionCmdDone, "success", "exit=0", dur)
		return 0, nil
	}

	fmt.Fprintln(r.out, r.render.failure(req.Label, code, dur))
	for _, line := range tail.Lines() {
		fmt.Fprintln(r.out, "    "+styles.MutedText.Render(line))
	}
	logger.Debugf("Operation failed after %s: %s", dur, err)
	r.log(ctx, req, model.EventActionCmdDone, "failed", fmt.Sprintf("exit=%d: %s", code, firstLine(err.Error())), dur)

	return code, fmt.Errorf("%s failed with exit code %d: %w", req.Label, code, err)
}

// RunBestEffort is like Run but ignores the outcome, used for optional operations.
func (r *Runner) RunBestEffort(ctx context.Context, req Request) {
	if _, err := r.Run(ctx, req); err != nil {
		r.logger.Debugf("Ignoring best effort operation failure: %s", err)
	}
}

// wait ticks the status line until the background work returns its result.
func (r *Runner) wait(req Request, start time.Time, done <-chan error) error {
	ticker := time.NewTicker(r.pollDelay)
	defer ticker.Stop()

	lastLine := ""
	for {
		select {
		case err := <-done:
			return err
		case <-ticker.C:
			if !r.interactive {
				continue
			}

			line := r.render.running(req.Label, r.now().Sub(start), req.EstimatedSeconds)
			if line == lastLine {
				continue
			}
			lastLine = line
			fmt.Fprint(r.out, "\r"+line)
		}
	}
}

func (r *Runner) clearLine() {
	if r.interactive {
		fmt.Fprint(r.out, "\r"+ansi.EraseEntireLine)
	}
}

func (r *Runner) log(ctx context.Context, req Request, action model.EventAction, status, detail string, dur time.Duration) {
	r.eventLogger.Log(ctx, model.Event{
		StepIndex: req.StepIndex,
		Action:    action,
		Status:    status,
		Detail:    detail,
		Duration:  dur,
	})
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
