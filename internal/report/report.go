// Package report summarizes the outcome of an install run and persists where it landed.
package report

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/slok/devdroid/internal/log"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/printer"
	"github.com/slok/devdroid/internal/safemath"
	"github.com/slok/devdroid/internal/storage"
	"github.com/slok/devdroid/internal/styles"
)

// Summary is the outcome counts of a run.
type Summary struct {
	Total      int
	Successful int
	// Failed is every step that didn't succeed (failed, skipped, missing or never run).
	Failed int
	// StatusFailed, Skipped, Missing and Pending are the breakdown by status.
	StatusFailed int
	Skipped      int
	Missing      int
	Pending      int
}

// Summarize counts the step outcomes.
func Summarize(steps []model.Step) Summary {
	s := Summary{Total: len(steps)}
	for _, st := range steps {
		switch st.Status {
		case model.StepStatusSuccess:
			s.Successful++
		case model.StepStatusFailed:
			s.StatusFailed++
		case model.StepStatusSkipped:
			s.Skipped++
		case model.StepStatusMissing:
			s.Missing++
		default:
			s.Pending++
		}
	}

	// Only valid while total >= successful, otherwise it's reported as 0.
	if s.Total >= s.Successful {
		s.Failed, _ = safemath.Sub(s.Total, s.Successful)
	}

	return s
}

// ReporterConfig is the configuration of the Reporter.
type ReporterConfig struct {
	Repository storage.CompletionRepository
	Logger     log.Logger
	Version    string
	Now        func() time.Time
}

func (c *ReporterConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "report.Reporter"})

	if c.Version == "" {
		c.Version = "dev"
	}

	if c.Now == nil {
		c.Now = time.Now
	}

	return nil
}

// Reporter renders run summaries and persists the completion snapshot.
type Reporter struct {
	repo    storage.CompletionRepository
	logger  log.Logger
	version string
	now     func() time.Time
}

// NewReporter returns a new Reporter.
func NewReporter(cfg ReporterConfig) (*Reporter, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Reporter{
		repo:    cfg.Repository,
		logger:  cfg.Logger,
		version: cfg.Version,
		now:     cfg.Now,
	}, nil
}

// Render writes the per step table and the outcome counts.
func (r *Reporter) Render(w io.Writer, summary Summary, steps []model.Step) error {
	fmt.Fprintln(w)
	fmt.Fprintln(w, styles.Title.Render("Install summary"))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTEP\tSTATUS\tDURATION")
	for _, s := range steps {
		dur := "-"
		if !s.StartedAt.IsZero() {
			dur = printer.FormatDuration(s.Duration)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Number(), s.Name, s.Status, dur)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("could not render summary table: %w", err)
	}

	fmt.Fprintln(w)
	counts := fmt.Sprintf("successful=%d failed=%d total=%d", summary.Successful, summary.Failed, summary.Total)
	switch {
	case summary.Total > 0 && summary.Successful == summary.Total:
		fmt.Fprintln(w, styles.SuccessText.Render(styles.SymbolSuccess+" "+counts))
	case summary.StatusFailed > 0 || summary.Missing > 0:
		fmt.Fprintln(w, styles.ErrorText.Render(styles.SymbolFailure+" "+counts))
	default:
		fmt.Fprintln(w, styles.WarningText.Render(styles.SymbolWarning+" "+counts))
	}
	fmt.Fprintln(w, styles.MutedText.Render(fmt.Sprintf("(failed: %d, skipped: %d, missing: %d, not run: %d)",
		summary.StatusFailed, summary.Skipped, summary.Missing, summary.Pending)))

	return nil
}

// Persist overwrites the completion snapshot with the run result. Failing to persist doesn't
// change the run result, so the error is only logged.
func (r *Reporter) Persist(ctx context.Context, runID, distro string, summary Summary) (model.Completion, error) {
	c := model.Completion{
		Version:         r.version,
		RunID:           runID,
		CompletedAt:     r.now().UTC(),
		Distro:          distro,
		SuccessfulSteps: summary.Successful,
		FailedSteps:     summary.Failed,
		TotalSteps:      summary.Total,
	}

	if err := r.repo.SaveCompletion(ctx, c); err != nil {
		r.logger.Warningf("Could not persist completion: %s", err)
		return c, fmt.Errorf("could not persist completion: %w", err)
	}

	return c, nil
}
