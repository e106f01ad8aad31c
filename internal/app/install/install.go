package install

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/devdroid/internal/engine"
	"github.com/slok/devdroid/internal/eventlog"
	"github.com/slok/devdroid/internal/installer"
	"github.com/slok/devdroid/internal/log"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/report"
	"github.com/slok/devdroid/internal/step"
	"github.com/slok/devdroid/internal/storage"
	"github.com/slok/devdroid/internal/utils/file"
)

// ServiceConfig is the configuration for the install service.
type ServiceConfig struct {
	// Catalog has the units of work the step definitions reference.
	Catalog     step.Catalog
	Definitions []model.StepDefinition
	Repository  storage.CompletionRepository
	EventLogger eventlog.Logger
	DataDir     string
	// Prefix is the Termux PREFIX checked before running.
	Prefix string
	// Out receives the step banners and the summary.
	Out      io.Writer
	FastMode bool
	Version  string
	Logger   log.Logger
	Now      func() time.Time
}

func (c *ServiceConfig) defaults() error {
	if c.Catalog == nil {
		return fmt.Errorf("catalog is required")
	}

	if len(c.Definitions) == 0 {
		return fmt.Errorf("step definitions are required")
	}

	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}

	if c.EventLogger == nil {
		c.EventLogger = eventlog.Noop
	}

	if c.Out == nil {
		c.Out = io.Discard
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Install"})

	if c.Now == nil {
		c.Now = time.Now
	}

	return nil
}

// Service runs the install steps and reports where the run landed.
type Service struct {
	cfg    ServiceConfig
	logger log.Logger
}

// NewService creates a new install service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		cfg:    cfg,
		logger: cfg.Logger,
	}, nil
}

// Request represents the install request parameters.
type Request struct {
	// RunID identifies the run in the event log, a new ULID when empty.
	RunID  string
	Distro string
	// OnlyStep runs a single step by 1-based number or name.
	OnlyStep      string
	SkipHostCheck bool
}

// Result is the outcome of an install run.
type Result struct {
	RunID   string
	Summary report.Summary
	// Steps are the steps the summary counts.
	Steps []model.Step
	// Completion is nil when the run didn't persist a completion (single step runs or persist failures).
	Completion *model.Completion
}

// Run checks the environment, executes the steps and renders the summary. Failing steps don't
// fail the run, only environment problems and interruptions do.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if req.RunID == "" {
		req.RunID = ulid.Make().String()
	}
	if req.Distro == "" {
		req.Distro = model.DefaultDistro
	}
	logger := s.logger.WithValues(log.Kv{"run": req.RunID})

	if req.SkipHostCheck {
		logger.Warningf("Host check skipped")
	} else if err := installer.CheckHost(s.cfg.Prefix); err != nil {
		return nil, err
	}

	if err := file.DirWritable(s.cfg.DataDir); err != nil {
		return nil, fmt.Errorf("could not prepare data dir %s: %w", s.cfg.DataDir, err)
	}

	reg, err := step.NewRegistry(step.RegistryConfig{Catalog: s.cfg.Catalog, Logger: s.logger})
	if err != nil {
		return nil, fmt.Errorf("could not create step registry: %w", err)
	}
	if err := reg.Init(s.cfg.Definitions); err != nil {
		return nil, fmt.Errorf("could not register steps: %w", err)
	}

	eng, err := engine.New(engine.EngineConfig{
		Registry:    reg,
		EventLogger: s.cfg.EventLogger,
		Logger:      logger,
		Out:         s.cfg.Out,
		FastMode:    s.cfg.FastMode,
		Now:         s.cfg.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create engine: %w", err)
	}

	reporter, err := report.NewReporter(report.ReporterConfig{
		Repository: s.cfg.Repository,
		Logger:     logger,
		Version:    s.cfg.Version,
		Now:        s.cfg.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create reporter: %w", err)
	}

	totals := reg.Totals()
	logger.Infof("Installing %s environment (%d steps, ~%ds estimated)", req.Distro, totals.Steps, totals.EstimatedSeconds)

	single := strings.TrimSpace(req.OnlyStep) != ""
	var steps []model.Step
	var runErr error
	if single {
		executed, err := eng.RunOne(ctx, req.OnlyStep)
		// Unresolved or never started.
		if err != nil && executed.WorkID == "" {
			return nil, err
		}
		steps = []model.Step{executed}
		runErr = err
	} else {
		runErr = eng.Run(ctx)
		steps = reg.Steps()
	}

	summary := report.Summarize(steps)
	if err := reporter.Render(s.cfg.Out, summary, steps); err != nil {
		logger.Warningf("Could not render summary: %s", err)
	}

	res := &Result{RunID: req.RunID, Summary: summary, Steps: steps}
	if runErr != nil {
		return res, runErr
	}

	// A single step doesn't tell where the whole install landed.
	if single {
		return res, nil
	}

	c, err := reporter.Persist(ctx, req.RunID, req.Distro, summary)
	if err == nil {
		res.Completion = &c
	}

	return res, nil
}
