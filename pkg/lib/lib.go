package lib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slok/devdroid/internal/app/doctor"
	"github.com/slok/devdroid/internal/app/selftest"
	"github.com/slok/devdroid/internal/app/snapshotlist"
	"github.com/slok/devdroid/internal/app/snapshotremove"
	"github.com/slok/devdroid/internal/app/status"
	"github.com/slok/devdroid/internal/conventions"
	"github.com/slok/devdroid/internal/installer"
	"github.com/slok/devdroid/internal/log"
	"github.com/slok/devdroid/internal/step"
	"github.com/slok/devdroid/internal/storage"
	"github.com/slok/devdroid/internal/storage/jsonfile"
	"github.com/slok/devdroid/internal/utils/env"
)

// Config configures the SDK client.
//
// All fields are optional. An empty Config{} uses ~/.devdroid as the data dir and
// the PREFIX of the current environment.
type Config struct {
	// DataDir is the devdroid data directory.
	// Default: ~/.devdroid.
	DataDir string

	// Prefix is the Termux PREFIX.
	// Default: the PREFIX env var.
	Prefix string

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		c.DataDir = filepath.Join(home, conventions.DefaultDataDir)
	}

	if c.Prefix == "" {
		c.Prefix = os.Getenv(env.TermuxPrefix)
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point. A Client is safe for concurrent use.
type Client struct {
	repo    storage.Repository
	dataDir string
	prefix  string
	logger  log.Logger
}

// New creates a new SDK client backed by the devdroid data dir files.
func New(cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	repo, err := jsonfile.NewRepository(jsonfile.RepositoryConfig{
		DataDir: cfg.DataDir,
		Logger:  cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	return &Client{
		repo:    repo,
		dataDir: cfg.DataDir,
		prefix:  cfg.Prefix,
		logger:  cfg.Logger,
	}, nil
}

// Steps returns the install steps in execution order and the estimated total.
//
// Pass nil opts to use the default estimates.
func (c *Client) Steps(opts *StepsOpts) (*StepPlan, error) {
	var overrides map[string]int
	if opts != nil {
		overrides = opts.EstimateOverrides
	}

	reg, err := step.NewRegistry(step.RegistryConfig{Catalog: step.Catalog{}, Logger: log.Noop})
	if err != nil {
		return nil, fmt.Errorf("could not create step registry: %w", err)
	}
	if err := reg.Init(installer.Definitions(overrides)); err != nil {
		return nil, mapError(err)
	}

	return fromInternalRegistry(reg), nil
}

// Status returns where the last install run landed.
//
// Returns [ErrNotFound] if no install has completed yet.
func (c *Client) Status(ctx context.Context) (*Completion, error) {
	svc, err := status.NewService(status.ServiceConfig{
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	result, err := svc.Run(ctx, status.Request{})
	if err != nil {
		return nil, mapError(err)
	}

	out := fromInternalCompletion(*result)
	return &out, nil
}

// Doctor runs the host diagnostics for a distribution ("debian" when empty).
func (c *Client) Doctor(ctx context.Context, distro string) ([]CheckResult, error) {
	svc, err := doctor.NewService(doctor.ServiceConfig{
		Repository: c.repo,
		DataDir:    c.dataDir,
		Prefix:     c.prefix,
		Distro:     distro,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	results, err := svc.Run(ctx, doctor.Request{})
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalCheckResults(results), nil
}

// SelfTest runs the connectivity self-tests of the installed environment.
//
// Pass nil opts to use the defaults.
func (c *Client) SelfTest(ctx context.Context, opts *SelfTestOpts) ([]CheckResult, error) {
	cfg := selftest.ServiceConfig{
		DataDir: c.dataDir,
		Logger:  c.logger,
	}
	if opts != nil {
		cfg.MirrorURL = opts.MirrorURL
		cfg.SSHPort = opts.SSHPort
		cfg.VNCDisplay = opts.VNCDisplay
		cfg.Timeout = opts.Timeout
	}

	svc, err := selftest.NewService(cfg)
	if err != nil {
		return nil, mapError(fmt.Errorf("could not create service: %w", err))
	}

	results, err := svc.Run(ctx, selftest.Request{})
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalCheckResults(results), nil
}

// ListSnapshots returns the environment snapshots ordered by creation time (newest first).
//
// An empty distro lists the snapshots of every distribution.
func (c *Client) ListSnapshots(ctx context.Context, distro string) ([]Snapshot, error) {
	svc, err := snapshotlist.NewService(snapshotlist.ServiceConfig{
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	result, err := svc.Run(ctx, snapshotlist.Request{Distro: distro})
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalSnapshotList(result), nil
}

// RemoveSnapshot deletes a snapshot by name or ID.
//
// The archive is removed from disk and the entry from the snapshots index.
//
// Returns [ErrNotFound] if the snapshot does not exist.
func (c *Client) RemoveSnapshot(ctx context.Context, nameOrID string) (*Snapshot, error) {
	svc, err := snapshotremove.NewService(snapshotremove.ServiceConfig{
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	result, err := svc.Run(ctx, snapshotremove.Request{NameOrID: nameOrID})
	if err != nil {
		return nil, mapError(err)
	}

	out := fromInternalSnapshot(*result)
	return &out, nil
}
