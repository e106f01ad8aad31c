package doctor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"golang.org/x/sync/errgroup"

	"github.com/slok/devdroid/internal/conventions"
	"github.com/slok/devdroid/internal/installer"
	"github.com/slok/devdroid/internal/log"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/printer"
	"github.com/slok/devdroid/internal/ssh"
	"github.com/slok/devdroid/internal/storage"
	"github.com/slok/devdroid/internal/utils/file"
)

// Free space thresholds of the data dir filesystem.
const (
	MinFreeBytes         = 512 << 20
	RecommendedFreeBytes = 4 << 30
)

// RequiredTools are the binaries the install steps shell out to.
var RequiredTools = []string{"pkg", "proot-distro", "sshd"}

// ServiceConfig is the configuration for the doctor service.
type ServiceConfig struct {
	Repository storage.CompletionRepository
	DataDir    string
	// Prefix is the Termux PREFIX.
	Prefix string
	Distro string
	// LookPath defaults to exec.LookPath.
	LookPath func(file string) (string, error)
	// FreeBytes defaults to the filesystem free space.
	FreeBytes func(path string) (int64, error)
	Logger    log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}

	if c.Distro == "" {
		c.Distro = model.DefaultDistro
	}

	if c.LookPath == nil {
		c.LookPath = exec.LookPath
	}

	if c.FreeBytes == nil {
		c.FreeBytes = file.FreeBytes
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Doctor"})

	return nil
}

// Service diagnoses the host the installer runs on.
type Service struct {
	repo      storage.CompletionRepository
	dataDir   string
	prefix    string
	distro    string
	lookPath  func(file string) (string, error)
	freeBytes func(path string) (int64, error)
	logger    log.Logger
}

// NewService creates a new doctor service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:      cfg.Repository,
		dataDir:   cfg.DataDir,
		prefix:    cfg.Prefix,
		distro:    cfg.Distro,
		lookPath:  cfg.LookPath,
		freeBytes: cfg.FreeBytes,
		logger:    cfg.Logger,
	}, nil
}

// Request represents the doctor request parameters.
type Request struct{}

type check func(ctx context.Context) model.CheckResult

// Run runs all the checks concurrently and returns the results in a stable order.
func (s *Service) Run(ctx context.Context, req Request) ([]model.CheckResult, error) {
	checks := []check{s.checkHost, s.checkDataDir, s.checkFreeSpace}
	for _, tool := range RequiredTools {
		checks = append(checks, s.checkTool(tool))
	}
	checks = append(checks, s.checkDistro, s.checkSSHKeys, s.checkLastRun)

	results := make([]model.CheckResult, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, c := range checks {
		g.Go(func() error {
			results[i] = c(gctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("could not run checks: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ok, warnings, errs := model.CountByStatus(results)
	s.logger.Debugf("Doctor finished: %d ok, %d warnings, %d errors", ok, warnings, errs)

	return results, nil
}

func (s *Service) checkHost(_ context.Context) model.CheckResult {
	if err := installer.CheckHost(s.prefix); err != nil {
		return model.CheckError("termux_host", err.Error())
	}
	return model.CheckOK("termux_host", "Running inside Termux ("+s.prefix+")")
}

func (s *Service) checkDataDir(_ context.Context) model.CheckResult {
	if err := file.DirWritable(s.dataDir); err != nil {
		return model.CheckError("data_dir", fmt.Sprintf("Data dir %s is not writable: %v", s.dataDir, err))
	}
	return model.CheckOK("data_dir", "Data dir "+s.dataDir+" is writable")
}

func (s *Service) checkFreeSpace(_ context.Context) model.CheckResult {
	free, err := s.freeBytes(s.dataDir)
	if err != nil {
		if errors.Is(err, file.ErrFreeSpaceUnsupported) {
			return model.CheckWarning("free_space", "Free space can't be checked on this platform")
		}
		return model.CheckWarning("free_space", fmt.Sprintf("Could not check free space: %v", err))
	}

	msg := printer.FormatBytes(free) + " free"
	switch {
	case free < MinFreeBytes:
		return model.CheckError("free_space", msg+", the install needs at least "+printer.FormatBytes(MinFreeBytes))
	case free < RecommendedFreeBytes:
		return model.CheckWarning("free_space", msg+", "+printer.FormatBytes(RecommendedFreeBytes)+" recommended for the desktop")
	}
	return model.CheckOK("free_space", msg)
}

func (s *Service) checkTool(tool string) check {
	id := "tool_" + tool
	return func(_ context.Context) model.CheckResult {
		path, err := s.lookPath(tool)
		if err != nil {
			return model.CheckWarning(id, tool+" not found, it will be installed by the install command")
		}
		return model.CheckOK(id, tool+" found at "+path)
	}
}

func (s *Service) checkDistro(_ context.Context) model.CheckResult {
	rootfs := conventions.DistroRootfs(s.prefix, s.distro)
	if !file.Exists(rootfs) {
		return model.CheckWarning("distro", s.distro+" is not installed")
	}
	return model.CheckOK("distro", s.distro+" installed at "+rootfs)
}

func (s *Service) checkSSHKeys(_ context.Context) model.CheckResult {
	km := ssh.NewKeyManager(s.dataDir)
	if !km.KeysExist() {
		return model.CheckWarning("ssh_keys", "SSH keys have not been generated yet")
	}
	return model.CheckOK("ssh_keys", "SSH keys at "+km.PrivateKeyPath())
}

func (s *Service) checkLastRun(ctx context.Context) model.CheckResult {
	c, err := s.repo.GetCompletion(ctx)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.CheckWarning("last_run", "No install has completed yet")
		}
		return model.CheckError("last_run", fmt.Sprintf("Could not read the last run: %v", err))
	}

	msg := fmt.Sprintf("%d/%d steps successful on %s", c.SuccessfulSteps, c.TotalSteps, printer.FormatTimestamp(c.CompletedAt))
	if c.FailedSteps > 0 {
		return model.CheckWarning("last_run", msg)
	}
	return model.CheckOK("last_run", msg)
}
