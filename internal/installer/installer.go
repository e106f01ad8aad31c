// Package installer has the units of work of every install step. They shell out to the Termux
// and proot-distro tooling through the command runner.
package installer

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/slok/devdroid/internal/conventions"
	"github.com/slok/devdroid/internal/log"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/retry"
	"github.com/slok/devdroid/internal/runner"
	"github.com/slok/devdroid/internal/ssh"
	"github.com/slok/devdroid/internal/step"
	"github.com/slok/devdroid/internal/utils/env"
)

// Work IDs of the install steps.
const (
	WorkPkgUpdate      = "pkg_update"
	WorkPkgUpgrade     = "pkg_upgrade"
	WorkPkgBase        = "pkg_base"
	WorkStorageAccess  = "storage_access"
	WorkAPKCompanions  = "apk_companions"
	WorkDistroInstall  = "distro_install"
	WorkDistroPackages = "distro_packages"
	WorkSSHSetup       = "ssh_setup"
	WorkDesktopSetup   = "desktop_setup"
	WorkShortcuts      = "shortcuts"
)

var definitions = []model.StepDefinition{
	{Name: "Update package index", WorkID: WorkPkgUpdate, EstimatedSeconds: 60},
	{Name: "Upgrade installed packages", WorkID: WorkPkgUpgrade, EstimatedSeconds: 240},
	{Name: "Install base packages", WorkID: WorkPkgBase, EstimatedSeconds: 300},
	{Name: "Setup shared storage access", WorkID: WorkStorageAccess, EstimatedSeconds: 5},
	{Name: "Download companion apps", WorkID: WorkAPKCompanions, EstimatedSeconds: 90},
	{Name: "Install container distribution", WorkID: WorkDistroInstall, EstimatedSeconds: 600},
	{Name: "Install container packages", WorkID: WorkDistroPackages, EstimatedSeconds: 900},
	{Name: "Configure SSH", WorkID: WorkSSHSetup, EstimatedSeconds: 30},
	{Name: "Configure remote desktop", WorkID: WorkDesktopSetup, EstimatedSeconds: 600},
	{Name: "Create shortcuts", WorkID: WorkShortcuts, EstimatedSeconds: 5},
}

// Definitions returns the install steps in execution order with the estimate overrides applied.
func Definitions(overrides map[string]int) []model.StepDefinition {
	defs := make([]model.StepDefinition, 0, len(definitions))
	for _, d := range definitions {
		if est, ok := overrides[d.WorkID]; ok {
			d.EstimatedSeconds = est
		}
		defs = append(defs, d)
	}
	return defs
}

// EstimateOverridesFromEnv returns the step estimates set with the env.EstimatePrefix variables,
// one per work ID (e.g. DEVDROID_ESTIMATE_PKG_UPDATE). Malformed values resolve to the
// runner default estimate.
func EstimateOverridesFromEnv(lookup func(string) (string, bool)) map[string]int {
	overrides := map[string]int{}
	for _, d := range definitions {
		raw, ok := lookup(env.EstimatePrefix + strings.ToUpper(d.WorkID))
		if !ok {
			continue
		}
		overrides[d.WorkID] = runner.ParseEstimate(strings.TrimSpace(raw))
	}
	return overrides
}

// CheckHost returns model.ErrHostNotSupported if prefix is not the PREFIX of a Termux installation.
func CheckHost(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("PREFIX is not set, this is not a Termux session: %w", model.ErrHostNotSupported)
	}

	if !strings.Contains(prefix, conventions.TermuxPrefixMarker) {
		return fmt.Errorf("PREFIX %q is not a Termux prefix: %w", prefix, model.ErrHostNotSupported)
	}

	return nil
}

// CommandRunner runs an operation showing its progress.
type CommandRunner interface {
	Run(ctx context.Context, req runner.Request) (int, error)
}

// PortChecker returns true if something is listening on addr.
type PortChecker func(ctx context.Context, addr string) bool

// LoginVerifier checks the generated key can log into the SSH server listening on the local port.
type LoginVerifier func(ctx context.Context, port int, privateKey []byte) error

// InstallerConfig is the configuration of the install units of work.
type InstallerConfig struct {
	Runner  CommandRunner
	Install model.InstallConfig
	// DataDir is the devdroid data directory.
	DataDir string
	// HomeDir is the Termux home.
	HomeDir string
	// Prefix is the Termux PREFIX.
	Prefix     string
	HTTPClient *http.Client
	// Retry is used for every command of the steps.
	Retry       retry.Config
	PortChecker   PortChecker
	LoginVerifier LoginVerifier
	Logger        log.Logger
}

func (c *InstallerConfig) defaults() error {
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}

	if err := c.Install.Validate(); err != nil {
		return fmt.Errorf("invalid install config: %w", err)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}

	if c.HomeDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		c.HomeDir = home
	}

	if c.Prefix == "" {
		c.Prefix = conventions.DefaultTermuxPrefix
	}

	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Minute}
	}

	if c.PortChecker == nil {
		c.PortChecker = tcpPortOpen
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "installer.Installer"})

	if c.LoginVerifier == nil {
		logger := c.Logger
		c.LoginVerifier = func(ctx context.Context, port int, privateKey []byte) error {
			_, err := ssh.VerifyLogin(ctx, ssh.LoginConfig{Port: port, PrivateKey: privateKey, Logger: logger})
			return err
		}
	}

	return nil
}

// Installer has the units of work of the install steps.
type Installer struct {
	runner      CommandRunner
	cfg         model.InstallConfig
	dataDir     string
	homeDir     string
	prefix      string
	httpClient  *http.Client
	retry       retry.Config
	portChecker PortChecker
	verifyLogin LoginVerifier
	logger      log.Logger
}

// New returns a new Installer.
func New(cfg InstallerConfig) (*Installer, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Installer{
		runner:      cfg.Runner,
		cfg:         cfg.Install,
		dataDir:     cfg.DataDir,
		homeDir:     cfg.HomeDir,
		prefix:      cfg.Prefix,
		httpClient:  cfg.HTTPClient,
		retry:       cfg.Retry,
		portChecker: cfg.PortChecker,
		verifyLogin: cfg.LoginVerifier,
		logger:      cfg.Logger,
	}, nil
}

// Catalog returns the units of work indexed by work ID. Disabled steps self-report skipped.
func (i *Installer) Catalog() step.Catalog {
	catalog := step.Catalog{
		WorkPkgUpdate:      step.WorkFunc(i.pkgUpdate),
		WorkPkgUpgrade:     step.WorkFunc(i.pkgUpgrade),
		WorkPkgBase:        step.WorkFunc(i.pkgBase),
		WorkStorageAccess:  step.WorkFunc(i.storageAccess),
		WorkAPKCompanions:  step.WorkFunc(i.apkCompanions),
		WorkDistroInstall:  step.WorkFunc(i.distroInstall),
		WorkDistroPackages: step.WorkFunc(i.distroPackages),
		WorkSSHSetup:       step.WorkFunc(i.sshSetup),
		WorkDesktopSetup:   step.WorkFunc(i.desktopSetup),
		WorkShortcuts:      step.WorkFunc(i.shortcuts),
	}

	for id := range catalog {
		if i.cfg.StepDisabled(id) {
			catalog[id] = disabled(i.logger, id)
		}
	}

	return catalog
}

func disabled(logger log.Logger, workID string) step.Work {
	return step.WorkFunc(func(_ context.Context, status step.StatusSetter) error {
		logger.Infof("Step %q disabled by configuration", workID)
		status.SetStatus(model.StepStatusSkipped)
		return nil
	})
}

// run executes work through the command runner as part of the current step. An estimate of 0
// uses the step estimate.
func (i *Installer) run(ctx context.Context, label string, estimate int, w runner.Work) error {
	req := runner.Request{
		Label:            label,
		EstimatedSeconds: estimate,
		Work:             w,
		Retry:            i.retry,
	}

	if s, ok := step.FromContext(ctx); ok {
		idx := s.Index
		req.StepIndex = &idx
		if req.EstimatedSeconds == 0 {
			req.EstimatedSeconds = s.EstimatedSeconds
		}
	}

	_, err := i.runner.Run(ctx, req)
	return err
}

func (i *Installer) distroRootfs() string {
	return conventions.DistroRootfs(i.prefix, i.cfg.Distro)
}

func (i *Installer) homePath(elem ...string) string {
	return filepath.Join(append([]string{i.homeDir}, elem...)...)
}

func tcpPortOpen(ctx context.Context, addr string) bool {
	d := net.Dialer{Timeout: time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func localAddr(port int) string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
}
