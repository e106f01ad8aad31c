package selftest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slok/devdroid/internal/log"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/ssh"
)

const (
	// DefaultMirrorURL is the Release file of the main Termux package repository.
	DefaultMirrorURL = "https://packages.termux.dev/apt/termux-main/dists/stable/Release"
	// DefaultCheckTimeout bounds every single check.
	DefaultCheckTimeout = 10 * time.Second
	// VNCBasePort is the TCP port of the VNC display 0.
	VNCBasePort = 5900
)

// Resolver resolves host names.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// ServiceConfig is the configuration for the selftest service.
type ServiceConfig struct {
	DataDir string
	// MirrorURL is probed with an HTTP HEAD request.
	MirrorURL  string
	HTTPClient *http.Client
	Resolver   Resolver
	SSHHost    string
	SSHPort    int
	// SSHUser is the user of the SSH handshake, Termux accepts any.
	SSHUser string
	// VNCAddr defaults to the loopback port of the VNC display.
	VNCAddr    string
	VNCDisplay int
	Timeout    time.Duration
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}

	if c.MirrorURL == "" {
		c.MirrorURL = DefaultMirrorURL
	}
	if _, err := url.ParseRequestURI(c.MirrorURL); err != nil {
		return fmt.Errorf("invalid mirror url: %w", err)
	}

	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}

	if c.Resolver == nil {
		c.Resolver = net.DefaultResolver
	}

	if c.SSHHost == "" {
		c.SSHHost = ssh.DefaultHost
	}

	if c.SSHPort == 0 {
		c.SSHPort = model.DefaultSSHPort
	}

	if c.SSHUser == "" {
		c.SSHUser = "termux"
	}

	if c.VNCDisplay == 0 {
		c.VNCDisplay = model.DefaultVNCDisplay
	}

	if c.VNCAddr == "" {
		c.VNCAddr = net.JoinHostPort("127.0.0.1", strconv.Itoa(VNCBasePort+c.VNCDisplay))
	}

	if c.Timeout == 0 {
		c.Timeout = DefaultCheckTimeout
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.SelfTest"})

	return nil
}

// Service runs the connectivity self-tests of an installed environment.
type Service struct {
	cfg    ServiceConfig
	logger log.Logger
}

// NewService creates a new selftest service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		cfg:    cfg,
		logger: cfg.Logger,
	}, nil
}

// Request represents the selftest request parameters.
type Request struct{}

type check func(ctx context.Context) model.CheckResult

// Run runs all the self-tests concurrently, each one with its own timeout. Results keep a
// stable order.
func (s *Service) Run(ctx context.Context, req Request) ([]model.CheckResult, error) {
	checks := []check{s.checkMirror, s.checkDNS, s.checkSSH, s.checkVNC}

	results := make([]model.CheckResult, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, s.cfg.Timeout)
			defer cancel()
			results[i] = c(cctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("could not run self-tests: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ok, warnings, errs := model.CountByStatus(results)
	s.logger.Debugf("Self-tests finished: %d ok, %d warnings, %d errors", ok, warnings, errs)

	return results, nil
}

func (s *Service) checkMirror(ctx context.Context) model.CheckResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.cfg.MirrorURL, nil)
	if err != nil {
		return model.CheckError("mirror_http", fmt.Sprintf("Could not create request: %v", err))
	}

	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return model.CheckError("mirror_http", fmt.Sprintf("Package mirror unreachable: %v", err))
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return model.CheckError("mirror_http", fmt.Sprintf("Package mirror answered %s", resp.Status))
	}

	return model.CheckOK("mirror_http", "Package mirror reachable ("+resp.Status+")")
}

func (s *Service) checkDNS(ctx context.Context) model.CheckResult {
	u, err := url.Parse(s.cfg.MirrorURL)
	if err != nil {
		return model.CheckError("dns", fmt.Sprintf("Invalid mirror url: %v", err))
	}

	host := u.Hostname()
	addrs, err := s.cfg.Resolver.LookupHost(ctx, host)
	if err != nil {
		return model.CheckError("dns", fmt.Sprintf("Could not resolve %s: %v", host, err))
	}
	if len(addrs) == 0 {
		return model.CheckError("dns", host+" resolved to no addresses")
	}

	return model.CheckOK("dns", fmt.Sprintf("%s resolved to %s", host, addrs[0]))
}

func (s *Service) checkSSH(ctx context.Context) model.CheckResult {
	km := ssh.NewKeyManager(s.cfg.DataDir)
	if !km.KeysExist() {
		return model.CheckWarning("ssh_handshake", "SSH keys have not been generated yet, run the install first")
	}

	key, err := km.LoadPrivateKey()
	if err != nil {
		return model.CheckError("ssh_handshake", fmt.Sprintf("Could not load SSH key: %v", err))
	}

	login, err := ssh.VerifyLogin(ctx, ssh.LoginConfig{
		Host:       s.cfg.SSHHost,
		Port:       s.cfg.SSHPort,
		User:       s.cfg.SSHUser,
		PrivateKey: key,
		Logger:     s.logger,
	})
	switch {
	case errors.Is(err, ssh.ErrNotTermuxShell):
		return model.CheckWarning("ssh_handshake", fmt.Sprintf("SSH login works but the login shell is not a Termux shell (PREFIX %q)", login.Prefix))
	case errors.Is(err, context.DeadlineExceeded):
		return model.CheckError("ssh_handshake", "SSH login timed out")
	case err != nil:
		return model.CheckError("ssh_handshake", fmt.Sprintf("SSH login failed: %v", err))
	}

	return model.CheckOK("ssh_handshake", "SSH login verified ("+login.ServerVersion+")")
}

func (s *Service) checkVNC(ctx context.Context) model.CheckResult {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", s.cfg.VNCAddr)
	if err != nil {
		return model.CheckWarning("vnc_port", "Nothing listening on "+s.cfg.VNCAddr+", start the desktop with devdroid-vnc-start")
	}
	_ = conn.Close()

	return model.CheckOK("vnc_port", "VNC server listening on "+s.cfg.VNCAddr)
}
