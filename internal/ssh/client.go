package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/slok/devdroid/internal/conventions"
	"github.com/slok/devdroid/internal/log"
	"github.com/slok/devdroid/internal/model"
)

const (
	// DefaultLoginTimeout bounds the whole login, dial and remote command included.
	DefaultLoginTimeout = 10 * time.Second
	// DefaultHost is the device loopback, where the Termux sshd listens.
	DefaultHost = "127.0.0.1"
	// DefaultUser is used for the login, the Termux sshd accepts any user name.
	DefaultUser = "termux"

	// prefixCommand prints the PREFIX of the remote login shell.
	prefixCommand  = `printf '%s' "$PREFIX"`
	maxPrefixBytes = 4096
)

// ErrNotTermuxShell is returned when the login works but the remote shell is not a Termux one.
var ErrNotTermuxShell = errors.New("remote login shell is not a Termux shell")

// LoginConfig is the configuration of a login verification.
type LoginConfig struct {
	Host string
	// Port defaults to model.DefaultSSHPort.
	Port int
	User string
	// PrivateKey is the PEM encoded installer private key.
	PrivateKey []byte
	Timeout    time.Duration
	Logger     log.Logger
}

func (c *LoginConfig) defaults() error {
	if len(c.PrivateKey) == 0 {
		return fmt.Errorf("private key is required")
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = model.DefaultSSHPort
	}
	if c.User == "" {
		c.User = DefaultUser
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultLoginTimeout
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "ssh.Login"})
	return nil
}

// Login is a verified SSH login.
type Login struct {
	Addr          string
	ServerVersion string
	// Prefix is the PREFIX seen by the remote login shell.
	Prefix string
}

// VerifyLogin logs into the SSH server with the installer key and asks the login shell for
// its PREFIX. A shell outside Termux returns ErrNotTermuxShell together with the login.
func VerifyLogin(ctx context.Context, cfg LoginConfig) (*Login, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid login config: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("could not parse private key: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	d := net.Dialer{}
	netConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, loginError(ctx, fmt.Errorf("could not connect to %s: %w", addr, err))
	}
	// The handshake and the session don't know about the context, closing the connection
	// unblocks them.
	stop := context.AfterFunc(ctx, func() { _ = netConn.Close() })
	defer stop()

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	})
	if err != nil {
		_ = netConn.Close()
		return nil, loginError(ctx, fmt.Errorf("ssh login failed with %s: %w", addr, err))
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	login := &Login{Addr: addr, ServerVersion: string(client.ServerVersion())}
	cfg.Logger.Debugf("Logged into %s (%s)", addr, login.ServerVersion)

	prefix, err := remotePrefix(client)
	if err != nil {
		return nil, loginError(ctx, err)
	}
	login.Prefix = prefix

	if !strings.Contains(prefix, conventions.TermuxPrefixMarker) {
		return login, fmt.Errorf("PREFIX is %q: %w", prefix, ErrNotTermuxShell)
	}

	return login, nil
}

func remotePrefix(client *ssh.Client) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("could not open ssh session: %w", err)
	}
	defer session.Close()

	var stdout bytes.Buffer
	session.Stdout = &limitedWriter{w: &stdout, left: maxPrefixBytes}
	if err := session.Run(prefixCommand); err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("login shell exited with %d", exitErr.ExitStatus())
		}
		return "", fmt.Errorf("could not run login shell command: %w", err)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// loginError reports the context error instead of the closed connection error it caused.
func loginError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}

// limitedWriter drops everything after left bytes.
type limitedWriter struct {
	w    *bytes.Buffer
	left int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if l.left <= 0 {
		return n, nil
	}
	if len(p) > l.left {
		p = p[:l.left]
	}
	l.left -= len(p)
	_, _ = l.w.Write(p)
	return n, nil
}
