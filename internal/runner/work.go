package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Work is an operation executed by the runner in the background. All its diagnostic output
// must go to out.
type Work interface {
	Run(ctx context.Context, out io.Writer) error
}

// WorkFunc is a helper to use functions as Work.
type WorkFunc func(ctx context.Context, out io.Writer) error

func (w WorkFunc) Run(ctx context.Context, out io.Writer) error { return w(ctx, out) }

// CommandWork runs an external command.
type CommandWork struct {
	Name string
	Args []string
	// Env is appended to the current process environment.
	Env []string
	Dir string
	// Stdin is optional, by default the command has no input.
	Stdin io.Reader
}

// Command returns the Work that executes the external command name with args.
func Command(name string, args ...string) *CommandWork {
	return &CommandWork{Name: name, Args: args}
}

// WithEnv returns the command with additional environment variables (KEY=VALUE).
func (c *CommandWork) WithEnv(kv ...string) *CommandWork {
	c.Env = append(c.Env, kv...)
	return c
}

func (c *CommandWork) Run(ctx context.Context, out io.Writer) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Stdin = c.Stdin
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	setProcessGroup(cmd)
	// Orphans that escaped the process group and keep the output pipes open must not block us.
	cmd.WaitDelay = 2 * time.Second

	return cmd.Run()
}

func (c *CommandWork) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// ExitCode returns the process exit code that represents err: 0 for nil, the command exit code
// for exited commands and 1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code > 0 {
			return code
		}
	}

	return 1
}
