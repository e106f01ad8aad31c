package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/devdroid/internal/app/selftest"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/utils/env"
)

// SelfTestCommand checks the connectivity of the installed environment.
type SelfTestCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	mirrorURL string
	timeout   time.Duration
	format    string
}

// NewSelfTestCommand returns the selftest command.
func NewSelfTestCommand(rootCmd *RootCommand, app *kingpin.Application) *SelfTestCommand {
	c := &SelfTestCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("selftest", "Run the connectivity self-tests (package mirror, DNS, SSH, VNC).")
	c.Cmd.Flag("mirror-url", "Package mirror URL to probe.").Default(selftest.DefaultMirrorURL).StringVar(&c.mirrorURL)
	c.Cmd.Flag("timeout", "Timeout of every self-test.").Default(selftest.DefaultCheckTimeout.String()).DurationVar(&c.timeout)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c SelfTestCommand) Name() string { return c.Cmd.FullCommand() }

func (c SelfTestCommand) Run(ctx context.Context) error {
	svc, err := selftest.NewService(selftest.ServiceConfig{
		DataDir:    c.rootCmd.DataDir,
		MirrorURL:  c.mirrorURL,
		SSHPort:    env.Int(env.SSHPort, model.DefaultSSHPort, 1024, 65535),
		VNCDisplay: env.Int(env.VNCDisplay, model.DefaultVNCDisplay, 1, 99),
		Timeout:    c.timeout,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	results, err := c.rootCmd.runChecks(ctx, "Running self-tests...", func(ctx context.Context) ([]model.CheckResult, error) {
		return svc.Run(ctx, selftest.Request{})
	})
	if err != nil {
		return fmt.Errorf("could not run self-tests: %w", err)
	}

	return c.rootCmd.printChecks(c.format, results)
}
