package commands

import (
	"fmt"
	"os"

	"github.com/slok/devdroid/internal/distro"
	"github.com/slok/devdroid/internal/runner"
	"github.com/slok/devdroid/internal/utils/env"
)

// archiver returns the proot-distro archiver showing the command progress on stdout.
func (r *RootCommand) archiver() (*distro.Archiver, error) {
	run, err := runner.NewRunner(runner.RunnerConfig{
		Out:         r.Stdout,
		Logger:      r.Logger,
		Interactive: r.stdoutIsTerminal(),
		Width:       r.TerminalWidth(),
		FastMode:    r.FastMode,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create command runner: %w", err)
	}

	a, err := distro.NewArchiver(distro.ArchiverConfig{
		Runner: run,
		Prefix: os.Getenv(env.TermuxPrefix),
		Logger: r.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create archiver: %w", err)
	}

	return a, nil
}
