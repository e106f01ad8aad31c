package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/charmbracelet/huh"
	"github.com/oklog/ulid/v2"

	"github.com/slok/devdroid/internal/app/install"
	"github.com/slok/devdroid/internal/conventions"
	"github.com/slok/devdroid/internal/eventlog"
	"github.com/slok/devdroid/internal/installer"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/retry"
	"github.com/slok/devdroid/internal/runner"
	"github.com/slok/devdroid/internal/utils/env"
)

// InstallCommand installs the development environment.
type InstallCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	onlyStep      string
	distro        string
	configPath    string
	skipHostCheck bool
}

// NewInstallCommand returns the install command.
func NewInstallCommand(rootCmd *RootCommand, app *kingpin.Application) *InstallCommand {
	c := &InstallCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("install", "Install the development environment.").Default()
	c.Cmd.Flag("only-step", "Run a single step by number or name.").StringVar(&c.onlyStep)
	c.Cmd.Flag("distro", "Container distribution to install.").EnumVar(&c.distro, model.SupportedDistros...)
	c.Cmd.Flag("config", "Path to a YAML install config.").StringVar(&c.configPath)
	c.Cmd.Flag("skip-host-check", "Run even if this is not a Termux session.").BoolVar(&c.skipHostCheck)

	return c
}

func (c InstallCommand) Name() string { return c.Cmd.FullCommand() }

func (c InstallCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	cfg, err := loadInstallConfig(ctx, c.configPath)
	if err != nil {
		return err
	}
	cfg.NonInteractive = !c.rootCmd.Interactive()
	cfg.FastMode = c.rootCmd.FastMode

	switch {
	case c.distro != "":
		cfg.Distro = c.distro
	case c.configPath == "" && c.onlyStep == "" && c.rootCmd.Interactive():
		distro, err := c.pickDistro(cfg.Distro)
		if err != nil {
			return err
		}
		cfg.Distro = distro
	}

	repo, err := c.rootCmd.repository()
	if err != nil {
		return err
	}

	runID := ulid.Make().String()
	events, err := eventlog.NewFileLogger(eventlog.FileLoggerConfig{
		Path:   conventions.EventLogPath(c.rootCmd.DataDir),
		RunID:  runID,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create event logger: %w", err)
	}

	r, err := runner.NewRunner(runner.RunnerConfig{
		Out:         c.rootCmd.Stdout,
		Logger:      logger,
		EventLogger: events,
		Interactive: c.rootCmd.stdoutIsTerminal(),
		Width:       c.rootCmd.TerminalWidth(),
		FastMode:    cfg.FastMode,
	})
	if err != nil {
		return fmt.Errorf("could not create command runner: %w", err)
	}

	prefix := os.Getenv(env.TermuxPrefix)
	inst, err := installer.New(installer.InstallerConfig{
		Runner:  r,
		Install: cfg,
		DataDir: c.rootCmd.DataDir,
		Prefix:  prefix,
		Retry:   retry.ConfigFromEnv(),
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create installer: %w", err)
	}

	svc, err := install.NewService(install.ServiceConfig{
		Catalog:     inst.Catalog(),
		Definitions: installer.Definitions(cfg.EstimateOverrides),
		Repository:  repo,
		EventLogger: events,
		DataDir:     c.rootCmd.DataDir,
		Prefix:      prefix,
		Out:         c.rootCmd.Stdout,
		FastMode:    cfg.FastMode,
		Version:     Version,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	res, err := svc.Run(ctx, install.Request{
		RunID:         runID,
		Distro:        cfg.Distro,
		OnlyStep:      c.onlyStep,
		SkipHostCheck: c.skipHostCheck,
	})
	if err != nil {
		return fmt.Errorf("could not install: %w", err)
	}

	if res.Completion != nil {
		logger.Infof("Install finished, %d/%d steps successful", res.Summary.Successful, res.Summary.Total)
	}

	return nil
}

func (c InstallCommand) pickDistro(current string) (string, error) {
	opts := make([]huh.Option[string], 0, len(model.SupportedDistros))
	for _, d := range model.SupportedDistros {
		opts = append(opts, huh.NewOption(d, d))
	}

	selected := current
	field := huh.NewSelect[string]().
		Title("Select the container distribution").
		Options(opts...).
		Value(&selected)

	if err := runForm(c.rootCmd.Accessible(), huh.NewGroup(field)); err != nil {
		return "", fmt.Errorf("could not select distribution: %w", err)
	}

	return selected, nil
}
