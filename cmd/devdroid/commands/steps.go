package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/devdroid/internal/installer"
	"github.com/slok/devdroid/internal/step"
)

// StepsCommand lists the install steps.
type StepsCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	configPath string
	format     string
}

// NewStepsCommand returns the steps command.
func NewStepsCommand(rootCmd *RootCommand, app *kingpin.Application) *StepsCommand {
	c := &StepsCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("steps", "List the install steps and their estimates.")
	c.Cmd.Flag("config", "Path to a YAML install config.").StringVar(&c.configPath)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c StepsCommand) Name() string { return c.Cmd.FullCommand() }

func (c StepsCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	cfg, err := loadInstallConfig(ctx, c.configPath)
	if err != nil {
		return err
	}

	r, err := c.rootCmd.quietRunner()
	if err != nil {
		return fmt.Errorf("could not create command runner: %w", err)
	}

	inst, err := installer.New(installer.InstallerConfig{
		Runner:  r,
		Install: cfg,
		DataDir: c.rootCmd.DataDir,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create installer: %w", err)
	}

	reg, err := step.NewRegistry(step.RegistryConfig{Catalog: inst.Catalog(), Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create step registry: %w", err)
	}
	if err := reg.Init(installer.Definitions(cfg.EstimateOverrides)); err != nil {
		return fmt.Errorf("could not register steps: %w", err)
	}

	if err := c.rootCmd.printer(c.format).PrintSteps(reg.Steps(), reg.Totals().EstimatedSeconds, c.rootCmd.FastMode); err != nil {
		return fmt.Errorf("could not print steps: %w", err)
	}

	return nil
}
