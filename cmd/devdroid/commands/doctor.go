package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/devdroid/internal/app/doctor"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/utils/env"
)

// DoctorCommand diagnoses the host.
type DoctorCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	distro string
	format string
}

// NewDoctorCommand returns the doctor command.
func NewDoctorCommand(rootCmd *RootCommand, app *kingpin.Application) *DoctorCommand {
	c := &DoctorCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("doctor", "Run the host diagnostics.")
	c.Cmd.Flag("distro", "Container distribution to check.").Default(model.DefaultDistro).EnumVar(&c.distro, model.SupportedDistros...)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c DoctorCommand) Name() string { return c.Cmd.FullCommand() }

func (c DoctorCommand) Run(ctx context.Context) error {
	repo, err := c.rootCmd.repository()
	if err != nil {
		return err
	}

	svc, err := doctor.NewService(doctor.ServiceConfig{
		Repository: repo,
		DataDir:    c.rootCmd.DataDir,
		Prefix:     os.Getenv(env.TermuxPrefix),
		Distro:     c.distro,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	results, err := c.rootCmd.runChecks(ctx, "Checking host...", func(ctx context.Context) ([]model.CheckResult, error) {
		return svc.Run(ctx, doctor.Request{})
	})
	if err != nil {
		return fmt.Errorf("could not run diagnostics: %w", err)
	}

	return c.rootCmd.printChecks(c.format, results)
}
