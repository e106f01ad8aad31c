package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/devdroid/internal/app/status"
)

// StatusCommand shows where the last install run landed.
type StatusCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewStatusCommand returns the status command.
func NewStatusCommand(rootCmd *RootCommand, app *kingpin.Application) *StatusCommand {
	c := &StatusCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("status", "Show the result of the last install run.")
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c StatusCommand) Name() string { return c.Cmd.FullCommand() }

func (c StatusCommand) Run(ctx context.Context) error {
	repo, err := c.rootCmd.repository()
	if err != nil {
		return err
	}

	svc, err := status.NewService(status.ServiceConfig{
		Repository: repo,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	completion, err := svc.Run(ctx, status.Request{})
	if err != nil {
		return fmt.Errorf("could not get status: %w", err)
	}

	if err := c.rootCmd.printer(c.format).PrintCompletion(*completion); err != nil {
		return fmt.Errorf("could not print status: %w", err)
	}

	return nil
}
