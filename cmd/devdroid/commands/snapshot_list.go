package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/devdroid/internal/app/snapshotlist"
)

// SnapshotListCommand lists the snapshots.
type SnapshotListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	distro string
	format string
}

// NewSnapshotListCommand returns the snapshot list command.
func NewSnapshotListCommand(rootCmd *RootCommand, snapshotCmd *kingpin.CmdClause) *SnapshotListCommand {
	c := &SnapshotListCommand{rootCmd: rootCmd}

	c.Cmd = snapshotCmd.Command("list", "List snapshots.").Alias("ls")
	c.Cmd.Flag("distro", "Only list the snapshots of this distribution.").StringVar(&c.distro)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c SnapshotListCommand) Name() string { return c.Cmd.FullCommand() }

func (c SnapshotListCommand) Run(ctx context.Context) error {
	repo, err := c.rootCmd.repository()
	if err != nil {
		return err
	}

	svc, err := snapshotlist.NewService(snapshotlist.ServiceConfig{
		Repository: repo,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	snapshots, err := svc.Run(ctx, snapshotlist.Request{Distro: c.distro})
	if err != nil {
		return fmt.Errorf("could not list snapshots: %w", err)
	}

	if err := c.rootCmd.printer(c.format).PrintSnapshotList(snapshots); err != nil {
		return fmt.Errorf("could not print snapshots: %w", err)
	}

	return nil
}
