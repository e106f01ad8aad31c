package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/devdroid/internal/app/snapshotremove"
)

// SnapshotRmCommand removes snapshots.
type SnapshotRmCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	nameOrID string
}

// NewSnapshotRmCommand returns the snapshot rm command.
func NewSnapshotRmCommand(rootCmd *RootCommand, snapshotCmd *kingpin.CmdClause) *SnapshotRmCommand {
	c := &SnapshotRmCommand{rootCmd: rootCmd}

	c.Cmd = snapshotCmd.Command("rm", "Remove a snapshot.")
	c.Cmd.Arg("name-or-id", "Snapshot name or ID.").Required().StringVar(&c.nameOrID)

	return c
}

func (c SnapshotRmCommand) Name() string { return c.Cmd.FullCommand() }

func (c SnapshotRmCommand) Run(ctx context.Context) error {
	repo, err := c.rootCmd.repository()
	if err != nil {
		return err
	}

	svc, err := snapshotremove.NewService(snapshotremove.ServiceConfig{
		Repository: repo,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	snapshot, err := svc.Run(ctx, snapshotremove.Request{NameOrID: c.nameOrID})
	if err != nil {
		return fmt.Errorf("could not remove snapshot: %w", err)
	}

	return c.rootCmd.printer("table").PrintMessage(fmt.Sprintf("Removed snapshot %s (%s)", snapshot.Name, snapshot.ID))
}
