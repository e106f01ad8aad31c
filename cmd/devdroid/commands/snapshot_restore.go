package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
	"github.com/charmbracelet/huh"

	"github.com/slok/devdroid/internal/app/snapshotrestore"
	"github.com/slok/devdroid/internal/storage"
)

// SnapshotRestoreCommand restores a distribution from a snapshot.
type SnapshotRestoreCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	nameOrID string
	yes      bool
}

// NewSnapshotRestoreCommand returns the snapshot restore command.
func NewSnapshotRestoreCommand(rootCmd *RootCommand, snapshotCmd *kingpin.CmdClause) *SnapshotRestoreCommand {
	c := &SnapshotRestoreCommand{rootCmd: rootCmd}

	c.Cmd = snapshotCmd.Command("restore", "Replace a distribution with a snapshot.")
	c.Cmd.Arg("name-or-id", "Snapshot name or ID.").Required().StringVar(&c.nameOrID)
	c.Cmd.Flag("yes", "Don't ask for confirmation.").Short('y').BoolVar(&c.yes)

	return c
}

func (c SnapshotRestoreCommand) Name() string { return c.Cmd.FullCommand() }

func (c SnapshotRestoreCommand) Run(ctx context.Context) error {
	repo, err := c.rootCmd.repository()
	if err != nil {
		return err
	}

	if !c.yes && c.rootCmd.Interactive() {
		snapshot, err := storage.GetSnapshotByNameOrID(ctx, repo, c.nameOrID)
		if err != nil {
			return err
		}

		confirm := false
		field := huh.NewConfirm().
			Title(fmt.Sprintf("Replace %s with snapshot %s? Current changes will be lost.", snapshot.Distro, snapshot.Name)).
			Affirmative("Yes, restore").
			Negative("Cancel").
			Value(&confirm)
		if err := runForm(c.rootCmd.Accessible(), huh.NewGroup(field)); err != nil {
			return err
		}
		if !confirm {
			return ErrAborted
		}
	}

	archiver, err := c.rootCmd.archiver()
	if err != nil {
		return err
	}

	svc, err := snapshotrestore.NewService(snapshotrestore.ServiceConfig{
		Archiver:   archiver,
		Repository: repo,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	snapshot, err := svc.Run(ctx, snapshotrestore.Request{NameOrID: c.nameOrID})
	if err != nil {
		return fmt.Errorf("could not restore snapshot: %w", err)
	}

	return c.rootCmd.printer("table").PrintMessage(fmt.Sprintf("Restored %s from snapshot %s (%s)", snapshot.Distro, snapshot.Name, snapshot.ID))
}
