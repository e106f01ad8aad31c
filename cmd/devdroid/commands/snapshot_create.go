package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/devdroid/internal/app/snapshotcreate"
	"github.com/slok/devdroid/internal/model"
)

// SnapshotCreateCommand creates snapshots of an installed distribution.
type SnapshotCreateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	distro       string
	snapshotName string
	format       string
}

// NewSnapshotCreateCommand returns the snapshot create command.
func NewSnapshotCreateCommand(rootCmd *RootCommand, snapshotCmd *kingpin.CmdClause) *SnapshotCreateCommand {
	c := &SnapshotCreateCommand{rootCmd: rootCmd}

	c.Cmd = snapshotCmd.Command("create", "Back up an installed distribution.")
	c.Cmd.Arg("snapshot-name", "Optional friendly snapshot name ([a-zA-Z0-9._-]).").StringVar(&c.snapshotName)
	c.Cmd.Flag("distro", "Distribution to back up.").Default(model.DefaultDistro).EnumVar(&c.distro, model.SupportedDistros...)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c SnapshotCreateCommand) Name() string { return c.Cmd.FullCommand() }

func (c SnapshotCreateCommand) Run(ctx context.Context) error {
	repo, err := c.rootCmd.repository()
	if err != nil {
		return err
	}

	archiver, err := c.rootCmd.archiver()
	if err != nil {
		return err
	}

	svc, err := snapshotcreate.NewService(snapshotcreate.ServiceConfig{
		Archiver:   archiver,
		Repository: repo,
		DataDir:    c.rootCmd.DataDir,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	snapshot, err := svc.Run(ctx, snapshotcreate.Request{
		Distro:       c.distro,
		SnapshotName: c.snapshotName,
	})
	if err != nil {
		return fmt.Errorf("could not create snapshot: %w", err)
	}

	return c.rootCmd.printer(c.format).PrintSnapshot(*snapshot)
}
