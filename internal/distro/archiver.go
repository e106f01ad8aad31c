// Package distro manages the proot-distro container distributions as a whole.
package distro

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slok/devdroid/internal/conventions"
	"github.com/slok/devdroid/internal/log"
	"github.com/slok/devdroid/internal/runner"
	"github.com/slok/devdroid/internal/utils/file"
)

// Archive operations estimates in seconds.
const (
	BackupEstimate  = 300
	RestoreEstimate = 420
)

// CommandRunner runs an operation showing its progress.
type CommandRunner interface {
	Run(ctx context.Context, req runner.Request) (int, error)
}

// ArchiverConfig is the configuration of the Archiver.
type ArchiverConfig struct {
	Runner CommandRunner
	// Prefix is the Termux PREFIX.
	Prefix string
	Logger log.Logger
}

func (c *ArchiverConfig) defaults() error {
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}

	if c.Prefix == "" {
		c.Prefix = conventions.DefaultTermuxPrefix
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "distro.Archiver"})

	return nil
}

// Archiver backs up and restores installed distributions with proot-distro.
type Archiver struct {
	runner CommandRunner
	prefix string
	logger log.Logger
}

// NewArchiver returns a new Archiver.
func NewArchiver(cfg ArchiverConfig) (*Archiver, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Archiver{
		runner: cfg.Runner,
		prefix: cfg.Prefix,
		logger: cfg.Logger,
	}, nil
}

// Installed returns true if the distribution has a rootfs.
func (a *Archiver) Installed(distro string) bool {
	return file.Exists(conventions.DistroRootfs(a.prefix, distro))
}

// Backup archives the distribution into dst and returns the archive size.
func (a *Archiver) Backup(ctx context.Context, distro, dst string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("could not create snapshots directory: %w", err)
	}

	_, err := a.runner.Run(ctx, runner.Request{
		Label:            "Backing up " + distro,
		EstimatedSeconds: BackupEstimate,
		Work:             runner.Command("proot-distro", "backup", "--output", dst, distro),
	})
	if err != nil {
		return 0, fmt.Errorf("could not backup %s: %w", distro, err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return 0, fmt.Errorf("backup archive is missing: %w", err)
	}

	a.logger.Debugf("Backed up %s into %s (%d bytes)", distro, dst, info.Size())
	return info.Size(), nil
}

// Restore replaces the distribution with the one in the src archive.
func (a *Archiver) Restore(ctx context.Context, src string) error {
	if !file.Exists(src) {
		return fmt.Errorf("archive %s is missing", src)
	}

	_, err := a.runner.Run(ctx, runner.Request{
		Label:            "Restoring " + filepath.Base(src),
		EstimatedSeconds: RestoreEstimate,
		Work:             runner.Command("proot-distro", "restore", src),
	})
	if err != nil {
		return fmt.Errorf("could not restore %s: %w", src, err)
	}

	return nil
}
