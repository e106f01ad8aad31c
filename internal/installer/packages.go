package installer

import (
	"context"
	"fmt"

	"github.com/slok/devdroid/internal/conventions"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/runner"
	"github.com/slok/devdroid/internal/step"
	"github.com/slok/devdroid/internal/utils/file"
)

// BasePackages are the Termux packages every install needs.
var BasePackages = []string{"proot-distro", "openssh", "curl", "wget", "git", "termux-api"}

// Keep dpkg from prompting about modified configuration files.
var aptNoPromptEnv = []string{"DEBIAN_FRONTEND=noninteractive"}

func (i *Installer) pkgUpdate(ctx context.Context, _ step.StatusSetter) error {
	cmd := runner.Command("pkg", "update", "-y").WithEnv(aptNoPromptEnv...)
	return i.run(ctx, "Updating package index", 0, cmd)
}

func (i *Installer) pkgUpgrade(ctx context.Context, _ step.StatusSetter) error {
	cmd := runner.Command("pkg", "upgrade", "-y", "-o", "Dpkg::Options::=--force-confold").WithEnv(aptNoPromptEnv...)
	return i.run(ctx, "Upgrading installed packages", 0, cmd)
}

func (i *Installer) pkgBase(ctx context.Context, _ step.StatusSetter) error {
	pkgs := append([]string{}, BasePackages...)
	pkgs = append(pkgs, i.cfg.ExtraPackages...)

	cmd := runner.Command("pkg", append([]string{"install", "-y"}, pkgs...)...).WithEnv(aptNoPromptEnv...)
	return i.run(ctx, fmt.Sprintf("Installing %d packages", len(pkgs)), 0, cmd)
}

func (i *Installer) storageAccess(ctx context.Context, status step.StatusSetter) error {
	if file.Exists(i.homePath(conventions.StorageLinkDir)) {
		status.SetStatus(model.StepStatusSkipped)
		return nil
	}

	// The Android permission dialog needs somebody in front of the device.
	if i.cfg.NonInteractive {
		return fmt.Errorf("storage permission needs an interactive session: %w", step.ErrSkipped)
	}

	return i.run(ctx, "Requesting storage permission", 0, runner.Command("termux-setup-storage"))
}
