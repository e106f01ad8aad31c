package installer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/runner"
	"github.com/slok/devdroid/internal/step"
	"github.com/slok/devdroid/internal/utils/file"
)

// DefaultDistroPackages are installed in the container when the config doesn't set any.
var DefaultDistroPackages = []string{"git", "curl", "vim", "sudo"}

var desktopPackages = map[string][]string{
	model.DistroDebian: {"xfce4", "xfce4-terminal", "tigervnc-standalone-server", "dbus-x11"},
	model.DistroUbuntu: {"xfce4", "xfce4-terminal", "tigervnc-standalone-server", "dbus-x11"},
	model.DistroArch:   {"xfce4", "tigervnc"},
	model.DistroAlpine: {"xfce4", "xfce4-terminal", "tigervnc", "dbus-x11"},
	model.DistroFedora: {"xfce4-session", "xfwm4", "xfce4-panel", "xfdesktop", "xfce4-terminal", "tigervnc-server", "dbus-x11"},
}

const vncXStartup = `#!/bin/sh
unset SESSION_MANAGER
unset DBUS_SESSION_BUS_ADDRESS
exec dbus-launch --exit-with-session startxfce4
`

// installCommand returns the shell command line that installs pkgs with the distro package manager.
func installCommand(distro string, pkgs []string) (string, error) {
	list := strings.Join(pkgs, " ")
	switch distro {
	case model.DistroDebian, model.DistroUbuntu:
		return "apt-get update && DEBIAN_FRONTEND=noninteractive apt-get install -y " + list, nil
	case model.DistroArch:
		return "pacman -Syu --noconfirm --needed " + list, nil
	case model.DistroAlpine:
		return "apk update && apk add " + list, nil
	case model.DistroFedora:
		return "dnf install -y " + list, nil
	}
	return "", fmt.Errorf("distro %q has no package manager: %w", distro, model.ErrNotValid)
}

func (i *Installer) loginCommand(shellCmd string) *runner.CommandWork {
	return runner.Command("proot-distro", "login", i.cfg.Distro, "--", "/bin/sh", "-c", shellCmd)
}

func (i *Installer) distroInstalled() bool {
	return file.Exists(i.distroRootfs())
}

func (i *Installer) distroInstall(ctx context.Context, status step.StatusSetter) error {
	if i.distroInstalled() {
		i.logger.Debugf("Distro %q already installed at %s", i.cfg.Distro, i.distroRootfs())
		status.SetStatus(model.StepStatusSkipped)
		return nil
	}

	return i.run(ctx, "Installing "+i.cfg.Distro, 0, runner.Command("proot-distro", "install", i.cfg.Distro))
}

func (i *Installer) distroPackages(ctx context.Context, _ step.StatusSetter) error {
	if !i.distroInstalled() {
		return fmt.Errorf("distro %q is not installed", i.cfg.Distro)
	}

	pkgs := i.cfg.DistroPackages
	if len(pkgs) == 0 {
		pkgs = DefaultDistroPackages
	}

	cmd, err := installCommand(i.cfg.Distro, pkgs)
	if err != nil {
		return err
	}

	return i.run(ctx, fmt.Sprintf("Installing %d packages in %s", len(pkgs), i.cfg.Distro), 0, i.loginCommand(cmd))
}

func (i *Installer) desktopSetup(ctx context.Context, status step.StatusSetter) error {
	if !i.distroInstalled() {
		return fmt.Errorf("distro %q is not installed", i.cfg.Distro)
	}

	rootfs := i.distroRootfs()
	xstartup := filepath.Join(rootfs, "root", ".vnc", "xstartup")
	if file.Exists(xstartup) && file.Exists(filepath.Join(rootfs, "usr", "bin", "vncserver")) {
		status.SetStatus(model.StepStatusSkipped)
		return nil
	}

	cmd, err := installCommand(i.cfg.Distro, desktopPackages[i.cfg.Distro])
	if err != nil {
		return err
	}

	if err := i.run(ctx, "Installing desktop packages", 0, i.loginCommand(cmd)); err != nil {
		return err
	}

	if err := file.WriteAtomic(xstartup, []byte(vncXStartup), 0o755); err != nil {
		return fmt.Errorf("could not write vnc startup script: %w", err)
	}

	return nil
}
