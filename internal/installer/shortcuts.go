package installer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slok/devdroid/internal/conventions"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/step"
	"github.com/slok/devdroid/internal/utils/file"
)

// Shortcut is a Termux:Widget script.
type Shortcut struct {
	Name   string
	Script string
}

// Shortcuts returns the widget scripts for the install configuration, prefix is the Termux PREFIX.
func Shortcuts(cfg model.InstallConfig, prefix string) []Shortcut {
	login := "proot-distro login " + cfg.Distro
	shebang := "#!" + filepath.Join(prefix, "bin", "sh")
	return []Shortcut{
		{Name: "devdroid-shell", Script: fmt.Sprintf("%s\nexec %s\n", shebang, login)},
		{Name: "devdroid-ssh", Script: fmt.Sprintf("%s\nsshd -p %d\n", shebang, cfg.SSHPort)},
		{Name: "devdroid-vnc-start", Script: fmt.Sprintf("%s\n%s -- vncserver :%d -localhost no\n", shebang, login, cfg.VNCDisplay)},
		{Name: "devdroid-vnc-stop", Script: fmt.Sprintf("%s\n%s -- vncserver -kill :%d\n", shebang, login, cfg.VNCDisplay)},
	}
}

func (i *Installer) shortcuts(_ context.Context, status step.StatusSetter) error {
	dir := i.homePath(conventions.ShortcutsDir)

	written := 0
	for _, s := range Shortcuts(i.cfg, i.prefix) {
		path := filepath.Join(dir, s.Name)
		if current, err := os.ReadFile(path); err == nil && bytes.Equal(current, []byte(s.Script)) {
			continue
		}

		if err := file.WriteAtomic(path, []byte(s.Script), 0o755); err != nil {
			return fmt.Errorf("could not write shortcut %s: %w", s.Name, err)
		}
		written++
	}

	if written == 0 {
		status.SetStatus(model.StepStatusSkipped)
	}

	return nil
}
