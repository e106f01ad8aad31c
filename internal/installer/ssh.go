package installer

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/slok/devdroid/internal/conventions"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/runner"
	"github.com/slok/devdroid/internal/ssh"
	"github.com/slok/devdroid/internal/step"
)

func (i *Installer) sshSetup(ctx context.Context, status step.StatusSetter) error {
	km := ssh.NewKeyManager(i.dataDir)
	pub, err := km.EnsureKeys()
	if err != nil {
		return fmt.Errorf("could not prepare ssh keys: %w", err)
	}

	added, err := ssh.AuthorizeKey(i.homePath(".ssh", "authorized_keys"), pub)
	if err != nil {
		return fmt.Errorf("could not authorize ssh key: %w", err)
	}

	port := i.cfg.SSHPort
	running := i.portChecker(ctx, localAddr(port))
	if running {
		i.logger.Debugf("SSH server already listening on %d", port)
	} else {
		if err := i.run(ctx, "Starting SSH server", runner.MinEstimate, runner.Command("sshd", "-p", strconv.Itoa(port))); err != nil {
			return err
		}
	}

	key, err := km.LoadPrivateKey()
	if err != nil {
		return fmt.Errorf("could not load ssh private key: %w", err)
	}
	verify := runner.WorkFunc(func(ctx context.Context, _ io.Writer) error {
		return i.verifyLogin(ctx, port, key)
	})
	if err := i.run(ctx, "Verifying SSH login", runner.MinEstimate, verify); err != nil {
		return fmt.Errorf("could not log into the SSH server with the generated key: %w", err)
	}

	if running && !added {
		status.SetStatus(model.StepStatusSkipped)
		return nil
	}

	i.logger.Infof("SSH server listening on %d, private key at %s", port, conventions.SSHPrivateKeyPath(i.dataDir))
	return nil
}
