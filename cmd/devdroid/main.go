package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"github.com/slok/devdroid/cmd/devdroid/commands"
	"github.com/slok/devdroid/internal/log"
	loglogrus "github.com/slok/devdroid/internal/log/logrus"
	"github.com/slok/devdroid/internal/styles"
)

// Run runs the main application.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	app := kingpin.New("devdroid", "Termux development environment installer.")
	app.Version(commands.Version)
	app.DefaultEnvars()
	rootCmd := commands.NewRootCommand(app)

	// Setup commands (registers flags).
	installCmd := commands.NewInstallCommand(rootCmd, app)
	stepsCmd := commands.NewStepsCommand(rootCmd, app)
	statusCmd := commands.NewStatusCommand(rootCmd, app)
	doctorCmd := commands.NewDoctorCommand(rootCmd, app)
	selfTestCmd := commands.NewSelfTestCommand(rootCmd, app)

	// Snapshot subcommands share a parent command.
	snapshotCmd := app.Command("snapshot", "Manage distribution snapshots.")
	snapshotCreateCmd := commands.NewSnapshotCreateCommand(rootCmd, snapshotCmd)
	snapshotListCmd := commands.NewSnapshotListCommand(rootCmd, snapshotCmd)
	snapshotRestoreCmd := commands.NewSnapshotRestoreCommand(rootCmd, snapshotCmd)
	snapshotRmCmd := commands.NewSnapshotRmCommand(rootCmd, snapshotCmd)

	cmds := map[string]commands.Command{
		installCmd.Name():         installCmd,
		stepsCmd.Name():           stepsCmd,
		statusCmd.Name():          statusCmd,
		doctorCmd.Name():          doctorCmd,
		selfTestCmd.Name():        selfTestCmd,
		snapshotCreateCmd.Name():  snapshotCreateCmd,
		snapshotListCmd.Name():    snapshotListCmd,
		snapshotRestoreCmd.Name(): snapshotRestoreCmd,
		snapshotRmCmd.Name():      snapshotRmCmd,
	}

	// Parse command.
	cmdName, err := app.Parse(args[1:])
	if err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	// `--doctor` is an alias of the doctor command.
	if rootCmd.Doctor {
		cmdName = doctorCmd.Name()
	}

	// Set standard input/output.
	rootCmd.Stdin = stdin
	rootCmd.Stdout = stdout
	rootCmd.Stderr = stderr

	if rootCmd.NoColor {
		styles.DisableColor()
	}

	// Printer commands don't mix logs with their output unless debugging.
	printerCommands := map[string]bool{
		stepsCmd.Name():        true,
		statusCmd.Name():       true,
		snapshotListCmd.Name(): true,
	}
	if printerCommands[cmdName] && !rootCmd.Debug {
		rootCmd.NoLog = true
	}

	// Set logger.
	rootCmd.Logger = getLogger(*rootCmd)

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				rootCmd.Logger.Debugf("Termination signal received")
				return fmt.Errorf("termination signal received: %w", context.Canceled)
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// Execute command.
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				err := cmds[cmdName].Run(ctx)
				if err != nil {
					return fmt.Errorf("%q command failed: %w", cmdName, err)
				}
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}

// getLogger returns the application logger.
func getLogger(config commands.RootCommand) log.Logger {
	if config.NoLog {
		return log.Noop
	}

	// If logger not disabled use logrus logger.
	logrusLog := logrus.New()
	logrusLog.Out = config.Stderr // By default logger goes to stderr (so it can split stdout prints).
	logrusLogEntry := logrus.NewEntry(logrusLog)

	if config.Debug {
		logrusLogEntry.Logger.SetLevel(logrus.DebugLevel)
	}

	// Log format.
	switch config.LoggerType {
	case commands.LoggerTypeDefault:
		logrusLogEntry.Logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !config.NoColor,
			DisableColors: config.NoColor,
		})
	case commands.LoggerTypeJSON:
		logrusLogEntry.Logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logger := loglogrus.NewLogrus(logrusLogEntry).WithValues(log.Kv{
		"version": commands.Version,
	})

	logger.Debugf("Debug level is enabled") // Will log only when debug enabled.

	return logger
}

func main() {
	ctx := context.Background()
	err := Run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
