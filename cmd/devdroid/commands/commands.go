package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"github.com/charmbracelet/huh"
	"golang.org/x/term"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/devdroid/internal/conventions"
	"github.com/slok/devdroid/internal/installer"
	"github.com/slok/devdroid/internal/log"
	"github.com/slok/devdroid/internal/model"
	"github.com/slok/devdroid/internal/printer"
	"github.com/slok/devdroid/internal/runner"
	storageio "github.com/slok/devdroid/internal/storage/io"
	"github.com/slok/devdroid/internal/storage/jsonfile"
	"github.com/slok/devdroid/internal/utils/env"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

// Version is the application version (set via ldflags).
var Version = "dev"

// ErrAborted is returned when the user cancels an interactive prompt.
var ErrAborted = errors.New("aborted by user")

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug          bool
	NoLog          bool
	NoColor        bool
	LoggerType     string
	DataDir        string
	NonInteractive bool
	FastMode       bool
	Doctor         bool

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").Envar(env.Debug).BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable colors.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)
	app.Flag("non-interactive", "Never prompt, use defaults and skip steps that need user interaction.").Envar(env.NonInteractive).BoolVar(&c.NonInteractive)
	app.Flag("fast-mode", "Shrink the displayed ETAs.").Envar(env.FastMode).BoolVar(&c.FastMode)
	app.Flag("doctor", "Run the host diagnostics instead of the command.").BoolVar(&c.Doctor)

	defaultDataDir := filepath.Join(homedir.HomeDir(), conventions.DefaultDataDir)
	app.Flag("data-dir", "Directory for the installer state (event log, completion, snapshots, keys).").Envar("DEVDROID_DATA_DIR").Default(defaultDataDir).StringVar(&c.DataDir)

	return c
}

// Interactive returns true when the user can be prompted.
func (r *RootCommand) Interactive() bool {
	return !r.NonInteractive && r.stdoutIsTerminal() && r.stdinIsTerminal()
}

// TerminalWidth returns the stdout terminal width, 0 if it's not a terminal.
func (r *RootCommand) TerminalWidth() int {
	f, ok := r.Stdout.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return w
}

func (r *RootCommand) stdoutIsTerminal() bool {
	f, ok := r.Stdout.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (r *RootCommand) stdinIsTerminal() bool {
	f, ok := r.Stdin.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Accessible returns true if the prompts should use the accessible mode.
func (r *RootCommand) Accessible() bool {
	return os.Getenv("ACCESSIBLE") != ""
}

func (r *RootCommand) repository() (*jsonfile.Repository, error) {
	repo, err := jsonfile.NewRepository(jsonfile.RepositoryConfig{
		DataDir: r.DataDir,
		Logger:  r.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}
	return repo, nil
}

// quietRunner returns a command runner for commands that only need the command outcome.
func (r *RootCommand) quietRunner() (*runner.Runner, error) {
	return runner.NewRunner(runner.RunnerConfig{
		Out:    r.Stderr,
		Logger: r.Logger,
	})
}

func (r *RootCommand) printer(format string) printer.Printer {
	if format == "json" {
		return printer.NewJSONPrinter(r.Stdout)
	}
	return printer.NewTablePrinter(r.Stdout)
}

// loadInstallConfig loads the YAML install config when path is set, otherwise the defaults.
// The numeric env knobs override the config.
func loadInstallConfig(ctx context.Context, path string) (model.InstallConfig, error) {
	cfg := storageio.DefaultInstallConfig()
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return model.InstallConfig{}, fmt.Errorf("could not resolve config path: %w", err)
		}

		repo := storageio.NewInstallConfigYAMLRepository(os.DirFS(filepath.Dir(abs)))
		cfg, err = repo.GetInstallConfig(ctx, filepath.Base(abs))
		if err != nil {
			return model.InstallConfig{}, fmt.Errorf("could not load install config: %w", err)
		}
	}

	for id, est := range installer.EstimateOverridesFromEnv(os.LookupEnv) {
		if cfg.EstimateOverrides == nil {
			cfg.EstimateOverrides = map[string]int{}
		}
		cfg.EstimateOverrides[id] = est
	}
	cfg.SSHPort = env.Int(env.SSHPort, cfg.SSHPort, 1024, 65535)
	cfg.VNCDisplay = env.Int(env.VNCDisplay, cfg.VNCDisplay, 1, 99)

	return cfg, nil
}

// runForm runs a huh form mapping the user abort to ErrAborted.
func runForm(accessible bool, groups ...*huh.Group) error {
	err := huh.NewForm(groups...).WithAccessible(accessible).Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrAborted
		}
		return err
	}
	return nil
}
