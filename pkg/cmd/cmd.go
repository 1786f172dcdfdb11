// Package cmd implements the slskconf command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/butter-bot-machines/slskconf/pkg/config"
	"github.com/butter-bot-machines/slskconf/pkg/config/env"
	"github.com/butter-bot-machines/slskconf/pkg/logging"
	slogging "github.com/butter-bot-machines/slskconf/pkg/logging/slog"
	"github.com/butter-bot-machines/slskconf/pkg/settings"
)

const Version = "0.1.0"

// CLI represents the command-line interface
type CLI struct {
	out    io.Writer
	errOut io.Writer
	env    config.Environment
	home   string

	// persistent flags
	runtimeConfig string
	settingsPath  string
	dataDir       string
	logLevel      string
	logFormat     string

	config *config.Config
	logger logging.Logger
}

// CLIOption configures a CLI
type CLIOption func(*CLI)

// WithOutput sets where command output goes
func WithOutput(w io.Writer) CLIOption {
	return func(c *CLI) { c.out = w }
}

// WithErrOutput sets where logs and errors go
func WithErrOutput(w io.Writer) CLIOption {
	return func(c *CLI) { c.errOut = w }
}

// WithEnvironment sets the environment overrides are read from
func WithEnvironment(e config.Environment) CLIOption {
	return func(c *CLI) { c.env = e }
}

// WithHome sets the home directory default paths derive from
func WithHome(dir string) CLIOption {
	return func(c *CLI) { c.home = dir }
}

// NewCLI creates a new CLI instance
func NewCLI(opts ...CLIOption) *CLI {
	c := &CLI{
		out:    os.Stdout,
		errOut: os.Stderr,
		env:    env.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.home == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.home = home
		} else {
			c.home = "."
		}
	}
	return c
}

// Run executes the CLI with the given arguments
func (c *CLI) Run(args []string) error {
	root := c.rootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func (c *CLI) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "slskconf",
		Short:   "Inspect and maintain Soulseek client settings",
		Version: Version,
		Long: `slskconf reads, checks and edits the settings file of a Soulseek client,
together with its alias file, download queue and shared file tables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&c.runtimeConfig, "runtime-config", "", "YAML file configuring slskconf itself")
	flags.StringVarP(&c.settingsPath, "settings", "c", "", "settings file (default ~/.nicotine/config, or set "+config.EnvSettings+")")
	flags.StringVarP(&c.dataDir, "data-dir", "d", "", "directory of the download queue and share tables (or set "+config.EnvDataDir+")")
	flags.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error (or set "+config.EnvLogLevel+")")
	flags.StringVar(&c.logFormat, "log-format", "", "text or json; json when stderr is not a terminal (or set "+config.EnvLogFormat+")")

	root.AddCommand(
		c.checkCommand(),
		c.showCommand(),
		c.getCommand(),
		c.setCommand(),
		c.backupCommand(),
		c.aliasCommand(),
		c.unaliasCommand(),
		c.clearSharesCommand(),
		c.watchCommand(),
		c.versionCommand(),
	)
	return root
}

// setup resolves the runtime configuration: defaults, then the runtime
// config file, then the environment, then flags.
func (c *CLI) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.runtimeConfig, c.home)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(c.env)

	flags := cmd.Flags()
	if flags.Changed("settings") {
		cfg.Settings = c.settingsPath
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = c.dataDir
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = c.logLevel
	}
	formatChosen := c.runtimeConfig != "" || c.env.Has(config.EnvLogFormat)
	if flags.Changed("log-format") {
		cfg.Log.Format = c.logFormat
		formatChosen = true
	}
	if !formatChosen && !isTerminal(c.errOut) {
		cfg.Log.Format = string(logging.FormatJSON)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.config = cfg
	c.logger = slogging.New(cfg.LogLevel(), cfg.LogFormat(), c.errOut, cfg.Log.Source)
	return nil
}

// isTerminal reports whether w is a terminal. Writers that are not files
// count as terminals.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return true
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// openStore opens the settings store and applies the settings file
func (c *CLI) openStore(opts ...settings.Option) (*settings.Store, error) {
	opts = append([]settings.Option{
		settings.WithLogger(c.logger),
		settings.WithHomeDir(c.home),
	}, opts...)
	store, err := settings.New(c.config.Settings, c.config.DataDir, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings: %w", err)
	}
	store.ReadConfig()
	return store, nil
}
