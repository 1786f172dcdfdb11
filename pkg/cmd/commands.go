package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/butter-bot-machines/slskconf/pkg/export"
	"github.com/butter-bot-machines/slskconf/pkg/settings"
	"github.com/butter-bot-machines/slskconf/pkg/value"
	"github.com/butter-bot-machines/slskconf/pkg/watcher"
	wconcrete "github.com/butter-bot-machines/slskconf/pkg/watcher/concrete"
)

// ErrIncomplete is returned by check when settings still need values
var ErrIncomplete = errors.New("configuration is incomplete")

// printPrompter lists settings that need attention
type printPrompter struct {
	out io.Writer
}

func (p printPrompter) InvalidSetting(section, option string) {
	fmt.Fprintf(p.out, "needs a value: %s.%s\n", section, option)
}

func (p printPrompter) ShowSettings(map[string]map[string]value.Value) {
	fmt.Fprintln(p.out, "set the values above before connecting")
}

func (c *CLI) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the settings and restore unset options to their defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore(settings.WithPrompter(printPrompter{cmd.OutOrStdout()}))
			if err != nil {
				return err
			}
			defer store.Close()

			report := store.CheckConfig()
			if report.Err != nil {
				return fmt.Errorf("check failed: %w", report.Err)
			}
			if len(report.Repaired) > 0 {
				if err := store.WriteConfiguration(); err != nil {
					return err
				}
			}
			for _, r := range report.Repaired {
				fmt.Fprintf(cmd.OutOrStdout(), "reset to default: %s.%s\n", r.Section, r.Option)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "settings %s\n", report.Level)
			if report.Level >= settings.Incomplete {
				return ErrIncomplete
			}
			return nil
		},
	}
}

func (c *CLI) showCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print every setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			return export.Write(cmd.OutOrStdout(), store.Snapshot(), f)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(export.YAML), "yaml, toml or json")
	return cmd
}

func (c *CLI) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <section> <option>",
		Short: "Print one setting in literal syntax",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			v, ok := store.Get(args[0], args[1])
			if !ok {
				return fmt.Errorf("no such setting: %s.%s", args[0], args[1])
			}
			fmt.Fprintln(cmd.OutOrStdout(), value.Format(v))
			return nil
		},
	}
}

func (c *CLI) setCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <section> <option> <literal>",
		Short: "Change one setting and save the settings file",
		Long: `Change one setting and save the settings file. The value is written in
literal syntax: 'text', 42, True, ['a', 'b'], ('host', 2242), None. Options
stored as plain text also take the text as is.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			section, option, literal := args[0], args[1], args[2]
			v, err := value.Parse(literal)
			if err != nil {
				opt, known := store.Registry().Lookup(section, option)
				if !known || !opt.RawText {
					return fmt.Errorf("invalid value for %s.%s: %w", section, option, err)
				}
				v = value.Text(literal)
			}
			if err := store.Set(section, option, v); err != nil {
				return err
			}
			return store.WriteConfiguration()
		},
	}
}

func (c *CLI) backupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backup [file]",
		Short: "Archive the settings and alias files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var filename string
			if len(args) == 1 {
				filename = args[0]
			}
			name, err := store.WriteConfigBackup(filename)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", name)
			return nil
		},
	}
}

func (c *CLI) aliasCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "alias [name [expansion...]]",
		Short: "List, show or define command aliases",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			fmt.Fprint(cmd.OutOrStdout(), store.AddAlias(strings.Join(args, " ")))
			return nil
		},
	}
}

func (c *CLI) unaliasCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unalias <name>",
		Short: "Remove a command alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			fmt.Fprint(cmd.OutOrStdout(), store.RemoveAlias(args[0]))
			return nil
		},
	}
}

func (c *CLI) clearSharesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-shares",
		Short: "Delete the shared file tables and create them empty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.ClearShares(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "share tables cleared, rescan your shares")
			return nil
		},
	}
}

func (c *CLI) watchCommand() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload the settings whenever the file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			handler := watcher.HandlerFunc(func(path string) error {
				changed, err := store.Reload()
				if err != nil {
					return err
				}
				if changed {
					c.logger.Info("settings reloaded", "path", path)
					store.CheckConfig()
				}
				return nil
			})
			w, err := wconcrete.NewWatcher(store.Path(), handler, wconcrete.Options{
				Debounce: c.config.Watch.Debounce,
				MaxDelay: c.config.Watch.MaxDelay,
				Logger:   c.logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			defer w.Stop()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Watching for changes...")
			<-ctx.Done()
			c.logger.Info("shutting down")
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "stop after this long (default: until interrupted)")
	return cmd
}

func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "slskconf version %s\n", Version)
			return nil
		},
	}
}
