// Command gkvs is the command-line front end for the log-structured
// key-value store. It initializes structured logging, resolves the data
// directory (flag overrides config), and dispatches to one of the
// set/get/rm/compact/repl subcommands.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/genlogkv/gkvs/internal/cli"
	"github.com/genlogkv/gkvs/internal/config"
	"github.com/genlogkv/gkvs/internal/engine"
	"github.com/spf13/cobra"
)

var dataDir string

func main() {
	slogHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(slogHandler))

	root := newRootCmd()
	if err := root.Execute(); err != nil {
		if silent, ok := err.(errSilentExit); ok {
			os.Exit(silent.code)
		}
		fmt.Fprintln(os.Stderr, "gkvs:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gkvs",
		Short:         "gkvs is a log-structured key-value store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding generation log files (falls back to config.yml)")

	root.AddCommand(newSetCmd())
	root.AddCommand(newGetCmd())
	root.AddCommand(newRmCmd())
	root.AddCommand(newCompactCmd())
	root.AddCommand(newReplCmd())
	return root
}

// openStore resolves the data directory (flag, then config.yml default)
// and opens the engine against it.
func openStore() (*engine.KvStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	cloned := *cfg
	if dataDir != "" {
		cloned.DataDir = dataDir
	}
	return engine.OpenWithConfig(&cloned)
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "store a key-value pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Set(args[0], args[1]); err != nil {
				return fmt.Errorf("set %q: %w", args[0], err)
			}
			return nil
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "print the value stored for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			value, ok, err := store.Get(args[0])
			if err != nil {
				return fmt.Errorf("get %q: %w", args[0], err)
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Key not found")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <key>",
		Short: "remove a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Remove(args[0]); err != nil {
				if err == engine.ErrKeyNotFound {
					fmt.Fprintln(cmd.OutOrStdout(), "Key not found")
					return errSilentExit{code: 1}
				}
				return fmt.Errorf("rm %q: %w", args[0], err)
			}
			return nil
		},
	}
}

func newCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "force a compaction pass regardless of the stale-byte threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Compact(); err != nil {
				return fmt.Errorf("compact: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "compacted: %d live keys\n", store.KeyCount())
			return nil
		},
	}
}

// errSilentExit carries a process exit code through cobra's RunE error
// path without printing anything extra: the subcommand has already
// written its own message.
type errSilentExit struct{ code int }

func (e errSilentExit) Error() string { return "" }

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "start an interactive PUT/GET/DELETE session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			return cli.NewHandler(store, os.Stdin, cmd.OutOrStdout()).Run()
		},
	}
}
