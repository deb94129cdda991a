// Command govorko is the Govorko server: a real-time Bulgarian voice-coaching
// pipeline behind a WebSocket and HTTP API.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbozhinov/govorko/internal/config"
	"github.com/dbozhinov/govorko/internal/content"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// Exit codes. Configuration problems and content problems are distinguished
// so deployment scripts can tell a bad environment from a bad data directory.
const (
	exitOK       = 0
	exitConfig   = 2
	exitContent  = 3
	exitInternal = 70
)

// exitError carries the process exit code alongside the cause.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() { os.Exit(run(os.Args[1:])) }

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "govorko: %v\n", err)
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		// Cobra reports flag and argument mistakes as plain errors.
		return exitConfig
	}
	return exitOK
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "govorko",
		Short:         "Real-time Bulgarian voice-coaching server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newCheckContentCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "govorko %s\n", version)
		},
	}
}

func newCheckContentCmd() *cobra.Command {
	var (
		configPath string
		dir        string
	)
	cmd := &cobra.Command{
		Use:   "check-content",
		Short: "Validate the content directory and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return &exitError{exitConfig, err}
			}
			if dir == "" {
				dir = cfg.Content.Dir
			}
			store, err := content.Load(dir)
			if err != nil {
				return &exitError{exitContent, err}
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"content ok: %d grammar items, %d scenarios, %d vocabulary words (version %s)\n",
				store.ItemCount(), store.ScenarioCount(), len(store.Vocabulary()), store.Version())
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the YAML configuration file")
	cmd.Flags().StringVar(&dir, "dir", "", "content directory (overrides the configured one)")
	return cmd
}
