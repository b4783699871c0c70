// Package main provides the CLI entrypoint for taskdock.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/taskdock/internal/config"
	"github.com/jmylchreest/taskdock/internal/core"
	"github.com/jmylchreest/taskdock/internal/daemon"
	"github.com/jmylchreest/taskdock/internal/dbus"
	"github.com/jmylchreest/taskdock/internal/model"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// callTimeout bounds one-shot requests to taskdockd.
const callTimeout = 5 * time.Second

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose          bool
		configPath       string
		daemonConfigPath string
		pinnedPath       string
		local            bool
	}
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "taskdock",
	Short: "Taskbar programs, instance selector and task switcher",
	Long: `taskdock is the command line client for taskdockd, the taskbar core for
Linux desktops.

It lists running and pinned programs, prints Waybar status, and drives the
instance selector, the task switcher and popup coordination from scripts
and key bindings.

Running taskdock without a subcommand launches the interactive TUI.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Setup logging
		setupLogger()

		// Load configuration
		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	SilenceUsage: true,
	// Default to TUI when no subcommand is provided
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/taskdock/config.toml)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.daemonConfigPath, "daemon-config", "",
		"Path to daemon config, used with --local (default: ~/.config/taskdock/daemon.toml)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.pinnedPath, "pinned", "",
		"Path to pinned programs (default: ~/.config/taskdock/pinned.toml)")
	rootCmd.PersistentFlags().BoolVar(&globalOpts.local, "local", false,
		"Read programs directly from the system instead of taskdockd")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, opts)
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// connect opens a client to the running daemon.
func connect() (*dbus.Client, error) {
	client, err := dbus.Connect(logger.With("component", "dbus"))
	if err != nil {
		if errors.Is(err, dbus.ErrDaemonNotRunning) {
			return nil, fmt.Errorf("%w (start it, or pass --local for read-only commands)", err)
		}
		return nil, err
	}
	return client, nil
}

// withClient runs fn against the daemon with a bounded context.
func withClient(fn func(ctx context.Context, c *dbus.Client) error) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return fn(ctx, client)
}

// fetchPrograms returns the program list from taskdockd, or from a local
// aggregation when --local is set or the daemon is not running.
func fetchPrograms(ctx context.Context) ([]model.ProgramEntry, error) {
	if !globalOpts.local {
		client, err := dbus.Connect(logger.With("component", "dbus"))
		if err == nil {
			defer func() { _ = client.Close() }()
			return client.Programs(ctx)
		}
		if !errors.Is(err, dbus.ErrDaemonNotRunning) {
			return nil, err
		}
		logger.Debug("taskdockd not running, aggregating locally")
	}
	return localPrograms(ctx)
}

// localPrograms aggregates the configured backends once.
func localPrograms(ctx context.Context) ([]model.ProgramEntry, error) {
	dcfg, err := config.LoadDaemonConfig(globalOpts.daemonConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load daemon config: %w", err)
	}

	pinnedPath := globalOpts.pinnedPath
	if pinnedPath == "" {
		pinnedPath = config.PinnedPath()
	}

	reg, release, err := daemon.OpenRegistries(dcfg, pinnedPath, logger)
	defer release()
	if err != nil {
		logger.Warn("some backends are unavailable", "error", err)
	}

	snap := core.NewAggregator(reg, logger.With("component", "aggregate")).Refresh(ctx)
	return snap.Entries, nil
}
