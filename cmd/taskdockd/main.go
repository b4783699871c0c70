// Package main is the entry point for the taskdockd shell daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmylchreest/taskdock/internal/config"
	"github.com/jmylchreest/taskdock/internal/daemon"
)

var (
	// Build-time variables
	version = "dev"
)

func main() {
	// Parse command line flags
	debug := flag.Bool("debug", false, "Enable debug logging")
	logFormat := flag.String("log-format", "text", "Log format (text, json)")
	configPath := flag.String("config", "", "Path to daemon config (default: ~/.config/taskdock/daemon.toml)")
	pinnedPath := flag.String("pinned", "", "Path to pinned programs (default: ~/.config/taskdock/pinned.toml)")
	demo := flag.Bool("demo", false, "Serve sample programs from in-memory registries")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("taskdockd version", version)
		os.Exit(0)
	}

	// Set up structured logging
	logger := newLogger(*logFormat, *debug)
	slog.SetDefault(logger)

	if err := run(logger, *configPath, *pinnedPath, *demo); err != nil {
		logger.Error("taskdockd failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(format string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func run(logger *slog.Logger, configPath, pinnedPath string, demo bool) error {
	logger.Info("starting taskdockd", "version", version)

	// Load configuration
	cfg, err := config.LoadDaemonConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	opts := daemon.Options{
		Config:     cfg,
		ConfigPath: configPath,
		PinnedPath: pinnedPath,
		Version:    version,
		Logger:     logger,
	}
	if demo {
		reg := daemon.DemoRegistries()
		opts.Registries = &reg
	}

	d, err := daemon.New(opts)
	if err != nil {
		return err
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return d.Run(ctx)
}
