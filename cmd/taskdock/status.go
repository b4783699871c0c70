package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/taskdock/internal/adapter/output"
	"github.com/jmylchreest/taskdock/internal/dbus"
	"github.com/jmylchreest/taskdock/internal/model"
)

var statusOpts struct {
	watch   bool
	text    string
	tooltip string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Output Waybar-compatible JSON status",
	Long: `Output taskbar status in Waybar's custom module JSON format.

This is designed to be used with Waybar's custom module:

  "custom/taskdock": {
    "exec": "taskdock status --watch",
    "return-type": "json",
    "on-click": "taskdock switcher enter"
  }

The output includes:
  - text: Rendered status template (default: number of running programs)
  - alt: empty, running or focused
  - tooltip: Rendered tooltip template (default: one line per program)
  - class: Same as alt, for CSS
  - percentage: Number of running programs, capped at 100

With --watch, a new line is printed whenever taskdockd reports a change.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&statusOpts.watch, "watch", "w", false,
		"Keep running and print a line on every change (requires taskdockd)")
	statusCmd.Flags().StringVar(&statusOpts.text, "text", "",
		"Template for the text field (default from config)")
	statusCmd.Flags().StringVar(&statusOpts.tooltip, "tooltip", "",
		"Template for the tooltip field (default from config)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	if statusOpts.watch {
		return watchStatus()
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	entries, err := fetchPrograms(ctx)
	if err != nil {
		logger.Debug("failed to fetch programs", "error", err)
		return output.WriteStatus(os.Stdout, output.WaybarStatus{Alt: "error", Class: "error", Tooltip: err.Error()})
	}
	return printStatus(entries)
}

func printStatus(entries []model.ProgramEntry) error {
	text := statusOpts.text
	if text == "" {
		text = cfg.GetTemplate("status")
	}
	tooltip := statusOpts.tooltip
	if tooltip == "" {
		tooltip = cfg.GetTemplate("tooltip")
	}

	status, err := output.BuildStatus(entries, text, tooltip)
	if err != nil {
		return err
	}
	return output.WriteStatus(os.Stdout, status)
}

// watchStatus prints the current status, then one line per ProgramsChanged
// signal until interrupted.
func watchStatus() error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events, err := client.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	entries, err := client.Programs(callCtx)
	cancel()
	if err != nil {
		return err
	}
	if err := printStatus(entries); err != nil {
		return err
	}

	for ev := range events {
		if ev.Name != dbus.SignalProgramsChanged {
			continue
		}
		if err := printStatus(ev.Programs); err != nil {
			logger.Warn("failed to render status", "error", err)
		}
	}
	return nil
}
