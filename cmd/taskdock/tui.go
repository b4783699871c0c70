package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/taskdock/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive TUI",
	Long: `Launch the interactive terminal user interface for taskdockd.

The TUI provides:
  - Live list of running and pinned programs
  - Fuzzy search over names and window titles
  - Instance view to focus or close single windows
  - The task switcher, driven by keyboard and mouse wheel

Key bindings:
  j/k, ↑/↓    Navigate list
  enter       View program instances
  f           Focus the selected program
  x           Close the selected instance
  y           Copy the instance's window id
  p           Toggle pinned programs that are not running
  /           Search programs
  tab         Open the task switcher
  r           Refresh
  ?           Show help
  q           Quit`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := client.Subscribe(ctx)
	if err != nil {
		logger.Warn("signals unavailable, polling", "error", err)
		events = nil
	}

	return tui.Run(tui.RunOptions{
		Config:  cfg,
		Backend: client,
		Events:  events,
	})
}
