package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/taskdock/internal/dbus"
	"github.com/jmylchreest/taskdock/internal/switcher"
)

// switcherCmd represents the switcher command group.
var switcherCmd = &cobra.Command{
	Use:   "switcher",
	Short: "Drive the task switcher",
	Long: `Drive taskdockd's task switcher from key bindings.

A typical compositor binding opens the switcher on alt+tab and forwards
further presses while it is open:

  bind = ALT, Tab, exec, taskdock switcher enter
  bind = ALT SHIFT, Tab, exec, taskdock switcher prev

'enter' steps to the next window when a session is already open.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to showing state
		return switcherStateRun(cmd, args)
	},
}

var switcherEnterCmd = &cobra.Command{
	Use:   "enter",
	Short: "Open the switcher, or step forward if it is open",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			snap, err := c.SwitcherState(ctx)
			if err != nil {
				return err
			}
			if snap.State == switcher.Active.String() {
				return c.SwitcherKey(ctx, daemonKeys().Next)
			}
			entered, err := c.SwitcherEnter(ctx)
			if err != nil {
				return err
			}
			if !entered {
				logger.Info("no windows to switch to")
			}
			return nil
		})
	},
}

// keyCommand sends the configured key for one switcher command.
func keyCommand(use, short string, pick func(k switcherKeyNames) string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *dbus.Client) error {
				return c.SwitcherKey(ctx, pick(daemonKeys()))
			})
		},
	}
}

var switcherKeyCmd = &cobra.Command{
	Use:   "key <name>",
	Short: "Send a raw key name to the switcher",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			return c.SwitcherKey(ctx, args[0])
		})
	},
}

var switcherWheelCmd = &cobra.Command{
	Use:   "wheel <deltaY>",
	Short: "Send a scroll delta to the switcher",
	Long: `Send a vertical scroll delta. Positive values step forward. Small deltas
accumulate until they cross the configured wheel threshold.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		delta, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid delta %q: %w", args[0], err)
		}
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			return c.SwitcherWheel(ctx, delta)
		})
	},
}

var switcherPressCmd = &cobra.Command{
	Use:   "press",
	Short: "Confirm the selection as a mouse press would",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			return c.SwitcherPress(ctx)
		})
	},
}

var switcherStateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the switcher session as JSON",
	RunE:  switcherStateRun,
}

func init() {
	switcherCmd.AddCommand(switcherEnterCmd)
	switcherCmd.AddCommand(keyCommand("next", "Select the next window", func(k switcherKeyNames) string { return k.Next }))
	switcherCmd.AddCommand(keyCommand("prev", "Select the previous window", func(k switcherKeyNames) string { return k.Prev }))
	switcherCmd.AddCommand(keyCommand("confirm", "Focus the selected window and close", func(k switcherKeyNames) string { return k.Confirm }))
	switcherCmd.AddCommand(keyCommand("close", "Close the selected window", func(k switcherKeyNames) string { return k.Close }))
	switcherCmd.AddCommand(keyCommand("exit", "Close the switcher without switching", func(k switcherKeyNames) string { return k.Exit }))
	switcherCmd.AddCommand(switcherKeyCmd)
	switcherCmd.AddCommand(switcherWheelCmd)
	switcherCmd.AddCommand(switcherPressCmd)
	switcherCmd.AddCommand(switcherStateCmd)

	rootCmd.AddCommand(switcherCmd)
}

func switcherStateRun(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, c *dbus.Client) error {
		snap, err := c.SwitcherState(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	})
}
