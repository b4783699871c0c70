package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/taskdock/internal/dbus"
)

var popupOpts struct {
	immediate bool
}

// popupCmd represents the popup command group.
var popupCmd = &cobra.Command{
	Use:   "popup",
	Short: "Coordinate popups with taskdockd",
	Long: `Register, show and hide popups through taskdockd's popup coordinator.

Only one popup is open at a time: showing a popup asks every other open
popup to close. External popups register an id, then listen for
PeerShow and PeerCloseRequested signals on the session bus.`,
}

var popupRegisterCmd = &cobra.Command{
	Use:   "register <id>",
	Short: "Register an external popup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			return c.PopupRegister(ctx, args[0])
		})
	},
}

var popupUnregisterCmd = &cobra.Command{
	Use:   "unregister <id>",
	Short: "Remove an external popup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			return c.PopupUnregister(ctx, args[0])
		})
	},
}

var popupShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a popup, closing the others",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			shown, err := c.PopupShow(ctx, args[0])
			if err != nil {
				return err
			}
			if !shown {
				return fmt.Errorf("popup %s was not shown: another popup holds the latch", args[0])
			}
			return nil
		})
	},
}

var popupHideCmd = &cobra.Command{
	Use:   "hide <id>",
	Short: "Hide a popup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			return c.PopupHide(ctx, args[0], popupOpts.immediate)
		})
	},
}

var clickCmd = &cobra.Command{
	Use:   "click [target]",
	Short: "Report a pointer press",
	Long: `Report a pointer press to taskdockd. A press outside every popup (no
target) closes them all; a press on a popup id keeps that popup open.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := ""
		if len(args) > 0 {
			target = args[0]
		}
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			return c.Click(ctx, target)
		})
	},
}

// hoverCmd represents the hover command group.
var hoverCmd = &cobra.Command{
	Use:   "hover",
	Short: "Report taskbar hover events",
	Long: `Report pointer hover over taskbar buttons. Hovering a program with more
than one instance opens the instance selector after the show delay.`,
}

var hoverEnterCmd = &cobra.Command{
	Use:   "enter <program> <anchor>",
	Short: "Pointer entered a program's button",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			return c.HoverEnter(ctx, args[0], args[1])
		})
	},
}

var hoverLeaveCmd = &cobra.Command{
	Use:   "leave <program>",
	Short: "Pointer left a program's button",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			return c.HoverLeave(ctx, args[0])
		})
	},
}

var hoverDetachCmd = &cobra.Command{
	Use:   "detach <anchor>",
	Short: "An anchor button was removed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			return c.DetachAnchor(ctx, args[0])
		})
	},
}

// instanceCmd represents the instance command group.
var instanceCmd = &cobra.Command{
	Use:   "instance",
	Short: "Act on a single program instance",
}

// instanceArgs parses "<pid> [window-id]".
func instanceArgs(args []string) (int, string, error) {
	pid, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, "", fmt.Errorf("invalid pid %q: %w", args[0], err)
	}
	windowID := ""
	if len(args) > 1 {
		windowID = args[1]
	}
	return pid, windowID, nil
}

var instanceActivateCmd = &cobra.Command{
	Use:   "activate <pid> [window-id]",
	Short: "Focus an instance",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, windowID, err := instanceArgs(args)
		if err != nil {
			return err
		}
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			return c.SelectorActivate(ctx, pid, windowID)
		})
	},
}

var instanceCloseCmd = &cobra.Command{
	Use:   "close <pid> [window-id]",
	Short: "Close an instance's window, or end a windowless process",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, windowID, err := instanceArgs(args)
		if err != nil {
			return err
		}
		return withClient(func(ctx context.Context, c *dbus.Client) error {
			return c.SelectorClose(ctx, pid, windowID)
		})
	},
}

func init() {
	popupHideCmd.Flags().BoolVar(&popupOpts.immediate, "immediate", false,
		"Hide without the closing animation")

	popupCmd.AddCommand(popupRegisterCmd)
	popupCmd.AddCommand(popupUnregisterCmd)
	popupCmd.AddCommand(popupShowCmd)
	popupCmd.AddCommand(popupHideCmd)

	hoverCmd.AddCommand(hoverEnterCmd)
	hoverCmd.AddCommand(hoverLeaveCmd)
	hoverCmd.AddCommand(hoverDetachCmd)

	instanceCmd.AddCommand(instanceActivateCmd)
	instanceCmd.AddCommand(instanceCloseCmd)

	rootCmd.AddCommand(popupCmd)
	rootCmd.AddCommand(hoverCmd)
	rootCmd.AddCommand(clickCmd)
	rootCmd.AddCommand(instanceCmd)
}
