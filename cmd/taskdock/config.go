package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/taskdock/internal/config"
)

var configOpts struct {
	force bool
}

// configCmd represents the config command group.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write default config files",
	Long: `Write the default CLI config (config.toml) and daemon config
(daemon.toml). Existing files are kept unless --force is given.`,
	RunE: runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print config file locations",
	RunE: func(cmd *cobra.Command, args []string) error {
		daemonPath, err := daemonConfigPath()
		if err != nil {
			return err
		}
		fmt.Println("config:", cliConfigPath())
		fmt.Println("daemon:", daemonPath)
		fmt.Println("pinned:", config.PinnedPath())
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configOpts.force, "force", false,
		"Overwrite existing files")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func cliConfigPath() string {
	if globalOpts.configPath != "" {
		return globalOpts.configPath
	}
	return config.ConfigPath()
}

func daemonConfigPath() (string, error) {
	if globalOpts.daemonConfigPath != "" {
		return globalOpts.daemonConfigPath, nil
	}
	return config.DaemonConfigPath()
}

// shouldWrite reports whether path may be written.
func shouldWrite(path string) (bool, error) {
	if configOpts.force {
		return true, nil
	}
	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	fmt.Println("exists, skipping:", path)
	return false, nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := cliConfigPath()
	ok, err := shouldWrite(path)
	if err != nil {
		return err
	}
	if ok {
		if err := config.DefaultConfig().Save(path); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Println("wrote", path)
	}

	daemonPath, err := daemonConfigPath()
	if err != nil {
		return err
	}
	ok, err = shouldWrite(daemonPath)
	if err != nil {
		return err
	}
	if ok {
		if err := config.SaveDaemonConfig(daemonPath, config.DefaultDaemonConfig()); err != nil {
			return fmt.Errorf("failed to write %s: %w", daemonPath, err)
		}
		fmt.Println("wrote", daemonPath)
	}
	return nil
}
