package main

import (
	"github.com/jmylchreest/taskdock/internal/config"
)

// switcherKeyNames are the key names taskdockd binds switcher commands to.
type switcherKeyNames = config.KeysConfig

// daemonKeys returns the switcher bindings from the daemon config so the
// CLI sends the keys taskdockd expects. Defaults are used when the config
// cannot be read.
func daemonKeys() switcherKeyNames {
	dcfg, err := config.LoadDaemonConfig(globalOpts.daemonConfigPath)
	if err != nil {
		logger.Debug("using default switcher keys", "error", err)
		dcfg = config.DefaultDaemonConfig()
	}
	return dcfg.Switcher.Keys
}
