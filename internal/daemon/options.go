package daemon

import (
	"github.com/jmylchreest/taskdock/internal/config"
	"github.com/jmylchreest/taskdock/internal/selector"
	"github.com/jmylchreest/taskdock/internal/switcher"
)

// SelectorOptions maps the daemon config onto selector timing.
func SelectorOptions(cfg *config.DaemonConfig) selector.Options {
	return selector.Options{
		ShowDelay:     cfg.Selector.ShowDelay.Duration(),
		HideDelay:     cfg.Selector.HideDelay.Duration(),
		RetryBackoff:  cfg.Selector.RetryBackoff.Duration(),
		SettleDelay:   cfg.Selector.SettleDelay.Duration(),
		ShowAnimation: cfg.Popup.ShowAnimation.Duration(),
		HideAnimation: cfg.Popup.HideAnimation.Duration(),
		MaxRetries:    cfg.Selector.MaxRetries,
	}
}

// SwitcherOptions maps the daemon config onto switcher settings.
func SwitcherOptions(cfg *config.DaemonConfig) switcher.Options {
	keys := cfg.Switcher.Keys
	return switcher.Options{
		WheelThreshold:   cfg.Switcher.WheelThreshold,
		WheelMinInterval: cfg.Switcher.WheelMinInterval.Duration(),
		FadeOut:          cfg.Switcher.FadeOut.Duration(),
		LauncherID:       cfg.Popup.LauncherID,
		Suppress:         []string{selector.PopupID},
		Keys: switcher.Keys{
			Next:    keys.Next,
			Prev:    keys.Prev,
			Confirm: keys.Confirm,
			Close:   keys.Close,
			Exit:    keys.Exit,
		},
	}
}
