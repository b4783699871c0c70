package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "300ms", "2s", "1m", or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '300ms', '2s', '1m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Milliseconds returns the duration in milliseconds.
func (d Duration) Milliseconds() int {
	return int(time.Duration(d).Milliseconds())
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DaemonConfig is the configuration for taskdockd.
// Loaded from ~/.config/taskdock/daemon.toml
type DaemonConfig struct {
	Selector  SelectorConfig  `toml:"selector"`
	Popup     PopupConfig     `toml:"popup"`
	Switcher  SwitcherConfig  `toml:"switcher"`
	Aggregate AggregateConfig `toml:"aggregate"`
	Backend   BackendConfig   `toml:"backend"`
}

// SelectorConfig contains instance selector timing.
type SelectorConfig struct {
	ShowDelay    Duration `toml:"show_delay"`    // Hover time before the selector opens
	HideDelay    Duration `toml:"hide_delay"`    // Grace period after the pointer leaves
	RetryBackoff Duration `toml:"retry_backoff"` // Wait before retrying a blocked show
	SettleDelay  Duration `toml:"settle_delay"`  // Wait after an action before re-showing
	MaxRetries   int      `toml:"max_retries"`
}

// PopupConfig contains shared overlay settings.
type PopupConfig struct {
	ShowAnimation Duration `toml:"show_animation"`
	HideAnimation Duration `toml:"hide_animation"`
	LauncherID    string   `toml:"launcher_id"` // Popup latched while the switcher is open
}

// SwitcherConfig contains task switcher settings.
type SwitcherConfig struct {
	WheelThreshold   float64    `toml:"wheel_threshold"`    // Accumulated |deltaY| per step
	WheelMinInterval Duration   `toml:"wheel_min_interval"` // Minimum time between steps
	FadeOut          Duration   `toml:"fade_out"`
	Keys             KeysConfig `toml:"keys"`
}

// KeysConfig maps switcher commands to key names.
type KeysConfig struct {
	Next    string `toml:"next"`
	Prev    string `toml:"prev"`
	Confirm string `toml:"confirm"`
	Close   string `toml:"close"`
	Exit    string `toml:"exit"`
}

// AggregateConfig contains program aggregation settings.
type AggregateConfig struct {
	RefreshInterval    Duration `toml:"refresh_interval"`
	CLIShells          []string `toml:"cli_shells"`          // Terminal shells hidden from the taskbar
	BackgroundPrograms []string `toml:"background_programs"` // Shown only while they own a window
}

// BackendConfig selects the registry implementations.
type BackendConfig struct {
	Windows      string `toml:"windows"`   // "x11" or "none"
	Processes    string `toml:"processes"` // "procfs" or "none"
	Display      string `toml:"display"`   // X display, empty = $DISPLAY
	ProcRoot     string `toml:"proc_root"`
	ProtectedPID int    `toml:"protected_pid"` // Never killed; 0 = the daemon itself
}

// Backend names.
const (
	BackendNone   = "none"
	BackendX11    = "x11"
	BackendProcFS = "procfs"
)

// DefaultDaemonConfig returns a new DaemonConfig with default values.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		Selector: SelectorConfig{
			ShowDelay:    Duration(300 * time.Millisecond),
			HideDelay:    Duration(200 * time.Millisecond),
			RetryBackoff: Duration(400 * time.Millisecond),
			SettleDelay:  Duration(450 * time.Millisecond),
			MaxRetries:   10,
		},
		Popup: PopupConfig{
			ShowAnimation: Duration(150 * time.Millisecond),
			HideAnimation: Duration(150 * time.Millisecond),
			LauncherID:    "launcher",
		},
		Switcher: SwitcherConfig{
			WheelThreshold:   50,
			WheelMinInterval: Duration(100 * time.Millisecond),
			FadeOut:          Duration(200 * time.Millisecond),
			Keys: KeysConfig{
				Next:    "Tab",
				Prev:    "shift+Tab",
				Confirm: "Return",
				Close:   "ctrl+w",
				Exit:    "Escape",
			},
		},
		Aggregate: AggregateConfig{
			RefreshInterval:    Duration(time.Second),
			CLIShells:          []string{"bash", "zsh", "fish", "sh", "dash"},
			BackgroundPrograms: []string{},
		},
		Backend: BackendConfig{
			Windows:   BackendX11,
			Processes: BackendProcFS,
			ProcRoot:  "/proc",
		},
	}
}

// DaemonConfigPath returns the path to the daemon config file.
func DaemonConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "taskdock", "daemon.toml"), nil
}

// LoadDaemonConfig loads the daemon configuration from path, or from the
// default location when path is empty. A missing file yields the defaults.
func LoadDaemonConfig(path string) (*DaemonConfig, error) {
	if path == "" {
		p, err := DaemonConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultDaemonConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay with file contents
	config := DefaultDaemonConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveDaemonConfig saves the daemon configuration to path, or to the
// default location when path is empty.
func SaveDaemonConfig(path string, config *DaemonConfig) error {
	if path == "" {
		p, err := DaemonConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *DaemonConfig) Validate() error {
	durations := []struct {
		name string
		d    Duration
	}{
		{"selector.show_delay", c.Selector.ShowDelay},
		{"selector.hide_delay", c.Selector.HideDelay},
		{"selector.retry_backoff", c.Selector.RetryBackoff},
		{"selector.settle_delay", c.Selector.SettleDelay},
		{"popup.show_animation", c.Popup.ShowAnimation},
		{"popup.hide_animation", c.Popup.HideAnimation},
		{"switcher.wheel_min_interval", c.Switcher.WheelMinInterval},
		{"switcher.fade_out", c.Switcher.FadeOut},
	}
	for _, d := range durations {
		if d.d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", d.name, d.d.Duration())
		}
	}

	if c.Selector.RetryBackoff == 0 {
		return fmt.Errorf("selector.retry_backoff must be positive")
	}
	if c.Selector.MaxRetries < 0 {
		return fmt.Errorf("selector.max_retries must not be negative, got %d", c.Selector.MaxRetries)
	}
	if c.Aggregate.RefreshInterval.Duration() < 100*time.Millisecond {
		return fmt.Errorf("aggregate.refresh_interval must be at least 100ms, got %s", c.Aggregate.RefreshInterval.Duration())
	}
	if c.Switcher.WheelThreshold <= 0 {
		return fmt.Errorf("switcher.wheel_threshold must be positive, got %g", c.Switcher.WheelThreshold)
	}
	if strings.TrimSpace(c.Popup.LauncherID) == "" {
		return fmt.Errorf("popup.launcher_id must not be empty")
	}

	keys := c.Switcher.Keys
	bound := make(map[string]string)
	for _, k := range []struct{ name, key string }{
		{"next", keys.Next},
		{"prev", keys.Prev},
		{"confirm", keys.Confirm},
		{"close", keys.Close},
		{"exit", keys.Exit},
	} {
		if k.key == "" {
			return fmt.Errorf("switcher.keys.%s must not be empty", k.name)
		}
		folded := strings.ToLower(k.key)
		if other, ok := bound[folded]; ok {
			return fmt.Errorf("switcher.keys.%s and switcher.keys.%s are both bound to %q", other, k.name, k.key)
		}
		bound[folded] = k.name
	}

	if !slices.Contains([]string{BackendX11, BackendNone}, c.Backend.Windows) {
		return fmt.Errorf("invalid windows backend %q, must be one of: %v", c.Backend.Windows, []string{BackendX11, BackendNone})
	}
	if !slices.Contains([]string{BackendProcFS, BackendNone}, c.Backend.Processes) {
		return fmt.Errorf("invalid processes backend %q, must be one of: %v", c.Backend.Processes, []string{BackendProcFS, BackendNone})
	}
	if c.Backend.ProtectedPID < 0 {
		return fmt.Errorf("backend.protected_pid must not be negative, got %d", c.Backend.ProtectedPID)
	}

	return nil
}
