// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultFormat      = "plain"
	DefaultDmenuTmpl   = "{{.Index}} | {{.Name}}{{if .IsRunning}} ({{.Count}}){{end}}{{with .Title}} - {{truncate . 50}}{{end}}"
	DefaultStatusTmpl  = "{{.Running}}"
	DefaultTooltipTmpl = "{{range .Programs}}{{.Name}}: {{.Count}}\n{{end}}"
	DefaultTUIRefresh  = Duration(2 * time.Second)
)

// Config represents the taskdock CLI configuration.
type Config struct {
	Programs  ProgramsConfig  `toml:"programs"`
	Templates TemplatesConfig `toml:"templates"`
	TUI       TUIConfig       `toml:"tui"`
}

// ProgramsConfig holds default options for `taskdock programs`.
type ProgramsConfig struct {
	Format      string `toml:"format"`       // plain, json, yaml, dmenu, pids
	RunningOnly bool   `toml:"running_only"` // Hide pinned programs that are not running
	Limit       int    `toml:"limit"`        // Max programs (0 = unlimited)
}

// TemplatesConfig holds output templates.
type TemplatesConfig struct {
	Dmenu   string            `toml:"dmenu"`
	Plain   string            `toml:"plain"` // Empty = built-in layout
	Status  string            `toml:"status"`
	Tooltip string            `toml:"tooltip"`
	Custom  map[string]string `toml:"custom"`
}

// TUIConfig holds TUI-specific settings.
type TUIConfig struct {
	ShowHelp   bool     `toml:"show_help"`
	ShowTitles bool     `toml:"show_titles"`
	Refresh    Duration `toml:"refresh"` // Fallback poll when signals are unavailable
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Programs: ProgramsConfig{
			Format: DefaultFormat,
		},
		Templates: TemplatesConfig{
			Dmenu:   DefaultDmenuTmpl,
			Status:  DefaultStatusTmpl,
			Tooltip: DefaultTooltipTmpl,
			Custom:  make(map[string]string),
		},
		TUI: TUIConfig{
			ShowHelp:   true,
			ShowTitles: true,
			Refresh:    DefaultTUIRefresh,
		},
	}
}

// configHome returns XDG_CONFIG_HOME, falling back to ~/.config.
func configHome() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "taskdock")
}

// ConfigPath returns the path to the CLI config file.
func ConfigPath() string {
	return filepath.Join(configHome(), "config.toml")
}

// PinnedPath returns the path to the pinned programs file.
func PinnedPath() string {
	return filepath.Join(configHome(), "pinned.toml")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Templates.Custom == nil {
		cfg.Templates.Custom = make(map[string]string)
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetTemplate returns the template for the given name.
// First checks custom templates, then built-in ones.
// Returns empty string if not found.
func (c *Config) GetTemplate(name string) string {
	if tmpl, ok := c.Templates.Custom[name]; ok {
		return tmpl
	}

	switch name {
	case "dmenu":
		return c.Templates.Dmenu
	case "plain":
		return c.Templates.Plain
	case "status":
		return c.Templates.Status
	case "tooltip":
		return c.Templates.Tooltip
	default:
		return ""
	}
}
