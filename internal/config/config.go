package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	duration "github.com/ChannelMeter/iso8601duration"
	"github.com/adrg/xdg"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// AppName names the XDG config and state subdirectories
const AppName = "schedwatch"

// Config represents the application configuration
type Config struct {
	Timezone     string             `yaml:"timezone,omitempty"`
	DaysAhead    int                `yaml:"days_ahead"`
	Refresh      string             `yaml:"refresh"`
	Directories  []DirectoryConfig  `yaml:"directories"`
	Notification NotificationConfig `yaml:"notification"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// DirectoryConfig represents one directory of schedule catalogs
type DirectoryConfig struct {
	Directory       string        `yaml:"directory"`
	Template        string        `yaml:"template"`
	AutomaticAlerts []AlertConfig `yaml:"automatic_alerts"`
}

// AlertConfig represents an alert lead time. Either Before holds an
// ISO 8601 duration such as "PT15M", or Value and Unit are set.
type AlertConfig struct {
	Value     int    `yaml:"value,omitempty"`
	Unit      string `yaml:"unit,omitempty"`
	Before    string `yaml:"before,omitempty"`
	Important bool   `yaml:"important,omitempty"`
}

// NotificationConfig represents notification system configuration
type NotificationConfig struct {
	Backend  string `yaml:"backend"`
	Duration int    `yaml:"duration"` // milliseconds, 0 means until dismissed
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// Duration converts AlertConfig to time.Duration
func (a AlertConfig) Duration() (time.Duration, error) {
	if a.Before != "" {
		d, err := duration.FromString(a.Before)
		if err != nil {
			return 0, fmt.Errorf("invalid ISO 8601 duration %q: %w", a.Before, err)
		}
		return d.ToDuration(), nil
	}

	switch a.Unit {
	case "seconds", "second", "s":
		return time.Duration(a.Value) * time.Second, nil
	case "minutes", "minute", "m":
		return time.Duration(a.Value) * time.Minute, nil
	case "hours", "hour", "h":
		return time.Duration(a.Value) * time.Hour, nil
	case "days", "day", "d":
		return time.Duration(a.Value) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported time unit: %s", a.Unit)
	}
}

// ExpandPath expands ~ and environment variables in paths
func (d *DirectoryConfig) ExpandPath() error {
	expanded := os.ExpandEnv(d.Directory)
	if len(expanded) > 0 && expanded[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		expanded = filepath.Join(homeDir, expanded[1:])
	}
	d.Directory = expanded
	return nil
}

// Location returns the configured timezone, or the local one when unset
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks if the configuration is valid and fills in defaults
func (c *Config) Validate() error {
	if len(c.Directories) == 0 {
		return fmt.Errorf("at least one directory must be configured")
	}

	if c.DaysAhead == 0 {
		c.DaysAhead = 7
	}
	if c.DaysAhead < 0 || c.DaysAhead > 366 {
		return fmt.Errorf("days_ahead must be between 1 and 366, got %d", c.DaysAhead)
	}

	if c.Refresh == "" {
		c.Refresh = "@hourly"
	}
	if _, err := cron.ParseStandard(c.Refresh); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", c.Refresh, err)
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	for i, dir := range c.Directories {
		if dir.Directory == "" {
			return fmt.Errorf("directory %d: directory path cannot be empty", i)
		}

		// Expand path for validation
		if err := c.Directories[i].ExpandPath(); err != nil {
			return fmt.Errorf("directory %d: %w", i, err)
		}

		// Check if directory exists
		if _, err := os.Stat(c.Directories[i].Directory); os.IsNotExist(err) {
			return fmt.Errorf("directory %d: directory does not exist: %s", i, c.Directories[i].Directory)
		}

		for j, alert := range dir.AutomaticAlerts {
			if alert.Before == "" && alert.Value <= 0 {
				return fmt.Errorf("directory %d, alert %d: value must be positive", i, j)
			}
			d, err := alert.Duration()
			if err != nil {
				return fmt.Errorf("directory %d, alert %d: %w", i, j, err)
			}
			if d <= 0 {
				return fmt.Errorf("directory %d, alert %d: lead time must be positive", i, j)
			}
		}
	}

	switch c.Notification.Backend {
	case "":
		c.Notification.Backend = "dbus"
	case "dbus", "notify-send":
	default:
		return fmt.Errorf("unsupported notification backend: %s", c.Notification.Backend)
	}
	if c.Notification.Duration < 0 {
		return fmt.Errorf("notification duration cannot be negative")
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	return nil
}

// Path returns the config file location, preferring an existing file
func Path() (string, error) {
	configPath, err := xdg.SearchConfigFile(filepath.Join(AppName, "config.yaml"))
	if err == nil {
		return configPath, nil
	}
	configPath, err = xdg.ConfigFile(filepath.Join(AppName, "config.yaml"))
	if err != nil {
		return "", fmt.Errorf("failed to determine config file path: %w", err)
	}
	return configPath, nil
}

// Load loads configuration from XDG-compliant locations
func Load() (*Config, error) {
	configPath, err := Path()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at %s", configPath)
	}

	return LoadFromFile(configPath)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DaysAhead: 7,
		Refresh:   "@hourly",
		Directories: []DirectoryConfig{
			{
				Directory: "~/.schedules",
				Template:  "default.tpl",
				AutomaticAlerts: []AlertConfig{
					{Before: "PT15M"},
				},
			},
		},
		Notification: NotificationConfig{
			Backend:  "dbus",
			Duration: 5000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// WriteDefaultConfig writes a default configuration to the XDG config directory
func WriteDefaultConfig() (string, error) {
	configPath, err := xdg.ConfigFile(filepath.Join(AppName, "config.yaml"))
	if err != nil {
		return "", fmt.Errorf("failed to determine config file path: %w", err)
	}
	return configPath, WriteConfig(configPath, DefaultConfig())
}

// WriteConfig marshals config to path, creating parent directories
func WriteConfig(path string, config *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
