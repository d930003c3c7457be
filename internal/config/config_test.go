package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAlertConfig_Duration(t *testing.T) {
	tests := []struct {
		name    string
		alert   AlertConfig
		want    time.Duration
		wantErr bool
	}{
		{
			name:  "seconds",
			alert: AlertConfig{Value: 30, Unit: "seconds"},
			want:  30 * time.Second,
		},
		{
			name:  "minutes",
			alert: AlertConfig{Value: 5, Unit: "minutes"},
			want:  5 * time.Minute,
		},
		{
			name:  "hours",
			alert: AlertConfig{Value: 2, Unit: "hours"},
			want:  2 * time.Hour,
		},
		{
			name:  "days",
			alert: AlertConfig{Value: 1, Unit: "days"},
			want:  24 * time.Hour,
		},
		{
			name:  "iso minutes",
			alert: AlertConfig{Before: "PT15M"},
			want:  15 * time.Minute,
		},
		{
			name:  "iso hours and minutes",
			alert: AlertConfig{Before: "PT1H30M"},
			want:  90 * time.Minute,
		},
		{
			name:  "iso day",
			alert: AlertConfig{Before: "P1D"},
			want:  24 * time.Hour,
		},
		{
			name:  "iso takes precedence",
			alert: AlertConfig{Value: 5, Unit: "minutes", Before: "PT10M"},
			want:  10 * time.Minute,
		},
		{
			name:    "invalid iso",
			alert:   AlertConfig{Before: "fifteen minutes"},
			wantErr: true,
		},
		{
			name:    "invalid unit",
			alert:   AlertConfig{Value: 5, Unit: "weeks"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.alert.Duration()
			if (err != nil) != tt.wantErr {
				t.Errorf("AlertConfig.Duration() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("AlertConfig.Duration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDirectoryConfig_ExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("Failed to get home directory: %v", err)
	}

	tests := []struct {
		name     string
		dir      DirectoryConfig
		expected string
	}{
		{
			name:     "tilde expansion",
			dir:      DirectoryConfig{Directory: "~/.schedules"},
			expected: filepath.Join(homeDir, ".schedules"),
		},
		{
			name:     "absolute path",
			dir:      DirectoryConfig{Directory: "/tmp/schedules"},
			expected: "/tmp/schedules",
		},
		{
			name:     "relative path",
			dir:      DirectoryConfig{Directory: "schedules"},
			expected: "schedules",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.dir.ExpandPath()
			if err != nil {
				t.Errorf("DirectoryConfig.ExpandPath() error = %v", err)
				return
			}
			if tt.dir.Directory != tt.expected {
				t.Errorf("DirectoryConfig.ExpandPath() = %v, want %v", tt.dir.Directory, tt.expected)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tempDir := t.TempDir()

	valid := func() Config {
		return Config{
			DaysAhead: 14,
			Refresh:   "*/15 * * * *",
			Directories: []DirectoryConfig{
				{
					Directory: tempDir,
					Template:  "default.tpl",
					AutomaticAlerts: []AlertConfig{
						{Value: 5, Unit: "minutes"},
						{Before: "PT1H"},
					},
				},
			},
			Notification: NotificationConfig{
				Backend:  "notify-send",
				Duration: 5000,
			},
			Logging: LoggingConfig{
				Level: "info",
			},
		}
	}

	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{
			name:   "valid config",
			modify: func(c *Config) {},
		},
		{
			name:   "utc timezone",
			modify: func(c *Config) { c.Timezone = "UTC" },
		},
		{
			name:    "unknown timezone",
			modify:  func(c *Config) { c.Timezone = "Mars/Olympus_Mons" },
			wantErr: true,
		},
		{
			name:    "no directories",
			modify:  func(c *Config) { c.Directories = nil },
			wantErr: true,
		},
		{
			name:    "empty directory path",
			modify:  func(c *Config) { c.Directories[0].Directory = "" },
			wantErr: true,
		},
		{
			name:    "nonexistent directory",
			modify:  func(c *Config) { c.Directories[0].Directory = "/nonexistent/path" },
			wantErr: true,
		},
		{
			name: "invalid alert value",
			modify: func(c *Config) {
				c.Directories[0].AutomaticAlerts = []AlertConfig{{Value: -5, Unit: "minutes"}}
			},
			wantErr: true,
		},
		{
			name: "invalid alert unit",
			modify: func(c *Config) {
				c.Directories[0].AutomaticAlerts = []AlertConfig{{Value: 5, Unit: "weeks"}}
			},
			wantErr: true,
		},
		{
			name: "zero iso lead",
			modify: func(c *Config) {
				c.Directories[0].AutomaticAlerts = []AlertConfig{{Before: "PT0M"}}
			},
			wantErr: true,
		},
		{
			name:    "invalid refresh",
			modify:  func(c *Config) { c.Refresh = "every now and then" },
			wantErr: true,
		},
		{
			name:    "too many days ahead",
			modify:  func(c *Config) { c.DaysAhead = 1000 },
			wantErr: true,
		},
		{
			name:    "unknown backend",
			modify:  func(c *Config) { c.Notification.Backend = "pager" },
			wantErr: true,
		},
		{
			name:    "invalid logging level",
			modify:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.modify(&config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateFillsDefaults(t *testing.T) {
	config := Config{
		Directories: []DirectoryConfig{{Directory: t.TempDir()}},
	}
	if err := config.Validate(); err != nil {
		t.Fatalf("Config.Validate() error = %v", err)
	}

	if config.DaysAhead != 7 {
		t.Errorf("DaysAhead = %d, want 7", config.DaysAhead)
	}
	if config.Refresh != "@hourly" {
		t.Errorf("Refresh = %q, want @hourly", config.Refresh)
	}
	if config.Notification.Backend != "dbus" {
		t.Errorf("Backend = %q, want dbus", config.Notification.Backend)
	}
	if config.Logging.Level != "info" {
		t.Errorf("Level = %q, want info", config.Logging.Level)
	}
	loc, err := config.Location()
	if err != nil || loc != time.Local {
		t.Errorf("Location() = %v, %v; want local", loc, err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "config.yaml")

	content := `timezone: UTC
days_ahead: 3
refresh: "0 * * * *"
directories:
  - directory: ` + tempDir + `
    template: minimal.tpl
    automatic_alerts:
      - before: PT10M
      - value: 1
        unit: hours
        important: true
notification:
  backend: notify-send
  duration: 0
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if config.DaysAhead != 3 || config.Timezone != "UTC" {
		t.Errorf("unexpected config %+v", config)
	}
	alerts := config.Directories[0].AutomaticAlerts
	if len(alerts) != 2 || alerts[0].Before != "PT10M" || !alerts[1].Important {
		t.Errorf("unexpected alerts %+v", alerts)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", config.Logging.Level)
	}
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"malformed yaml", "directories: [\n"},
		{"fails validation", "directories: []\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tempDir, tt.name+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}
			if _, err := LoadFromFile(path); err == nil {
				t.Error("LoadFromFile() should fail")
			}
		})
	}

	if _, err := LoadFromFile(filepath.Join(tempDir, "missing.yaml")); err == nil {
		t.Error("LoadFromFile() should fail for a missing file")
	}
}

func TestWriteConfig_RoundTrip(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "nested", "config.yaml")

	config := DefaultConfig()
	config.Directories[0].Directory = tempDir
	if err := WriteConfig(path, config); err != nil {
		t.Fatalf("WriteConfig() error = %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Directories[0].AutomaticAlerts[0].Before != "PT15M" {
		t.Errorf("alerts = %+v", loaded.Directories[0].AutomaticAlerts)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if len(config.Directories) != 1 {
		t.Errorf("DefaultConfig() should have 1 directory, got %d", len(config.Directories))
	}

	if config.Notification.Backend != "dbus" {
		t.Errorf("DefaultConfig() notification backend = %v, want dbus", config.Notification.Backend)
	}

	if config.Logging.Level != "info" {
		t.Errorf("DefaultConfig() logging level = %v, want info", config.Logging.Level)
	}

	if config.DaysAhead != 7 {
		t.Errorf("DefaultConfig() days ahead = %d, want 7", config.DaysAhead)
	}
}
