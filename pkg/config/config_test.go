package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := []byte(`
environment: development
log_level: debug
poller:
  endpoint: http://10.0.0.5:5050/data
  interval: 3s
  timeout: 2s
  max_in_flight: 1
display:
  title: 開票直播
  palette: ["#111111", "#222222"]
server:
  addr: 0.0.0.0:9090
settings:
  path: ` + filepath.Join(tmpDir, "settings.yaml") + `
`)

	err := os.WriteFile(configPath, configContent, 0644)
	require.NoError(t, err)

	// Test successful config loading
	t.Run("LoadValidConfig", func(t *testing.T) {
		cfg, err := Load(configPath)
		require.NoError(t, err)
		assert.NotNil(t, cfg)

		// Verify loaded values
		assert.Equal(t, "development", cfg.Environment)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "http://10.0.0.5:5050/data", cfg.Poller.Endpoint)
		assert.Equal(t, 3*time.Second, cfg.Poller.Interval)
		assert.Equal(t, 2*time.Second, cfg.Poller.Timeout)
		assert.Equal(t, 1, cfg.Poller.MaxInFlight)
		assert.Equal(t, "開票直播", cfg.Display.Title)
		assert.Equal(t, []string{"#111111", "#222222"}, cfg.Display.Palette)
		assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr)
	})

	// Test environment variable override
	t.Run("EnvironmentOverride", func(t *testing.T) {
		t.Setenv("BOARD_LOG_LEVEL", "error")
		t.Setenv("BOARD_POLLER_INTERVAL", "5s")

		cfg, err := Load(configPath)
		require.NoError(t, err)
		assert.Equal(t, "error", cfg.LogLevel)
		assert.Equal(t, 5*time.Second, cfg.Poller.Interval)
	})

	t.Run("EndpointShortEnv", func(t *testing.T) {
		t.Setenv("BOARD_ENDPOINT", "http://example.test/results")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "http://example.test/results", cfg.Poller.Endpoint)
		assert.True(t, cfg.Poller.PinEndpoint)
	})

	// Test invalid config file
	t.Run("InvalidConfig", func(t *testing.T) {
		invalidPath := filepath.Join(tmpDir, "invalid.yaml")
		err := os.WriteFile(invalidPath, []byte("invalid: [yaml: syntax"), 0644)
		require.NoError(t, err)

		cfg, err := Load(invalidPath)
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	// Test missing config file falls back to defaults
	t.Run("DefaultValues", func(t *testing.T) {
		cfg, err := Load(filepath.Join(tmpDir, "nonexistent.yaml"))
		require.NoError(t, err)
		assert.NotNil(t, cfg)

		// Check default values
		assert.Equal(t, "production", cfg.Environment)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, DefaultEndpoint, cfg.Poller.Endpoint)
		assert.False(t, cfg.Poller.PinEndpoint)
		assert.Equal(t, time.Second, cfg.Poller.Interval)
		assert.Equal(t, "#D0DCEC", cfg.Display.PlaceholderColor)
		assert.Len(t, cfg.Display.Palette, 3)
	})

	t.Run("BoundFlagsWin", func(t *testing.T) {
		v := viper.New()
		v.Set("poller.interval", "4s")

		cfg, err := LoadFrom(v, configPath)
		require.NoError(t, err)
		assert.Equal(t, 4*time.Second, cfg.Poller.Interval)
	})
}

func validConfig() *Config {
	return &Config{
		Environment: "test",
		LogLevel:    "info",
		Poller: PollerConfig{
			Endpoint:     DefaultEndpoint,
			Interval:     time.Second,
			Timeout:      time.Second,
			MaxInFlight:  2,
			MaxBodyBytes: 1024,
		},
		Display: DisplayConfig{
			Palette:          []string{"#000"},
			PlaceholderColor: "#fff",
			ClockInterval:    time.Second,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			WriteTimeout: time.Second,
		},
		Scheduler: SchedConfig{MaxConcurrent: 1},
		Settings:  SettingsConfig{Path: "settings.yaml"},
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name         string
		modifyConfig func(*Config)
		wantErr      bool
		errSubstr    string
	}{
		{
			name:         "ValidConfig",
			modifyConfig: func(c *Config) {},
			wantErr:      false,
		},
		{
			name: "RelativeEndpoint",
			modifyConfig: func(c *Config) {
				c.Poller.Endpoint = "/data"
			},
			wantErr:   true,
			errSubstr: "scheme must be http or https",
		},
		{
			name: "FileEndpoint",
			modifyConfig: func(c *Config) {
				c.Poller.Endpoint = "file:///tmp/data.json"
			},
			wantErr:   true,
			errSubstr: "scheme",
		},
		{
			name: "SubSecondInterval",
			modifyConfig: func(c *Config) {
				c.Poller.Interval = 500 * time.Millisecond
			},
			wantErr:   true,
			errSubstr: "interval must be at least 1s",
		},
		{
			name: "ZeroTimeout",
			modifyConfig: func(c *Config) {
				c.Poller.Timeout = 0
			},
			wantErr:   true,
			errSubstr: "timeout must be positive",
		},
		{
			name: "NoInFlight",
			modifyConfig: func(c *Config) {
				c.Poller.MaxInFlight = 0
			},
			wantErr:   true,
			errSubstr: "max_in_flight",
		},
		{
			name: "FunctionalColors",
			modifyConfig: func(c *Config) {
				c.Display.Palette = []string{"rgb(254,234,135)", "rgba(0, 0, 0, 0.5)", "gold"}
				c.Display.PlaceholderColor = "hsl(213deg 42% 87%)"
			},
			wantErr: false,
		},
		{
			name: "InjectedPaletteColor",
			modifyConfig: func(c *Config) {
				c.Display.Palette = []string{"#000", "red; background: url(x)"}
			},
			wantErr:   true,
			errSubstr: "palette[1]",
		},
		{
			name: "BadPlaceholderColor",
			modifyConfig: func(c *Config) {
				c.Display.PlaceholderColor = "calc(1px)"
			},
			wantErr:   true,
			errSubstr: "placeholder_color",
		},
		{
			name: "EmptyPalette",
			modifyConfig: func(c *Config) {
				c.Display.Palette = nil
			},
			wantErr:   true,
			errSubstr: "palette cannot be empty",
		},
		{
			name: "EmptyAddr",
			modifyConfig: func(c *Config) {
				c.Server.Addr = ""
			},
			wantErr:   true,
			errSubstr: "addr cannot be empty",
		},
		{
			name: "NoSchedulerWorkers",
			modifyConfig: func(c *Config) {
				c.Scheduler.MaxConcurrent = 0
			},
			wantErr:   true,
			errSubstr: "max_concurrent",
		},
		{
			name: "EmptySettingsPath",
			modifyConfig: func(c *Config) {
				c.Settings.Path = ""
			},
			wantErr:   true,
			errSubstr: "path cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()

			tt.modifyConfig(cfg)
			err := cfg.Validate()

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errSubstr != "" {
					assert.Contains(t, err.Error(), tt.errSubstr)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetLogLevel(t *testing.T) {
	tests := []struct {
		name      string
		logLevel  string
		wantLevel string
	}{
		{name: "Debug", logLevel: "debug", wantLevel: "debug"},
		{name: "Info", logLevel: "info", wantLevel: "info"},
		{name: "Warn", logLevel: "warn", wantLevel: "warn"},
		{name: "Error", logLevel: "ERROR", wantLevel: "error"},
		{name: "Invalid", logLevel: "invalid", wantLevel: "info"},
		{name: "Empty", logLevel: "", wantLevel: "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}
			level := cfg.GetLogLevel()
			assert.Equal(t, tt.wantLevel, level.String())
		})
	}
}

func TestIsDevelopment(t *testing.T) {
	assert.True(t, (&Config{Environment: "Development"}).IsDevelopment())
	assert.False(t, (&Config{Environment: "production"}).IsDevelopment())
	assert.False(t, (&Config{}).IsDevelopment())
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultEndpoint, cfg.Poller.Endpoint)
	assert.Equal(t, filepath.Clean("./data/settings.yaml"), cfg.Settings.Path)
}
