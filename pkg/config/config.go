package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DefaultEndpoint is the results endpoint polled when nothing overrides it
const DefaultEndpoint = "http://127.0.0.1:5050/data"

// Config holds all configuration settings for the application
type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Log         LogConfig      `mapstructure:"log"`
	Poller      PollerConfig   `mapstructure:"poller"`
	Display     DisplayConfig  `mapstructure:"display"`
	Server      ServerConfig   `mapstructure:"server"`
	Scheduler   SchedConfig    `mapstructure:"scheduler"`
	Settings    SettingsConfig `mapstructure:"settings"`
}

// LogConfig holds log file and rotation settings
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// PollerConfig holds results endpoint polling settings
type PollerConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxInFlight  int           `mapstructure:"max_in_flight"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	// PinEndpoint makes Endpoint win over the stored settings override. It
	// is set when the endpoint comes from a flag or environment variable.
	PinEndpoint bool `mapstructure:"pin_endpoint"`
}

// DisplayConfig holds dashboard presentation settings
type DisplayConfig struct {
	Title            string        `mapstructure:"title"`
	Palette          []string      `mapstructure:"palette"`
	PlaceholderColor string        `mapstructure:"placeholder_color"`
	LogoURL          string        `mapstructure:"logo_url"`
	ElectedBadgeURL  string        `mapstructure:"elected_badge_url"`
	BannerURL        string        `mapstructure:"banner_url"`
	ClockInterval    time.Duration `mapstructure:"clock_interval"`
}

// ServerConfig holds the headless HTTP server settings
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	StaticDir      string        `mapstructure:"static_dir"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// SchedConfig holds scheduler related configuration
type SchedConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// SettingsConfig locates the persisted user settings
type SettingsConfig struct {
	Path string `mapstructure:"path"`
}

// Load reads the configuration file and environment variables
func Load(configPath string) (*Config, error) {
	return LoadFrom(viper.New(), configPath)
}

// LoadFrom is Load on a caller supplied viper instance, so command line
// flags bound to v take part in the lookup.
func LoadFrom(v *viper.Viper, configPath string) (*Config, error) {
	// Set default configuration values
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// Config file not found, will rely on defaults and env vars
		}
	}

	// Override with environment variables
	v.SetEnvPrefix("BOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("poller.endpoint", "BOARD_POLLER_ENDPOINT", "BOARD_ENDPOINT"); err != nil {
		return nil, fmt.Errorf("binding endpoint env: %w", err)
	}
	if endpointFromEnv() {
		v.Set("poller.pin_endpoint", true)
	}

	// Parse the configuration
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func endpointFromEnv() bool {
	for _, key := range []string{"BOARD_POLLER_ENDPOINT", "BOARD_ENDPOINT"} {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			return true
		}
	}
	return false
}

// Default returns the configuration used when no file or env overrides exist
func Default() *Config {
	cfg, err := LoadFrom(viper.New(), "")
	if err != nil {
		// defaults always validate
		panic(err)
	}
	return cfg
}

// setDefaults sets default values for all configuration options
func setDefaults(v *viper.Viper) {
	// General defaults
	v.SetDefault("environment", "production")
	v.SetDefault("log_level", "info")

	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_age_days", 14)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.compress", true)

	// Poller defaults
	v.SetDefault("poller.endpoint", DefaultEndpoint)
	v.SetDefault("poller.interval", "1s")
	v.SetDefault("poller.timeout", "5s")
	v.SetDefault("poller.max_in_flight", 2)
	v.SetDefault("poller.max_body_bytes", 4<<20)
	v.SetDefault("poller.pin_endpoint", false)

	// Display defaults
	v.SetDefault("display.title", "2024 臺大政治營")
	v.SetDefault("display.palette", []string{"#FEEA87", "#ED83A2", "#AB8DD9"})
	v.SetDefault("display.placeholder_color", "#D0DCEC")
	v.SetDefault("display.logo_url", "/static/title.svg")
	v.SetDefault("display.elected_badge_url", "/static/elected.svg")
	v.SetDefault("display.banner_url", "")
	v.SetDefault("display.clock_interval", "1s")

	// Server defaults
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.write_timeout", "10s")

	v.SetDefault("scheduler.max_concurrent", 4)

	v.SetDefault("settings.path", "./data/settings.yaml")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validatePoller(); err != nil {
		return fmt.Errorf("poller config: %w", err)
	}

	if err := c.validateDisplay(); err != nil {
		return fmt.Errorf("display config: %w", err)
	}

	if err := c.validateServer(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if c.Scheduler.MaxConcurrent <= 0 {
		return fmt.Errorf("scheduler config: max_concurrent must be positive")
	}

	if c.Settings.Path == "" {
		return fmt.Errorf("settings config: path cannot be empty")
	}
	c.Settings.Path = filepath.Clean(c.Settings.Path)

	return nil
}

func (c *Config) validatePoller() error {
	if err := ValidateEndpoint(c.Poller.Endpoint); err != nil {
		return err
	}

	// cron cannot fire faster than once a second
	if c.Poller.Interval < time.Second {
		return fmt.Errorf("interval must be at least 1s, got %s", c.Poller.Interval)
	}

	if c.Poller.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if c.Poller.MaxInFlight <= 0 {
		return fmt.Errorf("max_in_flight must be positive")
	}

	if c.Poller.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive")
	}

	return nil
}

func (c *Config) validateDisplay() error {
	if len(c.Display.Palette) == 0 {
		return fmt.Errorf("palette cannot be empty")
	}

	for i, color := range c.Display.Palette {
		if err := ValidateColor(color); err != nil {
			return fmt.Errorf("palette[%d]: %w", i, err)
		}
	}

	if c.Display.PlaceholderColor == "" {
		return fmt.Errorf("placeholder_color cannot be empty")
	}
	if err := ValidateColor(c.Display.PlaceholderColor); err != nil {
		return fmt.Errorf("placeholder_color: %w", err)
	}

	if c.Display.ClockInterval < time.Second {
		return fmt.Errorf("clock_interval must be at least 1s")
	}

	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("addr cannot be empty")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be positive")
	}

	return nil
}

// ValidateEndpoint checks that raw is an absolute http(s) URL
func ValidateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid endpoint %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid endpoint %q: missing host", raw)
	}
	return nil
}

var (
	hexColor        = regexp.MustCompile(`^#([0-9a-fA-F]{3,4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
	namedColor      = regexp.MustCompile(`^[a-zA-Z]+$`)
	functionalColor = regexp.MustCompile(`^(rgba?|hsla?)\([0-9a-z.,%/ -]*\)$`)
)

// ValidateColor accepts the CSS colour forms the board draws with: hex,
// named colours and rgb()/hsl() functional notation.
func ValidateColor(raw string) error {
	if hexColor.MatchString(raw) || namedColor.MatchString(raw) || functionalColor.MatchString(raw) {
		return nil
	}
	return fmt.Errorf("invalid colour %q", raw)
}

// GetLogLevel returns a zap log level based on the configured string
func (c *Config) GetLogLevel() zap.AtomicLevel {
	level := zap.NewAtomicLevel()
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level.SetLevel(zap.DebugLevel)
	case "info":
		level.SetLevel(zap.InfoLevel)
	case "warn":
		level.SetLevel(zap.WarnLevel)
	case "error":
		level.SetLevel(zap.ErrorLevel)
	default:
		level.SetLevel(zap.InfoLevel)
	}
	return level
}

// IsDevelopment returns true if the environment is set to development
func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.Environment) == "development"
}
