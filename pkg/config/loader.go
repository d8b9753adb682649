package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigEnv names the environment variable holding the config file path.
const ConfigEnv = "SHOT_RELAY_CONFIG"

// Loader provides methods for loading configuration from various sources.
type Loader interface {
	// Load loads configuration with the following precedence:
	// 1. Environment variables
	// 2. Configuration file
	// 3. Default values
	//
	// Returns the merged configuration or an error if validation fails.
	Load() (*Config, error)

	// LoadFromFile returns the defaults overlaid with one file, without
	// environment overrides or validation.
	LoadFromFile(path string) (*Config, error)

	// Path returns the config file Load would read, or "" if none exists.
	Path() string
}

// loader implements the Loader interface.
type loader struct {
	configPath string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a new configuration loader.
//
// If configPath is empty, the file named by SHOT_RELAY_CONFIG is used,
// otherwise the first of these that exists:
// 1. ./config.yaml (current directory)
// 2. ~/.config/shot-relay/config.yaml.
func NewLoader(configPath string) Loader {
	return &loader{
		configPath: configPath,
		lookupEnv:  os.LookupEnv,
	}
}

// Load implements Loader.Load.
func (l *loader) Load() (*Config, error) {
	cfg := Default()

	explicit := l.explicitPath()
	configPath := explicit
	if configPath == "" {
		configPath = l.findConfigFile()
	}

	if configPath != "" {
		if err := decodeFile(configPath, cfg); err != nil {
			// A named file must load; a discovered one is best effort.
			if explicit != "" {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
			cfg = Default()
		}
	}

	if err := l.applyEnvVars(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile implements Loader.LoadFromFile.
func (l *loader) LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path implements Loader.Path.
func (l *loader) Path() string {
	if explicit := l.explicitPath(); explicit != "" {
		return explicit
	}
	return l.findConfigFile()
}

func (l *loader) explicitPath() string {
	if l.configPath != "" {
		return l.configPath
	}
	if path, ok := l.lookupEnv(ConfigEnv); ok {
		return strings.TrimSpace(path)
	}
	return ""
}

// decodeFile overlays the YAML file at path onto cfg. Keys absent from the
// file keep their current values.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

// findConfigFile searches for a config file in standard locations.
//
// Returns empty string if no config file is found.
func (l *loader) findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		DefaultConfigPath(),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envBinding maps one environment variable onto a Config field.
type envBinding struct {
	name  string
	apply func(cfg *Config, value string) error
}

func stringVar(set func(*Config, string)) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		set(cfg, value)
		return nil
	}
}

func intVar(set func(*Config, int)) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		set(cfg, n)
		return nil
	}
}

func secondsVar(set func(*Config, time.Duration)) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		d, err := ParseSeconds(value)
		if err != nil {
			return err
		}
		set(cfg, d)
		return nil
	}
}

var envBindings = []envBinding{
	{"SCREENSHOT_DIR", stringVar(func(c *Config, v string) { c.ScreenshotDir = v })},
	{"TELEGRAM_BOT_TOKEN", stringVar(func(c *Config, v string) { c.Telegram.BotToken = v })},
	{"TELEGRAM_CHAT_ID", stringVar(func(c *Config, v string) { c.Telegram.ChatID = v })},
	{"TELEGRAM_API_URL", stringVar(func(c *Config, v string) { c.Telegram.APIURL = v })},
	{"TELEGRAM_SEND_ATTEMPTS", intVar(func(c *Config, n int) { c.Telegram.SendAttempts = n })},
	{"TELEGRAM_SEND_BACKOFF_SECONDS", secondsVar(func(c *Config, d time.Duration) { c.Telegram.Backoff = d })},
	{"TELEGRAM_CAPTION_LIMIT", intVar(func(c *Config, n int) { c.Telegram.CaptionLimit = n })},
	{"TELEGRAM_CONNECT_TIMEOUT", secondsVar(func(c *Config, d time.Duration) { c.Telegram.ConnectTimeout = d })},
	{"TELEGRAM_READ_TIMEOUT", secondsVar(func(c *Config, d time.Duration) { c.Telegram.ReadTimeout = d })},
	{"FILE_READY_DELAY", secondsVar(func(c *Config, d time.Duration) { c.FileReady.Delay = d })},
	{"FILE_READY_ATTEMPTS", intVar(func(c *Config, n int) { c.FileReady.Attempts = n })},
	{"FILE_READY_MIN_SIZE", intVar(func(c *Config, n int) { c.FileReady.MinSize = int64(n) })},
	{"DEDUP_TTL_SECONDS", secondsVar(func(c *Config, d time.Duration) { c.Dedup.TTL = d })},
	{"SHUTDOWN_DRAIN_SECONDS", secondsVar(func(c *Config, d time.Duration) { c.Shutdown.Drain = d })},
	{"RETRY_INTERVAL_SECONDS", secondsVar(func(c *Config, d time.Duration) { c.Retry.Interval = d })},
	{"RETRY_MAX_INTERVAL_SECONDS", secondsVar(func(c *Config, d time.Duration) { c.Retry.MaxInterval = d })},
	{"STATE_FILE", stringVar(func(c *Config, v string) { c.State.File = v })},
	{"SENT_RETENTION_SECONDS", secondsVar(func(c *Config, d time.Duration) { c.State.SentRetention = d })},
	{"STEAM_LANG", stringVar(func(c *Config, v string) { c.Steam.Lang = v })},
	{"STEAM_REGION", stringVar(func(c *Config, v string) { c.Steam.Region = v })},
	{"STEAM_API_URL", stringVar(func(c *Config, v string) { c.Steam.APIURL = v })},
	{"NAME_CACHE_DB", stringVar(func(c *Config, v string) { c.Steam.CacheDB = v })},
	{"SHOT_RELAY_LOG_LEVEL", stringVar(func(c *Config, v string) { c.Logging.Level = strings.ToLower(v) })},
}

// EnvNames lists every environment variable the loader reads.
func EnvNames() []string {
	names := make([]string, 0, len(envBindings)+1)
	for _, b := range envBindings {
		names = append(names, b.name)
	}
	return append(names, ConfigEnv)
}

// applyEnvVars applies environment variable overrides to cfg. Set but empty
// variables are ignored. Every unparsable value is reported.
func (l *loader) applyEnvVars(cfg *Config) error {
	var errs []error
	for _, b := range envBindings {
		value, ok := l.lookupEnv(b.name)
		value = strings.TrimSpace(value)
		if !ok || value == "" {
			continue
		}
		if err := b.apply(cfg, value); err != nil {
			errs = append(errs, fmt.Errorf("%w %s=%q: %v", ErrInvalidEnv, b.name, value, err))
		}
	}
	return errors.Join(errs...)
}

// ParseSeconds accepts a plain number of seconds ("1.5") or a Go duration
// string ("1m30s").
func ParseSeconds(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64/float64(time.Second) {
			return 0, fmt.Errorf("seconds out of range: %s", value)
		}
		return time.Duration(f * float64(time.Second)), nil
	}
	return time.ParseDuration(value)
}

// Load is a convenience function that creates a loader and loads configuration.
//
// Equivalent to:
//
//	loader := NewLoader("")
//	return loader.Load()
func Load() (*Config, error) {
	return NewLoader("").Load()
}

// LoadFromFile is a convenience function that loads configuration from a file.
//
// Equivalent to:
//
//	loader := NewLoader(path)
//	return loader.Load()
func LoadFromFile(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Save writes the configuration to a YAML file.
//
// Creates parent directories if they don't exist.
// File is created with 0600 permissions (read/write for owner only).
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
