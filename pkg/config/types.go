// Package config provides configuration management for shot-relay.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Environment variables (highest priority)
// 2. Configuration file
// 3. Default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Watching: %s\n", cfg.ScreenshotDir)
package config

import (
	"time"
)

// Config represents the complete application configuration.
//
// Invariants:
// - ScreenshotDir, Telegram.BotToken and Telegram.ChatID are set
// - attempt counts and intervals are > 0
// - Retry.MaxInterval >= Retry.Interval.
type Config struct {
	// Root of the screenshot tree to watch
	ScreenshotDir string `yaml:"screenshot_dir"`

	// Delivery settings
	Telegram TelegramConfig `yaml:"telegram"`

	// File stability settings
	FileReady FileReadyConfig `yaml:"file_ready"`

	// Event deduplication settings
	Dedup DedupConfig `yaml:"dedup"`

	// Shutdown settings
	Shutdown ShutdownConfig `yaml:"shutdown"`

	// Redelivery settings
	Retry RetryConfig `yaml:"retry"`

	// Delivery state settings
	State StateConfig `yaml:"state"`

	// Game name lookup settings
	Steam SteamConfig `yaml:"steam"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// TelegramConfig contains Bot API settings.
type TelegramConfig struct {
	// Bot token from BotFather
	BotToken string `yaml:"bot_token"`

	// Destination chat id
	ChatID string `yaml:"chat_id"`

	// Bot API host
	APIURL string `yaml:"api_url"`

	// Upload attempts per delivery
	SendAttempts int `yaml:"send_attempts"`

	// Linear backoff unit between attempts
	Backoff time.Duration `yaml:"backoff"`

	// Maximum caption length in characters
	CaptionLimit int `yaml:"caption_limit"`

	// Dial timeout
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// Response header timeout
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// FileReadyConfig controls when a new file counts as fully written.
type FileReadyConfig struct {
	// Pause between polls
	Delay time.Duration `yaml:"delay"`

	// Number of polls before giving up
	Attempts int `yaml:"attempts"`

	// Minimum size in bytes
	MinSize int64 `yaml:"min_size"`
}

// DedupConfig contains event deduplication settings.
type DedupConfig struct {
	// How long a seen path suppresses repeat events
	TTL time.Duration `yaml:"ttl"`
}

// ShutdownConfig contains shutdown settings.
type ShutdownConfig struct {
	// How long to wait for the queue to empty
	Drain time.Duration `yaml:"drain"`
}

// RetryConfig contains redelivery settings.
type RetryConfig struct {
	// Sweep period and base backoff
	Interval time.Duration `yaml:"interval"`

	// Backoff ceiling
	MaxInterval time.Duration `yaml:"max_interval"`
}

// StateConfig contains delivery state settings.
type StateConfig struct {
	// Path to the JSON state file
	File string `yaml:"file"`

	// How long sent records are kept
	SentRetention time.Duration `yaml:"sent_retention"`
}

// SteamConfig contains storefront lookup settings.
type SteamConfig struct {
	// Language code for names
	Lang string `yaml:"lang"`

	// Optional country code
	Region string `yaml:"region"`

	// Storefront host
	APIURL string `yaml:"api_url"`

	// Path to the BoltDB name cache; empty keeps names in memory only
	CacheDB string `yaml:"cache_db"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Log output destination (stdout, stderr, file path)
	Output string `yaml:"output"`

	// Log format (text, json)
	Format string `yaml:"format"`
}

// Validate checks if the configuration satisfies all invariants.
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	if c.ScreenshotDir == "" {
		return ErrNoScreenshotDir
	}
	if c.Telegram.BotToken == "" || c.Telegram.ChatID == "" {
		return ErrNoCredentials
	}

	if c.Telegram.SendAttempts <= 0 {
		return ErrInvalidSendAttempts
	}
	if c.Telegram.Backoff < 0 {
		return ErrInvalidBackoff
	}
	if c.Telegram.CaptionLimit <= 0 {
		return ErrInvalidCaptionLimit
	}
	if c.Telegram.ConnectTimeout <= 0 || c.Telegram.ReadTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.FileReady.Delay < 0 || c.FileReady.Attempts <= 0 || c.FileReady.MinSize < 0 {
		return ErrInvalidFileReady
	}
	if c.Dedup.TTL <= 0 {
		return ErrInvalidDedupTTL
	}
	if c.Shutdown.Drain < 0 {
		return ErrInvalidDrain
	}

	if c.Retry.Interval <= 0 || c.Retry.MaxInterval < c.Retry.Interval {
		return ErrInvalidRetryInterval
	}

	if c.State.File == "" {
		return ErrNoStateFile
	}
	if c.State.SentRetention <= 0 {
		return ErrInvalidRetention
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}

// Redacted returns a copy safe to print, with the bot token masked.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Telegram.BotToken != "" {
		out.Telegram.BotToken = redactedSecret
	}
	return &out
}

const redactedSecret = "********"

// Default returns a configuration with default values. ScreenshotDir and
// the Telegram credentials have no default.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{
			APIURL:         "https://api.telegram.org",
			SendAttempts:   3,
			Backoff:        1 * time.Second,
			CaptionLimit:   1024,
			ConnectTimeout: 10 * time.Second,
			ReadTimeout:    60 * time.Second,
		},
		FileReady: FileReadyConfig{
			Delay:    1 * time.Second,
			Attempts: 5,
			MinSize:  1024,
		},
		Dedup: DedupConfig{
			TTL: 120 * time.Second,
		},
		Shutdown: ShutdownConfig{
			Drain: 5 * time.Second,
		},
		Retry: RetryConfig{
			Interval:    60 * time.Second,
			MaxInterval: time.Hour,
		},
		State: StateConfig{
			File:          defaultStatePath(),
			SentRetention: 720 * time.Hour, // 30 days
		},
		Steam: SteamConfig{
			Lang:    "en",
			APIURL:  "https://store.steampowered.com",
			CacheDB: defaultCacheDBPath(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
			Format: "text",
		},
	}
}
