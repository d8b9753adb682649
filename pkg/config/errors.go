package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrNoScreenshotDir is returned when no screenshot directory is set.
	ErrNoScreenshotDir = errors.New("SCREENSHOT_DIR must be set")

	// ErrNoCredentials is returned when the bot token or chat id is missing.
	ErrNoCredentials = errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set")

	// ErrInvalidSendAttempts is returned when send attempts is <= 0.
	ErrInvalidSendAttempts = errors.New("invalid send attempts: must be > 0")

	// ErrInvalidBackoff is returned when the send backoff is negative.
	ErrInvalidBackoff = errors.New("invalid send backoff: must be >= 0")

	// ErrInvalidCaptionLimit is returned when caption limit is <= 0.
	ErrInvalidCaptionLimit = errors.New("invalid caption limit: must be > 0")

	// ErrInvalidTimeout is returned when a Telegram timeout is <= 0.
	ErrInvalidTimeout = errors.New("invalid telegram timeout: must be > 0")

	// ErrInvalidFileReady is returned when the stability settings are out of range.
	ErrInvalidFileReady = errors.New("invalid file ready settings: attempts must be > 0, delay and min size >= 0")

	// ErrInvalidDedupTTL is returned when dedup TTL is <= 0.
	ErrInvalidDedupTTL = errors.New("invalid dedup ttl: must be > 0")

	// ErrInvalidDrain is returned when the drain window is negative.
	ErrInvalidDrain = errors.New("invalid shutdown drain: must be >= 0")

	// ErrInvalidRetryInterval is returned when the retry intervals are out of range.
	ErrInvalidRetryInterval = errors.New("invalid retry interval: must be > 0 and <= max interval")

	// ErrNoStateFile is returned when no state file path is set.
	ErrNoStateFile = errors.New("no state file specified")

	// ErrInvalidRetention is returned when sent retention is <= 0.
	ErrInvalidRetention = errors.New("invalid sent retention: must be > 0")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrInvalidEnv is returned when an environment variable cannot be parsed.
	ErrInvalidEnv = errors.New("invalid environment variable")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)
