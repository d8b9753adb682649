// Package telegram delivers screenshots to a chat through the Bot API
// sendPhoto method.
//
// Send never returns an error. Transport failures, rate limits and server
// errors are retried inside a fixed attempt budget; anything still failing
// after that is reported as false and left to the caller to reschedule.
//
// Example usage:
//
//	c := telegram.NewClient(telegram.Config{
//	    BotToken: token,
//	    ChatID:   "-100123",
//	}, logger.Default())
//	defer c.Close()
//
//	ok := c.Send(ctx, "/shots/440/screenshots/1.jpg", "Team Fortress 2")
package telegram

import "time"

// DefaultAPIURL is the Bot API host.
const DefaultAPIURL = "https://api.telegram.org"

// Defaults applied by NewClient to zero Config fields.
const (
	DefaultSendAttempts   = 3
	DefaultBackoff        = time.Second
	DefaultCaptionLimit   = 1024
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 60 * time.Second
)

// ellipsis marks a truncated caption.
const ellipsis = "..."

// maxBodyLog bounds how much of a response body is kept for logs.
const maxBodyLog = 4096

// Config contains delivery client configuration.
type Config struct {
	// BotToken authenticates against the Bot API.
	BotToken string

	// ChatID is the destination chat.
	ChatID string

	// APIURL is the Bot API host. Default: DefaultAPIURL.
	APIURL string

	// SendAttempts is the number of upload attempts per Send.
	SendAttempts int

	// Backoff is multiplied by the attempt number to get the wait
	// between attempts when the server gives no retry_after hint.
	Backoff time.Duration

	// CaptionLimit is the maximum caption length in characters.
	CaptionLimit int

	// ConnectTimeout bounds dialing the API host.
	ConnectTimeout time.Duration

	// ReadTimeout bounds waiting for the response headers.
	ReadTimeout time.Duration
}

// apiResponse is the subset of a Bot API reply used for retry decisions.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Parameters  *struct {
		RetryAfter *float64 `json:"retry_after"`
	} `json:"parameters"`
}
