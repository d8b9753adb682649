package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/0xmhha/shot-relay/pkg/logger"
)

// Client uploads photos to one chat.
type Client struct {
	endpoint     string
	chatID       string
	attempts     int
	backoff      time.Duration
	captionLimit int
	httpClient   *http.Client
	logger       logger.Logger

	// sleep waits between attempts. Defaults to timeSleep.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithSleep replaces the wait between attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = fn
	}
}

// WithHTTPClient replaces the HTTP client built from the configured timeouts.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a Client. Zero config fields take their defaults.
func NewClient(cfg Config, log logger.Logger, opts ...Option) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.SendAttempts <= 0 {
		cfg.SendAttempts = DefaultSendAttempts
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	if cfg.CaptionLimit <= 0 {
		cfg.CaptionLimit = DefaultCaptionLimit
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	c := &Client{
		endpoint:     strings.TrimRight(cfg.APIURL, "/") + "/bot" + cfg.BotToken + "/sendPhoto",
		chatID:       cfg.ChatID,
		attempts:     cfg.SendAttempts,
		backoff:      cfg.Backoff,
		captionLimit: cfg.CaptionLimit,
		httpClient:   newHTTPClient(cfg.ConnectTimeout, cfg.ReadTimeout),
		logger:       log,
		sleep:        timeSleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newHTTPClient(connect, read time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connect,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = connect
	transport.ResponseHeaderTimeout = read

	return &http.Client{Transport: transport}
}

// Send uploads the file at path with an optional caption. It returns true
// once the API answers 200. A logger carried by ctx (logger.NewContext) is
// used for every line so attempts share the caller's delivery fields.
func (c *Client) Send(ctx context.Context, path, caption string) bool {
	caption = TruncateCaption(caption, c.captionLimit)
	log := logger.FromContext(ctx, c.logger.With("path", path))

	for attempt := 1; attempt <= c.attempts; attempt++ {
		status, body, err := c.post(ctx, path, caption)
		if err != nil {
			var pathErr *os.PathError
			if errors.As(err, &pathErr) {
				log.Error("cannot read screenshot", "error", err)
				return false
			}
			if ctx.Err() != nil {
				log.Warn("send canceled", "attempt", attempt, "error", ctx.Err())
				return false
			}
			if attempt == c.attempts {
				log.Error("sendPhoto failed", "attempt", attempt, "attempts", c.attempts, "error", err)
				return false
			}
			wait := c.linearBackoff(attempt)
			log.Warn("sendPhoto transport error, retrying",
				"attempt", attempt, "attempts", c.attempts, "wait", wait, "error", err)
			if err := c.sleep(ctx, wait); err != nil {
				return false
			}
			continue
		}

		if status == http.StatusOK {
			log.Debug("sendPhoto succeeded", "attempt", attempt)
			return true
		}

		if !isRetryable(status) {
			log.Error("sendPhoto rejected", "status", status, "body", string(body))
			return false
		}
		if attempt == c.attempts {
			log.Error("sendPhoto failed", "status", status, "attempt", attempt,
				"attempts", c.attempts, "body", string(body))
			return false
		}

		wait := c.retryWait(body, attempt)
		log.Warn("sendPhoto failed, retrying",
			"status", status, "attempt", attempt, "attempts", c.attempts, "wait", wait, "body", string(body))
		if err := c.sleep(ctx, wait); err != nil {
			return false
		}
	}
	return false
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// post performs one upload and returns the status and a bounded body prefix.
func (c *Client) post(ctx context.Context, path, caption string) (int, []byte, error) {
	payload, contentType, err := c.buildForm(path, caption)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, payload)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", redact(err))
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, redact(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyLog)) // nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)                        // nolint:errcheck
	return resp.StatusCode, body, nil
}

// buildForm opens the file fresh and encodes the sendPhoto form.
func (c *Client) buildForm(path, caption string) (*bytes.Buffer, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	if err := w.WriteField("chat_id", c.chatID); err != nil {
		return nil, "", fmt.Errorf("writing chat_id: %w", err)
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return nil, "", fmt.Errorf("writing caption: %w", err)
		}
	}

	part, err := w.CreateFormFile("photo", filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("creating photo part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing form: %w", err)
	}

	return buf, w.FormDataContentType(), nil
}

// retryWait prefers the server's retry_after hint over linear backoff.
func (c *Client) retryWait(body []byte, attempt int) time.Duration {
	var reply apiResponse
	if err := json.Unmarshal(body, &reply); err == nil &&
		reply.Parameters != nil && reply.Parameters.RetryAfter != nil && *reply.Parameters.RetryAfter >= 0 {
		return time.Duration(*reply.Parameters.RetryAfter * float64(time.Second))
	}
	return c.linearBackoff(attempt)
}

func (c *Client) linearBackoff(attempt int) time.Duration {
	return c.backoff * time.Duration(attempt)
}

func isRetryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// redact strips the request URL, which embeds the bot token, from
// transport errors.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

// timeSleep waits for d or until ctx is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
