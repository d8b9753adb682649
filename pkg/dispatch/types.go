// Package dispatch turns discovered screenshots into deliveries.
//
// A Handler owns the pipeline between the watcher and the chat: it filters
// and deduplicates creation events, records each file in the state store,
// queues it for a single delivery worker and re-drives undelivered files from
// a periodic sweep. A path is never queued twice while it is waiting or being
// delivered, and a path recorded as sent is never queued again.
//
// Example usage:
//
//	h := dispatch.New(cfg, store, sender, resolver, log)
//	if err := h.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Close()
//
//	for event := range w.Events() {
//	    h.HandleEvent(event)
//	}
package dispatch

import (
	"context"
	"time"

	"github.com/0xmhha/shot-relay/pkg/state"
)

// Failure reasons recorded in the state store.
const (
	ReasonNotStable  = "file not stable or missing"
	ReasonSendFailed = "telegram send returned false"
)

// Sender delivers one file with an optional caption.
type Sender interface {
	Send(ctx context.Context, path, caption string) bool
	Close() error
}

// NameResolver maps an app id to a display name.
type NameResolver interface {
	Resolve(ctx context.Context, appID string) (string, bool)
	Close() error
}

// StateStore is the durable delivery ledger.
type StateStore interface {
	MarkDiscovered(path string) (bool, error)
	MarkSent(path string) error
	MarkFailed(path, reason string, base, max time.Duration) (time.Time, error)
	DuePending(now time.Time) []state.PendingItem
	CleanupMissing(known map[string]struct{}) (int, error)
	Get(path string) (state.Record, bool)
}

// Config contains handler configuration.
type Config struct {
	// Root is the screenshot tree scanned at startup and on every sweep.
	Root string

	// ReadyDelay is the pause between stability polls.
	// Default: 1s.
	ReadyDelay time.Duration

	// ReadyAttempts is the number of stability polls before giving up.
	// Default: 5.
	ReadyAttempts int

	// ReadyMinSize is the smallest size in bytes a stable file must have.
	ReadyMinSize int64

	// DedupTTL is how long a path seen in an event suppresses repeats.
	// Default: 120s.
	DedupTTL time.Duration

	// ShutdownDrain bounds how long Close waits for the queue to empty.
	// Default: 5s.
	ShutdownDrain time.Duration

	// RetryInterval is the sweep period and the base retry backoff.
	// Default: 60s.
	RetryInterval time.Duration

	// RetryMaxInterval caps the retry backoff.
	// Default: 1h.
	RetryMaxInterval time.Duration

	// PollInterval bounds a single wait for queued work.
	// Default: 500ms.
	PollInterval time.Duration

	// JoinTimeout bounds how long Close waits for the loops to exit.
	// Default: 5s.
	JoinTimeout time.Duration
}

// Stats is a point-in-time view of the handler.
type Stats struct {
	// Queued is the number of paths waiting for the worker.
	Queued int `json:"queued"`

	// InFlight counts paths that are queued or being delivered.
	InFlight int `json:"in_flight"`

	// Enqueued counts every successful enqueue.
	Enqueued uint64 `json:"enqueued"`

	// Sent counts successful deliveries.
	Sent uint64 `json:"sent"`

	// Failed counts attempts that ended in a rescheduled retry.
	Failed uint64 `json:"failed"`

	// Duplicates counts events dropped by the dedup window.
	Duplicates uint64 `json:"duplicates"`
}

func (c *Config) applyDefaults() {
	if c.ReadyDelay <= 0 {
		c.ReadyDelay = time.Second
	}
	if c.ReadyAttempts <= 0 {
		c.ReadyAttempts = 5
	}
	if c.ReadyMinSize < 0 {
		c.ReadyMinSize = 0
	}
	if c.DedupTTL <= 0 {
		c.DedupTTL = 120 * time.Second
	}
	if c.ShutdownDrain < 0 {
		c.ShutdownDrain = 0
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = time.Minute
	}
	if c.RetryMaxInterval <= 0 {
		c.RetryMaxInterval = time.Hour
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = 5 * time.Second
	}
}
