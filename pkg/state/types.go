// Package state tracks the delivery status of every discovered screenshot.
//
// The store maps an absolute file path to a Record and rewrites its JSON
// snapshot atomically after every mutation, so a crash at any point leaves
// either the previous or the new snapshot on disk, never a torn file.
//
// Example usage:
//
//	store, err := state.Open(state.Config{
//	    Path:          "/var/lib/shot-relay/state.json",
//	    SentRetention: 30 * 24 * time.Hour,
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if ok, _ := store.MarkDiscovered(path); ok {
//	    enqueue(path)
//	}
package state

import (
	"time"
)

// Status is the delivery status of a tracked file.
type Status string

const (
	// StatusPending means the file has not been delivered yet.
	StatusPending Status = "pending"

	// StatusSent is terminal: the file was delivered and is never sent again.
	StatusSent Status = "sent"
)

// Record is the persisted state of one tracked file.
type Record struct {
	Status        Status     `json:"status"`
	FirstSeenAt   time.Time  `json:"first_seen_at"`
	LastAttemptAt *time.Time `json:"last_attempt_at"`
	NextRetryAt   *time.Time `json:"next_retry_at"`
	Attempts      int        `json:"attempts"`
	LastError     *string    `json:"last_error"`
	SentAt        *time.Time `json:"sent_at"`
}

// Entry pairs a Record with its path, used when listing the store.
type Entry struct {
	Path string `json:"path"`
	Record
}

// PendingItem is a pending record that is due for redelivery.
type PendingItem struct {
	Path        string
	Attempts    int
	NextRetryAt time.Time
}

// Config contains store configuration.
type Config struct {
	// Path is the JSON snapshot file.
	Path string

	// SentRetention is how long sent records are kept before pruning.
	// Default: 30 days.
	SentRetention time.Duration

	// Now returns the current time. Default: time.Now.
	Now func() time.Time
}

// snapshot is the on-disk document.
type snapshot struct {
	Records map[string]*Record `json:"records"`
}

// RetryDelay is the redelivery backoff policy: base*max(1, attempts), capped at max.
func RetryDelay(attempts int, base, max time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := base * time.Duration(attempts)
	// Guard the multiplication against overflow for very large attempt counts.
	if delay > max || delay/time.Duration(attempts) != base {
		return max
	}
	return delay
}

func (r *Record) clone() Record {
	c := *r
	c.LastAttemptAt = cloneTime(r.LastAttemptAt)
	c.NextRetryAt = cloneTime(r.NextRetryAt)
	c.SentAt = cloneTime(r.SentAt)
	if r.LastError != nil {
		msg := *r.LastError
		c.LastError = &msg
	}
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}
