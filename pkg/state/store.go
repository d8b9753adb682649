package state

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/0xmhha/shot-relay/pkg/logger"
)

// DefaultSentRetention is how long sent records are kept when unset.
const DefaultSentRetention = 30 * 24 * time.Hour

// Store is the durable path -> Record mapping. All operations hold a single
// lock for their full read-modify-write, including the snapshot write.
type Store struct {
	mu        sync.Mutex
	path      string
	retention time.Duration
	now       func() time.Time
	logger    logger.Logger
	records   map[string]*Record
}

// Open loads the snapshot at cfg.Path. A missing or unreadable snapshot
// yields an empty store; only an empty path is an error.
func Open(cfg Config, log logger.Logger) (*Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, ErrEmptyPath
	}
	if cfg.SentRetention <= 0 {
		cfg.SentRetention = DefaultSentRetention
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Store{
		path:      path,
		retention: cfg.SentRetention,
		now:       cfg.Now,
		logger:    log,
	}
	s.records = s.load()

	log.Info("state store opened",
		"path", path,
		"records", len(s.records),
		"sent_retention", cfg.SentRetention)

	return s, nil
}

// Path returns the snapshot file path.
func (s *Store) Path() string {
	return s.path
}

// MarkDiscovered registers path as pending. It returns false when the path is
// already sent and true whenever the caller should enqueue it.
func (s *Store) MarkDiscovered(path string) (bool, error) {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[path]
	if ok && rec.Status == StatusSent {
		return false, nil
	}

	if !ok {
		s.records[path] = &Record{
			Status:      StatusPending,
			FirstSeenAt: now,
			NextRetryAt: timePtr(now),
		}
		return true, s.saveLocked()
	}

	if rec.Status != StatusPending {
		rec.Status = StatusPending
		if rec.NextRetryAt == nil {
			rec.NextRetryAt = timePtr(now)
		}
		return true, s.saveLocked()
	}

	return true, nil
}

// MarkSent records a successful delivery and prunes expired sent records.
func (s *Store) MarkSent(path string) error {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[path]
	if !ok {
		rec = &Record{FirstSeenAt: now}
		s.records[path] = rec
	}
	rec.Status = StatusSent
	rec.LastAttemptAt = timePtr(now)
	rec.NextRetryAt = nil
	rec.LastError = nil
	rec.SentAt = timePtr(now)

	if pruned := s.pruneLocked(now); pruned > 0 {
		s.logger.Debug("pruned expired sent records", "count", pruned)
	}

	return s.saveLocked()
}

// MarkFailed records a failed attempt and schedules the next one using
// RetryDelay. The returned time is the new next_retry_at.
func (s *Store) MarkFailed(path, reason string, base, max time.Duration) (time.Time, error) {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[path]
	if !ok {
		rec = &Record{FirstSeenAt: now}
		s.records[path] = rec
	}

	rec.Attempts++
	next := now.Add(RetryDelay(rec.Attempts, base, max))

	rec.Status = StatusPending
	rec.LastAttemptAt = timePtr(now)
	rec.NextRetryAt = timePtr(next)
	rec.LastError = &reason
	rec.SentAt = nil

	return next, s.saveLocked()
}

// DuePending returns pending records whose next_retry_at is at or before now,
// oldest schedule first.
func (s *Store) DuePending(now time.Time) []PendingItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]PendingItem, 0)
	for path, rec := range s.records {
		if rec.Status != StatusPending {
			continue
		}
		var next time.Time
		if rec.NextRetryAt != nil {
			next = *rec.NextRetryAt
		}
		if next.After(now) {
			continue
		}
		due = append(due, PendingItem{
			Path:        path,
			Attempts:    rec.Attempts,
			NextRetryAt: next,
		})
	}

	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextRetryAt.Equal(due[j].NextRetryAt) {
			return due[i].NextRetryAt.Before(due[j].NextRetryAt)
		}
		return due[i].Path < due[j].Path
	})
	return due
}

// CleanupMissing deletes every non-sent record whose path is not in known and
// returns how many were removed. Sent records are only removed by retention.
func (s *Store) CleanupMissing(known map[string]struct{}) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for path, rec := range s.records {
		if rec.Status == StatusSent {
			continue
		}
		if _, ok := known[path]; ok {
			continue
		}
		delete(s.records, path)
		removed++
	}

	if removed == 0 {
		return 0, nil
	}
	return removed, s.saveLocked()
}

// Get returns a copy of the record for path.
func (s *Store) Get(path string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[path]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// Records returns a copy of every record sorted by path.
func (s *Store) Records() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.records))
	for path, rec := range s.records {
		entries = append(entries, Entry{Path: path, Record: rec.clone()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries
}

// Len returns the number of tracked records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *Store) pruneLocked(now time.Time) int {
	cutoff := now.Add(-s.retention)
	pruned := 0
	for path, rec := range s.records {
		if rec.Status != StatusSent || rec.SentAt == nil {
			continue
		}
		if rec.SentAt.Before(cutoff) {
			delete(s.records, path)
			pruned++
		}
	}
	return pruned
}

func (s *Store) saveLocked() error {
	if err := writeSnapshot(s.path, s.records); err != nil {
		s.logger.Error("failed to persist state", "path", s.path, "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// clock returns the current time in UTC without a monotonic reading, so
// in-memory and reloaded records compare equal.
func (s *Store) clock() time.Time {
	return s.now().UTC()
}
