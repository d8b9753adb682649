package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/0xmhha/shot-relay/pkg/discovery"
	"github.com/0xmhha/shot-relay/pkg/logger"
	"github.com/0xmhha/shot-relay/pkg/paths"
	"github.com/0xmhha/shot-relay/pkg/state"
	"github.com/0xmhha/shot-relay/pkg/watcher"
)

// drainPoll is how often Close checks whether the queue has emptied.
const drainPoll = 100 * time.Millisecond

// Handler runs the delivery worker and the retry sweeper.
type Handler struct {
	config     Config
	store      StateStore
	sender     Sender
	resolver   NameResolver
	discoverer discovery.Discoverer
	logger     logger.Logger

	queue *workQueue

	// Injected for tests.
	now   func() time.Time
	stat  func(string) (os.FileInfo, error)
	sleep func(ctx context.Context, d time.Duration) error

	recentMu sync.Mutex
	recent   map[string]time.Time

	mu      sync.Mutex
	started bool
	closed  bool
	stopped chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}

	enqueued   atomic.Uint64
	sent       atomic.Uint64
	failed     atomic.Uint64
	duplicates atomic.Uint64
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock replaces time.Now for dedup and sweep decisions.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// WithStat replaces os.Stat for stability polling.
func WithStat(stat func(string) (os.FileInfo, error)) Option {
	return func(h *Handler) {
		h.stat = stat
	}
}

// WithSleep replaces the wait between stability polls.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(h *Handler) {
		h.sleep = sleep
	}
}

// WithDiscoverer replaces the scanner built from Config.Root.
func WithDiscoverer(d discovery.Discoverer) Option {
	return func(h *Handler) {
		h.discoverer = d
	}
}

// New creates a Handler. Nothing runs until Start.
func New(cfg Config, store StateStore, sender Sender, resolver NameResolver, log logger.Logger, opts ...Option) *Handler {
	cfg.applyDefaults()

	h := &Handler{
		config:   cfg,
		store:    store,
		sender:   sender,
		resolver: resolver,
		logger:   log,
		queue:    newWorkQueue(),
		now:      time.Now,
		stat:     os.Stat,
		sleep:    sleepContext,
		recent:   make(map[string]time.Time),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.discoverer == nil {
		h.discoverer = discovery.New(cfg.Root, log)
	}
	return h
}

// Root returns the absolute screenshot root.
func (h *Handler) Root() string {
	return h.discoverer.Root()
}

// Start scans the tree, reconciles the store with it, queues every file not
// yet sent and launches the worker and the sweeper. It fails when the root
// cannot be scanned.
func (h *Handler) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	if h.started {
		h.mu.Unlock()
		return ErrAlreadyStarted
	}
	h.started = true
	h.mu.Unlock()

	shots, err := h.discoverer.Discover()
	if err != nil {
		h.mu.Lock()
		h.started = false
		h.mu.Unlock()
		return fmt.Errorf("startup scan failed: %w", err)
	}

	known := discovery.PathSet(shots)
	if removed, err := h.store.CleanupMissing(known); err != nil {
		h.logger.Error("failed to persist startup cleanup", "error", err)
	} else if removed > 0 {
		h.logger.Info("dropped pending records for missing files", "count", removed)
	}

	queued := 0
	for _, shot := range shots {
		if h.discover(shot.Path) {
			queued++
		}
	}
	h.logger.Info("loaded existing screenshots for state tracking",
		"count", len(shots),
		"queued", queued)

	loopCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(loopCtx)
	g.Go(func() error { return h.runWorker(gctx) })
	g.Go(func() error { return h.runSweeper(gctx) })

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := g.Wait(); err != nil {
			h.logger.Error("dispatch loop failed", "error", err)
		}
	}()

	h.mu.Lock()
	h.cancel = cancel
	h.done = done
	h.mu.Unlock()

	return nil
}

// HandleEvent reacts to a watcher event. Only file creations of candidate
// screenshots are considered.
func (h *Handler) HandleEvent(event watcher.Event) {
	if event.IsDir || event.Op != watcher.OpCreate {
		return
	}
	if !paths.IsCandidate(event.Path) {
		return
	}
	if h.isDuplicate(event.Path) {
		h.duplicates.Add(1)
		h.logger.Debug("duplicate event ignored", "path", event.Path)
		return
	}
	h.discover(event.Path)
}

// PruneRecent drops dedup entries older than the TTL and returns how many
// were removed.
func (h *Handler) PruneRecent(now time.Time) int {
	h.recentMu.Lock()
	defer h.recentMu.Unlock()
	return h.pruneRecentLocked(now)
}

// Stats returns current counters.
func (h *Handler) Stats() Stats {
	return Stats{
		Queued:     h.queue.Len(),
		InFlight:   h.queue.Claimed(),
		Enqueued:   h.enqueued.Load(),
		Sent:       h.sent.Load(),
		Failed:     h.failed.Load(),
		Duplicates: h.duplicates.Load(),
	}
}

// Close stops the sweeper, gives the worker up to ShutdownDrain to empty the
// queue, waits up to JoinTimeout for both loops and releases the sender and
// the resolver. A delivery in progress is not interrupted.
func (h *Handler) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	close(h.stopped)
	cancel, done := h.cancel, h.done
	h.mu.Unlock()

	if done != nil {
		h.drain()
		cancel()

		select {
		case <-done:
		case <-time.After(h.config.JoinTimeout):
			h.logger.Warn("dispatch loops did not exit in time", "timeout", h.config.JoinTimeout)
		}
	}

	var errs []error
	if err := h.sender.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close sender: %w", err))
	}
	if err := h.resolver.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close resolver: %w", err))
	}

	stats := h.Stats()
	h.logger.Info("dispatch stopped",
		"sent", stats.Sent,
		"failed", stats.Failed,
		"left_queued", stats.Queued)

	return errors.Join(errs...)
}

// drain waits for the queue to empty or the drain window to pass.
func (h *Handler) drain() {
	deadline := time.Now().Add(h.config.ShutdownDrain)
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()

	for h.queue.Len() > 0 && time.Now().Before(deadline) {
		<-ticker.C
	}
	if n := h.queue.Len(); n > 0 {
		h.logger.Warn("drain window elapsed with queued screenshots", "queued", n)
	}
}

func (h *Handler) stopping() bool {
	select {
	case <-h.stopped:
		return true
	default:
		return false
	}
}

// discover records path as pending and queues it unless already sent.
func (h *Handler) discover(path string) bool {
	enqueue, err := h.store.MarkDiscovered(path)
	if err != nil {
		h.logger.Error("failed to persist discovery", "path", path, "error", err)
	}
	if !enqueue {
		return false
	}
	return h.enqueue(path)
}

func (h *Handler) enqueue(path string) bool {
	if !h.queue.Push(path) {
		return false
	}
	h.enqueued.Add(1)
	h.logger.Debug("queued screenshot", "path", path)
	return true
}

func (h *Handler) isDuplicate(path string) bool {
	now := h.now()

	h.recentMu.Lock()
	defer h.recentMu.Unlock()

	h.pruneRecentLocked(now)
	if _, ok := h.recent[path]; ok {
		return true
	}
	h.recent[path] = now
	return false
}

func (h *Handler) pruneRecentLocked(now time.Time) int {
	cutoff := now.Add(-h.config.DedupTTL)
	removed := 0
	for path, seen := range h.recent {
		if seen.Before(cutoff) {
			delete(h.recent, path)
			removed++
		}
	}
	return removed
}

// runWorker delivers queued paths one at a time. It exits once stopping with
// an empty queue, or when ctx is cancelled after the drain window.
func (h *Handler) runWorker(ctx context.Context) error {
	// Deliveries outlive the loop context so an attempt in progress at
	// shutdown runs to completion.
	work := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			return nil
		}
		if h.stopping() && h.queue.Len() == 0 {
			return nil
		}

		path, ok := h.queue.Pop(ctx, h.config.PollInterval)
		if !ok {
			continue
		}

		h.process(work, path)
		h.queue.Done(path)
	}
}

// process runs one delivery attempt and records its outcome. Every line it
// and the sender log carries the same delivery_id.
func (h *Handler) process(ctx context.Context, path string) {
	log := h.logger.With("path", path, "delivery_id", uuid.NewString())
	ctx = logger.NewContext(ctx, log)

	// A sweep may queue a path from a snapshot taken before its delivery
	// completed.
	if rec, ok := h.store.Get(path); ok && rec.Status == state.StatusSent {
		log.Debug("already sent, skipping")
		return
	}

	if !h.WaitStable(ctx, path) {
		log.Warn("file not stable or missing, skipping")
		h.fail(log, path, ReasonNotStable)
		return
	}

	caption := h.caption(ctx, path)
	if !h.sender.Send(ctx, path, caption) {
		log.Error("failed to send screenshot after retries")
		h.fail(log, path, ReasonSendFailed)
		return
	}

	if err := h.store.MarkSent(path); err != nil {
		log.Error("failed to persist delivery", "error", err)
	}
	h.sent.Add(1)
	log.Info("sent screenshot", "file", filepath.Base(path), "caption", caption)
}

func (h *Handler) fail(log logger.Logger, path, reason string) {
	h.failed.Add(1)
	next, err := h.store.MarkFailed(path, reason, h.config.RetryInterval, h.config.RetryMaxInterval)
	if err != nil {
		log.Error("failed to persist delivery failure", "error", err)
	}
	log.Info("scheduled retry", "reason", reason, "next_retry_at", next)
}

// caption is the game name, "App <id>" when the name is unknown, or empty
// when the path carries no app id.
func (h *Handler) caption(ctx context.Context, path string) string {
	appID, ok := paths.ExtractAppID(path)
	if !ok {
		return ""
	}
	if name, ok := h.resolver.Resolve(ctx, appID); ok {
		return name
	}
	return "App " + appID
}

// runSweeper re-drives due pending records every RetryInterval until stop.
func (h *Handler) runSweeper(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.stopped:
			return nil
		case <-timer.C:
		}

		h.sweep()
		timer.Reset(h.config.RetryInterval)
	}
}

// sweep rescans the tree, evicts records for vanished files, records files
// no event reported and queues due pending paths that still exist. It
// returns how many paths were queued.
func (h *Handler) sweep() int {
	now := h.now()
	h.PruneRecent(now)

	shots, err := h.discoverer.Discover()
	if err != nil {
		h.logger.Warn("retry sweep scan failed", "error", err)
		return 0
	}
	known := discovery.PathSet(shots)

	if removed, err := h.store.CleanupMissing(known); err != nil {
		h.logger.Error("failed to persist sweep cleanup", "error", err)
	} else if removed > 0 {
		h.logger.Info("dropped pending records for missing files", "count", removed)
	}

	queued := 0
	for _, shot := range shots {
		if h.stopping() {
			break
		}
		if _, tracked := h.store.Get(shot.Path); tracked {
			continue
		}
		if h.discover(shot.Path) {
			h.logger.Info("found untracked screenshot", "path", shot.Path)
			queued++
		}
	}

	for _, item := range h.store.DuePending(now) {
		if h.stopping() {
			break
		}
		if _, ok := known[item.Path]; !ok {
			continue
		}
		if h.enqueue(item.Path) {
			queued++
		}
	}
	if queued > 0 {
		h.logger.Info("re-queued pending screenshots", "count", queued)
	}
	return queued
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
