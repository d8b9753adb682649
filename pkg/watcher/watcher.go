package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/0xmhha/shot-relay/pkg/discovery"
	"github.com/0xmhha/shot-relay/pkg/logger"
)

// watcher implements the Watcher interface using fsnotify.
type watcher struct {
	fsw    *fsnotify.Watcher
	logger logger.Logger
	config Config

	events chan Event
	errors chan error

	mu       sync.RWMutex
	running  bool
	closed   bool
	stopChan chan struct{}
	loopDone chan struct{}

	// Circuit breaker state.
	failureCount int
	lastFailure  time.Time
}

// New creates a new file system watcher.
func New(cfg Config, log logger.Logger) (Watcher, error) {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}
	if cfg.CircuitBreakerThreshold <= 0 {
		cfg.CircuitBreakerThreshold = 5
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &watcher{
		fsw:      fsw,
		logger:   log,
		config:   cfg,
		events:   make(chan Event, cfg.EventBuffer),
		errors:   make(chan error, 10),
		stopChan: make(chan struct{}),
	}

	log.Debug("file watcher created",
		"event_buffer", cfg.EventBuffer,
		"circuit_breaker_threshold", cfg.CircuitBreakerThreshold)

	return w, nil
}

// Start implements Watcher.Start.
func (w *watcher) Start(ctx context.Context, paths []string) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.running = true
	w.stopChan = make(chan struct{})
	w.mu.Unlock()

	expandedPaths := make([]string, 0, len(paths))
	for _, path := range paths {
		expanded := discovery.ExpandHome(path)

		info, err := os.Stat(expanded)
		if err != nil {
			if os.IsNotExist(err) {
				w.logger.Warn("watch path does not exist, skipping", "path", expanded)
				continue
			}
			w.resetRunning()
			return fmt.Errorf("failed to stat path %s: %w", expanded, err)
		}
		if !info.IsDir() {
			w.logger.Warn("watch path is not a directory, skipping", "path", expanded)
			continue
		}

		expandedPaths = append(expandedPaths, expanded)
	}

	if len(expandedPaths) == 0 {
		w.resetRunning()
		return ErrInvalidPath
	}

	for _, path := range expandedPaths {
		if err := w.addPathRecursive(path, nil); err != nil {
			w.resetRunning()
			return fmt.Errorf("failed to add path %s: %w", path, err)
		}
	}

	w.logger.Info("watcher started",
		"paths", expandedPaths,
		"watch_count", len(w.fsw.WatchList()))

	done := make(chan struct{})
	w.mu.Lock()
	w.loopDone = done
	stop := w.stopChan
	w.mu.Unlock()

	go func() {
		defer close(done)
		w.processEvents(ctx, stop)
	}()

	return nil
}

func (w *watcher) resetRunning() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

// Stop implements Watcher.Stop.
func (w *watcher) Stop() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	if !w.running {
		w.mu.Unlock()
		return ErrNotStarted
	}

	close(w.stopChan)
	w.running = false
	done := w.loopDone
	w.mu.Unlock()

	if done != nil {
		<-done
	}

	w.logger.Info("watcher stopped")
	return nil
}

// Events implements Watcher.Events.
func (w *watcher) Events() <-chan Event {
	return w.events
}

// Errors implements Watcher.Errors.
func (w *watcher) Errors() <-chan error {
	return w.errors
}

// Close implements Watcher.Close.
func (w *watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.running {
		close(w.stopChan)
		w.running = false
	}
	done := w.loopDone
	w.mu.Unlock()

	// The event loop is the only sender; wait for it before closing.
	if done != nil {
		<-done
	}

	close(w.events)
	close(w.errors)

	if err := w.fsw.Close(); err != nil {
		w.logger.Error("failed to close fsnotify watcher", "error", err)
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.logger.Debug("watcher closed")
	return nil
}

// processEvents handles events from fsnotify.
func (w *watcher) processEvents(ctx context.Context, stop <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("event processing stopped", "reason", "context cancelled")
			return

		case <-stop:
			w.logger.Debug("event processing stopped", "reason", "stop signal")
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				w.logger.Warn("fsnotify events channel closed")
				return
			}

			w.handleEvent(event, stop)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				w.logger.Warn("fsnotify errors channel closed")
				return
			}

			w.handleError(err)
		}
	}
}

// handleEvent converts one fsnotify event. New directories are added to the
// watch set and their existing files are reported as created.
func (w *watcher) handleEvent(event fsnotify.Event, stop <-chan struct{}) {
	var op Op
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		op = OpCreate
	case event.Op&fsnotify.Write == fsnotify.Write:
		op = OpWrite
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		op = OpRemove
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		op = OpRename
	case event.Op&fsnotify.Chmod == fsnotify.Chmod:
		op = OpChmod
	default:
		w.logger.Debug("unknown fsnotify operation",
			"op", event.Op,
			"path", event.Name)
		return
	}

	w.mu.Lock()
	w.failureCount = 0
	w.mu.Unlock()

	isDir := false
	if op == OpCreate {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			isDir = true
		}
	}

	w.emit(Event{
		Path:      event.Name,
		Op:        op,
		IsDir:     isDir,
		Timestamp: time.Now(),
	}, stop)

	if isDir {
		if err := w.addPathRecursive(event.Name, func(file string) {
			w.emit(Event{Path: file, Op: OpCreate, Timestamp: time.Now()}, stop)
		}); err != nil {
			w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
		}
	}
}

// emit blocks until the event is buffered or the watcher stops.
func (w *watcher) emit(event Event, stop <-chan struct{}) {
	select {
	case w.events <- event:
	case <-stop:
	}
}

// handleError processes fsnotify errors with circuit breaker pattern.
func (w *watcher) handleError(err error) {
	w.mu.Lock()
	w.failureCount++
	w.lastFailure = time.Now()
	count := w.failureCount
	w.mu.Unlock()

	w.logger.Error("fsnotify error",
		"error", err,
		"failure_count", count)

	if count >= w.config.CircuitBreakerThreshold {
		w.logger.Error("circuit breaker opened",
			"threshold", w.config.CircuitBreakerThreshold)
		err = ErrCircuitBreakerOpen
	}

	select {
	case w.errors <- err:
	default:
		w.logger.Warn("error channel full, dropping error")
	}
}

// addPathRecursive adds a directory and all subdirectories to the watcher.
// When onFile is set it is called for every regular file found.
func (w *watcher) addPathRecursive(path string, onFile func(string)) error {
	if err := w.fsw.Add(path); err != nil {
		return fmt.Errorf("failed to add path: %w", err)
	}

	w.logger.Debug("added watch path", "path", path)

	return filepath.WalkDir(path, func(subPath string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("error walking path",
				"path", subPath,
				"error", err)
			return nil // Skip but continue walking.
		}

		if !d.IsDir() {
			if onFile != nil && d.Type().IsRegular() {
				onFile(subPath)
			}
			return nil
		}

		if subPath == path {
			return nil
		}

		if addErr := w.fsw.Add(subPath); addErr != nil {
			w.logger.Warn("failed to add subdirectory",
				"path", subPath,
				"error", addErr)
			return nil
		}

		w.logger.Debug("added watch subdirectory", "path", subPath)
		return nil
	})
}
