// Package watcher provides recursive file system monitoring for a
// screenshot tree.
//
// It uses fsnotify, which only watches single directories, and keeps the
// watch set in step with the tree: directories created after Start are
// added as they appear, and files already inside them are reported as
// created so nothing written before the watch landed is missed.
//
// Example usage:
//
//	w, err := watcher.New(watcher.Config{}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//
//	if err := w.Start(ctx, []string{"~/.steam/steam/userdata"}); err != nil {
//	    log.Fatal(err)
//	}
//
//	for event := range w.Events() {
//	    fmt.Printf("File %s: %s\n", event.Path, event.Op)
//	}
package watcher

import (
	"context"
	"time"
)

// Op describes a file operation type.
type Op uint32

// File operation types.
const (
	OpCreate Op = 1 << iota // File created
	OpWrite                 // File modified
	OpRemove                // File deleted
	OpRename                // File renamed/moved
	OpChmod                 // File permissions changed
)

// String returns a human-readable operation name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	case OpChmod:
		return "CHMOD"
	default:
		return "UNKNOWN"
	}
}

// Event represents a file system event.
type Event struct {
	// Path is the absolute path that triggered the event.
	Path string

	// Op is the operation that triggered the event.
	Op Op

	// IsDir reports whether Path was a directory when the event was seen.
	IsDir bool

	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Watcher provides file system monitoring.
type Watcher interface {
	// Start adds the given roots and every directory below them to the
	// watch set and begins delivering events in the background until ctx
	// is cancelled, Stop is called or the watcher is closed.
	Start(ctx context.Context, paths []string) error

	// Stop halts event delivery.
	Stop() error

	// Events returns the channel for receiving file system events.
	// The channel is closed by Close.
	Events() <-chan Event

	// Errors returns the channel for receiving non-fatal watcher errors.
	// The channel is closed by Close.
	Errors() <-chan error

	// Close stops the watcher and releases resources.
	Close() error
}

// Config contains watcher configuration.
type Config struct {
	// EventBuffer is the capacity of the Events channel.
	// Default: 256.
	EventBuffer int

	// CircuitBreakerThreshold is the number of consecutive fsnotify
	// errors after which ErrCircuitBreakerOpen is reported.
	// Default: 5.
	CircuitBreakerThreshold int
}
