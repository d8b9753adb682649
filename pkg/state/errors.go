package state

import "errors"

// Common errors returned by the state store.
var (
	// ErrEmptyPath is returned when the store is opened without a snapshot path.
	ErrEmptyPath = errors.New("state file path is empty")

	// ErrPersist wraps failures to write the snapshot. The previous snapshot
	// stays on disk and the in-memory state keeps the mutation.
	ErrPersist = errors.New("failed to persist state")
)
