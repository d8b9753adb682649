package dispatch

import "errors"

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("handler already started")

	// ErrClosed is returned when Start is called after Close.
	ErrClosed = errors.New("handler is closed")
)
