package discovery

import "errors"

// Common errors returned by the discovery package.
var (
	// ErrRootNotFound is returned when the screenshot root does not exist.
	ErrRootNotFound = errors.New("screenshot root not found")

	// ErrRootNotDirectory is returned when the screenshot root is a file.
	ErrRootNotDirectory = errors.New("screenshot root is not a directory")
)
