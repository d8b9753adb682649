// Package steam resolves Steam app ids to human-readable game names.
//
// Names come from the public store appdetails endpoint and are cached
// forever: an app id never changes its name mapping. Lookup failures are
// logged and reported as "no name", never as errors, so captions degrade to
// "App <id>" instead of blocking delivery.
//
// Example usage:
//
//	r := steam.NewResolver(steam.Config{Lang: "en"}, logger.Default())
//	defer r.Close()
//
//	if name, ok := r.Resolve(ctx, "440"); ok {
//	    fmt.Println(name) // Team Fortress 2
//	}
package steam

import (
	"net/http"
	"time"
)

// DefaultBaseURL is the Steam storefront API host.
const DefaultBaseURL = "https://store.steampowered.com"

// NameStore persists resolved names across restarts.
type NameStore interface {
	// Get returns the stored name for appID, or "" when absent.
	Get(appID string) (string, error)

	// Put stores the name for appID.
	Put(appID, name string) error

	// Close releases the store.
	Close() error
}

// Config contains resolver configuration.
type Config struct {
	// BaseURL is the storefront host. Default: DefaultBaseURL.
	BaseURL string

	// Lang is the "l" query parameter (e.g. "en", "russian"). Default: "en".
	Lang string

	// Region is the optional "cc" country code parameter.
	Region string

	// Timeout bounds a single lookup request. Default: 10s.
	Timeout time.Duration

	// HTTPClient overrides the client used for lookups.
	HTTPClient *http.Client

	// Store is the second-level name cache. Default: in-memory.
	Store NameStore
}

// appDetailsEntry is one value of the appdetails response object.
type appDetailsEntry struct {
	Success bool `json:"success"`
	Data    *struct {
		Name string `json:"name"`
	} `json:"data"`
}
