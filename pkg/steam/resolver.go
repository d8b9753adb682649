package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/0xmhha/shot-relay/pkg/logger"
)

// Resolver maps app ids to names with a permanent in-process cache in front
// of the NameStore and the storefront API. Concurrent misses for the same id
// may both hit the network; the later write wins with the same value.
type Resolver struct {
	baseURL string
	lang    string
	region  string
	client  *http.Client
	store   NameStore
	logger  logger.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// NewResolver creates a Resolver. The resolver owns cfg.Store and closes it
// in Close.
func NewResolver(cfg Config, log logger.Logger) *Resolver {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryNameStore()
	}

	return &Resolver{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		lang:    cfg.Lang,
		region:  cfg.Region,
		client:  cfg.HTTPClient,
		store:   cfg.Store,
		logger:  log,
		cache:   make(map[string]string),
	}
}

// Resolve returns the game name for appID, or false when it cannot be found.
func (r *Resolver) Resolve(ctx context.Context, appID string) (string, bool) {
	r.mu.RLock()
	name, ok := r.cache[appID]
	r.mu.RUnlock()
	if ok {
		return name, true
	}

	if stored, err := r.store.Get(appID); err != nil {
		r.logger.Warn("name cache read failed", "app_id", appID, "error", err)
	} else if stored != "" {
		r.remember(appID, stored)
		return stored, true
	}

	name, err := r.lookup(ctx, appID)
	if err != nil {
		r.logger.Warn("steam name lookup failed", "app_id", appID, "error", err)
		return "", false
	}
	if name == "" {
		r.logger.Debug("steam has no name for app", "app_id", appID)
		return "", false
	}

	r.remember(appID, name)
	if err := r.store.Put(appID, name); err != nil {
		r.logger.Warn("name cache write failed", "app_id", appID, "error", err)
	}
	return name, true
}

// Len returns the number of names in the in-process cache.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// Purge empties the in-process cache. The NameStore is left untouched.
func (r *Resolver) Purge() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.cache)
	r.cache = make(map[string]string)
	return n
}

// Close releases idle connections and the name store.
func (r *Resolver) Close() error {
	r.client.CloseIdleConnections()
	if err := r.store.Close(); err != nil {
		return fmt.Errorf("failed to close name store: %w", err)
	}
	return nil
}

func (r *Resolver) remember(appID, name string) {
	r.mu.Lock()
	r.cache[appID] = name
	r.mu.Unlock()
}

// lookup queries appdetails. A well-formed "not found" answer returns ("", nil).
func (r *Resolver) lookup(ctx context.Context, appID string) (string, error) {
	params := url.Values{}
	params.Set("appids", appID)
	params.Set("l", r.lang)
	if r.region != "" {
		params.Set("cc", r.region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/api/appdetails?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body) // nolint:errcheck
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var details map[string]*appDetailsEntry
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return "", fmt.Errorf("decoding appdetails: %w", err)
	}

	entry := details[appID]
	if entry == nil || !entry.Success || entry.Data == nil {
		return "", nil
	}
	return strings.TrimSpace(entry.Data.Name), nil
}
