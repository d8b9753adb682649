package steam

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/shot-relay/pkg/logger"
)

// fakeStorefront serves appdetails responses from a handler and counts calls.
type fakeStorefront struct {
	*httptest.Server
	calls atomic.Int32
}

func newFakeStorefront(t *testing.T, handler http.HandlerFunc) *fakeStorefront {
	t.Helper()
	f := &fakeStorefront{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

func newTestResolver(t *testing.T, baseURL string, store NameStore) *Resolver {
	t.Helper()
	r := NewResolver(Config{
		BaseURL: baseURL,
		Lang:    "english",
		Region:  "us",
		Timeout: 2 * time.Second,
		Store:   store,
	}, logger.Noop())
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestResolveSuccessIsCached(t *testing.T) {
	var gotQuery atomic.Value
	srv := newFakeStorefront(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		assert.Equal(t, "/api/appdetails", r.URL.Path)
		fmt.Fprint(w, `{"440":{"success":true,"data":{"name":"Team Fortress 2"}}}`)
	})
	r := newTestResolver(t, srv.URL, nil)

	name, ok := r.Resolve(context.Background(), "440")
	require.True(t, ok)
	assert.Equal(t, "Team Fortress 2", name)

	name, ok = r.Resolve(context.Background(), "440")
	require.True(t, ok)
	assert.Equal(t, "Team Fortress 2", name)

	assert.Equal(t, int32(1), srv.calls.Load(), "second resolve must be served from cache")
	assert.Equal(t, 1, r.Len())

	query := gotQuery.Load().(url.Values)
	assert.Equal(t, []string{"440"}, query["appids"])
	assert.Equal(t, []string{"english"}, query["l"])
	assert.Equal(t, []string{"us"}, query["cc"])
}

func TestResolveFailuresYieldNone(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"440": {`)
			},
		},
		{
			name: "null body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `null`)
			},
		},
		{
			name: "missing entry",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"730":{"success":true,"data":{"name":"CS"}}}`)
			},
		},
		{
			name: "unsuccessful",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"440":{"success":false}}`)
			},
		},
		{
			name: "empty name",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"440":{"success":true,"data":{"name":"  "}}}`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeStorefront(t, tt.handler)
			r := newTestResolver(t, srv.URL, nil)

			name, ok := r.Resolve(context.Background(), "440")
			assert.False(t, ok)
			assert.Empty(t, name)
			assert.Zero(t, r.Len(), "failures must not be cached")

			_, _ = r.Resolve(context.Background(), "440")
			assert.Equal(t, int32(2), srv.calls.Load(), "failed lookups are retried")
		})
	}
}

func TestResolveTransportError(t *testing.T) {
	srv := newFakeStorefront(t, func(w http.ResponseWriter, r *http.Request) {})
	addr := srv.URL
	srv.Close()

	r := newTestResolver(t, addr, nil)
	name, ok := r.Resolve(context.Background(), "440")
	assert.False(t, ok)
	assert.Empty(t, name)
}

func TestResolveUsesNameStore(t *testing.T) {
	srv := newFakeStorefront(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("storefront must not be called when the store has the name")
	})

	store := NewMemoryNameStore()
	require.NoError(t, store.Put("570", "Dota 2"))

	r := newTestResolver(t, srv.URL, store)
	name, ok := r.Resolve(context.Background(), "570")
	require.True(t, ok)
	assert.Equal(t, "Dota 2", name)
	assert.Equal(t, 1, r.Len())
}

func TestPurge(t *testing.T) {
	srv := newFakeStorefront(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"440":{"success":true,"data":{"name":"Team Fortress 2"}}}`)
	})
	r := newTestResolver(t, srv.URL, nil)

	_, ok := r.Resolve(context.Background(), "440")
	require.True(t, ok)

	assert.Equal(t, 1, r.Purge())
	assert.Zero(t, r.Len())

	// The memory store still holds it, so no second request.
	_, ok = r.Resolve(context.Background(), "440")
	require.True(t, ok)
	assert.Equal(t, int32(1), srv.calls.Load())
}

func TestBoltNameStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "names.db")

	store, err := OpenBoltNameStore(path, time.Second)
	require.NoError(t, err)

	name, err := store.Get("440")
	require.NoError(t, err)
	assert.Empty(t, name)

	require.NoError(t, store.Put("440", "Team Fortress 2"))
	require.NoError(t, store.Close())

	reopened, err := OpenBoltNameStore(path, time.Second)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	name, err = reopened.Get("440")
	require.NoError(t, err)
	assert.Equal(t, "Team Fortress 2", name)
}

func TestResolverWritesThroughToBolt(t *testing.T) {
	srv := newFakeStorefront(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"620":{"success":true,"data":{"name":"Portal 2"}}}`)
	})
	path := filepath.Join(t.TempDir(), "names.db")

	store, err := OpenBoltNameStore(path, time.Second)
	require.NoError(t, err)
	r := NewResolver(Config{BaseURL: srv.URL, Store: store}, logger.Noop())

	_, ok := r.Resolve(context.Background(), "620")
	require.True(t, ok)
	require.NoError(t, r.Close())

	reopened, err := OpenBoltNameStore(path, time.Second)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	name, err := reopened.Get("620")
	require.NoError(t, err)
	assert.Equal(t, "Portal 2", name)
}
