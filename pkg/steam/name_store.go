package steam

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketNames = []byte("app_names") // AppID -> Name
)

// boltNameStore implements NameStore using BoltDB.
type boltNameStore struct {
	db *bolt.DB
}

// OpenBoltNameStore opens (creating if needed) the name cache database at path.
// timeout bounds the wait for the file lock held by another process.
func OpenBoltNameStore(path string, timeout time.Duration) (NameStore, error) {
	if timeout <= 0 {
		timeout = time.Second
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create name cache directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open name cache: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, createErr := tx.CreateBucketIfNotExists(bucketNames)
		return createErr
	}); err != nil {
		_ = db.Close() // nolint:errcheck
		return nil, fmt.Errorf("failed to create names bucket: %w", err)
	}

	return &boltNameStore{db: db}, nil
}

func (s *boltNameStore) Get(appID string) (string, error) {
	var name string
	err := s.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket(bucketNames).Get([]byte(appID)); data != nil {
			name = string(data)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to read name for %s: %w", appID, err)
	}
	return name, nil
}

func (s *boltNameStore) Put(appID, name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketNames).Put([]byte(appID), []byte(name)); err != nil {
			return fmt.Errorf("failed to store name for %s: %w", appID, err)
		}
		return nil
	})
}

func (s *boltNameStore) Close() error {
	return s.db.Close()
}

// memoryNameStore implements NameStore with a map. Used when no cache
// database is configured and in tests.
type memoryNameStore struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewMemoryNameStore creates an in-memory NameStore.
func NewMemoryNameStore() NameStore {
	return &memoryNameStore{names: make(map[string]string)}
}

func (s *memoryNameStore) Get(appID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.names[appID], nil
}

func (s *memoryNameStore) Put(appID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[appID] = name
	return nil
}

func (s *memoryNameStore) Close() error {
	return nil
}
