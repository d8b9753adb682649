package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// load reads the snapshot. Absence or corruption yields an empty map so a
// damaged state file never prevents startup.
func (s *Store) load() map[string]*Record {
	records := make(map[string]*Record)

	data, err := os.ReadFile(s.path) // nolint:gosec
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to read state file, starting empty",
				"path", s.path,
				"error", err)
		}
		return records
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("state file is corrupt, starting empty",
			"path", s.path,
			"error", err)
		return records
	}

	for path, rec := range snap.Records {
		if rec == nil {
			continue
		}
		records[path] = rec
	}
	return records
}

// writeSnapshot serializes records to a temp file next to path, fsyncs it and
// renames it over path. The temp file is removed on any failure.
func writeSnapshot(path string, records map[string]*Record) error {
	data, err := json.Marshal(snapshot{Records: records})
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	// Same directory keeps rename(2) on one filesystem.
	tmp, err := os.CreateTemp(dir, ".send_state.*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath) // nolint:errcheck
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close() // nolint:errcheck
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close() // nolint:errcheck
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	committed = true

	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry for the rename. Best effort: some
// filesystems do not support fsync on directories.
func syncDir(dir string) {
	d, err := os.Open(dir) // nolint:gosec
	if err != nil {
		return
	}
	_ = d.Sync()  // nolint:errcheck
	_ = d.Close() // nolint:errcheck
}
