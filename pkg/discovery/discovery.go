// Package discovery finds screenshot files already present under the watched root.
//
// It is used at startup to pick up files written while the service was down,
// and by the retry sweeper to learn which tracked files still exist on disk.
//
//	d := discovery.New("/screenshots", log)
//	found, err := d.Discover()
//	if err != nil {
//	    return err
//	}
//	for _, shot := range found {
//	    fmt.Println(shot.Path)
//	}
package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/0xmhha/shot-relay/pkg/paths"
)

// Logger defines the logging interface used by the discovery package.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Screenshot is a candidate file found on disk.
type Screenshot struct {
	// Path is the absolute file path, also the State Store key.
	Path string

	// Size is the file size in bytes at scan time.
	Size int64

	// ModTime is the modification time as a Unix timestamp.
	ModTime int64
}

// Discoverer scans the screenshot tree.
type Discoverer interface {
	// Discover walks the root and returns every candidate file, sorted by path.
	// Excluded directories are not descended into. Unreadable subdirectories
	// are logged and skipped.
	Discover() ([]Screenshot, error)

	// Root returns the absolute root being scanned.
	Root() string
}

type discoverer struct {
	root   string
	logger Logger
}

// New creates a Discoverer for root. A leading ~ is expanded.
func New(root string, logger Logger) Discoverer {
	expanded := ExpandHome(root)
	if abs, err := filepath.Abs(expanded); err == nil {
		expanded = abs
	}
	return &discoverer{
		root:   expanded,
		logger: logger,
	}
}

func (d *discoverer) Root() string {
	return d.root
}

func (d *discoverer) Discover() ([]Screenshot, error) {
	if err := CheckRoot(d.root); err != nil {
		return nil, err
	}

	found := make([]Screenshot, 0, 64)
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == d.root {
				return walkErr
			}
			d.logger.Warn("error walking screenshot tree, skipping",
				"path", path,
				"error", walkErr)
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if entry.IsDir() {
			if path != d.root && strings.EqualFold(entry.Name(), paths.ExcludedDirectory) {
				return filepath.SkipDir
			}
			return nil
		}

		if !paths.IsCandidate(path) {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			// Removed between readdir and stat.
			d.logger.Debug("candidate vanished during scan", "path", path, "error", err)
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		found = append(found, Screenshot{
			Path:    path,
			Size:    info.Size(),
			ModTime: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", d.root, err)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })

	d.logger.Debug("discovery complete", "root", d.root, "screenshots", len(found))
	return found, nil
}

// PathSet returns the paths of shots as a set, the form reconciliation expects.
func PathSet(shots []Screenshot) map[string]struct{} {
	set := make(map[string]struct{}, len(shots))
	for _, shot := range shots {
		set[shot.Path] = struct{}{}
	}
	return set
}

// CheckRoot verifies root exists and is a directory.
func CheckRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}
		return fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootNotDirectory, root)
	}
	return nil
}

// ExpandHome expands "~" and a leading "~/" to the user's home directory.
// Other paths, including "~user/...", are returned unchanged.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
