package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// journal is one flat JSON file holding a capped, append-only record slice.
// An in-process cache avoids re-parsing the file on repeated reads; the
// cache is invalidated by file modification time, not a lock, so concurrent
// writers degrade to last-writer-wins at whole-file granularity.
type journal[T any] struct {
	mu      sync.Mutex
	path    string
	cap     int
	cache   []T
	cachedA time.Time // mtime the cache was loaded at
	loaded  bool
}

func newJournal[T any](path string, cap int) *journal[T] {
	return &journal[T]{path: path, cap: cap}
}

// load returns the current records, re-reading the file only when its
// modification time is newer than the cached copy.
func (j *journal[T]) load() ([]T, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.loadLocked()
}

func (j *journal[T]) loadLocked() ([]T, error) {
	info, err := os.Stat(j.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", filepath.Base(j.path), err)
	}

	if j.loaded && info.ModTime().Equal(j.cachedA) {
		return j.cache, nil
	}

	data, err := os.ReadFile(j.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(j.path), err)
	}

	var records []T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filepath.Base(j.path), err)
		}
	}

	j.cache = records
	j.cachedA = info.ModTime()
	j.loaded = true
	return records, nil
}

// append adds a record, trims to the cap from the front (oldest first),
// rewrites the whole file, and refreshes the cache.
func (j *journal[T]) append(record T) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	records, err := j.loadLocked()
	if err != nil {
		return err
	}
	records = append(records, record)
	if len(records) > j.cap {
		records = records[len(records)-j.cap:]
	}
	return j.rewriteLocked(records)
}

// rewrite replaces the journal contents (used by pruning).
func (j *journal[T]) rewrite(records []T) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rewriteLocked(records)
}

func (j *journal[T]) rewriteLocked(records []T) error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(j.path), err)
	}
	if err := os.WriteFile(j.path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(j.path), err)
	}

	info, err := os.Stat(j.path)
	if err != nil {
		j.loaded = false // cache will reload on next read
		return nil
	}
	j.cache = records
	j.cachedA = info.ModTime()
	j.loaded = true
	return nil
}
