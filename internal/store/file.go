package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"pagegen/internal/logging"
)

// FileStore keeps one <key>.json file per key in a directory. Decoded
// bytes are cached in memory; a filesystem watcher drops cache entries
// when files change underneath it.
type FileStore struct {
	dir     string
	mu      sync.RWMutex
	cache   map[string][]byte
	gen     map[string]uint64 // bumped by every write or invalidation of a key
	watcher *Watcher

	afterRead func(key string) // test hook between a disk read and the cache fill
	cancel  context.CancelFunc
}

// NewFileStore opens (creating if needed) a file store rooted at dir.
// If the watcher cannot start the store works uncached.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &FileStore{dir: dir, gen: make(map[string]uint64)}

	w, err := NewWatcher(dir, s.invalidate)
	if err != nil {
		logging.StoreWarn("FileStore: watcher unavailable, caching disabled: %v", err)
		return s, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		cancel()
		w.Stop()
		logging.StoreWarn("FileStore: watcher failed to start, caching disabled: %v", err)
		return s, nil
	}
	s.watcher = w
	s.cancel = cancel
	s.cache = make(map[string][]byte)

	logging.Store("FileStore opened at %s", dir)
	return s, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Load decodes the value stored under key into v.
func (s *FileStore) Load(ctx context.Context, key string, v interface{}) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	data, hit := s.cache[key]
	gen := s.gen[key]
	s.mu.RUnlock()

	if !hit {
		var err error
		data, err = os.ReadFile(s.path(key))
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", key, err)
		}
		if s.afterRead != nil {
			s.afterRead(key)
		}
		// A write or watcher event since the read makes data stale.
		s.mu.Lock()
		if _, ok := s.cache[key]; !ok && s.cache != nil && s.gen[key] == gen {
			s.cache[key] = data
		}
		s.mu.Unlock()
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// Save encodes v and writes it atomically under key.
func (s *FileStore) Save(ctx context.Context, key string, v interface{}) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	s.gen[key]++
	if s.cache != nil {
		s.cache[key] = data
	}
	logging.StoreDebug("FileStore: saved %s (%d bytes)", key, len(data))
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, key)
	s.gen[key]++
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close stops the watcher.
func (s *FileStore) Close() error {
	if s.watcher != nil {
		s.cancel()
		s.watcher.Stop()
		s.watcher = nil
	}
	return nil
}

func (s *FileStore) invalidate(key string) {
	s.mu.Lock()
	delete(s.cache, key)
	s.gen[key]++
	s.mu.Unlock()
}
