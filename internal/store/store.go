// Package store persists component metadata and workspace state as JSON
// blobs under well-known keys. Two backends exist: a directory of JSON files
// and a single SQLite table.
package store

import (
	"errors"
	"fmt"
	"strings"

	"pagegen/internal/config"
	"pagegen/internal/types"
)

// ErrNotFound is returned by Load when a key has never been saved.
var ErrNotFound = errors.New("key not found")

// Store is a KVStore that owns resources.
type Store interface {
	types.KVStore
	Close() error
}

// Open creates the backend selected by cfg.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.StoreBackendSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	case config.StoreBackendFile, "":
		return NewFileStore(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}

// validateKey rejects keys that could escape the store directory.
func validateKey(key string) error {
	if key == "" {
		return errors.New("empty store key")
	}
	if strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return fmt.Errorf("invalid store key %q", key)
	}
	return nil
}
