package store_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pagegen/internal/config"
	"pagegen/internal/store"
	"pagegen/internal/types"
)

// TestMain ensures the file watcher goroutines are stopped by Close.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func backends(t *testing.T) map[string]store.Store {
	t.Helper()
	dir := t.TempDir()

	fs, err := store.NewFileStore(filepath.Join(dir, "data"))
	require.NoError(t, err)
	sq, err := store.NewSQLiteStore(filepath.Join(dir, "pagegen.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, fs.Close())
		assert.NoError(t, sq.Close())
	})
	return map[string]store.Store{"file": fs, "sqlite": sq}
}

func TestStore_RoundTripAndLastWriterWins(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			first := types.PageContext{
				LastUpdated:     "2026-01-02T03:04:05Z",
				CurrentState:    types.PageState{HTML: "<a/>", SCSS: "a{}", TS: "x"},
				LastUserRequest: "first",
			}
			require.NoError(t, s.Save(ctx, types.KeyPageContext, first))

			second := first
			second.LastUserRequest = "second"
			require.NoError(t, s.Save(ctx, types.KeyPageContext, second))

			var got types.PageContext
			require.NoError(t, s.Load(ctx, types.KeyPageContext, &got))
			assert.Equal(t, second, got)
		})
	}
}

func TestStore_MissingKey(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var v map[string]interface{}
			err := s.Load(ctx, "never_saved", &v)
			assert.ErrorIs(t, err, store.ErrNotFound)

			require.NoError(t, s.Delete(ctx, "never_saved"))
		})
	}
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, types.KeyPageRequest, types.PageRequest{Request: "dashboard"}))
			require.NoError(t, s.Delete(ctx, types.KeyPageRequest))

			var got types.PageRequest
			assert.ErrorIs(t, s.Load(ctx, types.KeyPageRequest, &got), store.ErrNotFound)
		})
	}
}

func TestStore_RejectsUnsafeKeys(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"", "../escape", "a/b", `a\b`} {
				assert.Error(t, s.Save(ctx, key, 1), "key %q", key)
			}
		})
	}
}

func TestStore_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					assert.NoError(t, s.Save(ctx, "counter", map[string]int{"n": i}))
				}(i)
			}
			wg.Wait()

			var got map[string]int
			require.NoError(t, s.Load(ctx, "counter", &got))
			assert.GreaterOrEqual(t, got["n"], 0)
			assert.Less(t, got["n"], 16)
		})
	}
}

func TestFileStore_ExternalEditInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := store.NewFileStore(dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, types.KeyPageRequest, types.PageRequest{Request: "old"}))
	var got types.PageRequest
	require.NoError(t, s.Load(ctx, types.KeyPageRequest, &got))
	require.Equal(t, "old", got.Request)

	// Another process rewrites the file.
	path := filepath.Join(dir, types.KeyPageRequest+".json")
	require.NoError(t, os.WriteFile(path, []byte(`{"request":"new"}`), 0644))

	require.Eventually(t, func() bool {
		var v types.PageRequest
		return s.Load(ctx, types.KeyPageRequest, &v) == nil && v.Request == "new"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s1, err := store.NewFileStore(dir)
	require.NoError(t, err)
	meta := []types.ComponentMetadata{{Name: "AppButtonComponent", IDName: "app-button", Required: true}}
	require.NoError(t, s1.Save(ctx, types.KeyComponentMetadata, meta))
	require.NoError(t, s1.Close())

	s2, err := store.NewFileStore(dir)
	require.NoError(t, err)
	defer s2.Close()

	var got []types.ComponentMetadata
	require.NoError(t, s2.Load(ctx, types.KeyComponentMetadata, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "app-button", got[0].IDName)
	assert.True(t, bool(got[0].Required))
}

func TestSQLiteStore_Keys(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, types.KeyPageRequest, types.PageRequest{Request: "x"}))
	require.NoError(t, s.Save(ctx, types.KeyComponentMetadata, []types.ComponentMetadata{}))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{types.KeyComponentMetadata, types.KeyPageRequest}, keys)
}

func TestWatcher_ReportsKeys(t *testing.T) {
	dir := t.TempDir()
	changed := make(chan string, 8)
	w, err := store.NewWatcher(dir, func(key string) { changed <- key })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page_context.json"), []byte("{}"), 0644))

	select {
	case key := <-changed:
		assert.Equal(t, "page_context", key)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	assert.GreaterOrEqual(t, w.Stats().Events, 1)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := store.Open(config.StoreConfig{Backend: config.StoreBackendSQLite, SQLitePath: filepath.Join(dir, "x.db")})
	require.NoError(t, err)
	_, ok := s.(*store.SQLiteStore)
	assert.True(t, ok)
	require.NoError(t, s.Close())

	s, err = store.Open(config.StoreConfig{Backend: config.StoreBackendFile, Dir: filepath.Join(dir, "files")})
	require.NoError(t, err)
	_, ok = s.(*store.FileStore)
	assert.True(t, ok)
	require.NoError(t, s.Close())

	_, err = store.Open(config.StoreConfig{Backend: "redis"})
	assert.Error(t, err)
}
