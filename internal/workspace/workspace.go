// Package workspace persists the page currently being edited and the
// request that produced it.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pagegen/internal/logging"
	"pagegen/internal/store"
	"pagegen/internal/types"
)

// ErrNoSession is returned when no page has been generated yet.
var ErrNoSession = errors.New("no active session found")

// Workspace reads and writes workspace state through a KVStore.
type Workspace struct {
	store types.KVStore
	now   func() time.Time
}

// New creates a workspace over kv.
func New(kv types.KVStore) *Workspace {
	return &Workspace{store: kv, now: time.Now}
}

// SaveState records code as the current page along with the request that
// produced it.
func (w *Workspace) SaveState(ctx context.Context, code types.CodeBundle, userRequest string) error {
	pc := types.PageContext{
		LastUpdated:     w.now().UTC().Format(time.RFC3339Nano),
		CurrentState:    types.StateOf(code),
		LastUserRequest: userRequest,
	}
	if err := w.store.Save(ctx, types.KeyPageContext, pc); err != nil {
		return fmt.Errorf("failed to save workspace state: %w", err)
	}
	logging.StoreDebug("Workspace state saved (request=%q)", userRequest)
	return nil
}

// LoadState returns the current page context or ErrNoSession.
func (w *Workspace) LoadState(ctx context.Context) (*types.PageContext, error) {
	var pc types.PageContext
	if err := w.store.Load(ctx, types.KeyPageContext, &pc); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to load workspace state: %w", err)
	}
	return &pc, nil
}

// SavePageRequest records the natural-language page request.
func (w *Workspace) SavePageRequest(ctx context.Context, request string) error {
	if err := w.store.Save(ctx, types.KeyPageRequest, types.PageRequest{Request: request}); err != nil {
		return fmt.Errorf("failed to save page request: %w", err)
	}
	return nil
}

// LoadPageRequest returns the saved page request, or "" if none.
func (w *Workspace) LoadPageRequest(ctx context.Context) (string, error) {
	var pr types.PageRequest
	if err := w.store.Load(ctx, types.KeyPageRequest, &pr); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load page request: %w", err)
	}
	return pr.Request, nil
}

// SaveComponents replaces the component catalogue.
func (w *Workspace) SaveComponents(ctx context.Context, components []types.ComponentMetadata) error {
	if components == nil {
		components = []types.ComponentMetadata{}
	}
	if err := w.store.Save(ctx, types.KeyComponentMetadata, components); err != nil {
		return fmt.Errorf("failed to save component metadata: %w", err)
	}
	logging.StoreDebug("Saved metadata for %d components", len(components))
	return nil
}

// LoadComponents returns the component catalogue, empty if none was saved.
func (w *Workspace) LoadComponents(ctx context.Context) ([]types.ComponentMetadata, error) {
	var components []types.ComponentMetadata
	if err := w.store.Load(ctx, types.KeyComponentMetadata, &components); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []types.ComponentMetadata{}, nil
		}
		return nil, fmt.Errorf("failed to load component metadata: %w", err)
	}
	if components == nil {
		components = []types.ComponentMetadata{}
	}
	return components, nil
}

// Clear removes the page context and page request.
func (w *Workspace) Clear(ctx context.Context) error {
	for _, key := range []string{types.KeyPageContext, types.KeyPageRequest} {
		if err := w.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to clear workspace: %w", err)
		}
	}
	return nil
}

// Reset clears the workspace and the component catalogue.
func (w *Workspace) Reset(ctx context.Context) error {
	if err := w.Clear(ctx); err != nil {
		return err
	}
	if err := w.store.Delete(ctx, types.KeyComponentMetadata); err != nil {
		return fmt.Errorf("failed to clear component metadata: %w", err)
	}
	logging.Store("Workspace reset")
	return nil
}
