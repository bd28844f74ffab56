package types

import (
	"context"
)

// LLMClient defines the interface for LLM interactions.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// KVStore persists JSON blobs under well-known keys.
// Last writer wins; Load returns an error wrapping a not-found sentinel when
// the key was never saved.
type KVStore interface {
	Load(ctx context.Context, key string, v interface{}) error
	Save(ctx context.Context, key string, v interface{}) error
	Delete(ctx context.Context, key string) error
}

// Well-known store keys.
const (
	KeyComponentMetadata = "component_metadata"
	KeyPageContext       = "page_context"
	KeyPageRequest       = "page_request"
)
