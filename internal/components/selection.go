package components

import (
	"context"
	"encoding/json"

	"pagegen/internal/logging"
	"pagegen/internal/perception"
	"pagegen/internal/types"
)

// Selection is the model's choice of components for a page request.
type Selection struct {
	SelectedComponents []string          `json:"selected_components"`
	Reasoning          map[string]string `json:"reasoning"`
}

// selectionWire tolerates non-string reasoning values.
type selectionWire struct {
	SelectedComponents []string                   `json:"selected_components"`
	Reasoning          map[string]json.RawMessage `json:"reasoning"`
}

// Selector asks a model which components a page needs.
type Selector struct {
	client types.LLMClient
}

// NewSelector creates a selector.
func NewSelector(client types.LLMClient) *Selector {
	return &Selector{client: client}
}

// Select returns the model's selection. Any failure yields an empty
// selection rather than an error.
func (s *Selector) Select(ctx context.Context, pageRequest string, components []types.ComponentMetadata) Selection {
	empty := Selection{SelectedComponents: []string{}, Reasoning: map[string]string{}}

	response, err := s.client.CompleteWithSystem(ctx, SelectionSystemPrompt, FormatSelectionPrompt(pageRequest, components))
	if err != nil {
		logging.ComponentsWarn("Component selection failed: %v", err)
		return empty
	}

	var w selectionWire
	if err := json.Unmarshal([]byte(perception.ExtractJSON(response)), &w); err != nil {
		logging.ComponentsWarn("Unreadable component selection: %v", err)
		return empty
	}

	sel := empty
	if w.SelectedComponents != nil {
		sel.SelectedComponents = w.SelectedComponents
	}
	for id, raw := range w.Reasoning {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			text = string(raw)
		}
		sel.Reasoning[id] = text
	}
	logging.Components("Selected %d components", len(sel.SelectedComponents))
	return sel
}

// ApplySelection returns a copy of all with Required and Reasoning set from
// sel. Components are matched on id_name, falling back to name.
func ApplySelection(sel Selection, all []types.ComponentMetadata) []types.ComponentMetadata {
	selected := make(map[string]bool, len(sel.SelectedComponents))
	for _, id := range sel.SelectedComponents {
		selected[id] = true
	}

	out := make([]types.ComponentMetadata, len(all))
	for i, c := range all {
		key := c.Key()
		if selected[key] {
			c.Required = true
			c.Reasoning = sel.Reasoning[key]
		} else {
			c.Required = false
			c.Reasoning = ""
		}
		out[i] = c
	}
	return out
}
