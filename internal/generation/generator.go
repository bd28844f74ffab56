// Package generation produces new pages from a request and a component
// catalogue, and edits the current page through chat. Every result is
// passed through the audit loop before it is persisted.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pagegen/internal/audit"
	"pagegen/internal/components"
	"pagegen/internal/logging"
	"pagegen/internal/perception"
	"pagegen/internal/types"
	"pagegen/internal/workspace"
)

var (
	// ErrEmptyRequest is returned when no page request or chat message is given.
	ErrEmptyRequest = errors.New("request is required")
	// ErrGenerationFailed wraps model or parse failures of the first draft.
	ErrGenerationFailed = errors.New("failed to generate page")
	// ErrChatFailed wraps model or parse failures of a chat edit.
	ErrChatFailed = errors.New("failed to get chat response")
)

// Page is a generated Angular component.
type Page struct {
	ComponentName string `json:"component_name"`
	PathName      string `json:"path_name"`
	Selector      string `json:"selector"`
	HTMLCode      string `json:"html_code"`
	SCSSCode      string `json:"scss_code"`
	TSCode        string `json:"ts_code"`
}

// Bundle returns the page code as a bundle.
func (p Page) Bundle() types.CodeBundle {
	return types.CodeBundle{HTML: p.HTMLCode, CSS: p.SCSSCode, TS: p.TSCode}
}

// SetBundle replaces the page code.
func (p *Page) SetBundle(b types.CodeBundle) {
	p.HTMLCode, p.SCSSCode, p.TSCode = b.HTML, b.CSS, b.TS
}

// Result is a generated or edited page with its audit diagnostics.
type Result struct {
	Page     Page         `json:"page"`
	Audit    audit.Result `json:"audit"`
	Warnings []string     `json:"warnings,omitempty"`
}

// Generator drives generation and chat edits.
type Generator struct {
	client    types.LLMClient
	auditor   *audit.Orchestrator
	workspace *workspace.Workspace
}

// NewGenerator creates a generator. ws may be nil, in which case results
// are not persisted.
func NewGenerator(client types.LLMClient, auditor *audit.Orchestrator, ws *workspace.Workspace) *Generator {
	return &Generator{client: client, auditor: auditor, workspace: ws}
}

// Generate drafts a page for pageRequest using the given components, audits
// it and saves it as the current workspace state.
func (g *Generator) Generate(ctx context.Context, pageRequest string, comps []types.ComponentMetadata) (*Result, error) {
	if strings.TrimSpace(pageRequest) == "" {
		return nil, ErrEmptyRequest
	}

	timer := logging.StartTimer(logging.CategoryGeneration, "page generation")
	defer timer.Stop()

	logging.Generation("Generating page with %d components", len(comps))
	response, err := g.client.CompleteWithSystem(ctx,
		GenerationSystemPrompt(ComponentsDoc(comps)),
		FormatGenerationPrompt(pageRequest))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	var page Page
	if err := json.Unmarshal([]byte(perception.ExtractJSON(response)), &page); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	if page.Bundle().IsEmpty() {
		return nil, fmt.Errorf("%w: model returned no code", ErrGenerationFailed)
	}

	res, err := g.auditAndSave(ctx, page, pageRequest)
	if err != nil {
		return nil, err
	}
	res.Warnings = selectorWarnings(res.Page.HTMLCode, comps)
	for _, w := range res.Warnings {
		logging.GenerationWarn("%s", w)
	}
	return res, nil
}

// Chat applies message to the current workspace page, audits the edit and
// saves it.
func (g *Generator) Chat(ctx context.Context, message string) (*Result, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyRequest
	}
	if g.workspace == nil {
		return nil, workspace.ErrNoSession
	}
	state, err := g.workspace.LoadState(ctx)
	if err != nil {
		return nil, err
	}

	response, err := g.client.CompleteWithSystem(ctx, ChatSystemPrompt, FormatChatPrompt(state.CurrentState.Bundle(), message))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrChatFailed, err)
	}
	edited, err := audit.ParseBundle(response)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrChatFailed, err)
	}

	var page Page
	page.SetBundle(edited)
	return g.auditAndSave(ctx, page, message)
}

// Audit runs the audit loop on arbitrary code without touching the workspace.
func (g *Generator) Audit(ctx context.Context, code types.CodeBundle, request string) audit.Result {
	return g.auditor.Run(ctx, code, request)
}

func (g *Generator) auditAndSave(ctx context.Context, page Page, request string) (*Result, error) {
	ar := g.auditor.Run(ctx, page.Bundle(), request)
	logging.Generation("Audit finished: reason=%s best_score=%d verifier_calls=%d refiner_calls=%d",
		ar.Reason, ar.BestScore, ar.VerifierCalls, ar.RefinerCalls)
	page.SetBundle(ar.Code)

	if g.workspace != nil {
		if err := g.workspace.SaveState(ctx, ar.Code, request); err != nil {
			logging.GenerationError("Failed to persist page: %v", err)
			return nil, fmt.Errorf("failed to save page: %w", err)
		}
	}
	return &Result{Page: page, Audit: ar}, nil
}

func selectorWarnings(html string, comps []types.ComponentMetadata) []string {
	var warnings []string
	for _, tag := range components.UnknownSelectors(html, comps) {
		warnings = append(warnings, fmt.Sprintf("page uses <%s>, which is not among the provided components", tag))
	}
	return warnings
}
