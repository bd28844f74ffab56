// Package components discovers reusable Angular components, describes them
// with a model, and selects the ones a page request needs.
package components

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"pagegen/internal/logging"
	"pagegen/internal/perception"
	"pagegen/internal/types"
)

// DefaultConcurrency bounds parallel metadata requests.
const DefaultConcurrency = 4

// Analyzer turns component source files into metadata.
type Analyzer struct {
	client      types.LLMClient
	parser      *Parser
	segments    []string
	concurrency int
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithPathSegments restricts discovery to components under these folders.
func WithPathSegments(segments []string) AnalyzerOption {
	return func(a *Analyzer) {
		if len(segments) > 0 {
			a.segments = segments
		}
	}
}

// WithConcurrency bounds the number of in-flight model calls.
func WithConcurrency(n int) AnalyzerOption {
	return func(a *Analyzer) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(client types.LLMClient, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		client:      client,
		parser:      NewParser(),
		segments:    DefaultPathSegments,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// metadataReply is the model's answer. id_name may be null.
type metadataReply struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ImportPath  string  `json:"import_path"`
	IDName      *string `json:"id_name"`
}

// AnalyzeDir discovers and analyzes every component under root. Components
// whose analysis fails are dropped; order follows discovery order. It only
// fails on discovery errors or cancellation.
func (a *Analyzer) AnalyzeDir(ctx context.Context, root string) ([]types.ComponentMetadata, error) {
	sources, err := Discover(root, a.segments)
	if err != nil {
		return nil, fmt.Errorf("failed to discover components: %w", err)
	}

	timer := logging.StartTimer(logging.CategoryComponents, "component analysis")
	defer timer.Stop()

	results := make([]*types.ComponentMetadata, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			meta, err := a.AnalyzeComponent(gctx, src)
			if err != nil {
				logging.ComponentsWarn("Failed to analyze %s: %v", src.BaseName, err)
				return nil
			}
			results[i] = &meta
			logging.ComponentsDebug("Analyzed %s as %s", src.BaseName, meta.Key())
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]types.ComponentMetadata, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	logging.Components("Generated metadata for %d of %d components", len(out), len(sources))
	return out, nil
}

// AnalyzeComponent asks the model to describe one component and enriches
// the reply with its source code and parsed inputs/outputs.
func (a *Analyzer) AnalyzeComponent(ctx context.Context, src SourceFiles) (types.ComponentMetadata, error) {
	ts, err := readOptional(src.TSPath)
	if err != nil {
		return types.ComponentMetadata{}, err
	}
	if strings.TrimSpace(ts) == "" {
		return types.ComponentMetadata{}, fmt.Errorf("empty TypeScript file %s", src.TSPath)
	}
	html, _ := readOptional(src.HTMLPath)
	scss, _ := readOptional(src.SCSSPath)

	parsed, err := a.parser.Parse(ctx, []byte(ts))
	if err != nil {
		logging.ComponentsWarn("Parser failed for %s, continuing without parsed facts: %v", src.BaseName, err)
		parsed = &ParsedComponent{Inputs: []string{}, Outputs: []string{}}
	}

	response, err := a.client.CompleteWithSystem(ctx, MetadataSystemPrompt, FormatMetadataPrompt(src.BaseName, ts, html, scss))
	if err != nil {
		return types.ComponentMetadata{}, fmt.Errorf("metadata request failed: %w", err)
	}

	var reply metadataReply
	if err := json.Unmarshal([]byte(perception.ExtractJSON(response)), &reply); err != nil {
		return types.ComponentMetadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}

	meta := types.ComponentMetadata{
		Name:        reply.Name,
		Description: reply.Description,
		ImportPath:  reply.ImportPath,
		Selector:    parsed.Selector,
		Inputs:      parsed.Inputs,
		Outputs:     parsed.Outputs,
		HTMLCode:    html,
		SCSSCode:    scss,
		TSCode:      ts,
		Required:    false,
		Reasoning:   "",
	}
	if meta.Name == "" {
		meta.Name = parsed.ClassName
	}
	if meta.Name == "" {
		meta.Name = src.BaseName
	}
	if reply.IDName != nil {
		meta.IDName = strings.TrimSpace(*reply.IDName)
	}
	if meta.IDName == "" {
		meta.IDName = parsed.Selector
	}
	if meta.IDName == "" {
		meta.IDName = KebabCase(meta.Name)
	}
	return meta, nil
}

// KebabCase converts PascalCase to kebab-case: AppButtonComponent becomes
// app-button-component.
func KebabCase(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			sb.WriteByte('-')
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}

func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
