package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagegen/internal/audit"
	"pagegen/internal/store"
	"pagegen/internal/types"
	"pagegen/internal/workspace"
)

// roleLLM scripts replies per model role, keyed by the system prompt.
type roleLLM struct {
	mu        sync.Mutex
	generate  []string
	chat      []string
	verifier  []string
	refiner   []string
	err       error
	lastUsers map[string]string
}

func (r *roleLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return r.CompleteWithSystem(ctx, "", prompt)
}

func (r *roleLLM) CompleteWithSystem(_ context.Context, system, user string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastUsers == nil {
		r.lastUsers = map[string]string{}
	}

	var queue *[]string
	role := ""
	switch {
	case system == audit.VerifierSystemPrompt:
		queue, role = &r.verifier, "verifier"
	case system == audit.RefinerSystemPrompt:
		queue, role = &r.refiner, "refiner"
	case system == ChatSystemPrompt:
		queue, role = &r.chat, "chat"
	case strings.HasPrefix(system, "You are an expert Angular developer creating new master pages"):
		queue, role = &r.generate, "generate"
		r.lastUsers["generate_system"] = system
	default:
		return "", errors.New("unknown role")
	}
	r.lastUsers[role] = user
	if r.err != nil && role != "verifier" && role != "refiner" {
		return "", r.err
	}
	if len(*queue) == 0 {
		return "", errors.New("script exhausted for " + role)
	}
	out := (*queue)[0]
	*queue = (*queue)[1:]
	return out, nil
}

const cleanReport = `{"audit_summary":{"health_score":100},"findings":[]}`

func newTestGenerator(t *testing.T, llm *roleLLM) (*Generator, *workspace.Workspace) {
	t.Helper()
	kv, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	ws := workspace.New(kv)
	orch := audit.NewOrchestrator(llm, audit.DefaultConfig())
	return NewGenerator(llm, orch, ws), ws
}

var catalogue = []types.ComponentMetadata{
	{Name: "AppHeaderComponent", Description: "Top bar", IDName: "app-header", Inputs: []string{"title"}, Reasoning: "page title"},
	{Name: "AppButtonComponent", Description: "Button", IDName: "app-button", Outputs: []string{"clicked"}},
}

func TestGenerate_AuditsAndPersists(t *testing.T) {
	llm := &roleLLM{
		generate: []string{"```json\n" + `{"component_name":"UsersPageComponent","path_name":"users-page","selector":"app-users-page","html_code":"<app-header [title]=\"t\"></app-header><app-widget></app-widget>","scss_code":"","ts_code":"export class UsersPageComponent {}"}` + "\n```"},
		verifier: []string{
			`{"findings":[{"severity":"CRITICAL","issue":"t undefined"}]}`,
			cleanReport,
		},
		refiner: []string{`{"html":"<app-header [title]=\"title\"></app-header><app-widget></app-widget>","css":".p{}","ts":"export class UsersPageComponent { title = 'Users'; }"}`},
	}
	g, ws := newTestGenerator(t, llm)

	res, err := g.Generate(context.Background(), "a users page", catalogue)
	require.NoError(t, err)

	want := Page{
		ComponentName: "UsersPageComponent",
		PathName:      "users-page",
		Selector:      "app-users-page",
		HTMLCode:      `<app-header [title]="title"></app-header><app-widget></app-widget>`,
		SCSSCode:      ".p{}",
		TSCode:        "export class UsersPageComponent { title = 'Users'; }",
	}
	if diff := cmp.Diff(want, res.Page); diff != "" {
		t.Errorf("page mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, audit.ReasonClean, res.Audit.Reason)
	assert.Equal(t, 2, res.Audit.VerifierCalls)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "app-widget")

	state, err := ws.LoadState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a users page", state.LastUserRequest)
	assert.Equal(t, want.HTMLCode, state.CurrentState.HTML)
	assert.Equal(t, ".p{}", state.CurrentState.SCSS)

	// The verifier is audited against the page request.
	assert.Contains(t, llm.lastUsers["verifier"], "a users page")
	assert.Contains(t, llm.lastUsers["generate_system"], "Available Inputs (use with [inputName]): title")
	assert.Contains(t, llm.lastUsers["generate_system"], "Reasoning/Usage Note: page title")
}

func TestGenerate_Failures(t *testing.T) {
	_, err := (&Generator{}).Generate(context.Background(), "  ", nil)
	assert.ErrorIs(t, err, ErrEmptyRequest)

	g, _ := newTestGenerator(t, &roleLLM{err: errors.New("provider down")})
	_, err = g.Generate(context.Background(), "page", nil)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Contains(t, err.Error(), "provider down")

	g, _ = newTestGenerator(t, &roleLLM{generate: []string{"Sorry, I can't."}})
	_, err = g.Generate(context.Background(), "page", nil)
	assert.ErrorIs(t, err, ErrGenerationFailed)

	g, _ = newTestGenerator(t, &roleLLM{generate: []string{`{"component_name":"X"}`}})
	_, err = g.Generate(context.Background(), "page", nil)
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestGenerate_AuditFailureKeepsDraft(t *testing.T) {
	llm := &roleLLM{
		generate: []string{`{"component_name":"A","html_code":"<p>draft</p>","scss_code":"","ts_code":""}`},
		// verifier script is empty, so the first audit call fails
	}
	g, _ := newTestGenerator(t, llm)

	res, err := g.Generate(context.Background(), "page", nil)
	require.NoError(t, err)
	assert.Equal(t, "<p>draft</p>", res.Page.HTMLCode)
	assert.Equal(t, audit.ReasonVerifierFailed, res.Audit.Reason)
	assert.Empty(t, res.Warnings)
}

func TestChat_EditsCurrentPage(t *testing.T) {
	llm := &roleLLM{
		chat:     []string{`{"html_code":"<h1 class=\"blue\">Hi</h1>","scss_code":".blue{color:blue}","ts_code":"export class P {}"}`},
		verifier: []string{cleanReport},
	}
	g, ws := newTestGenerator(t, llm)
	ctx := context.Background()
	require.NoError(t, ws.SaveState(ctx, types.CodeBundle{HTML: "<h1>Hi</h1>", TS: "export class P {}"}, "first"))

	res, err := g.Chat(ctx, "make the title blue")
	require.NoError(t, err)
	assert.Equal(t, `<h1 class="blue">Hi</h1>`, res.Page.HTMLCode)
	assert.Equal(t, ".blue{color:blue}", res.Page.SCSSCode)

	assert.Contains(t, llm.lastUsers["chat"], "--- HTML ---\n<h1>Hi</h1>")
	assert.Contains(t, llm.lastUsers["chat"], "make the title blue")

	state, err := ws.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "make the title blue", state.LastUserRequest)
	assert.Equal(t, ".blue{color:blue}", state.CurrentState.SCSS)
}

func TestChat_Failures(t *testing.T) {
	ctx := context.Background()

	g, _ := newTestGenerator(t, &roleLLM{})
	_, err := g.Chat(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyRequest)

	_, err = g.Chat(ctx, "change it")
	assert.ErrorIs(t, err, workspace.ErrNoSession)

	g, ws := newTestGenerator(t, &roleLLM{chat: []string{"no json"}})
	require.NoError(t, ws.SaveState(ctx, types.CodeBundle{HTML: "<p/>"}, "r"))
	_, err = g.Chat(ctx, "change it")
	assert.ErrorIs(t, err, ErrChatFailed)
}

func TestComponentsDoc_NoComponentsWarning(t *testing.T) {
	doc := ComponentsDoc(nil)
	assert.Contains(t, doc, "WARNING: NO REUSABLE COMPONENTS SELECTED/AVAILABLE.")

	doc = ComponentsDoc(catalogue[1:])
	assert.Contains(t, doc, "HTML Tag/ID to use: app-button")
	assert.Contains(t, doc, "Available Inputs: NONE")
	assert.Contains(t, doc, "Available Outputs (use with (outputName)): clicked")
	assert.NotContains(t, doc, "WARNING")
}
