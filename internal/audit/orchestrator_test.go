package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagegen/internal/config"
	"pagegen/internal/types"
)

// fakeLLM serves verifier and refiner replies from separate queues and
// records every prompt it sees.
type fakeLLM struct {
	mu              sync.Mutex
	verifier        []reply
	refiner         []reply
	verifierPrompts []string
	refinerPrompts  []string
}

type reply struct {
	text string
	err  error
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return f.CompleteWithSystem(ctx, "", prompt)
}

func (f *fakeLLM) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	var queue *[]reply
	switch system {
	case VerifierSystemPrompt:
		f.verifierPrompts = append(f.verifierPrompts, user)
		queue = &f.verifier
	case RefinerSystemPrompt:
		f.refinerPrompts = append(f.refinerPrompts, user)
		queue = &f.refiner
	default:
		return "", fmt.Errorf("unexpected system prompt")
	}
	if len(*queue) == 0 {
		return "", errors.New("script exhausted")
	}
	r := (*queue)[0]
	*queue = (*queue)[1:]
	return r.text, r.err
}

// reportJSON builds a verifier reply whose findings carry the given severities.
func reportJSON(reported int, severities ...Severity) string {
	findings := make([]map[string]interface{}, 0, len(severities))
	for i, s := range severities {
		findings = append(findings, map[string]interface{}{
			"category": "functional",
			"severity": string(s),
			"issue":    fmt.Sprintf("issue %d", i+1),
		})
	}
	data, _ := json.Marshal(map[string]interface{}{
		"audit_summary": map[string]interface{}{"health_score": reported},
		"findings":      findings,
	})
	return "```json\n" + string(data) + "\n```"
}

func bundleJSON(b types.CodeBundle) string {
	data, _ := json.Marshal(b)
	return string(data)
}

func severities(critical, warning int) []Severity {
	out := make([]Severity, 0, critical+warning)
	for i := 0; i < critical; i++ {
		out = append(out, SeverityCritical)
	}
	for i := 0; i < warning; i++ {
		out = append(out, SeverityWarning)
	}
	return out
}

var initialCode = types.CodeBundle{HTML: "<div></div>", CSS: "", TS: ""}

func newTestOrchestrator(llm *fakeLLM, mutate func(*Config)) *Orchestrator {
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return NewOrchestrator(llm, cfg)
}

func TestRun_CleanFirstPass(t *testing.T) {
	llm := &fakeLLM{verifier: []reply{{text: `{"audit_summary":{"health_score":100},"findings":[]}`}}}

	res := newTestOrchestrator(llm, nil).Run(context.Background(), initialCode, "a page")

	assert.Equal(t, initialCode, res.Code)
	assert.Equal(t, 1, res.VerifierCalls)
	assert.Equal(t, 0, res.RefinerCalls)
	assert.Equal(t, ReasonClean, res.Reason)
	assert.Equal(t, 100, res.BestScore)
	assert.NoError(t, res.Err)
}

func TestRun_DirtyThenClean(t *testing.T) {
	refined := types.CodeBundle{HTML: "<div>fixed</div>", CSS: ".a{}", TS: "export class A {}"}
	llm := &fakeLLM{
		// 2 critical + 1 warning = 40
		verifier: []reply{
			{text: reportJSON(40, severities(2, 1)...)},
			{text: `{"audit_summary":{"health_score":95},"findings":[]}`},
		},
		refiner: []reply{{text: bundleJSON(refined)}},
	}

	res := newTestOrchestrator(llm, nil).Run(context.Background(), initialCode, "a page")

	if diff := cmp.Diff(refined, res.Code); diff != "" {
		t.Errorf("code mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, res.VerifierCalls)
	assert.Equal(t, 1, res.RefinerCalls)
	assert.Equal(t, ReasonClean, res.Reason)
	// The clean report scores 100 when recomputed and was recorded before exit.
	assert.Equal(t, 100, res.BestScore)
	assert.Equal(t, 2, res.BestIteration)
}

func TestRun_DirtyThenClean_ReportedScore(t *testing.T) {
	refined := types.CodeBundle{HTML: "<p>ok</p>"}
	llm := &fakeLLM{
		verifier: []reply{
			{text: reportJSON(40, SeverityCritical)},
			{text: `{"audit_summary":{"health_score":95},"findings":[]}`},
		},
		refiner: []reply{{text: bundleJSON(refined)}},
	}

	res := newTestOrchestrator(llm, func(c *Config) {
		c.ScoreSource = config.ScoreSourceReported
	}).Run(context.Background(), initialCode, "a page")

	assert.Equal(t, refined, res.Code)
	assert.Equal(t, 95, res.BestScore)
}

func TestRun_DecreasingScoresReturnsBest(t *testing.T) {
	second := types.CodeBundle{HTML: "<second/>"}
	third := types.CodeBundle{HTML: "<third/>"}
	llm := &fakeLLM{
		verifier: []reply{
			{text: reportJSON(50, severities(2, 0)...)}, // 50
			{text: reportJSON(30, severities(2, 2)...)}, // 30
			{text: reportJSON(10, severities(2, 4)...)}, // 10
		},
		refiner: []reply{{text: bundleJSON(second)}, {text: bundleJSON(third)}},
	}

	res := newTestOrchestrator(llm, nil).Run(context.Background(), initialCode, "a page")

	assert.Equal(t, initialCode, res.Code)
	assert.Equal(t, 50, res.BestScore)
	assert.Equal(t, 1, res.BestIteration)
	assert.Equal(t, 3, res.VerifierCalls)
	assert.Equal(t, 2, res.RefinerCalls)
	assert.Equal(t, ReasonMaxIterations, res.Reason)

	scores := make([]int, 0, len(res.Steps))
	for _, s := range res.Steps {
		scores = append(scores, s.Score)
	}
	assert.Equal(t, []int{50, 30, 10}, scores)
}

func TestRun_Termination(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5} {
		t.Run(fmt.Sprintf("max=%d", n), func(t *testing.T) {
			llm := &fakeLLM{}
			for i := 0; i < n+2; i++ {
				llm.verifier = append(llm.verifier, reply{text: reportJSON(70, SeverityWarning)})
				llm.refiner = append(llm.refiner, reply{text: bundleJSON(types.CodeBundle{HTML: fmt.Sprintf("<v%d/>", i)})})
			}

			res := newTestOrchestrator(llm, func(c *Config) { c.MaxIterations = n }).
				Run(context.Background(), initialCode, "a page")

			assert.Equal(t, n, res.VerifierCalls)
			assert.Equal(t, n-1, res.RefinerCalls)
			assert.Len(t, llm.verifierPrompts, n)
			assert.Len(t, llm.refinerPrompts, n-1)
		})
	}
}

func TestRun_BestScoreMonotonic(t *testing.T) {
	// 75, 90, 50, 97
	llm := &fakeLLM{
		verifier: []reply{
			{text: reportJSON(0, SeverityCritical)},
			{text: reportJSON(0, SeverityWarning)},
			{text: reportJSON(0, severities(2, 0)...)},
			{text: reportJSON(0, SeverityBestPractice)},
		},
		refiner: []reply{
			{text: bundleJSON(types.CodeBundle{HTML: "<b/>"})},
			{text: bundleJSON(types.CodeBundle{HTML: "<c/>"})},
			{text: bundleJSON(types.CodeBundle{HTML: "<d/>"})},
		},
	}

	res := newTestOrchestrator(llm, func(c *Config) { c.MaxIterations = 4 }).
		Run(context.Background(), initialCode, "a page")

	assert.Equal(t, types.CodeBundle{HTML: "<d/>"}, res.Code)
	assert.Equal(t, 97, res.BestScore)
	assert.Equal(t, 4, res.BestIteration)
}

func TestRun_TieDoesNotReplaceBest(t *testing.T) {
	llm := &fakeLLM{
		verifier: []reply{
			{text: reportJSON(0, SeverityWarning)},
			{text: reportJSON(0, SeverityWarning)},
		},
		refiner: []reply{{text: bundleJSON(types.CodeBundle{HTML: "<same-score/>"})}},
	}

	res := newTestOrchestrator(llm, func(c *Config) { c.MaxIterations = 2 }).
		Run(context.Background(), initialCode, "a page")

	assert.Equal(t, initialCode, res.Code)
	assert.Equal(t, 1, res.BestIteration)
}

func TestRun_VerifierParseFailureRefines(t *testing.T) {
	refined := types.CodeBundle{HTML: "<fixed/>"}
	llm := &fakeLLM{
		verifier: []reply{
			{text: "I could not audit this, sorry."},
			{text: `{"findings":[]}`},
		},
		refiner: []reply{{text: bundleJSON(refined)}},
	}

	res := newTestOrchestrator(llm, nil).Run(context.Background(), initialCode, "a page")

	assert.Equal(t, 1, res.RefinerCalls)
	assert.Equal(t, refined, res.Code)
	require.Len(t, res.Steps, 2)
	assert.False(t, res.Steps[0].Parsed)
	assert.Equal(t, 0, res.Steps[0].Score)
	assert.Contains(t, llm.refinerPrompts[0], "could not be read")
}

func TestRun_VerifierFailureBeforeAnyIteration(t *testing.T) {
	llm := &fakeLLM{verifier: []reply{{err: errors.New("provider down")}}}

	res := newTestOrchestrator(llm, nil).Run(context.Background(), initialCode, "a page")

	assert.Equal(t, initialCode, res.Code)
	assert.Equal(t, ReasonVerifierFailed, res.Reason)
	assert.EqualError(t, res.Err, "provider down")
	assert.Equal(t, 0, res.RefinerCalls)
}

func TestRun_VerifierFailureReturnsBest(t *testing.T) {
	llm := &fakeLLM{
		verifier: []reply{
			{text: reportJSON(0, SeverityWarning)}, // 90
			{err: errors.New("provider down")},
		},
		refiner: []reply{{text: bundleJSON(types.CodeBundle{HTML: "<unverified/>"})}},
	}

	res := newTestOrchestrator(llm, nil).Run(context.Background(), initialCode, "a page")

	assert.Equal(t, initialCode, res.Code)
	assert.Equal(t, 90, res.BestScore)
	assert.Equal(t, ReasonVerifierFailed, res.Reason)
}

func TestRun_VerifierFailureAfterUnscoredPassReturnsInitial(t *testing.T) {
	llm := &fakeLLM{
		verifier: []reply{
			{text: "garbage"},
			{err: errors.New("provider down")},
		},
		refiner: []reply{{text: bundleJSON(types.CodeBundle{HTML: "<unverified/>"})}},
	}

	res := newTestOrchestrator(llm, nil).Run(context.Background(), initialCode, "a page")

	assert.Equal(t, initialCode, res.Code)
	assert.Equal(t, ReasonVerifierFailed, res.Reason)
	assert.Equal(t, 0, res.BestScore)
	assert.Equal(t, 1, res.RefinerCalls)
}

func TestRun_NullVerifierReplyIsNotClean(t *testing.T) {
	refined := types.CodeBundle{HTML: "<fixed/>"}
	llm := &fakeLLM{
		verifier: []reply{
			{text: "null"},
			{text: `{"findings":[]}`},
		},
		refiner: []reply{{text: bundleJSON(refined)}},
	}

	res := newTestOrchestrator(llm, nil).Run(context.Background(), initialCode, "a page")

	assert.Equal(t, ReasonClean, res.Reason)
	assert.Equal(t, refined, res.Code)
	assert.Equal(t, 2, res.VerifierCalls)
	assert.Equal(t, 1, res.RefinerCalls)
	require.Len(t, res.Steps, 2)
	assert.False(t, res.Steps[0].Parsed)
}

func TestRun_AllZeroScoresReturnsLastCurrent(t *testing.T) {
	second := types.CodeBundle{HTML: "<second/>"}
	third := types.CodeBundle{HTML: "<third/>"}
	llm := &fakeLLM{
		verifier: []reply{
			{text: "not an audit"},
			{text: reportJSON(80, severities(4, 0)...)},
			{text: reportJSON(70, severities(5, 1)...)},
		},
		refiner: []reply{
			{text: bundleJSON(second)},
			{text: bundleJSON(third)},
		},
	}

	res := newTestOrchestrator(llm, nil).Run(context.Background(), initialCode, "a page")

	assert.Equal(t, third, res.Code)
	assert.Equal(t, ReasonMaxIterations, res.Reason)
	assert.Equal(t, 0, res.BestScore)
	assert.Equal(t, 0, res.BestIteration)
	assert.Equal(t, 3, res.VerifierCalls)
	assert.Equal(t, 2, res.RefinerCalls)
}

func TestRun_RefineFailureWithoutScoreReturnsInitial(t *testing.T) {
	llm := &fakeLLM{
		verifier: []reply{
			{text: reportJSON(0, severities(4, 0)...)},
			{text: reportJSON(0, severities(4, 0)...)},
		},
		refiner: []reply{
			{text: bundleJSON(types.CodeBundle{HTML: "<second/>"})},
			{err: errors.New("boom")},
		},
	}

	res := newTestOrchestrator(llm, nil).Run(context.Background(), initialCode, "a page")

	assert.Equal(t, initialCode, res.Code)
	assert.Equal(t, ReasonRefinerFailed, res.Reason)
}

func TestRun_RefineFailurePolicies(t *testing.T) {
	// Iteration 1 scores 90 on initialCode, iteration 2 scores 75 on second,
	// then the second refine fails.
	second := types.CodeBundle{HTML: "<second/>"}
	script := func() *fakeLLM {
		return &fakeLLM{
			verifier: []reply{
				{text: reportJSON(0, SeverityWarning)},
				{text: reportJSON(0, SeverityCritical)},
			},
			refiner: []reply{
				{text: bundleJSON(second)},
				{text: "no json here"},
			},
		}
	}

	tests := []struct {
		policy string
		want   types.CodeBundle
	}{
		{config.RefineFailureBest, initialCode},
		{config.RefineFailureCurrent, second},
	}
	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			res := newTestOrchestrator(script(), func(c *Config) { c.RefineFailurePolicy = tt.policy }).
				Run(context.Background(), initialCode, "a page")

			assert.Equal(t, tt.want, res.Code)
			assert.Equal(t, ReasonRefinerParseError, res.Reason)
			assert.Equal(t, 2, res.RefinerCalls)
		})
	}
}

func TestRun_RefinerCallFailure(t *testing.T) {
	llm := &fakeLLM{
		verifier: []reply{{text: reportJSON(0, SeverityCritical)}},
		refiner:  []reply{{err: errors.New("boom")}},
	}

	res := newTestOrchestrator(llm, nil).Run(context.Background(), initialCode, "a page")

	assert.Equal(t, initialCode, res.Code)
	assert.Equal(t, ReasonRefinerFailed, res.Reason)
	assert.Equal(t, 1, res.VerifierCalls)
}

func TestRun_EmptyRefinedBundleIsFailure(t *testing.T) {
	llm := &fakeLLM{
		verifier: []reply{{text: reportJSON(0, SeverityCritical)}},
		refiner:  []reply{{text: `{"unrelated": true}`}},
	}

	res := newTestOrchestrator(llm, nil).Run(context.Background(), initialCode, "a page")

	assert.Equal(t, initialCode, res.Code)
	assert.ErrorIs(t, res.Err, ErrEmptyBundle)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	llm := &fakeLLM{verifier: []reply{{text: `{"findings":[]}`}}}
	res := newTestOrchestrator(llm, nil).Run(ctx, initialCode, "a page")

	assert.Equal(t, initialCode, res.Code)
	assert.Equal(t, ReasonCancelled, res.Reason)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 0, res.VerifierCalls)
}

// blockingLLM waits for cancellation on every call.
type blockingLLM struct{}

func (blockingLLM) Complete(ctx context.Context, prompt string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (b blockingLLM) CompleteWithSystem(ctx context.Context, _, user string) (string, error) {
	return b.Complete(ctx, user)
}

func TestRun_RunTimeout(t *testing.T) {
	o := NewOrchestrator(blockingLLM{}, Config{MaxIterations: 3, RunTimeout: 20 * time.Millisecond})

	start := time.Now()
	res := o.Run(context.Background(), initialCode, "a page")

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, initialCode, res.Code)
	assert.Equal(t, ReasonCancelled, res.Reason)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestRun_PreviousAuditInSecondPrompt(t *testing.T) {
	llm := &fakeLLM{
		verifier: []reply{
			{text: reportJSON(0, SeverityCritical)},
			{text: `{"findings":[]}`},
		},
		refiner: []reply{{text: bundleJSON(types.CodeBundle{HTML: "<x/>"})}},
	}

	newTestOrchestrator(llm, nil).Run(context.Background(), initialCode, "dashboard with table")

	require.Len(t, llm.verifierPrompts, 2)
	assert.NotContains(t, llm.verifierPrompts[0], "Previous audit")
	assert.Contains(t, llm.verifierPrompts[1], "Previous audit")
	assert.Contains(t, llm.verifierPrompts[1], "Do not re-flag")
	assert.Contains(t, llm.verifierPrompts[1], "Do not escalate")
	assert.Contains(t, llm.verifierPrompts[1], "<x/>")
	for _, p := range llm.verifierPrompts {
		assert.True(t, strings.Contains(p, "dashboard with table"))
	}
	assert.Contains(t, llm.refinerPrompts[0], "[CRITICAL] issue 1")
}

func TestRun_ConcurrentRunsAreIndependent(t *testing.T) {
	o := NewOrchestrator(nil, DefaultConfig())

	var wg sync.WaitGroup
	results := make([]Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			llm := &fakeLLM{verifier: []reply{{text: `{"findings":[]}`}}}
			local := &Orchestrator{client: llm, config: o.Config()}
			results[i] = local.Run(context.Background(), types.CodeBundle{HTML: fmt.Sprintf("<p>%d</p>", i)}, "r")
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		assert.Equal(t, fmt.Sprintf("<p>%d</p>", i), res.Code.HTML)
	}
}

func TestNewOrchestrator_Defaults(t *testing.T) {
	o := NewOrchestrator(&fakeLLM{}, Config{MaxIterations: 0, RefineFailurePolicy: "bogus", ScoreSource: ""})
	cfg := o.Config()
	assert.Equal(t, 3, cfg.MaxIterations)
	assert.Equal(t, config.RefineFailureBest, cfg.RefineFailurePolicy)
	assert.Equal(t, config.ScoreSourceComputed, cfg.ScoreSource)
}

func TestConfigFrom(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Audit.MaxIterations = 5
	cfg.Audit.RefineFailurePolicy = config.RefineFailureCurrent
	cfg.Audit.RunTimeout = "2m"

	got := ConfigFrom(cfg)
	assert.Equal(t, Config{
		MaxIterations:       5,
		RefineFailurePolicy: config.RefineFailureCurrent,
		ScoreSource:         config.ScoreSourceComputed,
		RunTimeout:          2 * time.Minute,
	}, got)
}
