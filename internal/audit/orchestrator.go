package audit

import (
	"context"
	"time"

	"pagegen/internal/config"
	"pagegen/internal/logging"
	"pagegen/internal/types"
)

// State is the orchestrator's position in the loop.
type State string

const (
	StateVerifying State = "VERIFYING"
	StateRefining  State = "REFINING"
	StateDone      State = "DONE"
)

// Reason records why a run stopped.
type Reason string

const (
	ReasonClean             Reason = "clean"
	ReasonMaxIterations     Reason = "max_iterations"
	ReasonVerifierFailed    Reason = "verifier_failed"
	ReasonRefinerFailed     Reason = "refiner_failed"
	ReasonRefinerParseError Reason = "refiner_parse_failed"
	ReasonCancelled         Reason = "cancelled"
)

// Config controls a single run.
type Config struct {
	MaxIterations       int
	RefineFailurePolicy string
	ScoreSource         string
	RunTimeout          time.Duration
}

// DefaultConfig returns three iterations, the best-on-refine-failure policy
// and computed scores.
func DefaultConfig() Config {
	return Config{
		MaxIterations:       3,
		RefineFailurePolicy: config.RefineFailureBest,
		ScoreSource:         config.ScoreSourceComputed,
	}
}

// ConfigFrom resolves the audit section of the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		MaxIterations:       cfg.Audit.MaxIterations,
		RefineFailurePolicy: cfg.Audit.RefineFailurePolicy,
		ScoreSource:         cfg.Audit.ScoreSource,
		RunTimeout:          cfg.GetRunTimeout(),
	}
}

// Step is one verifier pass as seen in the run trace.
type Step struct {
	Iteration int    `json:"iteration"`
	Score     int    `json:"score"`
	Findings  int    `json:"findings"`
	Parsed    bool   `json:"parsed"`
	Refined   bool   `json:"refined"`
	Error     string `json:"error,omitempty"`
}

// Result is the outcome of a run. Code is always usable.
type Result struct {
	Code          types.CodeBundle `json:"code"`
	Iterations    int              `json:"iterations"`
	VerifierCalls int              `json:"verifier_calls"`
	RefinerCalls  int              `json:"refiner_calls"`
	BestScore     int              `json:"best_score"`
	BestIteration int              `json:"best_iteration"`
	LastReport    *Report          `json:"last_report,omitempty"`
	Reason        Reason           `json:"reason"`
	Steps         []Step           `json:"steps"`
	Err           error            `json:"-"`
}

// Orchestrator drives the verifier/refiner loop over one LLM client.
// It holds no per-run state and is safe for concurrent Run calls.
type Orchestrator struct {
	client types.LLMClient
	config Config
}

// NewOrchestrator creates an orchestrator. Invalid settings fall back to
// the defaults.
func NewOrchestrator(client types.LLMClient, cfg Config) *Orchestrator {
	def := DefaultConfig()
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.RefineFailurePolicy != config.RefineFailureCurrent {
		cfg.RefineFailurePolicy = config.RefineFailureBest
	}
	if cfg.ScoreSource != config.ScoreSourceReported {
		cfg.ScoreSource = config.ScoreSourceComputed
	}
	return &Orchestrator{client: client, config: cfg}
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config {
	return o.config
}

// run carries the mutable state of one Run call.
type run struct {
	state         State
	current       types.CodeBundle
	best          types.CodeBundle
	bestSet       bool
	bestScore     int
	bestIteration int
	previous      *Report
	result        Result
}

// bestOrCurrent is the last-iteration result: the best scored bundle, or the
// current one when no pass scored above zero. Early exits use r.best, which
// starts as the initial code.
func (r *run) bestOrCurrent() types.CodeBundle {
	if r.bestSet {
		return r.best
	}
	return r.current
}

func (r *run) finish(code types.CodeBundle, reason Reason, err error) Result {
	r.state = StateDone
	r.result.Code = code
	r.result.Reason = reason
	r.result.Err = err
	r.result.BestScore = r.bestScore
	r.result.BestIteration = r.bestIteration
	return r.result
}

// Run audits initial against request and refines it until the verifier is
// satisfied or MaxIterations verifier calls have been made. It never fails:
// model errors and cancellation end the run early with the best code seen.
func (o *Orchestrator) Run(ctx context.Context, initial types.CodeBundle, request string) Result {
	if o.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.RunTimeout)
		defer cancel()
	}

	timer := logging.StartTimer(logging.CategoryAudit, "audit run")
	defer timer.Stop()

	r := &run{state: StateVerifying, current: initial, best: initial}
	maxIter := o.config.MaxIterations

	for iteration := 1; iteration <= maxIter; iteration++ {
		r.result.Iterations = iteration
		r.state = StateVerifying
		logging.Audit("Iteration %d/%d: %s", iteration, maxIter, r.state)

		if err := ctx.Err(); err != nil {
			logging.AuditWarn("Run cancelled before verifier call: %v", err)
			return r.finish(r.best, ReasonCancelled, err)
		}

		r.result.VerifierCalls++
		response, err := o.client.CompleteWithSystem(ctx, VerifierSystemPrompt,
			FormatVerifierPrompt(r.current, request, iteration, r.previous))
		if err != nil {
			logging.AuditWarn("Verifier call failed on iteration %d: %v", iteration, err)
			r.result.Steps = append(r.result.Steps, Step{Iteration: iteration, Error: err.Error()})
			return r.finish(r.best, failureReason(ctx, ReasonVerifierFailed), err)
		}

		report, parseErr := ParseReport(response)
		step := Step{Iteration: iteration, Parsed: parseErr == nil}
		score := 0
		if parseErr != nil {
			logging.AuditWarn("Unreadable audit report on iteration %d, assuming refinement needed: %v", iteration, parseErr)
			step.Error = parseErr.Error()
		} else {
			score = o.score(report)
			step.Findings = len(report.Findings)
			r.result.LastReport = report
		}
		step.Score = score

		if score > r.bestScore {
			r.best = r.current
			r.bestSet = true
			r.bestScore = score
			r.bestIteration = iteration
		}
		logging.AuditDebug("Iteration %d score=%d best=%d (iteration %d)", iteration, score, r.bestScore, r.bestIteration)

		if report.Clean() {
			r.result.Steps = append(r.result.Steps, step)
			logging.Audit("Verifier reported no findings on iteration %d", iteration)
			return r.finish(r.current, ReasonClean, nil)
		}

		if iteration == maxIter {
			r.result.Steps = append(r.result.Steps, step)
			logging.Audit("Reached %d iterations, returning best (score %d)", maxIter, r.bestScore)
			return r.finish(r.bestOrCurrent(), ReasonMaxIterations, nil)
		}

		r.state = StateRefining
		logging.Audit("Iteration %d/%d: %s", iteration, maxIter, r.state)
		r.result.RefinerCalls++
		refined, reason, err := o.refine(ctx, r.current, report, request)
		if err != nil {
			step.Error = err.Error()
			r.result.Steps = append(r.result.Steps, step)
			logging.AuditWarn("Refine step failed on iteration %d: %v", iteration, err)
			return r.finish(o.onRefineFailure(r), failureReason(ctx, reason), err)
		}
		step.Refined = true
		r.result.Steps = append(r.result.Steps, step)

		r.current = refined
		r.previous = report
	}

	// Unreachable with MaxIterations >= 1.
	return r.finish(r.bestOrCurrent(), ReasonMaxIterations, nil)
}

func (o *Orchestrator) refine(ctx context.Context, code types.CodeBundle, report *Report, request string) (types.CodeBundle, Reason, error) {
	response, err := o.client.CompleteWithSystem(ctx, RefinerSystemPrompt, FormatRefinerPrompt(code, report, request))
	if err != nil {
		return types.CodeBundle{}, ReasonRefinerFailed, err
	}
	refined, err := ParseBundle(response)
	if err != nil {
		return types.CodeBundle{}, ReasonRefinerParseError, err
	}
	return refined, "", nil
}

func (o *Orchestrator) onRefineFailure(r *run) types.CodeBundle {
	if o.config.RefineFailurePolicy == config.RefineFailureCurrent {
		return r.current
	}
	return r.best
}

func (o *Orchestrator) score(report *Report) int {
	if o.config.ScoreSource == config.ScoreSourceReported {
		return report.ReportedScore
	}
	return report.AuditSummary.HealthScore
}

func failureReason(ctx context.Context, fallback Reason) Reason {
	if ctx.Err() != nil {
		return ReasonCancelled
	}
	return fallback
}
