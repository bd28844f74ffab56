package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ValidationError reports one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Message)
}

// Validate validates the configuration. It returns the first *ValidationError found.
func (c *Config) Validate() error {
	if !slices.Contains(ValidProviders, c.LLM.Provider) {
		return &ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("%q is not one of %s", c.LLM.Provider, strings.Join(ValidProviders, ", ")),
		}
	}
	if c.LLM.NeedsAPIKey() && c.LLM.APIKey == "" {
		return &ValidationError{
			Field:   "llm.api_key",
			Message: "not configured (set ANTHROPIC_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY or GROQ_API_KEY)",
		}
	}
	if c.LLM.Provider == ProviderBedrock && c.LLM.Region == "" {
		return &ValidationError{Field: "llm.region", Message: "required for bedrock (set AWS_REGION)"}
	}
	if c.LLM.MaxTokens <= 0 {
		return &ValidationError{Field: "llm.max_tokens", Message: "must be positive"}
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return &ValidationError{Field: "llm.temperature", Message: "must be within [0, 2]"}
	}
	if c.Retry.MaxAttempts < 1 {
		return &ValidationError{Field: "retry.max_attempts", Message: "must be at least 1"}
	}
	if err := validateDuration("retry.base_delay", c.Retry.BaseDelay); err != nil {
		return err
	}
	if c.Audit.MaxIterations < 1 {
		return &ValidationError{Field: "audit.max_iterations", Message: "must be at least 1"}
	}
	switch c.Audit.RefineFailurePolicy {
	case RefineFailureBest, RefineFailureCurrent:
	default:
		return &ValidationError{
			Field:   "audit.refine_failure_policy",
			Message: fmt.Sprintf("%q is not one of best, current", c.Audit.RefineFailurePolicy),
		}
	}
	switch c.Audit.ScoreSource {
	case ScoreSourceComputed, ScoreSourceReported:
	default:
		return &ValidationError{
			Field:   "audit.score_source",
			Message: fmt.Sprintf("%q is not one of computed, reported", c.Audit.ScoreSource),
		}
	}
	if err := validateDuration("audit.run_timeout", c.Audit.RunTimeout); err != nil {
		return err
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &ValidationError{Field: "server.port", Message: "must be within 1-65535"}
	}
	switch c.Store.Backend {
	case StoreBackendFile:
		if c.Store.Dir == "" {
			return &ValidationError{Field: "store.dir", Message: "required for the file backend"}
		}
	case StoreBackendSQLite:
		if c.Store.SQLitePath == "" {
			return &ValidationError{Field: "store.sqlite_path", Message: "required for the sqlite backend"}
		}
	default:
		return &ValidationError{
			Field:   "store.backend",
			Message: fmt.Sprintf("%q is not one of file, sqlite", c.Store.Backend),
		}
	}
	if c.Tasks.MaxEntries < 1 {
		return &ValidationError{Field: "tasks.max_entries", Message: "must be at least 1"}
	}
	if c.Components.Concurrency < 1 {
		return &ValidationError{Field: "components.concurrency", Message: "must be at least 1"}
	}
	return nil
}

func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return &ValidationError{Field: field, Message: err.Error()}
	}
	if d <= 0 {
		return &ValidationError{Field: field, Message: "must be positive"}
	}
	return nil
}
