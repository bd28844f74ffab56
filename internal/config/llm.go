package config

import "time"

// Supported LLM providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderGroq      = "groq"
	ProviderBedrock   = "bedrock"
)

// ValidProviders lists all supported LLM providers, lowest key priority first.
// Bedrock authenticates through the AWS credential chain and is never picked
// by key detection.
var ValidProviders = []string{ProviderAnthropic, ProviderOpenAI, ProviderGemini, ProviderGroq, ProviderBedrock}

// LLMConfig configures the model invocation service.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // anthropic, openai, gemini, groq, bedrock
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`    // empty = provider default
	BaseURL     string  `yaml:"base_url"` // empty = provider default
	Timeout     string  `yaml:"timeout"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	// MaxConns bounds concurrent connections per provider host.
	MaxConns int `yaml:"max_conns"`

	// Bedrock only.
	Region  string `yaml:"region"`
	Profile string `yaml:"profile"` // empty = default credential chain
}

// NeedsAPIKey reports whether the configured provider authenticates with
// llm.api_key.
func (c LLMConfig) NeedsAPIKey() bool {
	return c.Provider != ProviderBedrock
}

// RetryConfig configures throttling backoff around provider calls.
// Delay for attempt n is base*2^n plus a random jitter below MaxJitter.
type RetryConfig struct {
	MaxAttempts int    `yaml:"max_attempts"`
	BaseDelay   string `yaml:"base_delay"`
	MaxJitter   string `yaml:"max_jitter"`
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 300*time.Second)
}

// GetBaseDelay returns the retry base delay.
func (c *Config) GetBaseDelay() time.Duration {
	return parseDuration(c.Retry.BaseDelay, 500*time.Millisecond)
}

// GetMaxJitter returns the upper bound of the retry jitter.
func (c *Config) GetMaxJitter() time.Duration {
	return parseDuration(c.Retry.MaxJitter, time.Second)
}
