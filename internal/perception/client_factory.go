package perception

import (
	"fmt"
	"strings"
	"time"

	"pagegen/internal/config"
)

// ProviderConfig holds the resolved provider settings.
type ProviderConfig struct {
	Provider    Provider
	APIKey      string
	Model       string // Optional model override
	BaseURL     string // Optional endpoint override
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	MaxConns    int
	Region      string // Bedrock only
	Profile     string // Bedrock only
}

// ProviderConfigFrom resolves the provider section of the application config.
func ProviderConfigFrom(cfg *config.Config) *ProviderConfig {
	return &ProviderConfig{
		Provider:    Provider(strings.ToLower(cfg.LLM.Provider)),
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Timeout:     cfg.GetLLMTimeout(),
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		MaxConns:    cfg.LLM.MaxConns,
		Region:      cfg.LLM.Region,
		Profile:     cfg.LLM.Profile,
	}
}

// RetryConfigFrom resolves the retry section of the application config.
func RetryConfigFrom(cfg *config.Config) RetryConfig {
	return RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.GetBaseDelay(),
		MaxJitter:   cfg.GetMaxJitter(),
	}
}

// NewClient builds the configured provider client wrapped with throttling retries.
// The provider is chosen once here; callers only see LLMClient.
func NewClient(cfg *config.Config) (LLMClient, error) {
	client, err := NewClientFromConfig(ProviderConfigFrom(cfg))
	if err != nil {
		return nil, err
	}
	return NewRetryingClient(client, RetryConfigFrom(cfg)), nil
}

// NewClientFromConfig creates an unwrapped LLM client from a provider config.
func NewClientFromConfig(pc *ProviderConfig) (LLMClient, error) {
	switch pc.Provider {
	case ProviderAnthropic:
		c := DefaultAnthropicConfig(pc.APIKey)
		applyOverrides(&c.Model, &c.BaseURL, &c.Timeout, &c.MaxTokens, &c.Temperature, &c.MaxConns, pc)
		return NewAnthropicClientWithConfig(c), nil

	case ProviderOpenAI:
		c := DefaultOpenAIConfig(pc.APIKey)
		applyOverrides(&c.Model, &c.BaseURL, &c.Timeout, &c.MaxTokens, &c.Temperature, &c.MaxConns, pc)
		return NewOpenAIClientWithConfig(c), nil

	case ProviderGroq:
		c := DefaultGroqConfig(pc.APIKey)
		applyOverrides(&c.Model, &c.BaseURL, &c.Timeout, &c.MaxTokens, &c.Temperature, &c.MaxConns, pc)
		return NewGroqClientWithConfig(c), nil

	case ProviderGemini:
		c := DefaultGeminiConfig(pc.APIKey)
		applyOverrides(&c.Model, &c.BaseURL, &c.Timeout, &c.MaxTokens, &c.Temperature, &c.MaxConns, pc)
		return NewGeminiClientWithConfig(c)

	case ProviderBedrock:
		c := DefaultBedrockConfig(pc.Region)
		c.Profile = pc.Profile
		applyOverrides(&c.Model, &c.BaseURL, &c.Timeout, &c.MaxTokens, &c.Temperature, &c.MaxConns, pc)
		return NewBedrockClientWithConfig(c)

	default:
		return nil, fmt.Errorf("unknown provider: %s", pc.Provider)
	}
}

func applyOverrides(model, baseURL *string, timeout *time.Duration, maxTokens *int, temperature *float64, maxConns *int, pc *ProviderConfig) {
	if pc.Model != "" {
		*model = pc.Model
	}
	if pc.BaseURL != "" {
		*baseURL = pc.BaseURL
	}
	if pc.Timeout > 0 {
		*timeout = pc.Timeout
	}
	if pc.MaxTokens > 0 {
		*maxTokens = pc.MaxTokens
	}
	// Zero temperature is a legitimate setting, so it always applies.
	*temperature = pc.Temperature
	if pc.MaxConns > 0 {
		*maxConns = pc.MaxConns
	}
}
