package perception

import "time"

// GroqClient implements LLMClient for the Groq API (OpenAI-compatible).
type GroqClient struct {
	*OpenAIClient
}

// DefaultGroqConfig returns sensible defaults.
func DefaultGroqConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:      apiKey,
		BaseURL:     "https://api.groq.com/openai/v1",
		Model:       "llama-3.3-70b-versatile",
		Timeout:     5 * time.Minute,
		MaxTokens:   8192,
		Temperature: 0.1,
		MaxConns:    50,
	}
}

// NewGroqClient creates a new Groq client.
func NewGroqClient(apiKey string) *GroqClient {
	return NewGroqClientWithConfig(DefaultGroqConfig(apiKey))
}

// NewGroqClientWithConfig creates a new Groq client with custom config.
func NewGroqClientWithConfig(config OpenAIConfig) *GroqClient {
	return &GroqClient{OpenAIClient: newOpenAICompatibleClient(ProviderGroq, "Groq", config)}
}
