package perception

import (
	"time"

	"pagegen/internal/types"
)

const defaultSystemPrompt = "You are an expert Angular developer. Respond in English. When asked for JSON, return only the JSON object."

// LLMClient defines the interface for LLM providers.
// This is an alias to types.LLMClient for use within the perception package.
type LLMClient = types.LLMClient

// Provider represents an LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
	ProviderGroq      Provider = "groq"
	ProviderBedrock   Provider = "bedrock"
)

// AnthropicConfig holds configuration for Anthropic client.
type AnthropicConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	MaxConns    int
}

// OpenAIConfig holds configuration for OpenAI-compatible clients (OpenAI, Groq).
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	MaxConns    int
}

// GeminiConfig holds configuration for Gemini client.
type GeminiConfig struct {
	APIKey      string
	BaseURL     string // empty = genai default endpoint
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	MaxConns    int
}

// BedrockConfig holds configuration for the Bedrock Converse client.
type BedrockConfig struct {
	Region      string
	Profile     string // empty = default AWS credential chain
	BaseURL     string // empty = regional endpoint
	Model       string // model ID or inference profile ARN
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	MaxConns    int
}

// AnthropicMessage represents a message.
type AnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnthropicContentBlock represents a content block in a response.
type AnthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// AnthropicRequest represents the Anthropic API request.
type AnthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []AnthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

// AnthropicResponse represents the API response.
type AnthropicResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Content    []AnthropicContentBlock `json:"content"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// OpenAIMessage represents a message.
type OpenAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIRequest represents the OpenAI chat completions request.
type OpenAIRequest struct {
	Model       string          `json:"model"`
	Messages    []OpenAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

// OpenAIResponse represents the API response.
type OpenAIResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Groq uses the OpenAI-compatible request/response format.
type GroqRequest = OpenAIRequest
type GroqResponse = OpenAIResponse
