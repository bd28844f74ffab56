package perception

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pagegen/internal/logging"
)

// OpenAIClient implements LLMClient for OpenAI-compatible chat completion APIs.
type OpenAIClient struct {
	provider    Provider
	label       string
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	httpClient  *http.Client
}

// DefaultOpenAIConfig returns sensible defaults.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:      apiKey,
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o",
		Timeout:     5 * time.Minute,
		MaxTokens:   8192,
		Temperature: 0.1,
		MaxConns:    50,
	}
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return NewOpenAIClientWithConfig(DefaultOpenAIConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a new OpenAI client with custom config.
func NewOpenAIClientWithConfig(config OpenAIConfig) *OpenAIClient {
	return newOpenAICompatibleClient(ProviderOpenAI, "OpenAI", config)
}

func newOpenAICompatibleClient(provider Provider, label string, config OpenAIConfig) *OpenAIClient {
	return &OpenAIClient{
		provider:    provider,
		label:       label,
		apiKey:      config.APIKey,
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		model:       config.Model,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		timeout:     config.Timeout,
		httpClient:  newHTTPClient(config.Timeout, config.MaxConns),
	}
}

// SetModel changes the model used for completions.
func (c *OpenAIClient) SetModel(model string) {
	c.model = model
}

// GetModel returns the current model name.
func (c *OpenAIClient) GetModel() string {
	return c.model
}

// Complete sends a prompt and returns the completion.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system message.
func (c *OpenAIClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := withDefaultTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()
	logging.APIDebug("[%s] CompleteWithSystem: model=%s system_len=%d user_len=%d", c.label, c.model, len(systemPrompt), len(userPrompt))

	if c.apiKey == "" {
		return "", fmt.Errorf("API key not configured")
	}

	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}

	reqBody := OpenAIRequest{
		Model: c.model,
		Messages: []OpenAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	body, err := postJSON(ctx, c.httpClient, c.provider, c.baseURL+"/chat/completions", map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	}, reqBody)
	if err != nil {
		logging.APIWarn("[%s] CompleteWithSystem: %v", c.label, err)
		return "", err
	}

	var openaiResp OpenAIResponse
	if err := json.Unmarshal(body, &openaiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if openaiResp.Error != nil {
		if openaiResp.Error.Code == "rate_limit_exceeded" {
			return "", &ThrottleError{Provider: c.provider, StatusCode: http.StatusOK, Code: openaiResp.Error.Code, Message: openaiResp.Error.Message}
		}
		return "", fmt.Errorf("API error: %s", openaiResp.Error.Message)
	}

	if len(openaiResp.Choices) == 0 {
		return "", fmt.Errorf("no completion returned")
	}

	response := strings.TrimSpace(openaiResp.Choices[0].Message.Content)
	logging.API("[%s] CompleteWithSystem: completed in %v response_len=%d", c.label, time.Since(startTime), len(response))
	return response, nil
}
