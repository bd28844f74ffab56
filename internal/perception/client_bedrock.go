package perception

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"pagegen/internal/logging"
)

// Bedrock error codes that mean "slow down".
var bedrockThrottleCodes = map[string]bool{
	"ThrottlingException":      true,
	"TooManyRequestsException": true,
}

// converseAPI is the slice of the Bedrock runtime client the provider uses.
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClient implements LLMClient for AWS Bedrock via the Converse API.
type BedrockClient struct {
	api         converseAPI
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
}

// DefaultBedrockConfig returns sensible defaults.
func DefaultBedrockConfig(region string) BedrockConfig {
	return BedrockConfig{
		Region:      region,
		Model:       "us.anthropic.claude-sonnet-4-20250514-v1:0",
		Timeout:     5 * time.Minute,
		MaxTokens:   8192,
		Temperature: 0.1,
		MaxConns:    50,
	}
}

// NewBedrockClientWithConfig creates a Bedrock client. Credentials come from
// the AWS default chain (environment, shared config, instance role).
// SDK-level retries are disabled; RetryingClient owns throttling backoff.
func NewBedrockClientWithConfig(config BedrockConfig) (*BedrockClient, error) {
	if config.Region == "" {
		return nil, fmt.Errorf("AWS region not configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
		awsconfig.WithHTTPClient(newHTTPClient(config.Timeout, config.MaxConns)),
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}
	if config.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(config.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	api := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if config.BaseURL != "" {
			o.BaseEndpoint = aws.String(config.BaseURL)
		}
	})
	return newBedrockClient(api, config), nil
}

func newBedrockClient(api converseAPI, config BedrockConfig) *BedrockClient {
	return &BedrockClient{
		api:         api,
		model:       config.Model,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		timeout:     config.Timeout,
	}
}

// SetModel changes the model used for completions.
func (c *BedrockClient) SetModel(model string) {
	c.model = model
}

// GetModel returns the current model name.
func (c *BedrockClient) GetModel() string {
	return c.model
}

// Complete sends a prompt and returns the completion.
func (c *BedrockClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system instruction.
func (c *BedrockClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := withDefaultTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()
	logging.APIDebug("[Bedrock] CompleteWithSystem: model=%s system_len=%d user_len=%d", c.model, len(systemPrompt), len(userPrompt))

	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}

	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.model),
		System: []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: systemPrompt},
		},
		Messages: []brtypes.Message{{
			Role:    brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: userPrompt}},
		}},
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(c.maxTokens)),
			Temperature: aws.Float32(float32(c.temperature)),
		},
	})
	if err != nil {
		logging.APIWarn("[Bedrock] CompleteWithSystem: %v", err)
		return "", classifyBedrockError(err)
	}

	response := strings.TrimSpace(converseText(out))
	if response == "" {
		return "", fmt.Errorf("no completion returned")
	}

	logging.API("[Bedrock] CompleteWithSystem: completed in %v response_len=%d", time.Since(startTime), len(response))
	return response, nil
}

// converseText joins the text blocks of a Converse reply.
func converseText(out *bedrockruntime.ConverseOutput) string {
	if out == nil {
		return ""
	}
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
			sb.WriteString(text.Value)
		}
	}
	return sb.String()
}

// classifyBedrockError maps SDK errors onto the package's error types.
func classifyBedrockError(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("bedrock request failed: %w", err)
	}

	status := 0
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
	}

	if bedrockThrottleCodes[apiErr.ErrorCode()] || status == http.StatusTooManyRequests {
		return &ThrottleError{Provider: ProviderBedrock, StatusCode: status, Code: apiErr.ErrorCode(), Message: apiErr.ErrorMessage()}
	}
	return &APIError{Provider: ProviderBedrock, StatusCode: status, Message: apiErr.ErrorCode() + ": " + apiErr.ErrorMessage()}
}
