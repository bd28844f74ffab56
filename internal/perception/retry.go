package perception

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"pagegen/internal/logging"
)

// ErrRetriesExhausted is returned when every attempt was throttled.
// The last throttle error is wrapped alongside it.
var ErrRetriesExhausted = errors.New("failed after retries")

// RetryConfig controls throttling backoff.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
}

// DefaultRetryConfig returns 6 attempts with 0.5s base delay and up to 1s jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 6,
		BaseDelay:   500 * time.Millisecond,
		MaxJitter:   time.Second,
	}
}

// RetryingClient decorates an LLMClient, retrying throttled calls with
// exponential backoff. Any other error is returned on the first occurrence.
type RetryingClient struct {
	inner  LLMClient
	config RetryConfig

	// Overridable in tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(max time.Duration) time.Duration
}

// NewRetryingClient wraps inner with throttling retries.
func NewRetryingClient(inner LLMClient, config RetryConfig) *RetryingClient {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &RetryingClient{
		inner:  inner,
		config: config,
		sleep:  sleepContext,
		jitter: randomJitter,
	}
}

// Unwrap returns the decorated client.
func (c *RetryingClient) Unwrap() LLMClient {
	return c.inner
}

// Complete sends a prompt and returns the completion.
func (c *RetryingClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem invokes the wrapped client, retrying throttling failures.
func (c *RetryingClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.config.MaxAttempts; attempt++ {
		out, err := c.inner.CompleteWithSystem(ctx, systemPrompt, userPrompt)
		if err == nil {
			return out, nil
		}
		if !IsThrottle(err) {
			return "", err
		}
		lastErr = err

		if attempt == c.config.MaxAttempts-1 {
			break
		}
		wait := c.Backoff(attempt)
		logging.APIWarn("Retrying due to throttling (attempt %d/%d), waiting %v: %v", attempt+1, c.config.MaxAttempts, wait, err)
		if err := c.sleep(ctx, wait); err != nil {
			return "", fmt.Errorf("retry aborted: %w", err)
		}
	}
	return "", fmt.Errorf("%w (%d attempts): %w", ErrRetriesExhausted, c.config.MaxAttempts, lastErr)
}

// Backoff returns the wait before retrying after the given 0-indexed attempt.
func (c *RetryingClient) Backoff(attempt int) time.Duration {
	return c.config.BaseDelay*time.Duration(1<<uint(attempt)) + c.jitter(c.config.MaxJitter)
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
