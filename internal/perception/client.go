// Package perception talks to the LLM providers: one client per provider,
// a throttling-aware retry decorator and the JSON extractor used to read
// structured answers out of free-form completions.
package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Throttling error codes reported by providers and gateways in response bodies.
var throttleMarkers = []string{
	"ThrottlingException",
	"TooManyRequestsException",
	"RESOURCE_EXHAUSTED",
	"rate_limit_error",
	"rate_limit_exceeded",
}

// ThrottleError is returned by providers when a request was rejected for rate
// or quota reasons and may succeed if retried later.
type ThrottleError struct {
	Provider   Provider
	StatusCode int
	Code       string
	Message    string
}

func (e *ThrottleError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s throttled (%d %s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s throttled (%d): %s", e.Provider, e.StatusCode, e.Message)
}

// APIError is a non-retryable provider failure.
type APIError struct {
	Provider   Provider
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API request failed with status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsThrottle reports whether err is a throttling-class failure.
func IsThrottle(err error) bool {
	if err == nil {
		return false
	}
	var te *ThrottleError
	if errors.As(err, &te) {
		return true
	}
	var gerr genai.APIError
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Status == "RESOURCE_EXHAUSTED"
	}
	msg := err.Error()
	for _, m := range throttleMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// statusError classifies a non-2xx provider response.
func statusError(provider Provider, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512] + "..."
	}
	if status == http.StatusTooManyRequests {
		return &ThrottleError{Provider: provider, StatusCode: status, Message: msg}
	}
	for _, m := range throttleMarkers {
		if strings.Contains(msg, m) {
			return &ThrottleError{Provider: provider, StatusCode: status, Code: m, Message: msg}
		}
	}
	return &APIError{Provider: provider, StatusCode: status, Message: msg}
}

// newHTTPClient builds a client with a bounded per-host connection pool.
// Generation calls are long, so the response header timeout is generous.
func newHTTPClient(timeout time.Duration, maxConns int) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   60 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxConnsPerHost:       maxConns,
		MaxIdleConnsPerHost:   maxConns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// withDefaultTimeout applies timeout when ctx carries no deadline.
func withDefaultTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline || timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// postJSON sends body to url and returns the raw response body of a 2xx reply.
func postJSON(ctx context.Context, httpClient *http.Client, provider Provider, url string, headers map[string]string, body interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(provider, resp.StatusCode, respBody)
	}
	return respBody, nil
}
