package nlp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// RetryConfig holds configuration for retry behavior.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 2).
	MaxRetries int
	// InitialDelay is the delay before the first retry (default: 500ms).
	InitialDelay time.Duration
	// MaxDelay caps the delay between retries (default: 10s).
	MaxDelay time.Duration
	// BackoffMultiplier is the exponential backoff factor (default: 2.0).
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration. The defaults
// stay well below a typical per-item extraction timeout so a retrying call
// still respects the unit-of-work deadline.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        2,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryClient wraps a Client and adds retry with exponential backoff for
// transient failures (rate limits, empty completions).
type RetryClient struct {
	client Client
	config *RetryConfig
}

// NewRetryClient creates a new retry client wrapper.
func NewRetryClient(client Client, config *RetryConfig) *RetryClient {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 2
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 500 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 10 * time.Second
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = 2.0
	}
	return &RetryClient{client: client, config: config}
}

// Chat implements the Client interface with retry logic.
func (r *RetryClient) Chat(ctx context.Context, messages []Message) (*Response, error) {
	return r.do(ctx, func() (*Response, error) { return r.client.Chat(ctx, messages) })
}

// ChatJSON implements the Client interface with retry logic.
func (r *RetryClient) ChatJSON(ctx context.Context, messages []Message) (*Response, error) {
	return r.do(ctx, func() (*Response, error) { return r.client.ChatJSON(ctx, messages) })
}

// Close implements the Client interface.
func (r *RetryClient) Close() error { return r.client.Close() }

func (r *RetryClient) do(ctx context.Context, call func() (*Response, error)) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(r.calculateDelay(attempt)):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during retry backoff: %w", ctx.Err())
			}
		}

		resp, err := call()
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("exhausted %d retries: %w", r.config.MaxRetries, lastErr)
}

func (r *RetryClient) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}
	return time.Duration(delay)
}

// isRetryableError reports whether err is transient. Context expiry is never
// retried; the unit-of-work deadline owns that decision.
func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, &RateLimitError{}) || errors.Is(err, &EmptyResponseError{})
}
