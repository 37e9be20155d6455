package nlp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyClient fails a fixed number of times before succeeding.
type flakyClient struct {
	failures int
	failWith error
	calls    int
}

func (c *flakyClient) Chat(context.Context, []Message) (*Response, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, c.failWith
	}
	return &Response{Content: "ok"}, nil
}

func (c *flakyClient) ChatJSON(ctx context.Context, messages []Message) (*Response, error) {
	return c.Chat(ctx, messages)
}

func (c *flakyClient) Close() error { return nil }

func fastRetry(maxRetries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:        maxRetries,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestRetryRecoversFromRateLimit(t *testing.T) {
	inner := &flakyClient{failures: 2, failWith: NewRateLimitError()}
	client := NewRetryClient(inner, fastRetry(2))

	resp, err := client.Chat(context.Background(), []Message{NewUserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryRecoversFromEmptyResponse(t *testing.T) {
	inner := &flakyClient{failures: 1, failWith: &EmptyResponseError{}}
	client := NewRetryClient(inner, fastRetry(2))

	_, err := client.ChatJSON(context.Background(), []Message{NewUserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestRetryExhaustsAndReportsLastError(t *testing.T) {
	inner := &flakyClient{failures: 10, failWith: NewRateLimitError()}
	client := NewRetryClient(inner, fastRetry(2))

	_, err := client.Chat(context.Background(), []Message{NewUserMessage("hi")})
	require.Error(t, err)
	assert.ErrorIs(t, err, &RateLimitError{})
	assert.Equal(t, 3, inner.calls, "initial attempt plus two retries")
}

func TestRetryDoesNotRetryPermanentErrors(t *testing.T) {
	inner := &flakyClient{failures: 10, failWith: errors.New("invalid api key")}
	client := NewRetryClient(inner, fastRetry(3))

	_, err := client.Chat(context.Background(), []Message{NewUserMessage("hi")})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryDoesNotRetryContextExpiry(t *testing.T) {
	inner := &flakyClient{failures: 10, failWith: context.DeadlineExceeded}
	client := NewRetryClient(inner, fastRetry(3))

	_, err := client.Chat(context.Background(), []Message{NewUserMessage("hi")})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryStopsWhenCallerCancels(t *testing.T) {
	inner := &flakyClient{failures: 10, failWith: NewRateLimitError()}
	client := NewRetryClient(inner, &RetryConfig{
		MaxRetries:        5,
		InitialDelay:      time.Hour,
		MaxDelay:          time.Hour,
		BackoffMultiplier: 2.0,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := client.Chat(ctx, []Message{NewUserMessage("hi")})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryConfigDefaults(t *testing.T) {
	client := NewRetryClient(&flakyClient{}, nil)
	assert.Equal(t, 2, client.config.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, client.config.InitialDelay)
}

func TestRateLimitErrorMatching(t *testing.T) {
	wrapped := errors.Join(errors.New("outer"), NewRateLimitError("slow down"))
	assert.ErrorIs(t, wrapped, &RateLimitError{})
	assert.Equal(t, "slow down", NewRateLimitError("slow down").Error())
	assert.Equal(t, ErrRateLimit.Error(), NewRateLimitError().Error())
}
