package llm

import (
	"context"
	"errors"
	"strings"
)

// RetryConfig bounds how many times RetryClient tries to open a stream.
// The orchestrator's retry-once rule for transport errors (spec.md §7) is
// applied separately, in orchestrator.invokeLLM.
type RetryConfig struct {
	MaxAttempts int
}

// DefaultRetryConfig returns a one-retry default.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 2}
}

// RetryClient wraps a Client with bounded retry on transient errors,
// grounded on the teacher's internal/llm/retry.go RetryProvider.
type RetryClient struct {
	inner  Client
	config RetryConfig
}

// WrapWithRetry wraps c with retry logic.
func WrapWithRetry(c Client, config RetryConfig) Client {
	return &RetryClient{inner: c, config: config}
}

func (r *RetryClient) Name() string { return r.inner.Name() }

func (r *RetryClient) Stream(ctx context.Context, req Request) (Stream, error) {
	var lastErr error
	attempts := r.config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		stream, err := r.inner.Stream(ctx, req)
		if err == nil {
			return stream, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == attempts {
			break
		}
	}
	return nil, lastErr
}

// isRetryable mirrors the teacher's classification of rate-limit and
// connection-reset errors as worth a second attempt.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"rate limit", "429", "timeout", "connection reset", "temporarily unavailable", "503", "502"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
