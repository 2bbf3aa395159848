package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

// Config holds retry configuration
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	// ShouldRetry decides whether an error is worth another attempt.
	// IsRetryable is used when nil.
	ShouldRetry func(error) bool
}

// DefaultConfig returns a default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
	}
}

// Temporary is implemented by errors that know whether they are transient.
type Temporary interface {
	Temporary() bool
}

// WithBackoff executes a function with exponential backoff retry logic
func WithBackoff(ctx context.Context, config Config, operation func(context.Context) error) error {
	shouldRetry := config.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsRetryable
	}

	for attempt := 0; ; attempt++ {
		err := operation(ctx)
		if err == nil {
			return nil
		}

		if !shouldRetry(err) {
			return err
		}

		// Don't retry on the last attempt
		if attempt >= config.MaxRetries {
			return fmt.Errorf("operation failed after %d attempts: %w", attempt+1, err)
		}

		delay := backoff(config.BaseDelay, attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// backoff returns base*2^attempt plus up to base of jitter.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	return base*time.Duration(1<<attempt) + time.Duration(rand.Int64N(int64(base)))
}

// IsRetryable determines if an error is worth retrying. Errors implementing
// Temporary decide for themselves; anything else falls back to matching the
// error text. Context cancellation is never retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var t Temporary
	if errors.As(err, &t) {
		return t.Temporary()
	}

	errStr := strings.ToLower(err.Error())

	// Network-level errors are generally retryable
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "network") {
		return true
	}

	// Only 5xx server errors and 429 rate limiting should be retried
	if strings.Contains(errStr, "status 5") ||
		strings.Contains(errStr, "status 429") {
		return true
	}

	// Don't retry 4xx client errors (except 429)
	if strings.Contains(errStr, "status 4") {
		return false
	}

	// Unknown errors are retried
	return true
}

// HTTPStatusRetryable checks if an HTTP status code is retryable
func HTTPStatusRetryable(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
