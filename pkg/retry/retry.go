package retry

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxRetries     int           // Maximum number of retry attempts
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration
	Multiplier     float64       // Backoff multiplier (1.0 = linear growth off attempt count)

	// RetryIf decides whether an error is worth another attempt. When nil,
	// IsRetryable is used.
	RetryIf func(error) bool
}

// DefaultConfig returns sensible defaults for retries.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// LinearConfig returns the upload retry policy: up to maxRetries attempts
// with backoff growing linearly (base, 2*base, 3*base, ...).
func LinearConfig(maxRetries int, base time.Duration) Config {
	return Config{
		MaxRetries:     maxRetries,
		InitialBackoff: base,
		MaxBackoff:     time.Duration(maxRetries) * base,
		Multiplier:     1.0,
	}
}

// Do executes fn, retrying with backoff on retryable errors.
func Do(ctx context.Context, config Config, fn func() error) error {
	retryIf := config.RetryIf
	if retryIf == nil {
		retryIf = IsRetryable
	}

	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if attempt == config.MaxRetries || !retryIf(err) {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(backoff):
		}

		if config.Multiplier == 1.0 {
			// Linear policy: the next delay is base * (attempt + 2).
			backoff = config.InitialBackoff * time.Duration(attempt+2)
		} else {
			backoff = time.Duration(float64(backoff) * config.Multiplier)
		}
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return lastErr
}

// IsRetryable checks if an error looks like a transient network-class
// failure. Content errors (4xx/5xx bodies, oversized files) are not
// retryable and must be classified by the caller's RetryIf instead.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	retryableErrors := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"network error",
		"eof",
		"broken pipe",
	}

	for _, retryable := range retryableErrors {
		if strings.Contains(errStr, retryable) {
			return true
		}
	}

	return false
}
