package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultConfig(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientErrors(t *testing.T) {
	cfg := LinearConfig(3, time.Millisecond)
	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	cfg := LinearConfig(3, time.Millisecond)
	calls := 0
	wantErr := errors.New("file too large")
	err := Do(context.Background(), cfg, func() error {
		calls++
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsRetries(t *testing.T) {
	cfg := LinearConfig(2, time.Millisecond)
	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return errors.New("timeout waiting for response")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls) // initial attempt plus two retries
}

func TestDoHonorsRetryIf(t *testing.T) {
	cfg := LinearConfig(3, time.Millisecond)
	cfg.RetryIf = func(err error) bool { return err.Error() == "again" }

	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		if calls == 1 {
			return errors.New("again")
		}
		return errors.New("give up")
	})
	assert.EqualError(t, err, "give up")
	assert.Equal(t, 2, calls)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, DefaultConfig(), func() error {
		calls++
		return errors.New("connection reset")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("dial tcp: connection refused")))
	assert.True(t, IsRetryable(errors.New("unexpected EOF")))
	assert.True(t, IsRetryable(errors.New("read: broken pipe")))
	assert.False(t, IsRetryable(errors.New("400 bad request")))
	assert.False(t, IsRetryable(nil))
}
