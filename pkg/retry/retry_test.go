package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	policy := Policy{MaxAttempts: 3, Delay: time.Millisecond}

	err := policy.Do(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	policy := Policy{MaxAttempts: 3, Delay: time.Millisecond}

	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	policy := Policy{MaxAttempts: 3, Delay: time.Millisecond}

	err := policy.Do(context.Background(), func() error {
		calls++
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "3 attempts")
	assert.Equal(t, 3, calls)
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	policy := Policy{}

	err := policy.Do(context.Background(), func() error {
		calls++
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	policy := Policy{MaxAttempts: 3, Delay: time.Millisecond}
	err := policy.Do(ctx, func() error {
		calls++
		return errors.New("boom")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestDoCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	policy := Policy{MaxAttempts: 5, Delay: time.Hour}
	done := make(chan error, 1)
	go func() {
		done <- policy.Do(ctx, func() error {
			calls++
			return errors.New("boom")
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
}
