// internal/retry/retry_test.go
package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), nil, func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), func(error) bool { return true }, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad credentials")
	calls := 0
	err := fastPolicy().Do(context.Background(), func(error) bool { return false }, func(context.Context) error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttemptBudget(t *testing.T) {
	transient := errors.New("timeout")
	calls := 0
	err := fastPolicy().Do(context.Background(), func(error) bool { return true }, func(context.Context) error {
		calls++
		return transient
	})

	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "giving up after 3 attempts")
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, BaseDelay: time.Hour}

	go cancel()
	err := p.Do(ctx, func(error) bool { return true }, func(context.Context) error {
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPStatusRetryable(t *testing.T) {
	assert.True(t, HTTPStatusRetryable(http.StatusInternalServerError))
	assert.True(t, HTTPStatusRetryable(http.StatusServiceUnavailable))
	assert.True(t, HTTPStatusRetryable(http.StatusTooManyRequests))
	assert.False(t, HTTPStatusRetryable(http.StatusNotFound))
	assert.False(t, HTTPStatusRetryable(http.StatusUnauthorized))
	assert.False(t, HTTPStatusRetryable(http.StatusOK))
}
