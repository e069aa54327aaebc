// internal/retry/retry.go
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

// Policy holds the bounded exponential backoff settings shared by all
// network-facing components. The zero value is not usable; construct with
// DefaultPolicy or explicit fields.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultPolicy matches the backoff used across the corpus: up to four
// attempts, one second base delay, full jitter on top.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 4, BaseDelay: 1 * time.Second}
}

// Do runs op, retrying with exponential backoff plus jitter while retryable
// reports the error as transient. The last error is returned once the
// attempt budget is spent or the error is permanent.
func (p Policy) Do(ctx context.Context, retryable func(error) bool, op func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		delay := p.BaseDelay*time.Duration(1<<attempt) + time.Duration(rand.Int63n(int64(p.BaseDelay)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", p.MaxAttempts, err)
}

// HTTPStatusRetryable reports whether an HTTP status is worth retrying:
// server errors and rate limiting only.
func HTTPStatusRetryable(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
