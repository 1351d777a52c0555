package retry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Retry policy — one small value applied uniformly around collaborator calls
// (speech synthesis, drive downloads) instead of hand-written loops per call
// site. Backoff is exponential and capped; only transient failures retry.
// ---------------------------------------------------------------------------

// Policy describes how a collaborator call is retried.
type Policy struct {
	MaxAttempts       int           // total attempts, including the first
	BaseDelay         time.Duration // delay before attempt 2; doubles each attempt
	MaxDelay          time.Duration // backoff cap
	PerAttemptTimeout time.Duration // context deadline applied to each attempt (0 = none)
}

// Permanent wraps an error that must not be retried (bad credentials,
// malformed request). Do retries stop immediately and return the cause.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Abort marks err as permanent so Do returns it without further attempts.
func Abort(err error) error {
	return &Permanent{Err: err}
}

// Do runs fn under the policy. Each attempt gets its own deadline when
// PerAttemptTimeout is set. The delay before attempt n (1-based) is
// min(BaseDelay * 2^(n-2), MaxDelay).
func (p Policy) Do(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := p.Delay(attempt)
			log.Printf("[Retry] %s attempt %d/%d in %v (last error: %v)", label, attempt, p.MaxAttempts, delay, lastErr)

			select {
			case <-ctx.Done():
				return fmt.Errorf("%s cancelled while backing off: %w", label, ctx.Err())
			case <-time.After(delay):
			}
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if p.PerAttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.PerAttemptTimeout)
		}

		err := fn(attemptCtx)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			if attempt > 1 {
				log.Printf("[Retry] %s succeeded on attempt %d", label, attempt)
			}
			return nil
		}

		var perm *Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}

		lastErr = err
	}

	return fmt.Errorf("%s failed after %d attempts: %w", label, p.MaxAttempts, lastErr)
}

// Delay returns the backoff before the given 1-based attempt number.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	delay := p.BaseDelay
	for i := 2; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// RetryableStatus reports whether an HTTP status is worth another attempt:
// rate limiting, request timeouts, and any server-side failure.
func RetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status >= 500
}

// RetryableError reports whether a network-level error is worth another attempt.
func RetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "broken pipe")
}
