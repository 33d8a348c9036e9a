// ABOUTME: Resend rules for the platform API client: which calls may be repeated and how long to wait.
// ABOUTME: Only idempotent reads are resent, and every attempt shares one wall-clock budget.

package api

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net/http"
	"time"
)

// Backoff computes growing waits between attempts. It is shared by the
// request retry loop and the feed reconnect loop.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	// Jitter picks a uniform wait in [0, computed].
	Jitter bool
}

// Delay returns the wait before attempt n+1, where n counts from 0.
func (b Backoff) Delay(n int) time.Duration {
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}
	wait := float64(b.Initial) * math.Pow(factor, float64(n))
	if b.Max > 0 && wait > float64(b.Max) {
		wait = float64(b.Max)
	}
	d := time.Duration(wait)
	if b.Jitter && d > 0 {
		d = time.Duration(rand.Int64N(int64(d) + 1))
	}
	return d
}

// RetryPolicy decides whether a failed read is sent again. The zero value
// sends every request exactly once.
type RetryPolicy struct {
	// Resends is the number of extra attempts after the first.
	Resends int
	Backoff Backoff
	// Budget caps the time spent on all attempts and waits together.
	// Zero means the request's own timeout, so a retried read finishes
	// within the same bound as an unretried one.
	Budget time.Duration
	// OnRetry runs before each wait with the failure and 1-based resend number.
	OnRetry func(err error, resend int, wait time.Duration)
}

// NoRetry returns a policy that sends every request once.
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

// DefaultRetryPolicy resends a failed read up to twice with short jittered waits.
// Dashboard reads prefer stale cache data over waiting, so the waits stay small.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Resends: 2,
		Backoff: Backoff{Initial: 300 * time.Millisecond, Max: 2 * time.Second, Factor: 2, Jitter: true},
	}
}

// Idempotent reports whether a request with method may be sent again after
// a failure whose outcome on the server is unknown.
func Idempotent(method string) bool {
	switch method {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// retryable reports whether err is a failure class worth resending.
func retryable(err error) bool {
	var r interface{ IsRetryable() bool }
	return errors.As(err, &r) && r.IsRetryable()
}

// Retry runs fn, then resends while the failure is retryable and both the
// resend count and the budget allow it. fn receives a context carrying the
// budget deadline. A wait that would overrun the budget is not started; the
// last failure is returned instead.
func Retry(ctx context.Context, p RetryPolicy, fn func(context.Context) error) error {
	if p.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Budget)
		defer cancel()
	}

	var err error
	for n := 0; ; n++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if n >= p.Resends || !retryable(err) {
			return err
		}

		wait := p.Backoff.Delay(n)
		if hint := retryAfter(err); hint > wait {
			wait = hint
		}
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= wait {
			return err
		}
		if p.OnRetry != nil {
			p.OnRetry(err, n+1, wait)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
}

// retryAfter extracts a server Retry-After hint, or zero.
func retryAfter(err error) time.Duration {
	var e *APIError
	if errors.As(err, &e) && e.RetryAfter != nil && *e.RetryAfter > 0 {
		return time.Duration(*e.RetryAfter * float64(time.Second))
	}
	return 0
}
