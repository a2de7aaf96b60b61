package transport

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-folio/core"
)

const (
	DefaultMaxAttempts    = 3
	DefaultRetryBaseDelay = 300 * time.Millisecond
	DefaultRetryMaxDelay  = 5 * time.Second
)

type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialRetryPolicy doubles the delay per attempt up to Max. With Jitter
// set, the returned delay is drawn from [delay/2, delay).
type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  bool
	Rand    func() float64
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = DefaultRetryBaseDelay
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = DefaultRetryMaxDelay
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			delay = maximum
			break
		}
	}
	if delay > maximum {
		delay = maximum
	}
	if !p.Jitter {
		return delay
	}
	random := p.Rand
	if random == nil {
		random = rand.Float64
	}
	half := delay / 2
	return half + time.Duration(random()*float64(delay-half))
}

// RetryableStatus reports whether an HTTP status is worth another attempt.
func RetryableStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError
}

// RetryAfter parses a Retry-After header expressed in seconds.
func RetryAfter(headers map[string]string) time.Duration {
	value := HeaderValue(headers, "Retry-After")
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// Retrier runs an attempt function until it succeeds, returns a
// non-retryable error, or exhausts MaxAttempts.
type Retrier struct {
	MaxAttempts int
	Policy      RetryPolicy
	MaxDelay    time.Duration
	Retryable   func(err error) bool
	Sleep       func(ctx context.Context, d time.Duration) error
}

// RetryHint lets an attempt error ask for a minimum wait, e.g. from Retry-After.
type RetryHint interface {
	RetryAfter() time.Duration
}

type retryAfterError struct {
	err   error
	after time.Duration
}

func (e *retryAfterError) Error() string             { return e.err.Error() }
func (e *retryAfterError) Unwrap() error             { return e.err }
func (e *retryAfterError) RetryAfter() time.Duration { return e.after }

// WithRetryAfter attaches a server-requested wait to err.
func WithRetryAfter(err error, after time.Duration) error {
	if err == nil || after <= 0 {
		return err
	}
	return &retryAfterError{err: err, after: after}
}

func NewRetrier(maxAttempts int, base, maximum time.Duration) *Retrier {
	return &Retrier{
		MaxAttempts: maxAttempts,
		Policy:      ExponentialRetryPolicy{Initial: base, Max: maximum, Jitter: true},
		MaxDelay:    maximum,
	}
}

func (r *Retrier) Do(ctx context.Context, attempt func(ctx context.Context, attempt int) error) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	maxAttempts := DefaultMaxAttempts
	policy := RetryPolicy(ExponentialRetryPolicy{Jitter: true})
	retryable := IsRetryable
	sleep := SleepContext
	maxDelay := DefaultRetryMaxDelay
	if r != nil {
		if r.MaxAttempts > 0 {
			maxAttempts = r.MaxAttempts
		}
		if r.Policy != nil {
			policy = r.Policy
		}
		if r.Retryable != nil {
			retryable = r.Retryable
		}
		if r.Sleep != nil {
			sleep = r.Sleep
		}
		if r.MaxDelay > 0 {
			maxDelay = r.MaxDelay
		}
	}

	var lastErr error
	for current := 1; current <= maxAttempts; current++ {
		lastErr = attempt(ctx, current)
		if lastErr == nil {
			return current, nil
		}
		if current == maxAttempts || !retryable(lastErr) {
			return current, lastErr
		}
		delay := policy.NextDelay(current)
		var hinted RetryHint
		if errors.As(lastErr, &hinted) && hinted.RetryAfter() > delay {
			delay = hinted.RetryAfter()
		}
		if delay > maxDelay {
			delay = maxDelay
		}
		if err := sleep(ctx, delay); err != nil {
			return current, lastErr
		}
	}
	return maxAttempts, lastErr
}

// IsRetryable treats transient downstream failures and network errors as
// retryable. Configuration and permanent errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return core.IsTransient(err) || IsNetworkError(err)
}

func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
