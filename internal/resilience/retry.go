// Package resilience wraps external collaborator calls with a shared failure
// policy: classified retries with exponential backoff and a per-dependency
// circuit breaker.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"contentpipe/internal/domain"
)

// Budget bounds a wrapped call: how many attempts it may consume and how the
// delay between them grows.
type Budget struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter randomizes each delay by up to this fraction in either
	// direction so concurrently scheduled items do not retry in lockstep.
	Jitter float64
}

// DefaultBudget is the policy applied when a caller passes a zero Budget.
var DefaultBudget = Budget{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    15 * time.Second,
	Jitter:      0.2,
}

func (b Budget) normalized() Budget {
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = DefaultBudget.MaxAttempts
	}
	if b.BaseDelay <= 0 {
		b.BaseDelay = DefaultBudget.BaseDelay
	}
	if b.MaxDelay <= 0 {
		b.MaxDelay = DefaultBudget.MaxDelay
	}
	return b
}

// Delay returns the backoff before attempt n+1, given that attempt n just
// failed. Attempts are numbered from 1.
func (b Budget) Delay(attempt int) time.Duration {
	d := b.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.MaxDelay {
			d = b.MaxDelay
			break
		}
	}
	if d > b.MaxDelay {
		d = b.MaxDelay
	}
	if b.Jitter > 0 {
		spread := 1 + b.Jitter*(2*rand.Float64()-1)
		d = time.Duration(float64(d) * spread)
	}
	return d
}

// Exhausted reports that a wrapped call used up its retry budget. It wraps
// the last underlying failure.
type Exhausted struct {
	Key      string
	Attempts int
	Err      error
}

func (e *Exhausted) Error() string {
	return fmt.Sprintf("%s: retries exhausted after %d attempts: %v", e.Key, e.Attempts, e.Err)
}

func (e *Exhausted) Unwrap() error { return e.Err }

// Attempts extracts how many attempts err consumed: the budget size for an
// exhausted call, one for everything else.
func Attempts(err error) int {
	var ex *Exhausted
	if errors.As(err, &ex) {
		return ex.Attempts
	}
	return 1
}

// Do executes op under the shared failure policy for the dependency named by
// key. Permanent failures return immediately; retryable ones consume budget
// with backoff between attempts. An open breaker fails an attempt instantly
// without invoking op. Backoff sleeps respect ctx cancellation.
func Do[T any](ctx context.Context, reg *Registry, key string, budget Budget, op func(context.Context) (T, error)) (T, error) {
	var zero T
	budget = budget.normalized()
	br := reg.breaker(key)

	var lastErr error
	for attempt := 1; attempt <= budget.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if err := br.Allow(); err != nil {
			// The breaker already burned the latency budget downstream;
			// fail this attempt without waiting.
			lastErr = err
			continue
		}
		out, err := op(ctx)
		if err == nil {
			br.RecordSuccess()
			return out, nil
		}
		br.RecordFailure()
		if domain.IsPermanent(err) {
			return zero, err
		}
		lastErr = err
		if attempt < budget.MaxAttempts {
			if err := sleep(ctx, budget.Delay(attempt)); err != nil {
				return zero, err
			}
		}
	}
	return zero, &Exhausted{Key: key, Attempts: budget.MaxAttempts, Err: lastErr}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
