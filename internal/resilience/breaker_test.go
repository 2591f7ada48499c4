package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"contentpipe/internal/domain"
)

func testBreakerConfig() BreakerConfig {
	return BreakerConfig{Window: 10, Threshold: 5, Cooldown: time.Minute, MaxCooldown: 4 * time.Minute}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	br := NewBreaker(testBreakerConfig())
	for i := 0; i < 4; i++ {
		if err := br.Allow(); err != nil {
			t.Fatalf("call %d blocked early: %v", i, err)
		}
		br.RecordFailure()
	}
	if err := br.Allow(); err != nil {
		t.Fatalf("breaker open before threshold: %v", err)
	}
	br.RecordFailure() // fifth failure in the window
	if err := br.Allow(); !errors.Is(err, domain.ErrCircuitOpen) {
		t.Fatalf("Allow = %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerSuccessesKeepWindowBelowThreshold(t *testing.T) {
	br := NewBreaker(testBreakerConfig())
	// Alternate failures and successes: the sliding window never holds five
	// failures at once.
	for i := 0; i < 20; i++ {
		if err := br.Allow(); err != nil {
			t.Fatalf("call %d blocked: %v", i, err)
		}
		if i%2 == 0 {
			br.RecordFailure()
		} else {
			br.RecordSuccess()
		}
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	now := time.Now()
	br := NewBreaker(testBreakerConfig())
	br.now = func() time.Time { return now }
	for i := 0; i < 5; i++ {
		br.RecordFailure()
	}
	if err := br.Allow(); !errors.Is(err, domain.ErrCircuitOpen) {
		t.Fatal("breaker should be open")
	}

	// After the cooldown a single probe is admitted; concurrent calls still
	// fail fast.
	now = now.Add(2 * time.Minute)
	if err := br.Allow(); err != nil {
		t.Fatalf("probe not admitted: %v", err)
	}
	if err := br.Allow(); !errors.Is(err, domain.ErrCircuitOpen) {
		t.Fatal("second call during probe should fail fast")
	}

	br.RecordSuccess()
	if err := br.Allow(); err != nil {
		t.Fatalf("breaker should close after successful probe: %v", err)
	}
}

func TestBreakerFailedProbeDoublesCooldown(t *testing.T) {
	now := time.Now()
	br := NewBreaker(testBreakerConfig())
	br.now = func() time.Time { return now }
	for i := 0; i < 5; i++ {
		br.RecordFailure()
	}

	now = now.Add(61 * time.Second)
	if err := br.Allow(); err != nil {
		t.Fatalf("probe not admitted: %v", err)
	}
	br.RecordFailure()

	// Cooldown doubled to two minutes: one minute later the breaker is
	// still open, two minutes later a probe passes again.
	now = now.Add(61 * time.Second)
	if err := br.Allow(); !errors.Is(err, domain.ErrCircuitOpen) {
		t.Fatal("breaker should still be open within doubled cooldown")
	}
	now = now.Add(61 * time.Second)
	if err := br.Allow(); err != nil {
		t.Fatalf("probe not admitted after doubled cooldown: %v", err)
	}
}

func TestDoFailsFastWhileOpen(t *testing.T) {
	reg := NewRegistry(BreakerConfig{Window: 4, Threshold: 2, Cooldown: time.Hour, MaxCooldown: time.Hour})
	calls := 0
	op := func(ctx context.Context) (int, error) {
		calls++
		return 0, domain.Retryable(errors.New("down"))
	}
	_, _ = Do(context.Background(), reg, "dep", testBudget(2), op)
	if calls != 2 {
		t.Fatalf("warmup calls = %d, want 2", calls)
	}

	// Breaker tripped: the next budgeted call returns without invoking op
	// and without sleeping through backoff.
	start := time.Now()
	_, err := Do(context.Background(), reg, "dep", Budget{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}, op)
	if calls != 2 {
		t.Fatalf("op invoked while breaker open (calls=%d)", calls)
	}
	var ex *Exhausted
	if !errors.As(err, &ex) {
		t.Fatalf("err = %v, want Exhausted", err)
	}
	if !errors.Is(err, domain.ErrCircuitOpen) {
		t.Fatalf("Exhausted should wrap ErrCircuitOpen, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("open-circuit failure took %v, should be instant", elapsed)
	}
}
