package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"contentpipe/internal/domain"
)

func testBudget(attempts int) Budget {
	return Budget{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
}

func TestDelayDoublesAndCaps(t *testing.T) {
	b := Budget{BaseDelay: 10 * time.Millisecond, MaxDelay: 35 * time.Millisecond}
	if got := b.Delay(1); got != 10*time.Millisecond {
		t.Fatalf("Delay(1) = %v, want 10ms", got)
	}
	if got := b.Delay(2); got != 20*time.Millisecond {
		t.Fatalf("Delay(2) = %v, want 20ms", got)
	}
	if got := b.Delay(3); got != 35*time.Millisecond {
		t.Fatalf("Delay(3) = %v, want capped 35ms", got)
	}
	if got := b.Delay(10); got != 35*time.Millisecond {
		t.Fatalf("Delay(10) = %v, want capped 35ms", got)
	}
}

func TestDelayJitterStaysInBounds(t *testing.T) {
	b := Budget{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Jitter: 0.2}
	for i := 0; i < 50; i++ {
		d := b.Delay(1)
		if d < 80*time.Millisecond || d > 120*time.Millisecond {
			t.Fatalf("jittered delay %v outside [80ms, 120ms]", d)
		}
	}
}

func TestDoReturnsFirstSuccess(t *testing.T) {
	reg := NewRegistry(DefaultBreakerConfig)
	calls := 0
	out, err := Do(context.Background(), reg, "dep", testBudget(3), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if out != "ok" || calls != 1 {
		t.Fatalf("out=%q calls=%d, want ok/1", out, calls)
	}
}

func TestDoRetriesTransientFailures(t *testing.T) {
	reg := NewRegistry(DefaultBreakerConfig)
	calls := 0
	out, err := Do(context.Background(), reg, "dep", testBudget(3), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", domain.Retryable(errors.New("flaky"))
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if out != "ok" || calls != 3 {
		t.Fatalf("out=%q calls=%d, want ok/3", out, calls)
	}
}

func TestDoExhaustsBudget(t *testing.T) {
	reg := NewRegistry(DefaultBreakerConfig)
	calls := 0
	underlying := errors.New("still down")
	_, err := Do(context.Background(), reg, "dep", testBudget(3), func(ctx context.Context) (int, error) {
		calls++
		return 0, domain.Retryable(underlying)
	})
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	var ex *Exhausted
	if !errors.As(err, &ex) {
		t.Fatalf("error %v is not Exhausted", err)
	}
	if ex.Attempts != 3 {
		t.Fatalf("Attempts = %d, want 3", ex.Attempts)
	}
	if !errors.Is(err, underlying) {
		t.Fatalf("Exhausted should wrap the last error")
	}
	if Attempts(err) != 3 {
		t.Fatalf("Attempts(err) = %d, want 3", Attempts(err))
	}
}

func TestDoPermanentFailsImmediately(t *testing.T) {
	reg := NewRegistry(DefaultBreakerConfig)
	calls := 0
	_, err := Do(context.Background(), reg, "dep", testBudget(5), func(ctx context.Context) (int, error) {
		calls++
		return 0, domain.Permanent(errors.New("bad request"))
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if !domain.IsPermanent(err) {
		t.Fatalf("error should stay permanent, got %v", err)
	}
	if Attempts(err) != 1 {
		t.Fatalf("Attempts(err) = %d, want 1", Attempts(err))
	}
}

func TestDoRespectsCancellation(t *testing.T) {
	reg := NewRegistry(DefaultBreakerConfig)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	budget := Budget{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, reg, "dep", budget, func(ctx context.Context) (int, error) {
			calls++
			return 0, domain.Retryable(errors.New("flaky"))
		})
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry after cancel)", calls)
	}
}
