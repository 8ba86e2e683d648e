package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func testBackoff(retries int, s *recordingSleeper) Backoff {
	return Backoff{Retries: retries, Initial: time.Second, Sleep: s.Sleep}
}

func TestRetryWithBackoff_SuccessFirstTry(t *testing.T) {
	s := &recordingSleeper{}
	calls := 0
	err := RetryWithBackoff(context.Background(), testBackoff(3, s), nil, func(attempt int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if len(s.waits) != 0 {
		t.Errorf("Expected no waits, got %v", s.waits)
	}
}

func TestRetryWithBackoff_SuccessAfterRetries(t *testing.T) {
	s := &recordingSleeper{}
	calls := 0
	err := RetryWithBackoff(context.Background(), testBackoff(3, s), nil, func(attempt int) error {
		calls++
		if attempt < 2 {
			return errors.New("transient error")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls (2 failures + 1 success), got %d", calls)
	}
}

func TestRetryWithBackoff_WaitsDouble(t *testing.T) {
	s := &recordingSleeper{}
	_ = RetryWithBackoff(context.Background(), testBackoff(3, s), nil, func(attempt int) error {
		return errors.New("fail")
	})
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(s.waits) != len(want) {
		t.Fatalf("Expected %d waits, got %v", len(want), s.waits)
	}
	for i := range want {
		if s.waits[i] != want[i] {
			t.Errorf("wait[%d] = %v, want %v", i, s.waits[i], want[i])
		}
	}
}

func TestRetryWithBackoff_AllAttemptsExhausted(t *testing.T) {
	s := &recordingSleeper{}
	calls := 0
	persistent := errors.New("persistent error")
	err := RetryWithBackoff(context.Background(), testBackoff(2, s), nil, func(attempt int) error {
		calls++
		return persistent
	})
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if !errors.Is(err, persistent) {
		t.Errorf("Expected last error to be wrapped, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls (maxRetries+1), got %d", calls)
	}
}

func TestRetryWithBackoff_NonRetryableStopsImmediately(t *testing.T) {
	s := &recordingSleeper{}
	calls := 0
	fatal := errors.New("bad request")
	err := RetryWithBackoff(context.Background(), testBackoff(3, s), func(error) bool { return false }, func(attempt int) error {
		calls++
		return fatal
	})
	if err != fatal {
		t.Fatalf("Expected the unwrapped error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if len(s.waits) != 0 {
		t.Errorf("Expected no waits, got %v", s.waits)
	}
}

func TestRetryWithBackoff_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryWithBackoff(ctx, testBackoff(3, &recordingSleeper{}), nil, func(attempt int) error {
		calls++
		return errors.New("should not retry after cancellation")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context cancellation error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected the first attempt only, got %d calls", calls)
	}
}

func TestRetryWithBackoff_ZeroRetries(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), testBackoff(0, &recordingSleeper{}), nil, func(attempt int) error {
		calls++
		return errors.New("fail")
	})
	if err == nil {
		t.Fatal("Expected error with 0 retries")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call with 0 retries, got %d", calls)
	}
}

func TestSleep_RealTimer(t *testing.T) {
	start := time.Now()
	if err := Sleep(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("Expected at least ~20ms, got %v", elapsed)
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
