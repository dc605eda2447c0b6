package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetry_Success(t *testing.T) {
	config := RetryConfig{
		MaxAttempts:  3,
		BaseDelay:    10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		JitterFactor: 0,
	}

	attempts := 0
	fn := func(ctx context.Context) error {
		attempts++
		return nil
	}

	err := Retry(context.Background(), config, fn)
	if err != nil {
		t.Errorf("Retry() returned error: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Retry() made %d attempts, want 1", attempts)
	}
}

func TestRetry_SuccessAfterRetries(t *testing.T) {
	config := RetryConfig{
		MaxAttempts:  3,
		BaseDelay:    10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		JitterFactor: 0,
	}

	attempts := 0
	fn := func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return NewCoreError(KindNetworkError, errors.New("transient"), "retry")
		}
		return nil
	}

	err := Retry(context.Background(), config, fn)
	if err != nil {
		t.Errorf("Retry() returned error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Retry() made %d attempts, want 3", attempts)
	}
}

func TestRetry_PermanentErrorNotRetried(t *testing.T) {
	config := DefaultRetryConfig()
	config.BaseDelay = time.Millisecond

	attempts := 0
	fn := func(ctx context.Context) error {
		attempts++
		return NewCoreError(KindExecutionError, errors.New("not found"), "missing")
	}

	err := Retry(context.Background(), config, fn)
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("Retry() made %d attempts for a permanent error, want 1", attempts)
	}
}

func TestRetry_ExhaustsMaxAttempts(t *testing.T) {
	config := RetryConfig{
		MaxAttempts:  2,
		BaseDelay:    time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		JitterFactor: 0,
	}

	attempts := 0
	fn := func(ctx context.Context) error {
		attempts++
		return NewCoreError(KindNetworkError, errors.New("down"), "down")
	}

	err := Retry(context.Background(), config, fn)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != config.MaxAttempts+1 {
		t.Errorf("attempts = %d, want %d", attempts, config.MaxAttempts+1)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	config := RetryConfig{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, config, func(ctx context.Context) error {
		return NewCoreError(KindNetworkError, errors.New("x"), "x")
	})
	if err == nil {
		t.Fatal("expected context-cancelled error")
	}
}

func TestRetryWithResult_Success(t *testing.T) {
	config := DefaultRetryConfig()
	config.BaseDelay = time.Millisecond

	result, err := RetryWithResult(context.Background(), config, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Errorf("result = %d, want 42", result)
	}
}

func TestCalculateBackoff_Linear(t *testing.T) {
	config := RetryConfig{
		BaseDelay:    1 * time.Second,
		MaxDelay:     5 * time.Second,
		JitterFactor: 0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{attempt: 0, expected: 1 * time.Second},
		{attempt: 1, expected: 2 * time.Second},
		{attempt: 2, expected: 3 * time.Second},
		{attempt: 3, expected: 4 * time.Second},
		{attempt: 4, expected: 5 * time.Second},
		{attempt: 10, expected: 5 * time.Second}, // capped at MaxDelay
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			delay := calculateBackoff(tt.attempt, config)
			if delay != tt.expected {
				t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempt, delay, tt.expected)
			}
		})
	}
}

func TestCalculateBackoff_WithJitter(t *testing.T) {
	config := RetryConfig{
		BaseDelay:    1 * time.Second,
		MaxDelay:     5 * time.Second,
		JitterFactor: 0.25,
	}

	for attempt := 0; attempt < 5; attempt++ {
		delay := calculateBackoff(attempt, config)
		if delay <= 0 {
			t.Errorf("calculateBackoff(%d) with jitter = %v, should be positive", attempt, delay)
		}
		if delay > config.MaxDelay {
			t.Errorf("calculateBackoff(%d) with jitter = %v, exceeds MaxDelay %v", attempt, delay, config.MaxDelay)
		}
	}
}

func TestRetryWithStats(t *testing.T) {
	config := RetryConfig{
		MaxAttempts:  3,
		BaseDelay:    10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		JitterFactor: 0,
	}

	t.Run("success after retries", func(t *testing.T) {
		attempts := 0
		fn := func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return NewCoreError(KindNetworkError, errors.New("transient"), "retry")
			}
			return nil
		}

		stats, err := RetryWithStats(context.Background(), config, fn)
		if err != nil {
			t.Errorf("RetryWithStats() returned error: %v", err)
		}
		if stats.TotalAttempts != 3 {
			t.Errorf("stats.TotalAttempts = %d, want 3", stats.TotalAttempts)
		}
		if stats.SuccessfulRetries != 1 {
			t.Errorf("stats.SuccessfulRetries = %d, want 1", stats.SuccessfulRetries)
		}
		if stats.FailedRetries != 0 {
			t.Errorf("stats.FailedRetries = %d, want 0", stats.FailedRetries)
		}
	})

	t.Run("failure after retries", func(t *testing.T) {
		fn := func(ctx context.Context) error {
			return NewCoreError(KindNetworkError, errors.New("always fails"), "transient")
		}

		stats, err := RetryWithStats(context.Background(), config, fn)
		if err == nil {
			t.Error("RetryWithStats() should have returned error")
		}

		expectedAttempts := config.MaxAttempts + 1
		if stats.TotalAttempts != expectedAttempts {
			t.Errorf("stats.TotalAttempts = %d, want %d", stats.TotalAttempts, expectedAttempts)
		}
		if stats.FailedRetries != 1 {
			t.Errorf("stats.FailedRetries = %d, want 1", stats.FailedRetries)
		}
	})
}

func TestShouldRetry(t *testing.T) {
	transient := NewCoreError(KindNetworkError, errors.New("x"), "x")
	if !ShouldRetry(transient, 0, 3) {
		t.Error("expected ShouldRetry to be true for a transient error under the limit")
	}
	if ShouldRetry(transient, 3, 3) {
		t.Error("expected ShouldRetry to be false once attempts reach the max")
	}
	if ShouldRetry(nil, 0, 3) {
		t.Error("expected ShouldRetry to be false for a nil error")
	}
}
