package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2.0,
		BreakerEnabled:      false,
	}
}

func TestExecuteRetriesRetryableErrors(t *testing.T) {
	executor := NewExecutor(fastConfig())

	calls := 0
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestExecuteStopsOnNonRetryable(t *testing.T) {
	executor := NewExecutor(fastConfig())

	calls := 0
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return errors.New("fatal")
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	})

	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected single attempt, got %d", calls)
	}
}

func TestExecuteRespectsContextCancellation(t *testing.T) {
	executor := NewExecutor(fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := executor.Execute(ctx, "op", func(context.Context) error {
		calls++
		return nil
	}, nil)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no attempts after cancellation, got %d", calls)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryMaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 3
	cfg.BreakerFailureRatio = 0.5
	cfg.BreakerOpenTimeout = time.Minute
	executor := NewExecutor(cfg)

	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}

	for i := 0; i < 3; i++ {
		_ = executor.Execute(context.Background(), "flaky", func(context.Context) error {
			return errors.New("down")
		}, classifier)
	}

	err := executor.Execute(context.Background(), "flaky", func(context.Context) error {
		return nil
	}, classifier)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open circuit, got %v", err)
	}

	// A different operation keeps its own breaker and stays closed.
	err = executor.Execute(context.Background(), "healthy", func(context.Context) error {
		return nil
	}, classifier)
	if err != nil {
		t.Fatalf("expected independent breaker per operation, got %v", err)
	}
}

func TestClassifyBackendError(t *testing.T) {
	if c := ClassifyBackendError(context.Canceled); c.RecordFailure || c.Retryable {
		t.Fatalf("cancellation must not count against the breaker: %+v", c)
	}
	if c := ClassifyBackendError(context.DeadlineExceeded); !c.RecordFailure || c.Retryable {
		t.Fatalf("deadline must record but not retry: %+v", c)
	}
	if c := ClassifyBackendError(errors.New("other")); !c.RecordFailure || c.Retryable {
		t.Fatalf("unknown errors must record but not retry: %+v", c)
	}
}
