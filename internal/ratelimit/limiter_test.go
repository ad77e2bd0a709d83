package ratelimit

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/spec-kit/agentops/pkg/util"
)

func TestAcquireAdmitsUpToRequestLimit(t *testing.T) {
	l := New(Config{RequestsPerMinute: 5, TokensPerMinute: 1000, MaxWait: 50 * time.Millisecond})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := l.Acquire(ctx, 10); err != nil {
			t.Fatalf("acquire %d: %v", i+1, err)
		}
	}
	err := l.Acquire(ctx, 10)
	if !apperrors.HasCode(err, apperrors.CodeRateLimitExceeded) {
		t.Fatalf("6th acquire should exhaust wait budget, got %v", err)
	}
}

func TestAcquireEnforcesTokenBudget(t *testing.T) {
	l := New(Config{RequestsPerMinute: 100, TokensPerMinute: 100, MaxWait: 50 * time.Millisecond})
	ctx := context.Background()
	if err := l.Acquire(ctx, 60); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := l.Acquire(ctx, 40); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	err := l.Acquire(ctx, 1)
	if !apperrors.HasCode(err, apperrors.CodeRateLimitExceeded) {
		t.Fatalf("token budget should be exhausted, got %v", err)
	}
}

func TestAcquireFailsFastOnUnsatisfiableEstimate(t *testing.T) {
	l := New(Config{RequestsPerMinute: 10, TokensPerMinute: 100, MaxWait: time.Minute})
	start := time.Now()
	err := l.Acquire(context.Background(), 101)
	if !apperrors.HasCode(err, apperrors.CodeConfigurationError) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("unsatisfiable estimate must not wait")
	}
}

func TestThirdCallWaitsForWindowToClear(t *testing.T) {
	// Scenario: two requests per window, three back-to-back acquires; the
	// third waits until the window admits it.
	l := New(Config{RequestsPerMinute: 2, TokensPerMinute: 1000, MaxWait: time.Second, Window: 150 * time.Millisecond})
	ctx := context.Background()

	if err := l.Acquire(ctx, 10); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := l.Acquire(ctx, 10); err != nil {
		t.Fatalf("second: %v", err)
	}
	start := time.Now()
	if err := l.Acquire(ctx, 10); err != nil {
		t.Fatalf("third: %v", err)
	}
	if waited := time.Since(start); waited < 100*time.Millisecond {
		t.Fatalf("third acquire should have waited for the window, waited %v", waited)
	}
}

func TestThirdCallFailsAfterMaxWait(t *testing.T) {
	l := New(Config{RequestsPerMinute: 2, TokensPerMinute: 1000, MaxWait: 40 * time.Millisecond, Window: 10 * time.Second})
	ctx := context.Background()
	_ = l.Acquire(ctx, 1)
	_ = l.Acquire(ctx, 1)
	err := l.Acquire(ctx, 1)
	if !apperrors.HasCode(err, apperrors.CodeRateLimitExceeded) {
		t.Fatalf("expected rate limit exceeded, got %v", err)
	}
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	l := New(Config{RequestsPerMinute: 1, TokensPerMinute: 100, MaxWait: 10 * time.Second, Window: 10 * time.Second})
	_ = l.Acquire(context.Background(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Acquire(ctx, 1) }()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("acquire did not observe cancellation")
	}
}

func TestWindowNeverExceedsLimits(t *testing.T) {
	l := New(Config{RequestsPerMinute: 3, TokensPerMinute: 90, MaxWait: 5 * time.Millisecond, Window: 100 * time.Millisecond})
	ctx := context.Background()
	granted := 0
	for i := 0; i < 20; i++ {
		if err := l.Acquire(ctx, 30); err == nil {
			granted++
		}
		stats := l.Snapshot()
		if stats.RequestsInWindow > stats.RequestsLimit {
			t.Fatalf("request window exceeded: %d > %d", stats.RequestsInWindow, stats.RequestsLimit)
		}
		if stats.TokensInWindow > stats.TokensLimit {
			t.Fatalf("token window exceeded: %d > %d", stats.TokensInWindow, stats.TokensLimit)
		}
	}
	if granted == 0 {
		t.Fatal("expected at least one grant")
	}
}

func TestRecordTokensCountsAgainstWindow(t *testing.T) {
	l := New(Config{RequestsPerMinute: 100, TokensPerMinute: 100, MaxWait: 20 * time.Millisecond})
	ctx := context.Background()
	if err := l.Acquire(ctx, 10); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	l.RecordTokens(90)
	err := l.Acquire(ctx, 10)
	if !apperrors.HasCode(err, apperrors.CodeRateLimitExceeded) {
		t.Fatalf("recorded overage should block further grants, got %v", err)
	}
}
