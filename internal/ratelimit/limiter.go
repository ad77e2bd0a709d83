package ratelimit

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/spec-kit/agentops/pkg/util"
)

// Config tunes a Limiter for one agent type.
type Config struct {
	RequestsPerMinute int
	TokensPerMinute   int
	// MaxWait bounds how long Acquire may suspend before failing.
	MaxWait time.Duration
	// Window is the trailing ledger span. Defaults to one minute.
	Window time.Duration
}

type grant struct {
	at     time.Time
	tokens int
}

// Limiter admits outbound model calls while both the request count and the
// token sum over the trailing window stay within the configured limits.
// Acquire suspends only the calling goroutine.
type Limiter struct {
	mu     sync.Mutex
	cfg    Config
	grants []grant
	now    func() time.Time
}

// New creates a Limiter for the given configuration.
func New(cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = time.Minute
	}
	return &Limiter{cfg: cfg, now: time.Now}
}

// Acquire blocks the caller until granting estimatedTokens keeps the
// trailing window within limits, or fails once MaxWait elapses. A request
// whose estimate can never fit fails fast with a configuration error.
func (l *Limiter) Acquire(ctx context.Context, estimatedTokens int) error {
	if estimatedTokens > l.cfg.TokensPerMinute {
		return apperrors.NewConfigurationError("estimated tokens exceed tokens_per_minute", map[string]any{
			"estimated_tokens":  estimatedTokens,
			"tokens_per_minute": l.cfg.TokensPerMinute,
		})
	}

	deadline := l.now().Add(l.cfg.MaxWait)
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)
		wait, ok := l.admissible(now, estimatedTokens)
		if ok {
			l.grants = append(l.grants, grant{at: now, tokens: estimatedTokens})
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		remaining := deadline.Sub(now)
		if remaining <= 0 {
			return apperrors.NewRateLimitExceeded("rate limit wait budget exhausted", map[string]any{
				"max_wait": l.cfg.MaxWait.String(),
			})
		}
		if wait > remaining {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RecordTokens appends actual usage beyond the acquire-time estimate so the
// ledger reflects what the upstream really charged.
func (l *Limiter) RecordTokens(tokens int) {
	if tokens <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.grants = append(l.grants, grant{at: l.now(), tokens: tokens})
}

// Stats describes the current window occupancy.
type Stats struct {
	RequestsInWindow int
	TokensInWindow   int
	RequestsLimit    int
	TokensLimit      int
}

// Snapshot returns the current window occupancy.
func (l *Limiter) Snapshot() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return Stats{
		RequestsInWindow: len(l.grants),
		TokensInWindow:   l.tokenSum(),
		RequestsLimit:    l.cfg.RequestsPerMinute,
		TokensLimit:      l.cfg.TokensPerMinute,
	}
}

// admissible reports whether a grant fits now; when it does not, it returns
// how long until the oldest blocking entry leaves the window. Callers must
// hold the lock.
func (l *Limiter) admissible(now time.Time, estimatedTokens int) (time.Duration, bool) {
	overRequests := len(l.grants)+1 > l.cfg.RequestsPerMinute
	overTokens := l.tokenSum()+estimatedTokens > l.cfg.TokensPerMinute
	if !overRequests && !overTokens {
		return 0, true
	}
	if len(l.grants) == 0 {
		// Token budget alone cannot admit; only time clears it.
		return l.cfg.Window, false
	}
	wait := l.grants[0].at.Add(l.cfg.Window).Sub(now)
	if wait < 10*time.Millisecond {
		wait = 10 * time.Millisecond
	}
	return wait, false
}

func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.cfg.Window)
	idx := 0
	for idx < len(l.grants) && !l.grants[idx].at.After(cutoff) {
		idx++
	}
	if idx > 0 {
		l.grants = append(l.grants[:0], l.grants[idx:]...)
	}
}

func (l *Limiter) tokenSum() int {
	total := 0
	for _, g := range l.grants {
		total += g.tokens
	}
	return total
}
