package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/agentops/internal/observability"
	"github.com/spec-kit/agentops/internal/ratelimit"
	apperrors "github.com/spec-kit/agentops/pkg/util"
)

// ThrottledConfig tunes retry behavior for upstream throttling responses.
type ThrottledConfig struct {
	Agent       string
	MaxRetries  int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// Throttled wraps a Model with a per-agent rate limiter and exponential
// backoff on upstream throttling. Every agent adapter calls the model
// through one of these.
type Throttled struct {
	model   Model
	limiter *ratelimit.Limiter
	cfg     ThrottledConfig
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewThrottled builds the wrapper.
func NewThrottled(model Model, limiter *ratelimit.Limiter, cfg ThrottledConfig, logger *zap.Logger, metrics *observability.Metrics) *Throttled {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 30 * time.Second
	}
	return &Throttled{model: model, limiter: limiter, cfg: cfg, logger: logger, metrics: metrics}
}

// Invoke acquires a permit, calls the model, and retries throttling
// responses with delay = base * 2^attempt, capped. Exhausting retries
// fails with the rate limit error; the caller never retries further.
func (t *Throttled) Invoke(ctx context.Context, prompt string, estimatedTokens int) (Completion, error) {
	for attempt := 0; attempt <= t.cfg.MaxRetries; attempt++ {
		if err := t.limiter.Acquire(ctx, estimatedTokens); err != nil {
			return Completion{}, err
		}

		completion, err := t.model.Invoke(ctx, prompt, estimatedTokens)
		if err == nil {
			if overage := completion.TokensUsed - estimatedTokens; overage > 0 {
				t.limiter.RecordTokens(overage)
			}
			t.metrics.RecordModelCall(t.cfg.Agent, completion.TokensUsed)
			return completion, nil
		}

		var throttled *ThrottleError
		if !errors.As(err, &throttled) {
			return Completion{}, err
		}

		delay := t.cfg.BackoffBase << attempt
		if delay > t.cfg.BackoffCap {
			delay = t.cfg.BackoffCap
		}
		t.logger.Warn("model throttled, backing off",
			zap.String("agent", t.cfg.Agent),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Completion{}, ctx.Err()
		case <-timer.C:
		}
	}

	return Completion{}, apperrors.NewRateLimitExceeded("upstream throttling retries exhausted", map[string]any{
		"agent":       t.cfg.Agent,
		"max_retries": t.cfg.MaxRetries,
	})
}
