package llm

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/agentops/internal/observability"
	"github.com/spec-kit/agentops/internal/ratelimit"
	apperrors "github.com/spec-kit/agentops/pkg/util"
)

type throttlingModel struct {
	failures int
	calls    int
}

func (m *throttlingModel) Invoke(ctx context.Context, prompt string, estimatedTokens int) (Completion, error) {
	m.calls++
	if m.calls <= m.failures {
		return Completion{}, &ThrottleError{Detail: "overloaded"}
	}
	return Completion{Text: "ok", TokensUsed: estimatedTokens}, nil
}

func newTestThrottled(model Model, maxRetries int) *Throttled {
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: 100,
		TokensPerMinute:   100000,
		MaxWait:           time.Second,
	})
	return NewThrottled(model, limiter, ThrottledConfig{
		Agent:       "test",
		MaxRetries:  maxRetries,
		BackoffBase: time.Millisecond,
		BackoffCap:  5 * time.Millisecond,
	}, zap.NewNop(), observability.NewMetrics())
}

func TestThrottledRetriesAfterBackoff(t *testing.T) {
	model := &throttlingModel{failures: 2}
	throttled := newTestThrottled(model, 3)

	completion, err := throttled.Invoke(context.Background(), "prompt", 100)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if completion.Text != "ok" {
		t.Fatalf("unexpected completion %q", completion.Text)
	}
	if model.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", model.calls)
	}
}

func TestThrottledExhaustsRetries(t *testing.T) {
	model := &throttlingModel{failures: 10}
	throttled := newTestThrottled(model, 2)

	_, err := throttled.Invoke(context.Background(), "prompt", 100)
	if !apperrors.HasCode(err, apperrors.CodeRateLimitExceeded) {
		t.Fatalf("expected rate limit exceeded, got %v", err)
	}
	if model.calls != 3 {
		t.Fatalf("expected initial call plus 2 retries, got %d", model.calls)
	}
}

func TestLocalModelAnswersTriageFormat(t *testing.T) {
	model := NewLocalModel()
	prompt := "Title: VPN timeout\nDescription: corporate vpn connection times out\n\nFINAL_CATEGORY: [network|hardware|software|access|email|other]"
	completion, err := model.Invoke(context.Background(), prompt, 50)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !containsLine(completion.Text, "FINAL_CATEGORY: network") {
		t.Fatalf("expected network classification, got:\n%s", completion.Text)
	}
}

func containsLine(text, line string) bool {
	for _, l := range splitLines(text) {
		if l == line {
			return true
		}
	}
	return false
}

func splitLines(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			out = append(out, text[start:i])
			start = i + 1
		}
	}
	return append(out, text[start:])
}
