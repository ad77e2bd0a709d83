package llm

import "context"

// Completion is the result of one model invocation.
type Completion struct {
	Text       string
	TokensUsed int
}

// Model is the outbound model invocation boundary. Implementations may fail
// with *ThrottleError when the upstream sheds load.
type Model interface {
	Invoke(ctx context.Context, prompt string, estimatedTokens int) (Completion, error)
}

// ThrottleError signals an upstream throttling response ("429"). The
// throttled wrapper interprets it for exponential backoff.
type ThrottleError struct {
	Detail string
}

func (e *ThrottleError) Error() string {
	if e.Detail == "" {
		return "model invocation throttled"
	}
	return "model invocation throttled: " + e.Detail
}
