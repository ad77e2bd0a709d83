package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/agentops/internal/knowledge"
	"github.com/spec-kit/agentops/internal/llm"
	apperrors "github.com/spec-kit/agentops/pkg/util"
)

// Invoker is the throttled model call surface the adapters share.
type Invoker interface {
	Invoke(ctx context.Context, prompt string, estimatedTokens int) (llm.Completion, error)
}

// invokeParsed calls the model and parses the response. A parse failure
// triggers exactly one corrective retry with a reformulated prompt; a second
// failure surfaces as an agent parse error.
func invokeParsed[T any](ctx context.Context, agentName string, model Invoker, prompt string, estimatedTokens int, parse func(string) (T, error), logger *zap.Logger) (T, error) {
	var zero T

	completion, err := model.Invoke(ctx, prompt, estimatedTokens)
	if err != nil {
		return zero, err
	}
	result, parseErr := parse(completion.Text)
	if parseErr == nil {
		return result, nil
	}

	logger.Warn("agent response unparseable, retrying once",
		zap.String("agent", agentName),
		zap.Error(parseErr))

	corrective := prompt + "\n\nYour previous response could not be parsed (" + parseErr.Error() + "). Respond again using ONLY the exact output format specified above, with no additional prose."
	completion, err = model.Invoke(ctx, corrective, estimatedTokens)
	if err != nil {
		return zero, err
	}
	result, parseErr = parse(completion.Text)
	if parseErr != nil {
		return zero, apperrors.NewAgentParseError(agentName, parseErr)
	}
	return result, nil
}

// fieldLines extracts "LABEL: value" lines from a structured response.
func fieldLines(text string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		label, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		label = strings.TrimSpace(label)
		if label == "" || strings.ContainsAny(label, " \t") {
			continue
		}
		fields[label] = strings.TrimSpace(value)
	}
	return fields
}

func formatSnippets(snippets []knowledge.Snippet) string {
	if len(snippets) == 0 {
		return "No relevant articles found."
	}
	var b strings.Builder
	for i, s := range snippets {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, s.Source, s.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}
