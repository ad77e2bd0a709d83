package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/agentops/internal/domain"
	"github.com/spec-kit/agentops/internal/knowledge"
)

const resolutionEstimatedTokens = 1500

// Step is one proposed remediation attempt from the resolution agent. An
// empty ToolName means the agent has no viable action left.
type Step struct {
	Action     string
	ToolName   string
	Parameters map[string]any
	Summary    string
}

// Resolution proposes remediation steps against the approved action set.
type Resolution struct {
	model     Invoker
	retriever knowledge.Retriever
	logger    *zap.Logger
}

// NewResolution builds the adapter.
func NewResolution(model Invoker, retriever knowledge.Retriever, logger *zap.Logger) *Resolution {
	return &Resolution{model: model, retriever: retriever, logger: logger}
}

// Propose asks the model for the next remediation step, given the approved
// actions and what has already failed this run.
func (r *Resolution) Propose(ctx context.Context, actx *domain.AgentContext, approved []domain.ProposedAction, failed []string) (Step, error) {
	ticket := actx.Ticket

	snippets, err := r.retriever.Retrieve(ctx, ticket.Title+" "+ticket.Description, map[string]string{"category": string(ticket.Category)}, 3)
	if err != nil {
		r.logger.Warn("knowledge retrieval failed, continuing without context", zap.Error(err))
		snippets = nil
	}

	prompt := r.buildPrompt(ticket, approved, failed, snippets)

	step, err := invokeParsed(ctx, "resolution_agent", r.model, prompt, resolutionEstimatedTokens, parseStep, r.logger)
	if err != nil {
		return Step{}, err
	}

	if step.ToolName != "" {
		r.logger.Info("resolution step proposed",
			zap.String("ticket_id", ticket.ID),
			zap.String("tool", step.ToolName),
			zap.Int("iteration", actx.Iteration))
	}
	return step, nil
}

func (r *Resolution) buildPrompt(ticket *domain.Ticket, approved []domain.ProposedAction, failed []string, snippets []knowledge.Snippet) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Plan the next remediation step for this IT support ticket.

TICKET:
Title: %s
Description: %s
Category: %s
Priority: %s

`, ticket.Title, ticket.Description, ticket.Category, ticket.Priority)

	b.WriteString("APPROVED ACTIONS:\n")
	for _, action := range approved {
		fmt.Fprintf(&b, "- %s\n", action.ToolName)
	}
	b.WriteString("\nFAILED ATTEMPTS:\n")
	if len(failed) == 0 {
		b.WriteString("- none\n")
	}
	for _, name := range failed {
		fmt.Fprintf(&b, "- %s\n", name)
	}

	fmt.Fprintf(&b, `
RELEVANT KNOWLEDGE BASE ARTICLES:
%s

Pick exactly one approved action that has not failed yet. If none remain,
use TOOL: none. Respond in this exact format:
STEP_1: [what you will do] | TOOL: [tool_name] | PARAMS: {json object}
SUMMARY: [one line describing the resolution]`, formatSnippets(snippets))

	return b.String()
}

func parseStep(text string) (Step, error) {
	var step Step
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "STEP_1:"):
			if err := parseStepLine(strings.TrimPrefix(line, "STEP_1:"), &step); err != nil {
				return Step{}, err
			}
		case strings.HasPrefix(line, "SUMMARY:"):
			step.Summary = strings.TrimSpace(strings.TrimPrefix(line, "SUMMARY:"))
		}
	}
	if step.Action == "" && step.ToolName == "" {
		return Step{}, fmt.Errorf("missing STEP_1 line")
	}
	if step.Summary == "" {
		return Step{}, fmt.Errorf("missing SUMMARY line")
	}
	return step, nil
}

func parseStepLine(line string, step *Step) error {
	parts := strings.Split(line, "|")
	step.Action = strings.TrimSpace(parts[0])
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "TOOL:"):
			step.ToolName = strings.TrimSpace(strings.TrimPrefix(part, "TOOL:"))
		case strings.HasPrefix(part, "PARAMS:"):
			raw := strings.TrimSpace(strings.TrimPrefix(part, "PARAMS:"))
			if raw == "" || raw == "{}" {
				step.Parameters = map[string]any{}
				continue
			}
			params := map[string]any{}
			if err := json.Unmarshal([]byte(raw), &params); err != nil {
				return fmt.Errorf("invalid PARAMS json: %w", err)
			}
			step.Parameters = params
		}
	}
	if step.ToolName == "" {
		return fmt.Errorf("missing TOOL in STEP_1 line")
	}
	if strings.EqualFold(step.ToolName, "none") {
		step.ToolName = ""
	}
	if step.Parameters == nil {
		step.Parameters = map[string]any{}
	}
	return nil
}
