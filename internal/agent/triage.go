package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/agentops/internal/domain"
	"github.com/spec-kit/agentops/internal/knowledge"
)

const triageEstimatedTokens = 1200

// Triage classifies a ticket and recommends a resolution path.
type Triage struct {
	model     Invoker
	retriever knowledge.Retriever
	logger    *zap.Logger
}

// NewTriage builds the adapter.
func NewTriage(model Invoker, retriever knowledge.Retriever, logger *zap.Logger) *Triage {
	return &Triage{model: model, retriever: retriever, logger: logger}
}

// Analyze runs triage for the ticket in the context: rule-based
// pre-classification seeds a model prompt enriched with retrieved
// knowledge, and the structured response becomes the immutable result.
func (t *Triage) Analyze(ctx context.Context, actx *domain.AgentContext) (domain.TriageResult, error) {
	ticket := actx.Ticket
	combined := ticket.Title + " " + ticket.Description

	initialCategory, _ := domain.DetectCategory(combined)
	initialPriority := domain.DetectPriority(combined)

	snippets, err := t.retriever.Retrieve(ctx, combined, map[string]string{"category": string(initialCategory)}, 5)
	if err != nil {
		t.logger.Warn("knowledge retrieval failed, continuing without context", zap.Error(err))
		snippets = nil
	}

	prompt := t.buildPrompt(ticket, initialCategory, initialPriority, snippets)

	result, err := invokeParsed(ctx, "triage_agent", t.model, prompt, triageEstimatedTokens, func(text string) (domain.TriageResult, error) {
		return parseTriage(ticket.ID, text)
	}, t.logger)
	if err != nil {
		return domain.TriageResult{}, err
	}

	t.logger.Info("triage completed",
		zap.String("ticket_id", ticket.ID),
		zap.String("category", string(result.Category)),
		zap.String("priority", string(result.Priority)),
		zap.String("decision", string(result.Decision)),
		zap.Float64("confidence", result.Confidence))

	return result, nil
}

func (t *Triage) buildPrompt(ticket *domain.Ticket, category domain.TicketCategory, priority domain.TicketPriority, snippets []knowledge.Snippet) string {
	return fmt.Sprintf(`Analyze this IT support ticket.

TICKET:
Title: %s
Description: %s

INITIAL CLASSIFICATION (from rules):
- Category: %s
- Priority: %s

RELEVANT KNOWLEDGE BASE ARTICLES:
%s

Respond in this exact format:
FINAL_CATEGORY: [network|hardware|software|access|email|other]
FINAL_PRIORITY: [critical|high|medium|low]
DECISION: [agent_resolution|escalate_immediately]
CONFIDENCE: [0.0-1.0]
RESOLUTION_PATH: [remediation tool to apply]
REASONING: [one line]`,
		ticket.Title, ticket.Description, category, priority, formatSnippets(snippets))
}

func parseTriage(ticketID, text string) (domain.TriageResult, error) {
	fields := fieldLines(text)

	category, err := parseCategory(fields["FINAL_CATEGORY"])
	if err != nil {
		return domain.TriageResult{}, err
	}
	priority, err := parsePriority(fields["FINAL_PRIORITY"])
	if err != nil {
		return domain.TriageResult{}, err
	}
	decision, err := parseDecision(fields["DECISION"])
	if err != nil {
		return domain.TriageResult{}, err
	}
	confidence, err := strconv.ParseFloat(fields["CONFIDENCE"], 64)
	if err != nil || confidence < 0 || confidence > 1 {
		return domain.TriageResult{}, fmt.Errorf("invalid CONFIDENCE %q", fields["CONFIDENCE"])
	}
	path := fields["RESOLUTION_PATH"]
	if path == "" {
		return domain.TriageResult{}, fmt.Errorf("missing RESOLUTION_PATH")
	}

	return domain.TriageResult{
		TicketID:                ticketID,
		Category:                category,
		Priority:                priority,
		Decision:                decision,
		Confidence:              confidence,
		SuggestedResolutionPath: path,
		Reasoning:               fields["REASONING"],
	}, nil
}

func parseCategory(value string) (domain.TicketCategory, error) {
	switch domain.TicketCategory(strings.ToLower(value)) {
	case domain.CategoryNetwork, domain.CategoryHardware, domain.CategorySoftware,
		domain.CategoryAccess, domain.CategoryEmail, domain.CategoryOther:
		return domain.TicketCategory(strings.ToLower(value)), nil
	default:
		return "", fmt.Errorf("invalid FINAL_CATEGORY %q", value)
	}
}

func parsePriority(value string) (domain.TicketPriority, error) {
	switch domain.TicketPriority(strings.ToLower(value)) {
	case domain.TicketPriorityLow, domain.TicketPriorityMedium,
		domain.TicketPriorityHigh, domain.TicketPriorityCritical:
		return domain.TicketPriority(strings.ToLower(value)), nil
	default:
		return "", fmt.Errorf("invalid FINAL_PRIORITY %q", value)
	}
}

func parseDecision(value string) (domain.TriageDecision, error) {
	switch domain.TriageDecision(strings.ToLower(value)) {
	case domain.DecisionAgentResolution, domain.DecisionEscalateImmediately:
		return domain.TriageDecision(strings.ToLower(value)), nil
	default:
		return "", fmt.Errorf("invalid DECISION %q", value)
	}
}
