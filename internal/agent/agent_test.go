package agent

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/agentops/internal/domain"
	"github.com/spec-kit/agentops/internal/knowledge"
	"github.com/spec-kit/agentops/internal/llm"
	apperrors "github.com/spec-kit/agentops/pkg/util"
)

// scriptedModel replays canned responses in order.
type scriptedModel struct {
	responses []string
	calls     int
}

func (m *scriptedModel) Invoke(ctx context.Context, prompt string, estimatedTokens int) (llm.Completion, error) {
	if m.calls >= len(m.responses) {
		m.calls++
		return llm.Completion{Text: "", TokensUsed: 1}, nil
	}
	text := m.responses[m.calls]
	m.calls++
	return llm.Completion{Text: text, TokensUsed: estimatedTokens}, nil
}

func testContext() *domain.AgentContext {
	return &domain.AgentContext{
		Ticket: &domain.Ticket{
			ID:          "t-1",
			Title:       "VPN timeout",
			Description: "corporate VPN connection times out",
			Category:    domain.CategoryNetwork,
			Priority:    domain.TicketPriorityMedium,
		},
		ConversationID: "c-1",
	}
}

const goodTriageResponse = `FINAL_CATEGORY: network
FINAL_PRIORITY: medium
DECISION: agent_resolution
CONFIDENCE: 0.82
RESOLUTION_PATH: push_vpn_config
REASONING: known VPN configuration issue`

func TestTriageParsesStructuredResponse(t *testing.T) {
	model := &scriptedModel{responses: []string{goodTriageResponse}}
	triage := NewTriage(model, knowledge.NewMemoryRetriever(nil), zap.NewNop())

	result, err := triage.Analyze(context.Background(), testContext())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Category != domain.CategoryNetwork {
		t.Errorf("category = %s", result.Category)
	}
	if result.Priority != domain.TicketPriorityMedium {
		t.Errorf("priority = %s", result.Priority)
	}
	if result.Decision != domain.DecisionAgentResolution {
		t.Errorf("decision = %s", result.Decision)
	}
	if result.Confidence != 0.82 {
		t.Errorf("confidence = %f", result.Confidence)
	}
	if result.SuggestedResolutionPath != "push_vpn_config" {
		t.Errorf("path = %s", result.SuggestedResolutionPath)
	}
}

func TestTriageRetriesOnceOnParseFailure(t *testing.T) {
	model := &scriptedModel{responses: []string{"I think this is a network problem.", goodTriageResponse}}
	triage := NewTriage(model, knowledge.NewMemoryRetriever(nil), zap.NewNop())

	result, err := triage.Analyze(context.Background(), testContext())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if model.calls != 2 {
		t.Fatalf("expected a single corrective retry, got %d calls", model.calls)
	}
	if result.Category != domain.CategoryNetwork {
		t.Errorf("category = %s", result.Category)
	}
}

func TestTriageSecondParseFailureSurfaces(t *testing.T) {
	model := &scriptedModel{responses: []string{"garbage", "more garbage"}}
	triage := NewTriage(model, knowledge.NewMemoryRetriever(nil), zap.NewNop())

	_, err := triage.Analyze(context.Background(), testContext())
	if !apperrors.HasCode(err, apperrors.CodeAgentParseError) {
		t.Fatalf("expected agent parse error, got %v", err)
	}
	if model.calls != 2 {
		t.Fatalf("expected exactly two attempts, got %d", model.calls)
	}
}

func TestTriageWithLocalModel(t *testing.T) {
	triage := NewTriage(llm.NewLocalModel(), knowledge.NewMemoryRetriever(nil), zap.NewNop())
	result, err := triage.Analyze(context.Background(), testContext())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Category != domain.CategoryNetwork {
		t.Errorf("category = %s", result.Category)
	}
	if result.Decision != domain.DecisionAgentResolution {
		t.Errorf("decision = %s", result.Decision)
	}
}

func TestResolutionParsesStepAndParams(t *testing.T) {
	model := &scriptedModel{responses: []string{
		`STEP_1: push current VPN profile | TOOL: push_vpn_config | PARAMS: {"user_email":"a@b.c"}
SUMMARY: pushed updated VPN configuration`,
	}}
	resolution := NewResolution(model, knowledge.NewMemoryRetriever(nil), zap.NewNop())

	step, err := resolution.Propose(context.Background(), testContext(), []domain.ProposedAction{{ToolName: "push_vpn_config"}}, nil)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if step.ToolName != "push_vpn_config" {
		t.Errorf("tool = %s", step.ToolName)
	}
	if step.Parameters["user_email"] != "a@b.c" {
		t.Errorf("params = %v", step.Parameters)
	}
	if step.Summary == "" {
		t.Error("summary missing")
	}
}

func TestResolutionReportsNoActionLeft(t *testing.T) {
	model := &scriptedModel{responses: []string{
		"STEP_1: no remaining action | TOOL: none | PARAMS: {}\nSUMMARY: no viable action left",
	}}
	resolution := NewResolution(model, knowledge.NewMemoryRetriever(nil), zap.NewNop())

	step, err := resolution.Propose(context.Background(), testContext(), []domain.ProposedAction{{ToolName: "unlock_account"}}, []string{"unlock_account"})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if step.ToolName != "" {
		t.Fatalf("expected empty tool, got %q", step.ToolName)
	}
}

func TestResolutionWithLocalModelSkipsFailedActions(t *testing.T) {
	resolution := NewResolution(llm.NewLocalModel(), knowledge.NewMemoryRetriever(nil), zap.NewNop())
	approved := []domain.ProposedAction{{ToolName: "unlock_account"}, {ToolName: "run_diagnostic"}}

	step, err := resolution.Propose(context.Background(), testContext(), approved, []string{"unlock_account"})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if step.ToolName != "run_diagnostic" {
		t.Fatalf("expected fallback to run_diagnostic, got %q", step.ToolName)
	}
}
