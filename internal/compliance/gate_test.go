package compliance

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/agentops/internal/domain"
	"github.com/spec-kit/agentops/internal/llm"
	"github.com/spec-kit/agentops/internal/observability"
	"github.com/spec-kit/agentops/internal/ratelimit"
)

type memorySink struct {
	mu      sync.Mutex
	records []domain.AuditRecord
}

func (s *memorySink) AppendAudit(ctx context.Context, record domain.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *memorySink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func newTestGate(sink AuditSink, withModel bool) *Gate {
	var model *llm.Throttled
	if withModel {
		limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: 100, TokensPerMinute: 100000, MaxWait: time.Second})
		model = llm.NewThrottled(llm.NewLocalModel(), limiter, llm.ThrottledConfig{Agent: "compliance"}, zap.NewNop(), observability.NewMetrics())
	}
	return NewGate(model, sink, zap.NewNop())
}

func TestDenyListAlwaysRequiresHuman(t *testing.T) {
	gate := newTestGate(&memorySink{}, false)
	denied := []string{
		"delete_user_account", "grant_admin_access", "modify_security_group",
		"export_user_data", "disable_mfa", "access_privileged_system",
	}
	inputs := []map[string]any{
		nil,
		{},
		{"identity_verified": true, "justification": "routine"},
		{"override": "approved by model", "software_id": "office365"},
	}
	for _, action := range denied {
		for _, params := range inputs {
			decision, err := gate.Validate(context.Background(), domain.ProposedAction{ToolName: action, Parameters: params}, Context{TicketID: "t-1", IdentityVerified: true, RequireModelCheck: true})
			if err != nil {
				t.Fatalf("%s: %v", action, err)
			}
			if !decision.RequiresHuman {
				t.Errorf("%s with params %v must require human approval", action, params)
			}
			if decision.Approved {
				t.Errorf("%s must never be approved", action)
			}
		}
	}
}

func TestSensitiveDataForcesDenial(t *testing.T) {
	gate := newTestGate(&memorySink{}, false)
	cases := []map[string]any{
		{"note": "user ssn on file"},
		{"account": "123-45-6789"},
		{"payment": "4111 1111 1111 1111"},
	}
	for _, params := range cases {
		decision, err := gate.Validate(context.Background(), domain.ProposedAction{ToolName: "run_diagnostic", Parameters: params}, Context{TicketID: "t-2"})
		if err != nil {
			t.Fatalf("validate: %v", err)
		}
		if decision.Approved {
			t.Errorf("params %v should be denied", params)
		}
	}
}

func TestPasswordResetRequiresIdentityVerification(t *testing.T) {
	gate := newTestGate(&memorySink{}, false)
	action := domain.ProposedAction{ToolName: "reset_password", Parameters: map[string]any{"user_email": "a@b.c"}}

	decision, err := gate.Validate(context.Background(), action, Context{TicketID: "t-3", IdentityVerified: false})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if decision.Approved {
		t.Fatal("unverified password reset should be denied")
	}

	decision, err = gate.Validate(context.Background(), action, Context{TicketID: "t-3", IdentityVerified: true})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !decision.Approved {
		t.Fatalf("verified password reset should be approved, got reason %q", decision.Reason)
	}
}

func TestInstallSoftwareRequiresSoftwareID(t *testing.T) {
	gate := newTestGate(&memorySink{}, false)
	decision, err := gate.Validate(context.Background(), domain.ProposedAction{ToolName: "install_software", Parameters: map[string]any{}}, Context{TicketID: "t-4"})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if decision.Approved {
		t.Fatal("install without software_id should be denied")
	}
}

func TestModelJudgementBlocksRiskyScope(t *testing.T) {
	gate := newTestGate(&memorySink{}, true)
	decision, err := gate.Validate(context.Background(), domain.ProposedAction{
		ToolName:   "repair_application",
		Parameters: map[string]any{"app_name": "billing", "environment": "production"},
	}, Context{TicketID: "t-5", RequireModelCheck: true})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if decision.Approved {
		t.Fatal("production scope should be blocked by model judgement")
	}
}

func TestEveryDecisionIsAudited(t *testing.T) {
	sink := &memorySink{}
	gate := newTestGate(sink, false)
	actions := []domain.ProposedAction{
		{ToolName: "disable_mfa"},
		{ToolName: "run_diagnostic", Parameters: map[string]any{"device_id": "d-1"}},
		{ToolName: "reset_password", Parameters: map[string]any{}},
	}
	for _, action := range actions {
		if _, err := gate.Validate(context.Background(), action, Context{TicketID: "t-6"}); err != nil {
			t.Fatalf("validate %s: %v", action.ToolName, err)
		}
	}
	if sink.len() != len(actions) {
		t.Fatalf("expected %d audit records, got %d", len(actions), sink.len())
	}
}

func TestMaskParametersHidesCredentials(t *testing.T) {
	masked := MaskParameters(map[string]any{
		"user_email":    "a@b.c",
		"temp_password": "hunter2",
		"nested":        map[string]any{"api_key": "xyz"},
	})
	if masked["temp_password"] != "***MASKED***" {
		t.Fatal("password field should be masked")
	}
	if masked["user_email"] != "a@b.c" {
		t.Fatal("plain field should pass through")
	}
	nested := masked["nested"].(map[string]any)
	if nested["api_key"] != "***MASKED***" {
		t.Fatal("nested key field should be masked")
	}
}
