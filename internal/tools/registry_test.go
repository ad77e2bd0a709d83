package tools

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/agentops/internal/domain"
	"github.com/spec-kit/agentops/internal/observability"
	apperrors "github.com/spec-kit/agentops/pkg/util"
)

func newTestRegistry() *Registry {
	registry := NewRegistry(zap.NewNop(), observability.NewMetrics())
	RegisterRemediationTools(registry)
	return registry
}

func approvalFor(toolName string, parameters map[string]any) *domain.ComplianceDecision {
	return &domain.ComplianceDecision{
		ID:              "d-1",
		EvaluatedAction: toolName,
		ActionDigest:    domain.ActionDigest(toolName, parameters),
		Approved:        true,
		CreatedAt:       time.Now(),
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	registry := newTestRegistry()
	_, err := registry.Execute(context.Background(), "format_disk", nil, approvalFor("format_disk", nil))
	if !apperrors.HasCode(err, apperrors.CodeUnknownTool) {
		t.Fatalf("expected unknown tool error, got %v", err)
	}
}

func TestExecuteRequiresApproval(t *testing.T) {
	registry := newTestRegistry()
	params := map[string]any{"user_email": "a@b.c"}

	_, err := registry.Execute(context.Background(), "unlock_account", params, nil)
	if !apperrors.HasCode(err, apperrors.CodeComplianceNotApproved) {
		t.Fatalf("nil approval: expected compliance error, got %v", err)
	}

	denied := approvalFor("unlock_account", params)
	denied.Approved = false
	_, err = registry.Execute(context.Background(), "unlock_account", params, denied)
	if !apperrors.HasCode(err, apperrors.CodeComplianceNotApproved) {
		t.Fatalf("denied approval: expected compliance error, got %v", err)
	}
}

func TestApprovalMustMatchExactAction(t *testing.T) {
	registry := newTestRegistry()
	params := map[string]any{"user_email": "a@b.c"}

	// Approval for a different tool.
	wrongTool := approvalFor("reset_password", params)
	_, err := registry.Execute(context.Background(), "unlock_account", params, wrongTool)
	if !apperrors.HasCode(err, apperrors.CodeComplianceNotApproved) {
		t.Fatalf("wrong tool approval: expected compliance error, got %v", err)
	}

	// Approval for the same tool with different parameters.
	wrongParams := approvalFor("unlock_account", map[string]any{"user_email": "x@y.z"})
	_, err = registry.Execute(context.Background(), "unlock_account", params, wrongParams)
	if !apperrors.HasCode(err, apperrors.CodeComplianceNotApproved) {
		t.Fatalf("wrong params approval: expected compliance error, got %v", err)
	}
}

func TestExecuteReturnsFailureWithoutRetry(t *testing.T) {
	registry := NewRegistry(zap.NewNop(), observability.NewMetrics())
	attempts := 0
	registry.Register("flaky", "always fails", func(ctx context.Context, parameters map[string]any) (string, error) {
		attempts++
		return "", fmt.Errorf("backend unavailable")
	})

	invocation, err := registry.Execute(context.Background(), "flaky", nil, approvalFor("flaky", nil))
	if err != nil {
		t.Fatalf("execution failure must not surface as error: %v", err)
	}
	if invocation.Status != domain.InvocationFailure {
		t.Fatalf("expected failure status, got %s", invocation.Status)
	}
	if attempts != 1 {
		t.Fatalf("expected exactly one attempt, got %d", attempts)
	}
}

func TestExecuteSuccessRecordsDetail(t *testing.T) {
	registry := newTestRegistry()
	params := map[string]any{"user_email": "a@b.c"}
	invocation, err := registry.Execute(context.Background(), "unlock_account", params, approvalFor("unlock_account", params))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if invocation.Status != domain.InvocationSuccess {
		t.Fatalf("expected success, got %s (%s)", invocation.Status, invocation.Detail)
	}
	if invocation.Detail == "" {
		t.Fatal("expected a detail message")
	}
}

func TestInstallSoftwareEnforcesCatalog(t *testing.T) {
	registry := newTestRegistry()
	params := map[string]any{"software_id": "bittorrent"}
	invocation, err := registry.Execute(context.Background(), "install_software", params, approvalFor("install_software", params))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if invocation.Status != domain.InvocationFailure {
		t.Fatal("unapproved software should fail execution")
	}
}
