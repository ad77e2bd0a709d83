package compliance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/agentops/internal/domain"
	"github.com/spec-kit/agentops/internal/llm"
)

// Actions that always require human approval. Checked before anything else;
// no dynamic or model-assisted evaluation can override an entry here.
var denyList = map[string]bool{
	"delete_user_account":      true,
	"grant_admin_access":       true,
	"modify_security_group":    true,
	"export_user_data":         true,
	"disable_mfa":              true,
	"access_privileged_system": true,
}

// rule is a dynamic policy check applied after the static layer.
type rule struct {
	id         string
	name       string
	actionType string
	severity   string
	check      func(parameters map[string]any, rctx Context) string
}

// Context carries the evaluation inputs beyond the action itself.
type Context struct {
	TicketID          string
	IdentityVerified  bool
	RequireModelCheck bool
}

// AuditSink receives every compliance decision. Shared across workers; the
// implementation serializes appends.
type AuditSink interface {
	AppendAudit(ctx context.Context, record domain.AuditRecord) error
}

// Gate authorizes or blocks a proposed action before execution.
type Gate struct {
	rules  []rule
	model  *llm.Throttled
	audit  AuditSink
	logger *zap.Logger
}

// NewGate builds the gate. The model is optional; without it, inconclusive
// cases fall back to rule outcomes only.
func NewGate(model *llm.Throttled, audit AuditSink, logger *zap.Logger) *Gate {
	return &Gate{
		rules:  defaultRules(),
		model:  model,
		audit:  audit,
		logger: logger,
	}
}

func defaultRules() []rule {
	return []rule{
		{
			id:         "SEC-001",
			name:       "Password Reset Verification",
			actionType: "reset_password",
			severity:   "high",
			check: func(parameters map[string]any, rctx Context) string {
				if !rctx.IdentityVerified {
					return "identity not verified"
				}
				return ""
			},
		},
		{
			id:         "POL-001",
			name:       "Software Installation Policy",
			actionType: "install_software",
			severity:   "medium",
			check: func(parameters map[string]any, rctx Context) string {
				if id, _ := parameters["software_id"].(string); id == "" {
					return "software_id required"
				}
				return ""
			},
		},
	}
}

// Validate evaluates one proposed action. Aside from the audit append it is
// a pure function of (action, parameters, context, policy set).
func (g *Gate) Validate(ctx context.Context, action domain.ProposedAction, rctx Context) (domain.ComplianceDecision, error) {
	decision := domain.ComplianceDecision{
		ID:              uuid.NewString(),
		TicketID:        rctx.TicketID,
		EvaluatedAction: action.ToolName,
		ActionDigest:    domain.ActionDigest(action.ToolName, action.Parameters),
		CreatedAt:       time.Now(),
	}

	switch {
	case denyList[action.ToolName]:
		decision.Approved = false
		decision.RequiresHuman = true
		decision.Reason = fmt.Sprintf("action %q always requires human approval", action.ToolName)

	case containsSensitiveData(action.Parameters):
		decision.Approved = false
		decision.Reason = "parameters contain sensitive data"

	default:
		violation := g.evaluateRules(action, rctx)
		if violation != "" {
			decision.Approved = false
			decision.Reason = violation
			break
		}
		if rctx.RequireModelCheck && g.model != nil {
			approved, reason, err := g.modelJudgement(ctx, action, rctx)
			if err != nil {
				return domain.ComplianceDecision{}, err
			}
			decision.Approved = approved
			decision.Reason = reason
			break
		}
		decision.Approved = true
		decision.Reason = "no policy violation"
	}

	g.logger.Info("compliance decision",
		zap.String("ticket_id", rctx.TicketID),
		zap.String("action", action.ToolName),
		zap.Bool("approved", decision.Approved),
		zap.Bool("requires_human", decision.RequiresHuman),
		zap.String("reason", decision.Reason))

	if g.audit != nil {
		record := domain.AuditRecord{
			ID:        uuid.NewString(),
			TicketID:  rctx.TicketID,
			Stage:     "compliance",
			Action:    action.ToolName,
			Reason:    fmt.Sprintf("approved=%t requires_human=%t: %s", decision.Approved, decision.RequiresHuman, decision.Reason),
			CreatedAt: decision.CreatedAt,
		}
		if err := g.audit.AppendAudit(ctx, record); err != nil {
			g.logger.Error("compliance audit append failed", zap.Error(err))
		}
	}

	return decision, nil
}

func (g *Gate) evaluateRules(action domain.ProposedAction, rctx Context) string {
	for _, r := range g.rules {
		if r.actionType != action.ToolName {
			continue
		}
		if violation := r.check(action.Parameters, rctx); violation != "" {
			return fmt.Sprintf("%s (%s): %s", r.name, r.id, violation)
		}
	}
	return ""
}

// modelJudgement asks the model for a verdict when rules are inconclusive.
// The call goes through the rate limiter like any other agent call.
func (g *Gate) modelJudgement(ctx context.Context, action domain.ProposedAction, rctx Context) (bool, string, error) {
	prompt := fmt.Sprintf(`Analyze this action for security and compliance.

ACTION: %s
PARAMETERS: %v
TICKET_ID: %s

Answer in this exact format:
COMPLIANT: [yes/no]
RISK_LEVEL: [critical/high/medium/low]
VIOLATIONS: [list any policy violations or none]`,
		action.ToolName, MaskParameters(action.Parameters), rctx.TicketID)

	completion, err := g.model.Invoke(ctx, prompt, 400)
	if err != nil {
		return false, "", err
	}

	if strings.Contains(strings.ToUpper(completion.Text), "COMPLIANT: YES") {
		return true, "model judgement: compliant", nil
	}
	reason := "model judgement: non-compliant"
	if _, after, found := strings.Cut(completion.Text, "VIOLATIONS:"); found {
		if line := strings.TrimSpace(strings.SplitN(after, "\n", 2)[0]); line != "" && !strings.EqualFold(line, "none") {
			reason = "model judgement: " + line
		}
	}
	return false, reason, nil
}
