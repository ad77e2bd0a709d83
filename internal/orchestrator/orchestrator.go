package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/agentops/internal/agent"
	"github.com/spec-kit/agentops/internal/compliance"
	"github.com/spec-kit/agentops/internal/domain"
	"github.com/spec-kit/agentops/internal/events"
	"github.com/spec-kit/agentops/internal/observability"
	"github.com/spec-kit/agentops/internal/tools"
	apperrors "github.com/spec-kit/agentops/pkg/util"
)

// TicketStore persists tickets and their audit trail. Implemented by the
// Postgres repositories in production and by in-memory fakes in tests.
type TicketStore interface {
	Load(ctx context.Context, ticketID string) (*domain.Ticket, error)
	Save(ctx context.Context, ticket *domain.Ticket) error
	AppendAudit(ctx context.Context, record domain.AuditRecord) error
}

// Config tunes one orchestrator instance.
type Config struct {
	MaxIterations       int
	ConfidenceThreshold float64
	TicketTimeout       time.Duration
}

// RunOptions carries per-run inputs supplied by the operator.
type RunOptions struct {
	IdentityVerified bool
}

// TerminalOutcome summarizes a completed run.
type TerminalOutcome struct {
	TicketID          string                  `json:"ticket_id"`
	Status            domain.TicketStatus     `json:"status"`
	EscalationReason  string                  `json:"escalation_reason,omitempty"`
	ResolutionSummary string                  `json:"resolution_summary,omitempty"`
	Iterations        int                     `json:"iterations"`
	ActionsTaken      []domain.ToolInvocation `json:"actions_taken"`
	Duration          time.Duration           `json:"duration"`
}

// Orchestrator drives a ticket through the triage, compliance and resolution
// stages. It is the only writer of ticket state during a run.
type Orchestrator struct {
	cfg        Config
	store      TicketStore
	guard      *RunGuard
	triage     *agent.Triage
	resolution *agent.Resolution
	gate       *compliance.Gate
	engine     *tools.Registry
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// New wires the orchestrator.
func New(cfg Config, store TicketStore, guard *RunGuard, triage *agent.Triage, resolution *agent.Resolution, gate *compliance.Gate, engine *tools.Registry, dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *Orchestrator {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 5
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.65
	}
	if cfg.TicketTimeout <= 0 {
		cfg.TicketTimeout = 5 * time.Minute
	}
	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		guard:      guard,
		triage:     triage,
		resolution: resolution,
		gate:       gate,
		engine:     engine,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run executes the full pipeline for one NEW ticket and returns its terminal
// outcome. A second Run for the same ticket while one is in flight fails with
// AlreadyProcessing and touches no state.
func (o *Orchestrator) Run(ctx context.Context, ticketID string, opts RunOptions) (TerminalOutcome, error) {
	if err := o.guard.TryAcquire(ctx, ticketID); err != nil {
		return TerminalOutcome{}, err
	}
	// Persistence and lock release must outlive both the caller's context and
	// the per-ticket deadline, or a timed-out run could never record its
	// terminal state.
	persist := context.WithoutCancel(ctx)
	defer o.guard.Release(persist, ticketID)

	ticket, err := o.store.Load(ctx, ticketID)
	if err != nil {
		return TerminalOutcome{}, err
	}
	if ticket.Status != domain.TicketStatusNew {
		return TerminalOutcome{}, apperrors.NewValidationError(
			fmt.Sprintf("ticket is %s, only NEW tickets can be run", ticket.Status),
			map[string]any{"ticket_id": ticketID, "status": string(ticket.Status)})
	}

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.TicketTimeout)
	defer cancel()

	actx := &domain.AgentContext{
		Ticket:           ticket,
		ConversationID:   uuid.NewString(),
		MaxIterations:    o.cfg.MaxIterations,
		IdentityVerified: opts.IdentityVerified,
	}

	o.logger.Info("workflow started",
		zap.String("ticket_id", ticket.ID),
		zap.String("conversation_id", actx.ConversationID))

	return o.execute(persist, runCtx, actx)
}

// execute runs the pipeline stages. parent outlives the per-ticket deadline
// so terminal state is still persisted after a timeout.
func (o *Orchestrator) execute(parent, runCtx context.Context, actx *domain.AgentContext) (TerminalOutcome, error) {
	ticket := actx.Ticket
	started := time.Now()

	// Stage 1: triage.
	result, err := o.triage.Analyze(runCtx, actx)
	if err != nil {
		return o.escalateOnError(parent, actx, err, started)
	}
	ticket.Category = result.Category
	ticket.Priority = result.Priority
	actx.RecordDecision("triage_agent", result.Reasoning)

	if result.Decision == domain.DecisionEscalateImmediately || result.Confidence < o.cfg.ConfidenceThreshold {
		return o.escalate(parent, actx, domain.EscalationLowConfidence,
			fmt.Sprintf("decision=%s confidence=%.2f", result.Decision, result.Confidence), started)
	}

	if err := o.transition(parent, ticket, domain.TicketStatusTriaged, "triage complete"); err != nil {
		return TerminalOutcome{}, err
	}
	o.publish(parent, events.EventTicketTriaged, ticket.ID, events.TicketTriagedPayload{
		Category:   result.Category,
		Priority:   result.Priority,
		Decision:   result.Decision,
		Confidence: result.Confidence,
	})

	// Stage 2: compliance. Every proposed action is validated before any tool
	// runs; one denial blocks the whole plan.
	proposed := o.deriveActions(result, ticket)
	approvals := make(map[string]domain.ComplianceDecision, len(proposed))
	for _, action := range proposed {
		if runCtx.Err() != nil {
			return o.escalateOnError(parent, actx, runCtx.Err(), started)
		}
		decision, err := o.validate(runCtx, actx, action)
		if err != nil {
			return o.escalateOnError(parent, actx, err, started)
		}
		if !decision.Approved {
			if err := o.transition(parent, ticket, domain.TicketStatusComplianceDenied, decision.Reason); err != nil {
				return TerminalOutcome{}, err
			}
			o.publish(parent, events.EventComplianceDenied, ticket.ID, events.ComplianceDeniedPayload{
				Action:        action.ToolName,
				Reason:        decision.Reason,
				RequiresHuman: decision.RequiresHuman,
			})
			return o.escalate(parent, actx, domain.EscalationComplianceDenied, decision.Reason, started)
		}
		approvals[decision.ActionDigest] = decision
	}

	if err := o.transition(parent, ticket, domain.TicketStatusComplianceApproved, "all proposed actions approved"); err != nil {
		return TerminalOutcome{}, err
	}
	if err := o.transition(parent, ticket, domain.TicketStatusResolving, "starting remediation"); err != nil {
		return TerminalOutcome{}, err
	}

	// Stage 3: resolution loop.
	var failed []string
	for {
		if runCtx.Err() != nil {
			return o.escalateOnError(parent, actx, runCtx.Err(), started)
		}

		step, err := o.resolution.Propose(runCtx, actx, proposed, failed)
		if err != nil {
			return o.escalateOnError(parent, actx, err, started)
		}
		if step.ToolName == "" {
			return o.escalate(parent, actx, domain.EscalationResolutionExhausted, "no viable action left", started)
		}

		action := domain.ProposedAction{ToolName: step.ToolName, Parameters: step.Parameters}
		digest := domain.ActionDigest(action.ToolName, action.Parameters)
		approval, ok := approvals[digest]
		if !ok {
			// The agent proposed an action variant that was never approved;
			// it goes through the gate like any other.
			approval, err = o.validate(runCtx, actx, action)
			if err != nil {
				return o.escalateOnError(parent, actx, err, started)
			}
			if !approval.Approved {
				return o.escalate(parent, actx, domain.EscalationComplianceDenied, approval.Reason, started)
			}
			approvals[digest] = approval
		}

		invocation, err := o.engine.Execute(runCtx, step.ToolName, step.Parameters, &approval)
		if err != nil {
			// Unknown tool or approval mismatch counts as a failed attempt,
			// never as a crash of the run.
			o.logger.Warn("tool dispatch rejected",
				zap.String("ticket_id", ticket.ID),
				zap.String("tool", step.ToolName),
				zap.Error(err))
			invocation = domain.ToolInvocation{
				ID:         uuid.NewString(),
				ToolName:   step.ToolName,
				Status:     domain.InvocationFailure,
				Detail:     err.Error(),
				ExecutedAt: time.Now(),
			}
		}

		ticket.ActionsTaken = append(ticket.ActionsTaken, invocation)
		ticket.UpdatedAt = time.Now()
		if err := o.store.Save(parent, ticket); err != nil {
			return TerminalOutcome{}, err
		}
		o.publish(parent, events.EventToolExecuted, ticket.ID, events.ToolExecutedPayload{
			ToolName: invocation.ToolName,
			Status:   invocation.Status,
			Detail:   invocation.Detail,
		})

		if invocation.Status == domain.InvocationSuccess {
			ticket.ResolutionSummary = step.Summary
			if err := o.transition(parent, ticket, domain.TicketStatusResolved, step.Summary); err != nil {
				return TerminalOutcome{}, err
			}
			o.publish(parent, events.EventTicketResolved, ticket.ID, events.TicketResolvedPayload{
				ResolutionSummary: step.Summary,
				Iterations:        actx.Iteration,
			})
			return o.outcome(actx, started), nil
		}

		failed = append(failed, step.ToolName)
		if actx.Iteration >= actx.MaxIterations {
			return o.escalate(parent, actx, domain.EscalationResolutionExhausted,
				fmt.Sprintf("%d attempts failed", len(ticket.ActionsTaken)), started)
		}
		actx.Iteration++
	}
}

// Close moves a RESOLVED or ESCALATED ticket to CLOSED.
func (o *Orchestrator) Close(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := o.store.Load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusResolved && ticket.Status != domain.TicketStatusEscalated {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("ticket is %s, only RESOLVED or ESCALATED tickets can be closed", ticket.Status),
			map[string]any{"ticket_id": ticketID, "status": string(ticket.Status)})
	}
	if err := o.transition(ctx, ticket, domain.TicketStatusClosed, "closed by operator"); err != nil {
		return nil, err
	}
	o.publish(ctx, events.EventTicketClosed, ticket.ID, nil)
	return ticket, nil
}

func (o *Orchestrator) validate(ctx context.Context, actx *domain.AgentContext, action domain.ProposedAction) (domain.ComplianceDecision, error) {
	return o.gate.Validate(ctx, action, compliance.Context{
		TicketID:          actx.Ticket.ID,
		IdentityVerified:  actx.IdentityVerified,
		RequireModelCheck: true,
	})
}

// deriveActions turns the triage recommendation into the proposed action set:
// the suggested remediation tool plus a diagnostic fallback.
func (o *Orchestrator) deriveActions(result domain.TriageResult, ticket *domain.Ticket) []domain.ProposedAction {
	primary := o.resolveToolName(result.SuggestedResolutionPath, result.Category)
	params := map[string]any{"user_email": ticket.RequesterEmail}

	actions := []domain.ProposedAction{{ToolName: primary, Parameters: params}}
	if primary != "run_diagnostic" {
		actions = append(actions, domain.ProposedAction{
			ToolName:   "run_diagnostic",
			Parameters: map[string]any{"user_email": ticket.RequesterEmail},
		})
	}
	return actions
}

var toolNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// resolveToolName maps the free-text resolution path to an action name. A
// suggestion that is not a registered tool still becomes the proposed action
// when it looks like one, so the compliance gate rules on it; otherwise the
// category default applies.
func (o *Orchestrator) resolveToolName(path string, category domain.TicketCategory) string {
	lower := strings.ToLower(strings.TrimSpace(path))
	registered := make(map[string]bool)
	for _, name := range o.engine.Names() {
		registered[name] = true
	}
	if registered[lower] {
		return lower
	}
	for _, token := range strings.FieldsFunc(lower, func(r rune) bool {
		return r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if registered[token] {
			return token
		}
	}
	if toolNamePattern.MatchString(lower) {
		return lower
	}
	return domain.DefaultResolutionTool(category)
}

// escalateOnError maps a stage error to its escalation reason. Errors without
// a mapping (store failures, cancellation) surface to the caller unchanged.
func (o *Orchestrator) escalateOnError(ctx context.Context, actx *domain.AgentContext, err error, started time.Time) (TerminalOutcome, error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return o.escalate(ctx, actx, domain.EscalationTimeout, "workflow exceeded its deadline", started)
	case errors.Is(err, context.Canceled):
		if saveErr := o.store.Save(ctx, actx.Ticket); saveErr != nil {
			o.logger.Error("save after cancellation failed", zap.Error(saveErr))
		}
		return TerminalOutcome{}, err
	case apperrors.HasCode(err, apperrors.CodeAgentParseError):
		return o.escalate(ctx, actx, domain.EscalationAgentParseError, err.Error(), started)
	case apperrors.HasCode(err, apperrors.CodeRateLimitExceeded):
		return o.escalate(ctx, actx, domain.EscalationRateLimited, err.Error(), started)
	default:
		return TerminalOutcome{}, err
	}
}

func (o *Orchestrator) escalate(ctx context.Context, actx *domain.AgentContext, reason, detail string, started time.Time) (TerminalOutcome, error) {
	ticket := actx.Ticket
	ticket.EscalationReason = reason
	if err := o.transition(ctx, ticket, domain.TicketStatusEscalated, detail); err != nil {
		return TerminalOutcome{}, err
	}
	o.publish(ctx, events.EventTicketEscalated, ticket.ID, events.TicketEscalatedPayload{Reason: reason})
	o.logger.Warn("ticket escalated",
		zap.String("ticket_id", ticket.ID),
		zap.String("reason", reason),
		zap.String("detail", detail))
	return o.outcome(actx, started), nil
}

// transition applies one edge of the status graph, persists the ticket and
// appends the audit record.
func (o *Orchestrator) transition(ctx context.Context, ticket *domain.Ticket, next domain.TicketStatus, reason string) error {
	if !domain.IsValidTransition(ticket.Status, next) {
		return apperrors.NewInternalError(fmt.Errorf("illegal transition %s -> %s for ticket %s", ticket.Status, next, ticket.ID))
	}
	from := ticket.Status
	now := time.Now()
	ticket.Status = next
	ticket.UpdatedAt = now
	if next == domain.TicketStatusClosed {
		ticket.ClosedAt = &now
	}

	if err := o.store.Save(ctx, ticket); err != nil {
		return err
	}
	o.metrics.RecordStageTransition(string(from), string(next))

	record := domain.AuditRecord{
		ID:        uuid.NewString(),
		TicketID:  ticket.ID,
		Stage:     "workflow",
		FromState: string(from),
		ToState:   string(next),
		Reason:    reason,
		CreatedAt: now,
	}
	if err := o.store.AppendAudit(ctx, record); err != nil {
		o.logger.Error("audit append failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}

	o.logger.Info("ticket transition",
		zap.String("ticket_id", ticket.ID),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
		zap.String("reason", reason))
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, eventType events.EventType, ticketID string, payload any) {
	if o.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Timestamp: time.Now(),
		Payload:   payload,
	}
	if err := o.dispatcher.Publish(ctx, event); err != nil {
		o.logger.Warn("event publish failed", zap.String("type", string(eventType)), zap.Error(err))
	}
}

func (o *Orchestrator) outcome(actx *domain.AgentContext, started time.Time) TerminalOutcome {
	ticket := actx.Ticket
	return TerminalOutcome{
		TicketID:          ticket.ID,
		Status:            ticket.Status,
		EscalationReason:  ticket.EscalationReason,
		ResolutionSummary: ticket.ResolutionSummary,
		Iterations:        actx.Iteration,
		ActionsTaken:      ticket.ActionsTaken,
		Duration:          time.Since(started),
	}
}
