package domain

import "time"

// ProposedAction is a remediation step awaiting compliance evaluation.
type ProposedAction struct {
	ToolName   string
	Parameters map[string]any
}

// ComplianceDecision is the immutable verdict for one proposed action.
type ComplianceDecision struct {
	ID              string
	TicketID        string
	EvaluatedAction string
	ActionDigest    string
	Approved        bool
	RequiresHuman   bool
	Reason          string
	CreatedAt       time.Time
}

// ToolInvocationStatus enumerates execution outcomes.
type ToolInvocationStatus string

const (
	InvocationSuccess ToolInvocationStatus = "success"
	InvocationFailure ToolInvocationStatus = "failure"
)

// ToolInvocation records exactly one execution attempt. Never mutated after
// creation.
type ToolInvocation struct {
	ID         string               `json:"id"`
	ToolName   string               `json:"tool_name"`
	Parameters map[string]any       `json:"parameters,omitempty"`
	Status     ToolInvocationStatus `json:"status"`
	Detail     string               `json:"detail,omitempty"`
	ExecutedAt time.Time            `json:"executed_at"`
}

// AuditRecord is an immutable trail entry for a state transition or a
// compliance decision.
type AuditRecord struct {
	ID        string
	TicketID  string
	Stage     string
	FromState string
	ToState   string
	Action    string
	Reason    string
	CreatedAt time.Time
}
