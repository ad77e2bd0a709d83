package domain

import "time"

// TicketStatus enumerates workflow states for tickets.
type TicketStatus string

const (
	TicketStatusNew                TicketStatus = "NEW"
	TicketStatusTriaged            TicketStatus = "TRIAGED"
	TicketStatusComplianceApproved TicketStatus = "COMPLIANCE_APPROVED"
	TicketStatusComplianceDenied   TicketStatus = "COMPLIANCE_DENIED"
	TicketStatusResolving          TicketStatus = "RESOLVING"
	TicketStatusResolved           TicketStatus = "RESOLVED"
	TicketStatusEscalated          TicketStatus = "ESCALATED"
	TicketStatusClosed             TicketStatus = "CLOSED"
)

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

// TicketCategory enumerates IT support categories.
type TicketCategory string

const (
	CategoryNetwork  TicketCategory = "network"
	CategoryHardware TicketCategory = "hardware"
	CategorySoftware TicketCategory = "software"
	CategoryAccess   TicketCategory = "access"
	CategoryEmail    TicketCategory = "email"
	CategoryOther    TicketCategory = "other"
)

// Escalation reasons recorded on terminal handoff.
const (
	EscalationLowConfidence       = "low_confidence"
	EscalationComplianceDenied    = "compliance_denied"
	EscalationResolutionExhausted = "resolution_exhausted"
	EscalationTimeout             = "timeout"
	EscalationAgentParseError     = "agent_parse_error"
	EscalationRateLimited         = "rate_limit_exceeded"
)

// Ticket is the aggregate for one IT support request. The orchestrator owns
// it exclusively during an active run.
type Ticket struct {
	ID                string
	ExternalKey       string
	RequesterEmail    string
	Title             string
	Description       string
	Category          TicketCategory
	Priority          TicketPriority
	Status            TicketStatus
	ResolutionSummary string
	EscalationReason  string
	ActionsTaken      []ToolInvocation
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ClosedAt          *time.Time
}

// IsTerminal reports whether the ticket reached a terminal workflow state.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusResolved || s == TicketStatusEscalated || s == TicketStatusClosed
}

var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusNew:                {TicketStatusTriaged, TicketStatusEscalated},
	TicketStatusTriaged:            {TicketStatusComplianceApproved, TicketStatusComplianceDenied, TicketStatusEscalated},
	TicketStatusComplianceApproved: {TicketStatusResolving, TicketStatusEscalated},
	TicketStatusComplianceDenied:   {TicketStatusEscalated},
	TicketStatusResolving:          {TicketStatusResolved, TicketStatusEscalated},
	TicketStatusResolved:           {TicketStatusClosed},
	TicketStatusEscalated:          {TicketStatusClosed},
	TicketStatusClosed:             {},
}

// IsValidTransition reports whether the status graph allows current → next.
// The graph is forward-only; no backward edges exist.
func IsValidTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
