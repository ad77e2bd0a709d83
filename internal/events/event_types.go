package events

import (
	"time"

	"github.com/spec-kit/agentops/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated    EventType = "ticket_created"
	EventTicketTriaged    EventType = "ticket_triaged"
	EventComplianceDenied EventType = "compliance_denied"
	EventToolExecuted     EventType = "tool_executed"
	EventTicketResolved   EventType = "ticket_resolved"
	EventTicketEscalated  EventType = "ticket_escalated"
	EventTicketClosed     EventType = "ticket_closed"
)

// Event represents a workflow event emitted by the orchestrator.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketTriagedPayload payload.
type TicketTriagedPayload struct {
	Category   domain.TicketCategory `json:"category"`
	Priority   domain.TicketPriority `json:"priority"`
	Decision   domain.TriageDecision `json:"decision"`
	Confidence float64               `json:"confidence"`
}

// ComplianceDeniedPayload payload.
type ComplianceDeniedPayload struct {
	Action        string `json:"action"`
	Reason        string `json:"reason"`
	RequiresHuman bool   `json:"requires_human"`
}

// ToolExecutedPayload payload.
type ToolExecutedPayload struct {
	ToolName string                      `json:"tool_name"`
	Status   domain.ToolInvocationStatus `json:"status"`
	Detail   string                      `json:"detail,omitempty"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	ResolutionSummary string `json:"resolution_summary"`
	Iterations        int    `json:"iterations"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	Reason string `json:"reason"`
}
