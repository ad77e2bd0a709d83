package dto

import (
	"time"

	"github.com/spec-kit/agentops/internal/domain"
)

// LoginRequest authenticates the operator.
type LoginRequest struct {
	OperatorID string `json:"operator_id"`
	Password   string `json:"password"`
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// CreateTicketRequest submits a new support ticket.
type CreateTicketRequest struct {
	ExternalKey    string `json:"external_key"`
	RequesterEmail string `json:"requester_email"`
	Title          string `json:"title"`
	Description    string `json:"description"`
}

// RunTicketRequest starts a workflow run for a ticket.
type RunTicketRequest struct {
	IdentityVerified bool `json:"identity_verified"`
	Async            bool `json:"async"`
}

// TicketSummary is the list/detail projection of a ticket.
type TicketSummary struct {
	ID                string     `json:"id"`
	ExternalKey       string     `json:"external_key"`
	Title             string     `json:"title"`
	Category          string     `json:"category,omitempty"`
	Priority          string     `json:"priority,omitempty"`
	Status            string     `json:"status"`
	EscalationReason  string     `json:"escalation_reason,omitempty"`
	ResolutionSummary string     `json:"resolution_summary,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
}

// AuditEntry is one audit trail row.
type AuditEntry struct {
	Stage     string    `json:"stage"`
	FromState string    `json:"from_state,omitempty"`
	ToState   string    `json:"to_state,omitempty"`
	Action    string    `json:"action,omitempty"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketDetail extends the summary with run evidence.
type TicketDetail struct {
	TicketSummary
	RequesterEmail string                  `json:"requester_email"`
	Description    string                  `json:"description"`
	ActionsTaken   []domain.ToolInvocation `json:"actions_taken"`
	Audit          []AuditEntry            `json:"audit"`
}
