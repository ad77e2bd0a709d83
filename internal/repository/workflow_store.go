package repository

import (
	"context"

	"github.com/spec-kit/agentops/internal/domain"
)

// WorkflowStore adapts the ticket and audit repositories to the store surface
// the orchestrator and compliance gate consume.
type WorkflowStore struct {
	tickets TicketRepository
	audits  AuditRepository
}

// NewWorkflowStore builds the adapter.
func NewWorkflowStore(tickets TicketRepository, audits AuditRepository) *WorkflowStore {
	return &WorkflowStore{tickets: tickets, audits: audits}
}

func (s *WorkflowStore) Load(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.tickets.GetByID(ctx, ticketID)
}

func (s *WorkflowStore) Save(ctx context.Context, ticket *domain.Ticket) error {
	return s.tickets.Update(ctx, ticket)
}

func (s *WorkflowStore) AppendAudit(ctx context.Context, record domain.AuditRecord) error {
	return s.audits.Append(ctx, record)
}
