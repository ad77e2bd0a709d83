package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/agentops/internal/domain"
)

// AuditRepository persists the append-only audit trail.
type AuditRepository interface {
	Append(ctx context.Context, record domain.AuditRecord) error
	ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.AuditRecord, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository instantiates repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Append(ctx context.Context, record domain.AuditRecord) error {
	const query = `
        INSERT INTO audit_records (id, ticket_id, stage, from_state, to_state, action, reason, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.pool.Exec(ctx, query,
		record.ID,
		record.TicketID,
		record.Stage,
		record.FromState,
		record.ToState,
		record.Action,
		record.Reason,
		record.CreatedAt,
	)
	return err
}

func (r *auditRepository) ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.AuditRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const query = `
        SELECT id, ticket_id, stage, from_state, to_state, action, reason, created_at
        FROM audit_records WHERE ticket_id=$1
        ORDER BY created_at ASC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, ticketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var record domain.AuditRecord
		if err := rows.Scan(
			&record.ID,
			&record.TicketID,
			&record.Stage,
			&record.FromState,
			&record.ToState,
			&record.Action,
			&record.Reason,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
