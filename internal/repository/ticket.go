package repository

import (
	"context"
	"errors"

	"github.com/cloo-solutions/supportiq/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TicketRepository persists tickets and messages in PostgreSQL
type TicketRepository struct {
	db dbtx
}

func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{db: pool}
}

func NewTicketRepositoryWithTx(tx pgx.Tx) *TicketRepository {
	return &TicketRepository{db: tx}
}

const ticketColumns = `id, requester_id, assignee_id, title, description,
	category, priority, sentiment, risk, confidence, summary, signals_fallback,
	status, created_at, updated_at`

func (r *TicketRepository) Create(ctx context.Context, t *domain.Ticket) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO tickets (`+ticketColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID, t.RequesterID, nullableString(t.AssigneeID), t.Title, t.Description,
		t.Signals.Category, t.Signals.Priority, t.Signals.Sentiment, t.Signals.Risk,
		t.Signals.Confidence, t.Signals.Summary, t.Signals.Fallback,
		t.Status, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrTicketAlreadyExists
		}
		return err
	}
	return nil
}

func (r *TicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	var t domain.Ticket
	var assignee *string
	err := r.db.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`,
		id,
	).Scan(
		&t.ID, &t.RequesterID, &assignee, &t.Title, &t.Description,
		&t.Signals.Category, &t.Signals.Priority, &t.Signals.Sentiment, &t.Signals.Risk,
		&t.Signals.Confidence, &t.Signals.Summary, &t.Signals.Fallback,
		&t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
			// not a valid UUID, so it cannot exist
			return nil, domain.ErrTicketNotFound
		}
		return nil, err
	}
	t.AssigneeID = derefString(assignee)
	return &t, nil
}

// UpdateStatus moves a ticket from one status to another only if it is still
// in from. A lost race yields domain.ErrStatusConflict.
func (r *TicketRepository) UpdateStatus(ctx context.Context, id string, from, to domain.TicketStatus, assigneeID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE tickets SET status = $3, assignee_id = $4, updated_at = $5
		 WHERE id = $1 AND status = $2`,
		id, from, to, nullableString(assigneeID), timeNow(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrTicketNotFound
	}
	return domain.ErrStatusConflict
}

func (r *TicketRepository) AppendMessage(ctx context.Context, m *domain.Message) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO ticket_messages (id, ticket_id, sender_id, sender_role, body, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.TicketID, nullableString(m.SenderID), m.SenderRole, m.Body, m.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.ErrTicketNotFound
		}
		return err
	}
	return nil
}

func (r *TicketRepository) ListMessages(ctx context.Context, ticketID string) ([]*domain.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, ticket_id, sender_id, sender_role, body, created_at
		 FROM ticket_messages WHERE ticket_id = $1 ORDER BY created_at ASC, seq ASC`,
		ticketID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		var m domain.Message
		var senderID *string
		if err := rows.Scan(&m.ID, &m.TicketID, &senderID, &m.SenderRole, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.SenderID = derefString(senderID)
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
