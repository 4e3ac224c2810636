package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pharmapointe/ordonnance-api/internal/model"
)

func (r *messageRepository) Create(ctx context.Context, m *model.InboundMessage) error {
	query := `
		INSERT INTO inbound_messages (id, sender, channel, document_ref, received_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	if m.ReceivedAt.IsZero() {
		m.ReceivedAt = m.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, query, m.ID, m.Sender, m.Channel, m.DocumentRef, m.ReceivedAt, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create inbound message: %w", err)
	}
	return nil
}

func (r *messageRepository) Get(ctx context.Context, id uuid.UUID) (*model.InboundMessage, error) {
	var m model.InboundMessage
	err := r.db.GetContext(ctx, &m, `SELECT * FROM inbound_messages WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inbound message: %w", err)
	}
	return &m, nil
}

func (r *messageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM inbound_messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete inbound message: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *messageRepository) List(ctx context.Context, filter *model.MessageFilter) ([]*model.InboundMessage, int, error) {
	where := "1=1"
	args := []interface{}{}

	if filter.Sender != "" {
		args = append(args, "%"+filter.Sender+"%")
		where += fmt.Sprintf(" AND sender ILIKE $%d", len(args))
	}
	if filter.Channel != "" {
		args = append(args, filter.Channel)
		where += fmt.Sprintf(" AND channel = $%d", len(args))
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM inbound_messages WHERE %s`, where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count inbound messages: %w", err)
	}

	filter.Normalize()
	query := fmt.Sprintf(`
		SELECT * FROM inbound_messages
		WHERE %s
		ORDER BY received_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	var messages []*model.InboundMessage
	if err := r.db.SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list inbound messages: %w", err)
	}
	return messages, total, nil
}
