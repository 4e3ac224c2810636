package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pharmapointe/ordonnance-api/internal/model"
)

func (r *noteRepository) Create(ctx context.Context, n *model.Note) error {
	query := `
		INSERT INTO notes (id, scope, text, prescription_id, cycle_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = time.Now()
	n.UpdatedAt = n.CreatedAt

	_, err := r.db.ExecContext(ctx, query, n.ID, n.Scope, n.Text, n.PrescriptionID, n.CycleID, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

func (r *noteRepository) Get(ctx context.Context, id uuid.UUID) (*model.Note, error) {
	var n model.Note
	err := r.db.GetContext(ctx, &n, `SELECT * FROM notes WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return &n, nil
}

func (r *noteRepository) Update(ctx context.Context, n *model.Note) error {
	query := `UPDATE notes SET text = $1, updated_at = $2 WHERE id = $3`
	n.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query, n.Text, n.UpdatedAt, n.ID)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
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

func (r *noteRepository) FindByPrescriptionIDs(ctx context.Context, prescriptionIDs []uuid.UUID) ([]*model.Note, error) {
	if len(prescriptionIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM notes WHERE prescription_id IN (?)`, prescriptionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build note query: %w", err)
	}

	var notes []*model.Note
	if err := r.db.SelectContext(ctx, &notes, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

func (r *noteRepository) DeleteByPrescription(ctx context.Context, prescriptionID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE prescription_id = $1`, prescriptionID); err != nil {
		return fmt.Errorf("failed to delete notes: %w", err)
	}
	return nil
}

func (r *noteRepository) DeleteCycleNotes(ctx context.Context, prescriptionID uuid.UUID) error {
	query := `DELETE FROM notes WHERE prescription_id = $1 AND scope = 'cycle'`
	if _, err := r.db.ExecContext(ctx, query, prescriptionID); err != nil {
		return fmt.Errorf("failed to delete cycle notes: %w", err)
	}
	return nil
}
