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

// Create inserts a cycle guarded by the (prescription_id, cycle_number)
// unique index. The scheduler relies on the conflict path for idempotence.
func (r *cycleRepository) Create(ctx context.Context, c *model.Cycle) (bool, error) {
	query := `
		INSERT INTO cycles (
			id, prescription_id, cycle_number, status, collaborator_id, treated_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (prescription_id, cycle_number) DO NOTHING
	`
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt

	result, err := r.db.ExecContext(ctx, query,
		c.ID, c.PrescriptionID, c.CycleNumber, c.Status, c.CollaboratorID, c.TreatedAt,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create cycle: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *cycleRepository) Get(ctx context.Context, id uuid.UUID) (*model.Cycle, error) {
	var c model.Cycle
	err := r.db.GetContext(ctx, &c, `SELECT * FROM cycles WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cycle: %w", err)
	}
	return &c, nil
}

func (r *cycleRepository) Update(ctx context.Context, c *model.Cycle) error {
	query := `
		UPDATE cycles
		SET status = $1, collaborator_id = $2, treated_at = $3, updated_at = $4
		WHERE id = $5
	`
	c.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query, c.Status, c.CollaboratorID, c.TreatedAt, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update cycle: %w", err)
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

func (r *cycleRepository) FindByPrescription(ctx context.Context, prescriptionID uuid.UUID) ([]*model.Cycle, error) {
	query := `
		SELECT * FROM cycles
		WHERE prescription_id = $1
		ORDER BY cycle_number ASC
	`
	var cycles []*model.Cycle
	if err := r.db.SelectContext(ctx, &cycles, query, prescriptionID); err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}
	return cycles, nil
}

func (r *cycleRepository) FindByPrescriptionIDs(ctx context.Context, prescriptionIDs []uuid.UUID) ([]*model.Cycle, error) {
	if len(prescriptionIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT * FROM cycles
		WHERE prescription_id IN (?)
		ORDER BY cycle_number ASC
	`, prescriptionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build cycle query: %w", err)
	}

	var cycles []*model.Cycle
	if err := r.db.SelectContext(ctx, &cycles, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}
	return cycles, nil
}

func (r *cycleRepository) FindLatest(ctx context.Context, prescriptionID uuid.UUID) (*model.Cycle, error) {
	query := `
		SELECT * FROM cycles
		WHERE prescription_id = $1
		ORDER BY cycle_number DESC
		LIMIT 1
	`
	var c model.Cycle
	err := r.db.GetContext(ctx, &c, query, prescriptionID)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest cycle: %w", err)
	}
	return &c, nil
}

func (r *cycleRepository) SetCollaborator(ctx context.Context, id uuid.UUID, collaboratorID *uuid.UUID) error {
	query := `UPDATE cycles SET collaborator_id = $1, updated_at = NOW() WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, collaboratorID, id); err != nil {
		return fmt.Errorf("failed to set cycle collaborator: %w", err)
	}
	return nil
}

func (r *cycleRepository) BulkSetStatus(ctx context.Context, prescriptionID uuid.UUID, status model.CycleStatus) error {
	query := `UPDATE cycles SET status = $1, updated_at = NOW() WHERE prescription_id = $2`
	if _, err := r.db.ExecContext(ctx, query, status, prescriptionID); err != nil {
		return fmt.Errorf("failed to bulk update cycles: %w", err)
	}
	return nil
}

func (r *cycleRepository) DeleteByPrescription(ctx context.Context, prescriptionID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cycles WHERE prescription_id = $1`, prescriptionID); err != nil {
		return fmt.Errorf("failed to delete cycles: %w", err)
	}
	return nil
}

func (r *cycleRepository) ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE cycles
		SET status = 'late', updated_at = NOW()
		WHERE status = 'pending' AND created_at <= $1
	`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire cycles: %w", err)
	}
	return result.RowsAffected()
}
