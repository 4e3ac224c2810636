package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pharmapointe/ordonnance-api/internal/model"
)

func (r *prescriptionRepository) Create(ctx context.Context, p *model.Prescription) error {
	query := `
		INSERT INTO prescriptions (
			id, sequence_number, first_name, last_name, phone, email,
			document_ref, channel, kind, status, received_at, last_treated_at,
			renewal_period_days, next_renewal_at, renewals_remaining, initial_renewal_count,
			collaborator_id, exceeds_value_threshold, requires_delivery, delivery_address,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.SequenceNumber, p.FirstName, p.LastName, p.Phone, p.Email,
		p.DocumentRef, p.Channel, p.Kind, p.Status, p.ReceivedAt, p.LastTreatedAt,
		p.RenewalPeriodDays, p.NextRenewalAt, p.RenewalsRemaining, p.InitialRenewalCount,
		p.CollaboratorID, p.ExceedsValueThreshold, p.RequiresDelivery, p.DeliveryAddress,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create prescription: %w", err)
	}
	return nil
}

func (r *prescriptionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	query := `SELECT * FROM prescriptions WHERE id = $1`

	var p model.Prescription
	err := r.db.GetContext(ctx, &p, query, id)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prescription: %w", err)
	}
	return &p, nil
}

func (r *prescriptionRepository) Update(ctx context.Context, p *model.Prescription) error {
	query := `
		UPDATE prescriptions
		SET first_name = $1, last_name = $2, phone = $3, email = $4,
			kind = $5, status = $6, last_treated_at = $7,
			renewal_period_days = $8, next_renewal_at = $9,
			renewals_remaining = $10, initial_renewal_count = $11,
			collaborator_id = $12, exceeds_value_threshold = $13,
			requires_delivery = $14, delivery_address = $15,
			updated_at = $16
		WHERE id = $17
	`
	p.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		p.FirstName, p.LastName, p.Phone, p.Email,
		p.Kind, p.Status, p.LastTreatedAt,
		p.RenewalPeriodDays, p.NextRenewalAt,
		p.RenewalsRemaining, p.InitialRenewalCount,
		p.CollaboratorID, p.ExceedsValueThreshold,
		p.RequiresDelivery, p.DeliveryAddress,
		p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update prescription: %w", err)
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

func (r *prescriptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM prescriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete prescription: %w", err)
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

// Claim is a conditional update: only one concurrent caller can observe the
// collaborator transition from NULL.
func (r *prescriptionRepository) Claim(ctx context.Context, id, collaboratorID uuid.UUID) (bool, error) {
	query := `
		UPDATE prescriptions
		SET collaborator_id = $2, updated_at = NOW()
		WHERE id = $1 AND collaborator_id IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, id, collaboratorID)
	if err != nil {
		return false, fmt.Errorf("failed to claim prescription: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// buildFilter translates a ViewFilter into a WHERE clause. Every listing
// endpoint goes through this one builder.
func buildFilter(filter *model.ViewFilter) (string, []interface{}) {
	clauses := []string{"1=1"}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			placeholders[i] = arg(s)
		}
		clauses = append(clauses, fmt.Sprintf("p.status IN (%s)", strings.Join(placeholders, ", ")))
	}

	if filter.ExcludeClosed {
		clauses = append(clauses, fmt.Sprintf("p.status NOT IN (%s, %s)",
			arg(model.PrescriptionStatusCompleted), arg(model.PrescriptionStatusLate)))
	}

	if filter.Kind != nil {
		clauses = append(clauses, fmt.Sprintf("p.kind = %s", arg(*filter.Kind)))
	}

	if filter.SequenceNumber != nil {
		clauses = append(clauses, fmt.Sprintf("p.sequence_number = %s", arg(*filter.SequenceNumber)))
	}

	if filter.Search != "" {
		pattern := arg("%" + filter.Search + "%")
		clauses = append(clauses, fmt.Sprintf(
			"(p.first_name ILIKE %[1]s OR p.last_name ILIKE %[1]s OR p.phone ILIKE %[1]s OR p.email ILIKE %[1]s)",
			pattern))
	}

	if filter.ReceivedOn != nil {
		start := *filter.ReceivedOn
		end := start.Add(24 * time.Hour)
		clauses = append(clauses, fmt.Sprintf("p.received_at >= %s AND p.received_at < %s", arg(start), arg(end)))
	}

	if filter.OnlyToday {
		start, end := arg(filter.DayStart), arg(filter.DayEnd)
		clauses = append(clauses, fmt.Sprintf(`(
			(p.kind = 'single' AND p.received_at BETWEEN %[1]s AND %[2]s)
			OR EXISTS (
				SELECT 1 FROM cycles c
				WHERE c.prescription_id = p.id
				AND c.created_at BETWEEN %[1]s AND %[2]s
				AND c.status IN ('pending', 'in_treatment')
			)
		)`, start, end))
	}

	if filter.OnlyLate {
		clauses = append(clauses, `(
			(p.kind = 'single' AND p.status = 'late')
			OR (p.kind = 'renewing' AND EXISTS (
				SELECT 1 FROM cycles c
				WHERE c.prescription_id = p.id AND c.status = 'late'
			))
		)`)
	}

	return strings.Join(clauses, " AND "), args
}

func (r *prescriptionRepository) List(ctx context.Context, filter *model.ViewFilter) ([]*model.Prescription, error) {
	where, args := buildFilter(filter)
	filter.Normalize()

	query := fmt.Sprintf(`
		SELECT p.* FROM prescriptions p
		WHERE %s
		ORDER BY p.sequence_number DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	var prescriptions []*model.Prescription
	if err := r.db.SelectContext(ctx, &prescriptions, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	return prescriptions, nil
}

func (r *prescriptionRepository) Count(ctx context.Context, filter *model.ViewFilter) (int, error) {
	where, args := buildFilter(filter)

	query := fmt.Sprintf(`SELECT COUNT(*) FROM prescriptions p WHERE %s`, where)

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count prescriptions: %w", err)
	}
	return count, nil
}

func (r *prescriptionRepository) ListDueForRenewal(ctx context.Context, dayStart, dayEnd time.Time) ([]*model.Prescription, error) {
	query := `
		SELECT * FROM prescriptions
		WHERE kind = 'renewing'
		AND next_renewal_at BETWEEN $1 AND $2
		AND renewals_remaining > 0
		AND status <> 'completed'
		ORDER BY next_renewal_at ASC
	`
	var prescriptions []*model.Prescription
	if err := r.db.SelectContext(ctx, &prescriptions, query, dayStart, dayEnd); err != nil {
		return nil, fmt.Errorf("failed to list due prescriptions: %w", err)
	}
	return prescriptions, nil
}

func (r *prescriptionRepository) MarkSinglesLateBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE prescriptions
		SET status = 'late', updated_at = NOW()
		WHERE kind = 'single' AND status = 'pending' AND received_at <= $1
	`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to mark prescriptions late: %w", err)
	}
	return result.RowsAffected()
}
