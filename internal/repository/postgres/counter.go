package postgres

import (
	"context"
	"fmt"
)

// Next increments and returns the named counter in a single statement, so
// concurrent allocations can never observe the same value.
func (r *counterRepository) Next(ctx context.Context, name string) (int64, error) {
	query := `
		INSERT INTO sequence_counters (name, seq)
		VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE
		SET seq = sequence_counters.seq + 1
		RETURNING seq
	`
	var seq int64
	if err := r.db.GetContext(ctx, &seq, query, name); err != nil {
		return 0, fmt.Errorf("failed to advance counter %s: %w", name, err)
	}
	return seq, nil
}
