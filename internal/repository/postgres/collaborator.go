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

func (r *collaboratorRepository) Create(ctx context.Context, c *model.Collaborator) error {
	query := `
		INSERT INTO collaborators (id, first_name, last_name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt

	_, err := r.db.ExecContext(ctx, query, c.ID, c.FirstName, c.LastName, c.Email, c.PasswordHash, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create collaborator: %w", err)
	}
	return nil
}

func (r *collaboratorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Collaborator, error) {
	var c model.Collaborator
	err := r.db.GetContext(ctx, &c, `SELECT * FROM collaborators WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collaborator: %w", err)
	}
	return &c, nil
}

func (r *collaboratorRepository) GetByEmail(ctx context.Context, email string) (*model.Collaborator, error) {
	var c model.Collaborator
	err := r.db.GetContext(ctx, &c, `SELECT * FROM collaborators WHERE email = $1`, email)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collaborator by email: %w", err)
	}
	return &c, nil
}

func (r *collaboratorRepository) List(ctx context.Context) ([]*model.Collaborator, error) {
	var out []*model.Collaborator
	query := `SELECT * FROM collaborators ORDER BY last_name, first_name`
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("failed to list collaborators: %w", err)
	}
	return out, nil
}

func (r *collaboratorRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.CollaboratorRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT id, first_name, last_name FROM collaborators WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build collaborator query: %w", err)
	}

	var refs []*model.CollaboratorRef
	if err := r.db.SelectContext(ctx, &refs, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list collaborators: %w", err)
	}
	return refs, nil
}
