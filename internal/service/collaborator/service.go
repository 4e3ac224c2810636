package collaborator

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/pharmapointe/ordonnance-api/internal/model"
	"github.com/pharmapointe/ordonnance-api/internal/repository"
	"github.com/pharmapointe/ordonnance-api/pkg/auth"
	apperr "github.com/pharmapointe/ordonnance-api/pkg/errors"
	"github.com/pharmapointe/ordonnance-api/pkg/security"
)

type Service struct {
	repo   repository.CollaboratorRepository
	hasher security.PasswordHasher
	tokens *auth.Service
}

func NewService(repo repository.CollaboratorRepository, hasher security.PasswordHasher, tokens *auth.Service) *Service {
	return &Service{repo: repo, hasher: hasher, tokens: tokens}
}

func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.Collaborator, error) {
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperr.Conflict("email already registered", nil)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Internal("failed to check email", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperr.Validation("invalid password", err)
	}

	c := &model.Collaborator{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, apperr.Internal("failed to create collaborator", err)
	}
	return c, nil
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	c, err := s.repo.GetByEmail(ctx, req.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Permission("invalid credentials")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load collaborator", err)
	}
	if err := s.hasher.Compare(c.PasswordHash, req.Password); err != nil {
		return nil, apperr.Permission("invalid credentials")
	}

	token, err := s.tokens.GenerateToken(c.ID, c.Email)
	if err != nil {
		return nil, apperr.Internal("failed to issue token", err)
	}
	return &model.LoginResponse{Token: token, Collaborator: c}, nil
}

func (s *Service) List(ctx context.Context) ([]*model.Collaborator, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Internal("failed to list collaborators", err)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Collaborator, error) {
	c, err := s.repo.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("collaborator", err)
	}
	if err != nil {
		return nil, apperr.Internal("failed to load collaborator", err)
	}
	return c, nil
}
