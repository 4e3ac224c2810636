package note

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pharmapointe/ordonnance-api/internal/model"
	"github.com/pharmapointe/ordonnance-api/internal/repository"
	apperr "github.com/pharmapointe/ordonnance-api/pkg/errors"
)

type Service struct {
	notes         repository.NoteRepository
	prescriptions repository.PrescriptionRepository
	cycles        repository.CycleRepository

	now func() time.Time
}

func NewService(notes repository.NoteRepository, prescriptions repository.PrescriptionRepository, cycles repository.CycleRepository) *Service {
	return &Service{
		notes:         notes,
		prescriptions: prescriptions,
		cycles:        cycles,
		now:           time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RecordTreatmentNote writes the treatment note and marks work as started:
// the prescription moves to in progress, and a cycle-scoped note stamps the
// cycle's treatment time, entering treatment if it was still pending.
func (s *Service) RecordTreatmentNote(ctx context.Context, noteID, collaboratorID uuid.UUID, text string) (*model.Note, error) {
	if text == "" {
		return nil, apperr.Validation("note text is required", nil)
	}

	n, err := s.notes.Get(ctx, noteID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("note", err)
	}
	if err != nil {
		return nil, apperr.Internal("failed to load note", err)
	}

	p, err := s.prescriptions.Get(ctx, n.PrescriptionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("prescription", err)
	}
	if err != nil {
		return nil, apperr.Internal("failed to load prescription", err)
	}
	if p.CollaboratorID == nil {
		return nil, apperr.Permission("prescription is not claimed")
	}
	if *p.CollaboratorID != collaboratorID {
		return nil, apperr.Permission("prescription is claimed by another collaborator")
	}

	n.Text = text
	if err := s.notes.Update(ctx, n); err != nil {
		return nil, apperr.Internal("failed to update note", err)
	}

	now := s.now()
	p.LastTreatedAt = &now
	p.Status = model.PrescriptionStatusInProgress
	if err := s.prescriptions.Update(ctx, p); err != nil {
		return nil, apperr.Internal("failed to update prescription", err)
	}

	if n.Scope == model.NoteScopeCycle && n.CycleID != nil {
		c, err := s.cycles.Get(ctx, *n.CycleID)
		if err != nil {
			return nil, apperr.Internal("failed to load cycle", err)
		}
		c.TreatedAt = &now
		if c.Status == model.CycleStatusPending {
			c.Status = model.CycleStatusInTreatment
			c.CollaboratorID = &collaboratorID
		}
		if err := s.cycles.Update(ctx, c); err != nil {
			return nil, apperr.Internal("failed to update cycle", err)
		}
	}

	return n, nil
}
