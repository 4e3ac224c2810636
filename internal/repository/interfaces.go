package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pharmapointe/ordonnance-api/internal/model"
)

// All repository interfaces in one file
type (
	PrescriptionRepository interface {
		Create(ctx context.Context, p *model.Prescription) error
		Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error)
		Update(ctx context.Context, p *model.Prescription) error
		Delete(ctx context.Context, id uuid.UUID) error

		// Claim sets the collaborator only when none is set yet and reports
		// whether this call won the claim.
		Claim(ctx context.Context, id, collaboratorID uuid.UUID) (bool, error)

		List(ctx context.Context, filter *model.ViewFilter) ([]*model.Prescription, error)
		Count(ctx context.Context, filter *model.ViewFilter) (int, error)

		ListDueForRenewal(ctx context.Context, dayStart, dayEnd time.Time) ([]*model.Prescription, error)
		MarkSinglesLateBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	CycleRepository interface {
		// Create inserts the cycle unless its (prescription, number) pair
		// already exists; the bool reports whether a row was inserted.
		Create(ctx context.Context, c *model.Cycle) (bool, error)
		Get(ctx context.Context, id uuid.UUID) (*model.Cycle, error)
		Update(ctx context.Context, c *model.Cycle) error

		FindByPrescription(ctx context.Context, prescriptionID uuid.UUID) ([]*model.Cycle, error)
		FindByPrescriptionIDs(ctx context.Context, prescriptionIDs []uuid.UUID) ([]*model.Cycle, error)
		FindLatest(ctx context.Context, prescriptionID uuid.UUID) (*model.Cycle, error)

		SetCollaborator(ctx context.Context, id uuid.UUID, collaboratorID *uuid.UUID) error
		BulkSetStatus(ctx context.Context, prescriptionID uuid.UUID, status model.CycleStatus) error
		DeleteByPrescription(ctx context.Context, prescriptionID uuid.UUID) error
		ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	NoteRepository interface {
		Create(ctx context.Context, n *model.Note) error
		Get(ctx context.Context, id uuid.UUID) (*model.Note, error)
		Update(ctx context.Context, n *model.Note) error

		FindByPrescriptionIDs(ctx context.Context, prescriptionIDs []uuid.UUID) ([]*model.Note, error)
		DeleteByPrescription(ctx context.Context, prescriptionID uuid.UUID) error
		DeleteCycleNotes(ctx context.Context, prescriptionID uuid.UUID) error
	}

	MessageRepository interface {
		Create(ctx context.Context, m *model.InboundMessage) error
		Get(ctx context.Context, id uuid.UUID) (*model.InboundMessage, error)
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter *model.MessageFilter) ([]*model.InboundMessage, int, error)
	}

	// CounterRepository allocates monotonically increasing sequence numbers.
	CounterRepository interface {
		Next(ctx context.Context, name string) (int64, error)
	}

	CollaboratorRepository interface {
		Create(ctx context.Context, c *model.Collaborator) error
		Get(ctx context.Context, id uuid.UUID) (*model.Collaborator, error)
		GetByEmail(ctx context.Context, email string) (*model.Collaborator, error)
		List(ctx context.Context) ([]*model.Collaborator, error)
		FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.CollaboratorRef, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
