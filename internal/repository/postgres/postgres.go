package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/pharmapointe/ordonnance-api/internal/repository"
)

type prescriptionRepository struct {
	db *sqlx.DB
}

type cycleRepository struct {
	db *sqlx.DB
}

type noteRepository struct {
	db *sqlx.DB
}

type messageRepository struct {
	db *sqlx.DB
}

type counterRepository struct {
	db *sqlx.DB
}

type collaboratorRepository struct {
	db *sqlx.DB
}

type outboxRepository struct {
	db *sqlx.DB
}

func NewPrescriptionRepository(db *sqlx.DB) repository.PrescriptionRepository {
	return &prescriptionRepository{db: db}
}

func NewCycleRepository(db *sqlx.DB) repository.CycleRepository {
	return &cycleRepository{db: db}
}

func NewNoteRepository(db *sqlx.DB) repository.NoteRepository {
	return &noteRepository{db: db}
}

func NewMessageRepository(db *sqlx.DB) repository.MessageRepository {
	return &messageRepository{db: db}
}

func NewCounterRepository(db *sqlx.DB) repository.CounterRepository {
	return &counterRepository{db: db}
}

func NewCollaboratorRepository(db *sqlx.DB) repository.CollaboratorRepository {
	return &collaboratorRepository{db: db}
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{db: db}
}
