package model

import (
	"time"

	"github.com/google/uuid"
)

type CycleStatus string

const (
	// CycleStatusPlaceholder is the bookkeeping cycle a single prescription
	// carries so notes always have an owner row.
	CycleStatusPlaceholder CycleStatus = "placeholder"
	CycleStatusPending     CycleStatus = "pending"
	CycleStatusInTreatment CycleStatus = "in_treatment"
	CycleStatusCompleted   CycleStatus = "completed"
	// CycleStatusInterrupted marks cycles terminated early because the
	// prescription was completed before the renewal series ran out.
	CycleStatusInterrupted CycleStatus = "interrupted"
	CycleStatusLate        CycleStatus = "late"
)

func (s CycleStatus) Valid() bool {
	switch s {
	case CycleStatusPlaceholder, CycleStatusPending, CycleStatusInTreatment,
		CycleStatusCompleted, CycleStatusInterrupted, CycleStatusLate:
		return true
	}
	return false
}

// Open reports whether the cycle still awaits treatment.
func (s CycleStatus) Open() bool {
	return s == CycleStatusPending || s == CycleStatusInTreatment
}

type Cycle struct {
	Base
	PrescriptionID uuid.UUID   `db:"prescription_id" json:"prescription_id"`
	CycleNumber    int         `db:"cycle_number" json:"cycle_number"`
	Status         CycleStatus `db:"status" json:"status"`
	CollaboratorID *uuid.UUID  `db:"collaborator_id" json:"collaborator_id,omitempty"`
	TreatedAt      *time.Time  `db:"treated_at" json:"treated_at,omitempty"`
}

type ChangeCycleStatusRequest struct {
	Status CycleStatus `json:"status" binding:"required,cycle_status"`
}
