package model

import (
	"time"

	"github.com/google/uuid"
)

// ViewFilter drives the single listing/report query. Each listing endpoint
// sets the predicate combination it needs instead of carrying its own query.
type ViewFilter struct {
	Statuses       []PrescriptionStatus
	Kind           *Kind
	Search         string
	SequenceNumber *int64
	ReceivedOn     *time.Time

	// OnlyToday keeps prescriptions received today (single) or with an open
	// cycle created today (renewing). DayStart/DayEnd carry the bounds of
	// "today" in the configured business timezone; the report service fills
	// them in.
	OnlyToday bool
	DayStart  time.Time
	DayEnd    time.Time
	// OnlyLate keeps late singles and renewing prescriptions with a late cycle.
	OnlyLate bool
	// ExcludeClosed drops completed and late prescriptions.
	ExcludeClosed bool

	Pagination
}

type CycleView struct {
	Cycle
	CollaboratorName string `json:"collaborator_name,omitempty"`
	Note             *Note  `json:"note,omitempty"`
}

type PrescriptionView struct {
	Prescription
	CollaboratorName string      `json:"collaborator_name,omitempty"`
	GlobalNote       *Note       `json:"global_note,omitempty"`
	Cycles           []CycleView `json:"cycles,omitempty"`
	DocumentURL      string      `json:"document_url,omitempty"`
}

type DashboardCounts struct {
	Today int `json:"today"`
	Late  int `json:"late"`
}

type CollaboratorRef struct {
	ID        uuid.UUID `db:"id"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
}
