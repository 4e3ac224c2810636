package model

import (
	"github.com/google/uuid"
)

type NoteScope string

const (
	NoteScopeGlobal NoteScope = "global"
	NoteScopeCycle  NoteScope = "cycle"
)

// NotePlaceholderText is the initial body every note is created with.
const NotePlaceholderText = " "

type Note struct {
	Base
	Scope          NoteScope  `db:"scope" json:"scope"`
	Text           string     `db:"text" json:"text"`
	PrescriptionID uuid.UUID  `db:"prescription_id" json:"prescription_id"`
	CycleID        *uuid.UUID `db:"cycle_id" json:"cycle_id,omitempty"`
}

type UpdateNoteRequest struct {
	Text string `json:"text" binding:"required"`
}
