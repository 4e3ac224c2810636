package note

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmapointe/ordonnance-api/internal/model"
	"github.com/pharmapointe/ordonnance-api/internal/repository/repositorytest"
	apperr "github.com/pharmapointe/ordonnance-api/pkg/errors"
)

var testNow = time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC)

func seed(t *testing.T, prescriptions *repositorytest.PrescriptionRepo, cycles *repositorytest.CycleRepo, notes *repositorytest.NoteRepo, collab *uuid.UUID) (*model.Prescription, *model.Cycle, *model.Note) {
	t.Helper()
	ctx := context.Background()

	p := &model.Prescription{
		Kind:           model.KindRenewing,
		Status:         model.PrescriptionStatusPending,
		CollaboratorID: collab,
	}
	require.NoError(t, prescriptions.Create(ctx, p))

	c := &model.Cycle{PrescriptionID: p.ID, CycleNumber: 1, Status: model.CycleStatusPending}
	_, err := cycles.Create(ctx, c)
	require.NoError(t, err)

	n := &model.Note{
		Scope:          model.NoteScopeCycle,
		Text:           model.NotePlaceholderText,
		PrescriptionID: p.ID,
		CycleID:        &c.ID,
	}
	require.NoError(t, notes.Create(ctx, n))
	return p, c, n
}

func TestRecordTreatmentNote(t *testing.T) {
	prescriptions := repositorytest.NewPrescriptionRepo()
	cycles := repositorytest.NewCycleRepo()
	notes := repositorytest.NewNoteRepo()
	collab := uuid.New()
	p, c, n := seed(t, prescriptions, cycles, notes, &collab)

	svc := NewService(notes, prescriptions, cycles).WithClock(func() time.Time { return testNow })

	updated, err := svc.RecordTreatmentNote(context.Background(), n.ID, collab, "delivered half the boxes")
	require.NoError(t, err)
	assert.Equal(t, "delivered half the boxes", updated.Text)

	gotP, _ := prescriptions.Get(context.Background(), p.ID)
	assert.Equal(t, model.PrescriptionStatusInProgress, gotP.Status)
	require.NotNil(t, gotP.LastTreatedAt)
	assert.Equal(t, testNow, *gotP.LastTreatedAt)

	gotC, _ := cycles.Get(context.Background(), c.ID)
	assert.Equal(t, model.CycleStatusInTreatment, gotC.Status)
	require.NotNil(t, gotC.CollaboratorID)
	assert.Equal(t, collab, *gotC.CollaboratorID)
	require.NotNil(t, gotC.TreatedAt)
	assert.Equal(t, testNow, *gotC.TreatedAt)
}

func TestRecordTreatmentNoteRestartsLatePrescription(t *testing.T) {
	prescriptions := repositorytest.NewPrescriptionRepo()
	cycles := repositorytest.NewCycleRepo()
	notes := repositorytest.NewNoteRepo()
	collab := uuid.New()
	p, _, n := seed(t, prescriptions, cycles, notes, &collab)

	p.Status = model.PrescriptionStatusLate
	require.NoError(t, prescriptions.Update(context.Background(), p))

	svc := NewService(notes, prescriptions, cycles).WithClock(func() time.Time { return testNow })

	_, err := svc.RecordTreatmentNote(context.Background(), n.ID, collab, "picked back up")
	require.NoError(t, err)

	got, _ := prescriptions.Get(context.Background(), p.ID)
	assert.Equal(t, model.PrescriptionStatusInProgress, got.Status)
}

func TestRecordTreatmentNoteRequiresClaim(t *testing.T) {
	prescriptions := repositorytest.NewPrescriptionRepo()
	cycles := repositorytest.NewCycleRepo()
	notes := repositorytest.NewNoteRepo()
	_, _, n := seed(t, prescriptions, cycles, notes, nil)

	svc := NewService(notes, prescriptions, cycles)

	_, err := svc.RecordTreatmentNote(context.Background(), n.ID, uuid.New(), "text")
	assert.True(t, apperr.IsPermission(err))
}

func TestRecordTreatmentNoteWrongCollaborator(t *testing.T) {
	prescriptions := repositorytest.NewPrescriptionRepo()
	cycles := repositorytest.NewCycleRepo()
	notes := repositorytest.NewNoteRepo()
	owner := uuid.New()
	_, _, n := seed(t, prescriptions, cycles, notes, &owner)

	svc := NewService(notes, prescriptions, cycles)

	_, err := svc.RecordTreatmentNote(context.Background(), n.ID, uuid.New(), "text")
	assert.True(t, apperr.IsPermission(err))
}

func TestRecordTreatmentNoteEmptyText(t *testing.T) {
	svc := NewService(repositorytest.NewNoteRepo(), repositorytest.NewPrescriptionRepo(), repositorytest.NewCycleRepo())
	_, err := svc.RecordTreatmentNote(context.Background(), uuid.New(), uuid.New(), "")
	assert.True(t, apperr.IsValidation(err))
}
