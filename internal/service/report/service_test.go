package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmapointe/ordonnance-api/internal/model"
	"github.com/pharmapointe/ordonnance-api/internal/repository/repositorytest"
)

func TestListAssemblesViews(t *testing.T) {
	ctx := context.Background()
	prescriptions := repositorytest.NewPrescriptionRepo()
	cycles := repositorytest.NewCycleRepo()
	notes := repositorytest.NewNoteRepo()
	collaborators := repositorytest.NewCollaboratorRepo()
	documents := repositorytest.NewDocumentStore()

	collab := &model.Collaborator{FirstName: "Luc", LastName: "Moreau", Email: "luc@pharma.fr"}
	require.NoError(t, collaborators.Create(ctx, collab))

	p := &model.Prescription{
		SequenceNumber: 7,
		LastName:       "Dupont",
		Kind:           model.KindRenewing,
		Status:         model.PrescriptionStatusInProgress,
		DocumentRef:    "prescriptions/x.pdf",
		CollaboratorID: &collab.ID,
	}
	require.NoError(t, prescriptions.Create(ctx, p))

	c := &model.Cycle{PrescriptionID: p.ID, CycleNumber: 1, Status: model.CycleStatusInTreatment, CollaboratorID: &collab.ID}
	_, err := cycles.Create(ctx, c)
	require.NoError(t, err)

	global := &model.Note{Scope: model.NoteScopeGlobal, Text: "global", PrescriptionID: p.ID}
	require.NoError(t, notes.Create(ctx, global))
	cycleNote := &model.Note{Scope: model.NoteScopeCycle, Text: "cycle", PrescriptionID: p.ID, CycleID: &c.ID}
	require.NoError(t, notes.Create(ctx, cycleNote))

	svc := NewService(prescriptions, cycles, notes, collaborators, documents, time.UTC)

	views, total, err := svc.List(ctx, &model.ViewFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, views, 1)

	view := views[0]
	assert.Equal(t, "Luc Moreau", view.CollaboratorName)
	assert.Equal(t, "https://media.test/prescriptions/x.pdf", view.DocumentURL)
	require.NotNil(t, view.GlobalNote)
	assert.Equal(t, "global", view.GlobalNote.Text)
	require.Len(t, view.Cycles, 1)
	assert.Equal(t, "Luc Moreau", view.Cycles[0].CollaboratorName)
	require.NotNil(t, view.Cycles[0].Note)
	assert.Equal(t, "cycle", view.Cycles[0].Note.Text)
}

func TestCountsMemoized(t *testing.T) {
	ctx := context.Background()
	prescriptions := repositorytest.NewPrescriptionRepo()
	svc := NewService(prescriptions, repositorytest.NewCycleRepo(), repositorytest.NewNoteRepo(), repositorytest.NewCollaboratorRepo(), repositorytest.NewDocumentStore(), time.UTC)

	late := &model.Prescription{Kind: model.KindSingle, Status: model.PrescriptionStatusLate}
	require.NoError(t, prescriptions.Create(ctx, late))

	first, err := svc.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Late)

	// New rows are not visible until the cache entry expires.
	require.NoError(t, prescriptions.Create(ctx, &model.Prescription{Kind: model.KindSingle, Status: model.PrescriptionStatusLate}))
	second, err := svc.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Late)
}
