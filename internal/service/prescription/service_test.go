package prescription

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmapointe/ordonnance-api/internal/model"
	"github.com/pharmapointe/ordonnance-api/internal/repository/repositorytest"
	apperr "github.com/pharmapointe/ordonnance-api/pkg/errors"
	"github.com/pharmapointe/ordonnance-api/pkg/logger"
)

var testNow = time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC)

type fixture struct {
	prescriptions *repositorytest.PrescriptionRepo
	cycles        *repositorytest.CycleRepo
	notes         *repositorytest.NoteRepo
	messages      *repositorytest.MessageRepo
	outbox        *repositorytest.OutboxRepo
	documents     *repositorytest.DocumentStore
	notifier      *repositorytest.Notifier
	svc           *Service
}

func newFixture() *fixture {
	f := &fixture{
		prescriptions: repositorytest.NewPrescriptionRepo(),
		cycles:        repositorytest.NewCycleRepo(),
		notes:         repositorytest.NewNoteRepo(),
		messages:      repositorytest.NewMessageRepo(),
		outbox:        repositorytest.NewOutboxRepo(),
		documents:     repositorytest.NewDocumentStore(),
		notifier:      &repositorytest.Notifier{},
	}
	log := logger.NewLogger(&logger.Config{Level: logger.FatalLevel, Output: io.Discard})
	f.svc = NewService(
		f.prescriptions, f.cycles, f.notes, f.messages,
		repositorytest.NewCounterRepo(), f.outbox,
		f.documents, f.notifier, log,
	).WithClock(func() time.Time { return testNow })
	return f
}

func renewingRequest() *model.CreatePrescriptionRequest {
	return &model.CreatePrescriptionRequest{
		FirstName:         "Marie",
		LastName:          "Dupont",
		Email:             "marie@example.com",
		Kind:              model.KindRenewing,
		RenewalPeriodDays: 30,
		RenewalCount:      3,
	}
}

func (f *fixture) createRenewing(t *testing.T) *model.Prescription {
	t.Helper()
	p, err := f.svc.CreateFromUpload(context.Background(), renewingRequest(), "scan.pdf", "application/pdf", strings.NewReader("doc"))
	require.NoError(t, err)
	return p
}

func (f *fixture) createSingle(t *testing.T) *model.Prescription {
	t.Helper()
	req := &model.CreatePrescriptionRequest{LastName: "Martin", Kind: model.KindSingle}
	p, err := f.svc.CreateFromUpload(context.Background(), req, "scan.pdf", "application/pdf", strings.NewReader("doc"))
	require.NoError(t, err)
	return p
}

func TestCreateRenewing(t *testing.T) {
	f := newFixture()
	p := f.createRenewing(t)

	assert.Equal(t, int64(1), p.SequenceNumber)
	assert.Equal(t, model.PrescriptionStatusInProgress, p.Status, "opening a renewal series starts treatment")
	require.NotNil(t, p.RenewalsRemaining)
	assert.Equal(t, 2, *p.RenewalsRemaining)
	assert.Equal(t, 3, *p.InitialRenewalCount)
	assert.Equal(t, testNow.AddDate(0, 0, 30), *p.NextRenewalAt)

	cycles, err := f.cycles.FindByPrescription(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Equal(t, 1, cycles[0].CycleNumber)
	assert.Equal(t, model.CycleStatusPending, cycles[0].Status)

	notes, err := f.notes.FindByPrescriptionIDs(context.Background(), []uuid.UUID{p.ID})
	require.NoError(t, err)
	require.Len(t, notes, 2)

	assert.Len(t, f.documents.Objects, 1)
	assert.Contains(t, f.outbox.EventTypes(), "prescription.created")
}

func TestCreateSingle(t *testing.T) {
	f := newFixture()
	p := f.createSingle(t)

	assert.Equal(t, model.PrescriptionStatusPending, p.Status)
	assert.Nil(t, p.RenewalsRemaining)
	assert.Nil(t, p.NextRenewalAt)

	cycles, _ := f.cycles.FindByPrescription(context.Background(), p.ID)
	require.Len(t, cycles, 1)
	assert.Equal(t, model.CycleStatusPlaceholder, cycles[0].Status)

	notes, _ := f.notes.FindByPrescriptionIDs(context.Background(), []uuid.UUID{p.ID})
	require.Len(t, notes, 1)
	assert.Equal(t, model.NoteScopeGlobal, notes[0].Scope)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture()
	req := renewingRequest()
	req.RenewalPeriodDays = 0

	_, err := f.svc.CreateFromUpload(context.Background(), req, "scan.pdf", "application/pdf", strings.NewReader("doc"))
	assert.True(t, apperr.IsValidation(err))
}

func TestSequenceNumbersUniqueUnderConcurrency(t *testing.T) {
	f := newFixture()
	const n = 20

	var wg sync.WaitGroup
	seqs := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := &model.CreatePrescriptionRequest{LastName: "Durand", Kind: model.KindSingle}
			p, err := f.svc.CreateFromUpload(context.Background(), req, "scan.pdf", "application/pdf", strings.NewReader("doc"))
			if err == nil {
				seqs <- p.SequenceNumber
			}
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for s := range seqs {
		assert.False(t, seen[s], "sequence number %d allocated twice", s)
		seen[s] = true
	}
	assert.Len(t, seen, n)
}

func TestClaimExclusivity(t *testing.T) {
	f := newFixture()
	p := f.createRenewing(t)
	first, second := uuid.New(), uuid.New()

	claimed, err := f.svc.Claim(context.Background(), p.ID, first)
	require.NoError(t, err)
	assert.Equal(t, first, *claimed.CollaboratorID)

	_, err = f.svc.Claim(context.Background(), p.ID, second)
	assert.True(t, apperr.IsConflict(err))

	got, _ := f.svc.Get(context.Background(), p.ID)
	assert.Equal(t, first, *got.CollaboratorID, "losing claim must not overwrite")

	// A second claim conflicts even for the collaborator who holds it.
	_, err = f.svc.Claim(context.Background(), p.ID, first)
	assert.True(t, apperr.IsConflict(err))
}

func TestClaimPropagatesToOpenCycle(t *testing.T) {
	f := newFixture()
	p := f.createRenewing(t)
	collab := uuid.New()

	_, err := f.svc.Claim(context.Background(), p.ID, collab)
	require.NoError(t, err)

	latest, err := f.cycles.FindLatest(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, latest.CollaboratorID)
	assert.Equal(t, collab, *latest.CollaboratorID)
}

func TestChangeStatusRequiresClaim(t *testing.T) {
	f := newFixture()
	p := f.createSingle(t)

	_, err := f.svc.ChangeStatus(context.Background(), p.ID, uuid.New(), model.PrescriptionStatusInProgress)
	assert.True(t, apperr.IsPermission(err))
}

func TestChangeStatusStampsTreatmentTime(t *testing.T) {
	f := newFixture()
	p := f.createSingle(t)
	collab := uuid.New()
	_, err := f.svc.Claim(context.Background(), p.ID, collab)
	require.NoError(t, err)

	updated, err := f.svc.ChangeStatus(context.Background(), p.ID, collab, model.PrescriptionStatusInProgress)
	require.NoError(t, err)
	require.NotNil(t, updated.LastTreatedAt)
	assert.Equal(t, testNow, *updated.LastTreatedAt)
}

func TestCompleteRenewingInterruptsCycles(t *testing.T) {
	f := newFixture()
	p := f.createRenewing(t)
	collab := uuid.New()
	_, err := f.svc.Claim(context.Background(), p.ID, collab)
	require.NoError(t, err)

	updated, err := f.svc.ChangeStatus(context.Background(), p.ID, collab, model.PrescriptionStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.PrescriptionStatusCompleted, updated.Status)
	require.NotNil(t, updated.LastTreatedAt)
	assert.Equal(t, testNow, *updated.LastTreatedAt)

	cycles, _ := f.cycles.FindByPrescription(context.Background(), p.ID)
	for _, c := range cycles {
		assert.Equal(t, model.CycleStatusInterrupted, c.Status)
	}
}

func TestChangeCycleStatus(t *testing.T) {
	f := newFixture()
	p := f.createRenewing(t)
	collab := uuid.New()
	_, err := f.svc.Claim(context.Background(), p.ID, collab)
	require.NoError(t, err)

	latest, _ := f.cycles.FindLatest(context.Background(), p.ID)

	c, err := f.svc.ChangeCycleStatus(context.Background(), latest.ID, collab, model.CycleStatusInTreatment)
	require.NoError(t, err)
	assert.Equal(t, model.CycleStatusInTreatment, c.Status)
	require.NotNil(t, c.TreatedAt, "every cycle change stamps the treatment time")
	assert.Equal(t, testNow, *c.TreatedAt)
	require.NotNil(t, c.CollaboratorID)
	assert.Equal(t, collab, *c.CollaboratorID, "cycle inherits the prescription's claim")

	c, err = f.svc.ChangeCycleStatus(context.Background(), latest.ID, collab, model.CycleStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.CycleStatusCompleted, c.Status)
	require.NotNil(t, c.TreatedAt)

	got, _ := f.svc.Get(context.Background(), p.ID)
	require.NotNil(t, got.LastTreatedAt)
	assert.Equal(t, testNow, *got.LastTreatedAt)
}

func TestConvertRoundTripLeavesOnlyGlobalNote(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.createRenewing(t)
	collab := uuid.New()
	_, err := f.svc.Claim(ctx, p.ID, collab)
	require.NoError(t, err)

	asSingle, err := f.svc.ConvertType(ctx, p.ID, collab, &model.ConvertKindRequest{Kind: model.KindSingle})
	require.NoError(t, err)
	assert.Nil(t, asSingle.RenewalsRemaining)
	assert.Nil(t, asSingle.NextRenewalAt)

	cycles, _ := f.cycles.FindByPrescription(ctx, p.ID)
	require.Len(t, cycles, 1)
	assert.Equal(t, 1, cycles[0].CycleNumber)
	assert.Equal(t, model.CycleStatusPlaceholder, cycles[0].Status)

	notes, _ := f.notes.FindByPrescriptionIDs(ctx, []uuid.UUID{p.ID})
	require.Len(t, notes, 1)
	assert.Equal(t, model.NoteScopeGlobal, notes[0].Scope)

	back, err := f.svc.ConvertType(ctx, p.ID, collab, &model.ConvertKindRequest{
		Kind: model.KindRenewing, RenewalPeriodDays: 14, RenewalCount: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, *back.RenewalsRemaining)
	assert.Equal(t, testNow.AddDate(0, 0, 14), *back.NextRenewalAt)

	cycles, _ = f.cycles.FindByPrescription(ctx, p.ID)
	require.Len(t, cycles, 1)
	assert.Equal(t, model.CycleStatusPending, cycles[0].Status)

	notes, _ = f.notes.FindByPrescriptionIDs(ctx, []uuid.UUID{p.ID})
	assert.Len(t, notes, 2)
}

func TestConvertSameKindRejected(t *testing.T) {
	f := newFixture()
	p := f.createSingle(t)
	collab := uuid.New()
	_, err := f.svc.Claim(context.Background(), p.ID, collab)
	require.NoError(t, err)

	_, err = f.svc.ConvertType(context.Background(), p.ID, collab, &model.ConvertKindRequest{Kind: model.KindSingle})
	assert.True(t, apperr.IsValidation(err))
}

func TestPromoteFromInboundMessage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	received := testNow.Add(-2 * time.Hour)
	msg := &model.InboundMessage{
		Sender:      "patient@example.com",
		Channel:     model.ChannelEmail,
		DocumentRef: "inbound/email/abc-scan.pdf",
		ReceivedAt:  received,
	}
	require.NoError(t, f.messages.Create(ctx, msg))

	p, err := f.svc.PromoteFromInboundMessage(ctx, msg.ID, &model.CreatePrescriptionRequest{
		LastName: "Bernard", Kind: model.KindSingle,
	})
	require.NoError(t, err)
	assert.Equal(t, model.ChannelEmail, p.Channel)
	assert.Equal(t, "inbound/email/abc-scan.pdf", p.DocumentRef)
	assert.Equal(t, received, p.ReceivedAt)

	_, err = f.messages.Get(ctx, msg.ID)
	assert.Error(t, err, "promoted message must be consumed")
}

func TestPromoteAlwaysYieldsSingle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	msg := &model.InboundMessage{
		Sender:      "patient@example.com",
		Channel:     model.ChannelWhatsApp,
		DocumentRef: "inbound/whatsapp/def-photo.jpg",
		ReceivedAt:  testNow,
	}
	require.NoError(t, f.messages.Create(ctx, msg))

	req := renewingRequest()
	p, err := f.svc.PromoteFromInboundMessage(ctx, msg.ID, req)
	require.NoError(t, err)
	assert.Equal(t, model.KindSingle, p.Kind)
	assert.Equal(t, model.PrescriptionStatusPending, p.Status)
	assert.Nil(t, p.RenewalsRemaining)
	assert.Nil(t, p.NextRenewalAt)
}

func TestDeleteRemovesAggregate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.createRenewing(t)
	collab := uuid.New()
	_, err := f.svc.Claim(ctx, p.ID, collab)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, p.ID, collab))

	_, err = f.svc.Get(ctx, p.ID)
	assert.True(t, apperr.IsNotFound(err))
	cycles, _ := f.cycles.FindByPrescription(ctx, p.ID)
	assert.Empty(t, cycles)
	notes, _ := f.notes.FindByPrescriptionIDs(ctx, []uuid.UUID{p.ID})
	assert.Empty(t, notes)
	assert.Empty(t, f.documents.Objects)
}

func TestDeleteRequiresClaim(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.createRenewing(t)

	err := f.svc.Delete(ctx, p.ID, uuid.New())
	assert.True(t, apperr.IsPermission(err))

	_, err = f.svc.Get(ctx, p.ID)
	require.NoError(t, err, "unclaimed delete must leave the prescription in place")

	owner := uuid.New()
	_, err = f.svc.Claim(ctx, p.ID, owner)
	require.NoError(t, err)

	err = f.svc.Delete(ctx, p.ID, uuid.New())
	assert.True(t, apperr.IsPermission(err), "only the claim holder may delete")
}

func TestUpdateNotifyFailureNotPropagated(t *testing.T) {
	f := newFixture()
	f.notifier.Err = io.ErrUnexpectedEOF
	p := f.createRenewing(t)
	collab := uuid.New()
	_, err := f.svc.Claim(context.Background(), p.ID, collab)
	require.NoError(t, err)

	phone := "0612345678"
	updated, err := f.svc.Update(context.Background(), p.ID, collab, &model.UpdatePrescriptionRequest{
		Phone:  &phone,
		Notify: true,
	})
	require.NoError(t, err)
	assert.Equal(t, phone, updated.Phone)
}
