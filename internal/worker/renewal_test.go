package worker

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmapointe/ordonnance-api/internal/model"
	"github.com/pharmapointe/ordonnance-api/internal/repository/repositorytest"
	"github.com/pharmapointe/ordonnance-api/pkg/logger"
	"github.com/pharmapointe/ordonnance-api/pkg/metrics"
)

var (
	testNow     = time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC)
	testMetrics = metrics.New("renewal_test")
)

type schedulerFixture struct {
	prescriptions *repositorytest.PrescriptionRepo
	cycles        *repositorytest.CycleRepo
	notes         *repositorytest.NoteRepo
	scheduler     *RenewalScheduler
}

func newSchedulerFixture() *schedulerFixture {
	f := &schedulerFixture{
		prescriptions: repositorytest.NewPrescriptionRepo(),
		cycles:        repositorytest.NewCycleRepo(),
		notes:         repositorytest.NewNoteRepo(),
	}
	log := logger.NewLogger(&logger.Config{Level: logger.FatalLevel, Output: io.Discard})
	f.scheduler = NewRenewalScheduler(
		f.prescriptions, f.cycles, f.notes,
		log, testMetrics,
		time.Minute, 24*time.Hour, time.UTC,
	).WithClock(func() time.Time { return testNow })
	return f
}

// seedRenewing inserts a renewing prescription with its cycle series up to
// cycleCount, the last cycle open, due at the given time.
func (f *schedulerFixture) seedRenewing(t *testing.T, initial, remaining int, due time.Time) *model.Prescription {
	t.Helper()
	ctx := context.Background()
	period := 30
	collab := uuid.New()
	p := &model.Prescription{
		SequenceNumber:      1,
		LastName:            "Dupont",
		Kind:                model.KindRenewing,
		Status:              model.PrescriptionStatusInProgress,
		ReceivedAt:          testNow.AddDate(0, 0, -30),
		RenewalPeriodDays:   &period,
		InitialRenewalCount: &initial,
		RenewalsRemaining:   &remaining,
		NextRenewalAt:       &due,
		CollaboratorID:      &collab,
	}
	require.NoError(t, f.prescriptions.Create(ctx, p))

	opened := initial - remaining
	for n := 1; n <= opened; n++ {
		status := model.CycleStatusCompleted
		if n == opened {
			status = model.CycleStatusPending
		}
		c := &model.Cycle{PrescriptionID: p.ID, CycleNumber: n, Status: status}
		inserted, err := f.cycles.Create(ctx, c)
		require.NoError(t, err)
		require.True(t, inserted)
	}
	return p
}

func TestAdvanceDueRenewal(t *testing.T) {
	f := newSchedulerFixture()
	ctx := context.Background()
	p := f.seedRenewing(t, 3, 2, testNow)

	report := f.scheduler.RunOnce(ctx)
	assert.Equal(t, 1, report.Advanced)
	assert.Equal(t, 0, report.Errors)

	cycles, _ := f.cycles.FindByPrescription(ctx, p.ID)
	require.Len(t, cycles, 2)
	assert.Equal(t, model.CycleStatusCompleted, cycles[0].Status)
	assert.Equal(t, 2, cycles[1].CycleNumber)
	assert.Equal(t, model.CycleStatusPending, cycles[1].Status)

	notes, _ := f.notes.FindByPrescriptionIDs(ctx, []uuid.UUID{p.ID})
	require.Len(t, notes, 1)
	assert.Equal(t, model.NoteScopeCycle, notes[0].Scope)
	assert.Equal(t, cycles[1].ID, *notes[0].CycleID)

	got, _ := f.prescriptions.Get(ctx, p.ID)
	assert.Equal(t, 1, *got.RenewalsRemaining)
	assert.Equal(t, testNow.AddDate(0, 0, 30), *got.NextRenewalAt)
	assert.Nil(t, got.CollaboratorID, "advancement clears the claim")
	assert.Equal(t, model.PrescriptionStatusInProgress, got.Status, "advancement leaves the status alone")
}

func TestAdvanceSecondTickIsNoop(t *testing.T) {
	f := newSchedulerFixture()
	ctx := context.Background()
	p := f.seedRenewing(t, 3, 2, testNow)

	first := f.scheduler.RunOnce(ctx)
	require.Equal(t, 1, first.Advanced)

	// The due date moved out of today's window, so the prescription is no
	// longer selected.
	second := f.scheduler.RunOnce(ctx)
	assert.Equal(t, 0, second.Advanced)

	cycles, _ := f.cycles.FindByPrescription(ctx, p.ID)
	assert.Len(t, cycles, 2)
}

func TestAdvanceRepairsPartialFailure(t *testing.T) {
	f := newSchedulerFixture()
	ctx := context.Background()
	// Cycle #2 was inserted by a run that died before updating the
	// prescription: remaining still reflects the pre-advance state.
	p := f.seedRenewing(t, 3, 2, testNow)
	_, err := f.cycles.Create(ctx, &model.Cycle{PrescriptionID: p.ID, CycleNumber: 2, Status: model.CycleStatusPending})
	require.NoError(t, err)

	report := f.scheduler.RunOnce(ctx)
	assert.Equal(t, 1, report.Advanced)
	assert.Equal(t, 0, report.Errors)

	cycles, _ := f.cycles.FindByPrescription(ctx, p.ID)
	assert.Len(t, cycles, 2, "no duplicate cycle on repair")
	notes, _ := f.notes.FindByPrescriptionIDs(ctx, []uuid.UUID{p.ID})
	assert.Empty(t, notes, "repair does not re-create notes")

	got, _ := f.prescriptions.Get(ctx, p.ID)
	assert.Equal(t, 1, *got.RenewalsRemaining)
}

func TestAdvanceExhaustionCompletes(t *testing.T) {
	f := newSchedulerFixture()
	ctx := context.Background()
	p := f.seedRenewing(t, 3, 1, testNow)

	report := f.scheduler.RunOnce(ctx)
	require.Equal(t, 1, report.Advanced)

	got, _ := f.prescriptions.Get(ctx, p.ID)
	assert.Equal(t, 0, *got.RenewalsRemaining)
	assert.Equal(t, model.PrescriptionStatusCompleted, got.Status)

	cycles, _ := f.cycles.FindByPrescription(ctx, p.ID)
	assert.Equal(t, 3, cycles[len(cycles)-1].CycleNumber)

	// An exhausted series is never selected again.
	assert.Equal(t, 0, f.scheduler.RunOnce(ctx).Advanced)
}

func TestAdvanceErrorIsolation(t *testing.T) {
	f := newSchedulerFixture()
	ctx := context.Background()
	healthy := f.seedRenewing(t, 3, 2, testNow)
	broken := f.seedRenewing(t, 3, 2, testNow)
	f.prescriptions.Break(broken.ID)

	report := f.scheduler.RunOnce(ctx)
	assert.Equal(t, 1, report.Advanced)
	assert.Equal(t, 1, report.Errors)

	got, _ := f.prescriptions.Get(ctx, healthy.ID)
	assert.Equal(t, 1, *got.RenewalsRemaining, "healthy record advanced despite the broken one")
}

func TestMarkStaleSinglesLate(t *testing.T) {
	f := newSchedulerFixture()
	ctx := context.Background()

	stale := &model.Prescription{
		Kind:       model.KindSingle,
		Status:     model.PrescriptionStatusPending,
		ReceivedAt: testNow.Add(-25 * time.Hour),
	}
	fresh := &model.Prescription{
		Kind:       model.KindSingle,
		Status:     model.PrescriptionStatusPending,
		ReceivedAt: testNow.Add(-2 * time.Hour),
	}
	require.NoError(t, f.prescriptions.Create(ctx, stale))
	require.NoError(t, f.prescriptions.Create(ctx, fresh))

	report := f.scheduler.RunOnce(ctx)
	assert.Equal(t, int64(1), report.MarkedLate)

	got, _ := f.prescriptions.Get(ctx, stale.ID)
	assert.Equal(t, model.PrescriptionStatusLate, got.Status)
	got, _ = f.prescriptions.Get(ctx, fresh.ID)
	assert.Equal(t, model.PrescriptionStatusPending, got.Status)
}

func TestExpireStaleCycles(t *testing.T) {
	f := newSchedulerFixture()
	ctx := context.Background()
	p := f.seedRenewing(t, 3, 2, testNow.AddDate(0, 0, 10))

	latest, err := f.cycles.FindLatest(ctx, p.ID)
	require.NoError(t, err)
	f.cycles.SetCreatedAt(latest.ID, testNow.Add(-25*time.Hour))

	report := f.scheduler.RunOnce(ctx)
	assert.Equal(t, int64(1), report.ExpiredCycles)

	got, _ := f.cycles.Get(ctx, latest.ID)
	assert.Equal(t, model.CycleStatusLate, got.Status)
}
