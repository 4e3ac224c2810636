package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/pharmapointe/ordonnance-api/internal/model"
	"github.com/pharmapointe/ordonnance-api/internal/repository"
	"github.com/pharmapointe/ordonnance-api/pkg/logger"
	"github.com/pharmapointe/ordonnance-api/pkg/metrics"
)

// RunReport aggregates what one scheduler tick did.
type RunReport struct {
	Advanced      int
	MarkedLate    int64
	ExpiredCycles int64
	Errors        int
}

// RenewalScheduler advances renewal series and promotes stale work to late.
// Each tick runs three passes; a failing record is logged and counted, never
// allowed to abort its pass.
type RenewalScheduler struct {
	prescriptions repository.PrescriptionRepository
	cycles        repository.CycleRepository
	notes         repository.NoteRepository
	logger        *logger.Logger
	metrics       *metrics.Metrics

	interval   time.Duration
	staleAfter time.Duration
	location   *time.Location
	now        func() time.Time
}

func NewRenewalScheduler(
	prescriptions repository.PrescriptionRepository,
	cycles repository.CycleRepository,
	notes repository.NoteRepository,
	log *logger.Logger,
	m *metrics.Metrics,
	interval, staleAfter time.Duration,
	location *time.Location,
) *RenewalScheduler {
	if location == nil {
		location = time.UTC
	}
	return &RenewalScheduler{
		prescriptions: prescriptions,
		cycles:        cycles,
		notes:         notes,
		logger:        log,
		metrics:       m,
		interval:      interval,
		staleAfter:    staleAfter,
		location:      location,
		now:           time.Now,
	}
}

func (s *RenewalScheduler) WithClock(now func() time.Time) *RenewalScheduler {
	s.now = now
	return s
}

// Start ticks until the context is cancelled. One tick runs immediately so
// a freshly deployed worker does not wait a full interval.
func (s *RenewalScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *RenewalScheduler) tick(ctx context.Context) {
	start := time.Now()
	report := s.RunOnce(ctx)
	s.metrics.SchedulerTickDuration.Observe(time.Since(start).Seconds())
	s.logger.Info("scheduler tick finished",
		"advanced", report.Advanced,
		"marked_late", report.MarkedLate,
		"expired_cycles", report.ExpiredCycles,
		"errors", report.Errors,
	)
}

// RunOnce executes the three passes once and reports what happened. It never
// returns an error; failures are embedded in the report.
func (s *RenewalScheduler) RunOnce(ctx context.Context) RunReport {
	var report RunReport
	now := s.now()

	s.advanceDue(ctx, now, &report)
	s.markStaleSingles(ctx, now, &report)
	s.expireStaleCycles(ctx, now, &report)

	return report
}

// advanceDue opens the next cycle for every renewing prescription whose
// renewal date falls inside the current day.
func (s *RenewalScheduler) advanceDue(ctx context.Context, now time.Time, report *RunReport) {
	local := now.In(s.location)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)
	dayEnd := dayStart.AddDate(0, 0, 1)

	due, err := s.prescriptions.ListDueForRenewal(ctx, dayStart, dayEnd)
	if err != nil {
		s.logger.Error(err, "failed to list due prescriptions")
		s.metrics.SchedulerPassErrors.WithLabelValues("advance").Inc()
		report.Errors++
		return
	}

	for _, p := range due {
		if err := s.advance(ctx, p); err != nil {
			s.logger.Error(err, "failed to advance renewal", "prescription_id", p.ID)
			s.metrics.SchedulerPassErrors.WithLabelValues("advance").Inc()
			report.Errors++
			continue
		}
		report.Advanced++
		s.metrics.RenewalsAdvanced.Inc()
	}
}

// advance performs one renewal step. The cycle insert is guarded by the
// unique (prescription, number) pair, so a retried step after a partial
// failure converges instead of duplicating cycles.
func (s *RenewalScheduler) advance(ctx context.Context, p *model.Prescription) error {
	if p.RenewalsRemaining == nil || p.NextRenewalAt == nil || p.RenewalPeriodDays == nil || p.InitialRenewalCount == nil {
		return fmt.Errorf("prescription %s has incomplete renewal fields", p.ID)
	}
	remaining := *p.RenewalsRemaining
	if remaining <= 0 {
		return nil
	}

	// Cycle numbers are derived from the series position, not from the
	// stored rows, so the derivation survives partial failures.
	nextNumber := *p.InitialRenewalCount - remaining + 1

	current, err := s.cycles.FindLatest(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("failed to load current cycle: %w", err)
	}

	// A previous run may have inserted the next cycle and then failed before
	// updating the prescription; in that case only the prescription still
	// needs repair.
	if current.CycleNumber < nextNumber {
		if current.Status.Open() {
			current.Status = model.CycleStatusCompleted
			if err := s.cycles.Update(ctx, current); err != nil {
				return fmt.Errorf("failed to close current cycle: %w", err)
			}
		}

		next := &model.Cycle{
			PrescriptionID: p.ID,
			CycleNumber:    nextNumber,
			Status:         model.CycleStatusPending,
		}
		inserted, err := s.cycles.Create(ctx, next)
		if err != nil {
			return fmt.Errorf("failed to create cycle %d: %w", nextNumber, err)
		}
		if inserted {
			note := &model.Note{
				Scope:          model.NoteScopeCycle,
				Text:           model.NotePlaceholderText,
				PrescriptionID: p.ID,
				CycleID:        &next.ID,
			}
			if err := s.notes.Create(ctx, note); err != nil {
				return fmt.Errorf("failed to create cycle note: %w", err)
			}
		}
	}

	// Advance from the previous due date so the schedule never drifts with
	// tick timing.
	nextDue := p.NextRenewalAt.AddDate(0, 0, *p.RenewalPeriodDays)
	remaining--
	p.NextRenewalAt = &nextDue
	p.RenewalsRemaining = &remaining
	p.CollaboratorID = nil
	if remaining == 0 {
		p.Status = model.PrescriptionStatusCompleted
	}

	if err := s.prescriptions.Update(ctx, p); err != nil {
		return fmt.Errorf("failed to update prescription: %w", err)
	}
	return nil
}

func (s *RenewalScheduler) markStaleSingles(ctx context.Context, now time.Time, report *RunReport) {
	cutoff := now.Add(-s.staleAfter)
	n, err := s.prescriptions.MarkSinglesLateBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error(err, "failed to mark stale prescriptions late")
		s.metrics.SchedulerPassErrors.WithLabelValues("stale").Inc()
		report.Errors++
		return
	}
	report.MarkedLate = n
	s.metrics.PrescriptionsMarkedLate.Add(float64(n))
}

func (s *RenewalScheduler) expireStaleCycles(ctx context.Context, now time.Time, report *RunReport) {
	cutoff := now.Add(-s.staleAfter)
	n, err := s.cycles.ExpirePendingBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error(err, "failed to expire stale cycles")
		s.metrics.SchedulerPassErrors.WithLabelValues("expire").Inc()
		report.Errors++
		return
	}
	report.ExpiredCycles = n
	s.metrics.CyclesExpired.Add(float64(n))
}
