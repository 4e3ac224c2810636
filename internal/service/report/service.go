package report

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/pharmapointe/ordonnance-api/internal/document"
	"github.com/pharmapointe/ordonnance-api/internal/model"
	"github.com/pharmapointe/ordonnance-api/internal/repository"
	apperr "github.com/pharmapointe/ordonnance-api/pkg/errors"
)

const countsCacheKey = "dashboard_counts"

// Service builds read-side views. It never mutates domain state.
type Service struct {
	prescriptions repository.PrescriptionRepository
	cycles        repository.CycleRepository
	notes         repository.NoteRepository
	collaborators repository.CollaboratorRepository
	documents     document.Store

	location *time.Location
	cache    *gocache.Cache
	now      func() time.Time
}

func NewService(
	prescriptions repository.PrescriptionRepository,
	cycles repository.CycleRepository,
	notes repository.NoteRepository,
	collaborators repository.CollaboratorRepository,
	documents document.Store,
	location *time.Location,
) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{
		prescriptions: prescriptions,
		cycles:        cycles,
		notes:         notes,
		collaborators: collaborators,
		documents:     documents,
		location:      location,
		cache:         gocache.New(30*time.Second, time.Minute),
		now:           time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// List runs the listing query and assembles full views: cycles, notes,
// collaborator names, and a media URL for the stored document.
func (s *Service) List(ctx context.Context, filter *model.ViewFilter) ([]*model.PrescriptionView, int, error) {
	s.prepare(filter)

	rows, err := s.prescriptions.List(ctx, filter)
	if err != nil {
		return nil, 0, apperr.Internal("failed to list prescriptions", err)
	}
	total, err := s.prescriptions.Count(ctx, filter)
	if err != nil {
		return nil, 0, apperr.Internal("failed to count prescriptions", err)
	}
	if len(rows) == 0 {
		return []*model.PrescriptionView{}, total, nil
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, p := range rows {
		ids = append(ids, p.ID)
	}

	cycles, err := s.cycles.FindByPrescriptionIDs(ctx, ids)
	if err != nil {
		return nil, 0, apperr.Internal("failed to load cycles", err)
	}
	notes, err := s.notes.FindByPrescriptionIDs(ctx, ids)
	if err != nil {
		return nil, 0, apperr.Internal("failed to load notes", err)
	}
	names, err := s.collaboratorNames(ctx, rows, cycles)
	if err != nil {
		return nil, 0, err
	}

	globalNotes := make(map[uuid.UUID]*model.Note)
	cycleNotes := make(map[uuid.UUID]*model.Note)
	for _, n := range notes {
		if n.Scope == model.NoteScopeGlobal {
			globalNotes[n.PrescriptionID] = n
		} else if n.CycleID != nil {
			cycleNotes[*n.CycleID] = n
		}
	}

	cyclesByPrescription := make(map[uuid.UUID][]model.CycleView)
	for _, c := range cycles {
		view := model.CycleView{Cycle: *c, Note: cycleNotes[c.ID]}
		if c.CollaboratorID != nil {
			view.CollaboratorName = names[*c.CollaboratorID]
		}
		cyclesByPrescription[c.PrescriptionID] = append(cyclesByPrescription[c.PrescriptionID], view)
	}

	views := make([]*model.PrescriptionView, 0, len(rows))
	for _, p := range rows {
		view := &model.PrescriptionView{
			Prescription: *p,
			GlobalNote:   globalNotes[p.ID],
			Cycles:       cyclesByPrescription[p.ID],
			DocumentURL:  s.documents.MediaURL(p.DocumentRef),
		}
		if p.CollaboratorID != nil {
			view.CollaboratorName = names[*p.CollaboratorID]
		}
		views = append(views, view)
	}
	return views, total, nil
}

// Counts returns the dashboard tiles, memoized for a short TTL since the
// dashboard polls aggressively.
func (s *Service) Counts(ctx context.Context) (*model.DashboardCounts, error) {
	if cached, ok := s.cache.Get(countsCacheKey); ok {
		return cached.(*model.DashboardCounts), nil
	}

	today := &model.ViewFilter{OnlyToday: true}
	s.prepare(today)
	todayCount, err := s.prescriptions.Count(ctx, today)
	if err != nil {
		return nil, apperr.Internal("failed to count today's prescriptions", err)
	}

	late := &model.ViewFilter{OnlyLate: true}
	s.prepare(late)
	lateCount, err := s.prescriptions.Count(ctx, late)
	if err != nil {
		return nil, apperr.Internal("failed to count late prescriptions", err)
	}

	counts := &model.DashboardCounts{Today: todayCount, Late: lateCount}
	s.cache.SetDefault(countsCacheKey, counts)
	return counts, nil
}

// prepare fills derived filter fields: pagination defaults and the bounds
// of "today" in the business timezone.
func (s *Service) prepare(filter *model.ViewFilter) {
	filter.Normalize()
	if filter.OnlyToday {
		now := s.now().In(s.location)
		filter.DayStart = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
		filter.DayEnd = filter.DayStart.AddDate(0, 0, 1)
	}
}

func (s *Service) collaboratorNames(ctx context.Context, rows []*model.Prescription, cycles []*model.Cycle) (map[uuid.UUID]string, error) {
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	add := func(id *uuid.UUID) {
		if id == nil {
			return
		}
		if _, ok := seen[*id]; ok {
			return
		}
		seen[*id] = struct{}{}
		ids = append(ids, *id)
	}
	for _, p := range rows {
		add(p.CollaboratorID)
	}
	for _, c := range cycles {
		add(c.CollaboratorID)
	}

	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	refs, err := s.collaborators.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("failed to load collaborators", err)
	}
	for _, ref := range refs {
		if ref.FirstName == "" {
			names[ref.ID] = ref.LastName
		} else {
			names[ref.ID] = ref.FirstName + " " + ref.LastName
		}
	}
	return names, nil
}
