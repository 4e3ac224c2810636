// Package repositorytest provides in-memory repository implementations for
// service and worker tests.
package repositorytest

import (
	"context"
	"database/sql"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pharmapointe/ordonnance-api/internal/model"
)

type PrescriptionRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.Prescription
	// FailUpdates makes the next n Update calls fail, for partial-failure
	// scenarios.
	FailUpdates int
}

func NewPrescriptionRepo() *PrescriptionRepo {
	return &PrescriptionRepo{rows: make(map[uuid.UUID]*model.Prescription)}
}

func (r *PrescriptionRepo) Create(_ context.Context, p *model.Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	clone := *p
	r.rows[p.ID] = &clone
	return nil
}

func (r *PrescriptionRepo) Get(_ context.Context, id uuid.UUID) (*model.Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *p
	return &clone, nil
}

func (r *PrescriptionRepo) Update(_ context.Context, p *model.Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailUpdates > 0 {
		r.FailUpdates--
		return io.ErrUnexpectedEOF
	}
	if _, ok := r.rows[p.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *p
	r.rows[p.ID] = &clone
	return nil
}

func (r *PrescriptionRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.rows, id)
	return nil
}

func (r *PrescriptionRepo) Claim(_ context.Context, id, collaboratorID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return false, nil
	}
	if p.CollaboratorID != nil {
		return false, nil
	}
	p.CollaboratorID = &collaboratorID
	return true, nil
}

func (r *PrescriptionRepo) List(_ context.Context, filter *model.ViewFilter) ([]*model.Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Prescription
	for _, p := range r.rows {
		if matches(p, filter) {
			clone := *p
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber > out[j].SequenceNumber })
	return out, nil
}

func (r *PrescriptionRepo) Count(_ context.Context, filter *model.ViewFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.rows {
		if matches(p, filter) {
			n++
		}
	}
	return n, nil
}

func matches(p *model.Prescription, filter *model.ViewFilter) bool {
	if len(filter.Statuses) > 0 {
		found := false
		for _, s := range filter.Statuses {
			if p.Status == s {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if filter.Kind != nil && p.Kind != *filter.Kind {
		return false
	}
	if filter.Search != "" && !strings.Contains(strings.ToLower(p.LastName), strings.ToLower(filter.Search)) {
		return false
	}
	if filter.OnlyLate && p.Status != model.PrescriptionStatusLate {
		return false
	}
	if filter.ExcludeClosed &&
		(p.Status == model.PrescriptionStatusCompleted || p.Status == model.PrescriptionStatusLate) {
		return false
	}
	return true
}

func (r *PrescriptionRepo) ListDueForRenewal(_ context.Context, dayStart, dayEnd time.Time) ([]*model.Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Prescription
	for _, p := range r.rows {
		if p.Kind != model.KindRenewing || p.Status == model.PrescriptionStatusCompleted {
			continue
		}
		if p.NextRenewalAt == nil || p.RenewalsRemaining == nil || *p.RenewalsRemaining <= 0 {
			continue
		}
		if p.NextRenewalAt.Before(dayStart) || !p.NextRenewalAt.Before(dayEnd) {
			continue
		}
		clone := *p
		out = append(out, &clone)
	}
	return out, nil
}

func (r *PrescriptionRepo) MarkSinglesLateBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.rows {
		if p.Kind == model.KindSingle && p.Status == model.PrescriptionStatusPending && !p.ReceivedAt.After(cutoff) {
			p.Status = model.PrescriptionStatusLate
			n++
		}
	}
	return n, nil
}

// Break strips a prescription's renewal bookkeeping so scheduler error
// isolation can be exercised.
func (r *PrescriptionRepo) Break(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.rows[id]; ok {
		p.InitialRenewalCount = nil
	}
}

type CycleRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.Cycle
}

func NewCycleRepo() *CycleRepo {
	return &CycleRepo{rows: make(map[uuid.UUID]*model.Cycle)}
}

func (r *CycleRepo) Create(_ context.Context, c *model.Cycle) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.PrescriptionID == c.PrescriptionID && existing.CycleNumber == c.CycleNumber {
			return false, nil
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	clone := *c
	r.rows[c.ID] = &clone
	return true, nil
}

func (r *CycleRepo) Get(_ context.Context, id uuid.UUID) (*model.Cycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *c
	return &clone, nil
}

func (r *CycleRepo) Update(_ context.Context, c *model.Cycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[c.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *c
	r.rows[c.ID] = &clone
	return nil
}

func (r *CycleRepo) FindByPrescription(_ context.Context, prescriptionID uuid.UUID) ([]*model.Cycle, error) {
	return r.findWhere(func(c *model.Cycle) bool { return c.PrescriptionID == prescriptionID })
}

func (r *CycleRepo) FindByPrescriptionIDs(_ context.Context, ids []uuid.UUID) ([]*model.Cycle, error) {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return r.findWhere(func(c *model.Cycle) bool {
		_, ok := set[c.PrescriptionID]
		return ok
	})
}

func (r *CycleRepo) findWhere(keep func(*model.Cycle) bool) ([]*model.Cycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Cycle
	for _, c := range r.rows {
		if keep(c) {
			clone := *c
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CycleNumber < out[j].CycleNumber })
	return out, nil
}

func (r *CycleRepo) FindLatest(_ context.Context, prescriptionID uuid.UUID) (*model.Cycle, error) {
	cycles, _ := r.FindByPrescription(context.Background(), prescriptionID)
	if len(cycles) == 0 {
		return nil, sql.ErrNoRows
	}
	return cycles[len(cycles)-1], nil
}

func (r *CycleRepo) SetCollaborator(_ context.Context, id uuid.UUID, collaboratorID *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.CollaboratorID = collaboratorID
	return nil
}

func (r *CycleRepo) BulkSetStatus(_ context.Context, prescriptionID uuid.UUID, status model.CycleStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.PrescriptionID == prescriptionID {
			c.Status = status
		}
	}
	return nil
}

func (r *CycleRepo) DeleteByPrescription(_ context.Context, prescriptionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.rows {
		if c.PrescriptionID == prescriptionID {
			delete(r.rows, id)
		}
	}
	return nil
}

func (r *CycleRepo) ExpirePendingBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.rows {
		if c.Status == model.CycleStatusPending && !c.CreatedAt.After(cutoff) {
			c.Status = model.CycleStatusLate
			n++
		}
	}
	return n, nil
}

// SetCreatedAt backdates a cycle for staleness scenarios.
func (r *CycleRepo) SetCreatedAt(id uuid.UUID, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.rows[id]; ok {
		c.CreatedAt = t
	}
}

type NoteRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.Note
}

func NewNoteRepo() *NoteRepo {
	return &NoteRepo{rows: make(map[uuid.UUID]*model.Note)}
}

func (r *NoteRepo) Create(_ context.Context, n *model.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	clone := *n
	r.rows[n.ID] = &clone
	return nil
}

func (r *NoteRepo) Get(_ context.Context, id uuid.UUID) (*model.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *n
	return &clone, nil
}

func (r *NoteRepo) Update(_ context.Context, n *model.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[n.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *n
	r.rows[n.ID] = &clone
	return nil
}

func (r *NoteRepo) FindByPrescriptionIDs(_ context.Context, ids []uuid.UUID) ([]*model.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	var out []*model.Note
	for _, n := range r.rows {
		if _, ok := set[n.PrescriptionID]; ok {
			clone := *n
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *NoteRepo) DeleteByPrescription(_ context.Context, prescriptionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, n := range r.rows {
		if n.PrescriptionID == prescriptionID {
			delete(r.rows, id)
		}
	}
	return nil
}

func (r *NoteRepo) DeleteCycleNotes(_ context.Context, prescriptionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, n := range r.rows {
		if n.PrescriptionID == prescriptionID && n.Scope == model.NoteScopeCycle {
			delete(r.rows, id)
		}
	}
	return nil
}

type MessageRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.InboundMessage
}

func NewMessageRepo() *MessageRepo {
	return &MessageRepo{rows: make(map[uuid.UUID]*model.InboundMessage)}
}

func (r *MessageRepo) Create(_ context.Context, m *model.InboundMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	clone := *m
	r.rows[m.ID] = &clone
	return nil
}

func (r *MessageRepo) Get(_ context.Context, id uuid.UUID) (*model.InboundMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *m
	return &clone, nil
}

func (r *MessageRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.rows, id)
	return nil
}

func (r *MessageRepo) List(_ context.Context, filter *model.MessageFilter) ([]*model.InboundMessage, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.InboundMessage
	for _, m := range r.rows {
		if filter.Channel != "" && m.Channel != filter.Channel {
			continue
		}
		if filter.Sender != "" && !strings.Contains(m.Sender, filter.Sender) {
			continue
		}
		clone := *m
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	return out, len(out), nil
}

// CounterRepo allocates sequence numbers the way the SQL counter does:
// atomically, one stream per name.
type CounterRepo struct {
	mu   sync.Mutex
	seqs map[string]int64
}

func NewCounterRepo() *CounterRepo {
	return &CounterRepo{seqs: make(map[string]int64)}
}

func (r *CounterRepo) Next(_ context.Context, name string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seqs[name]++
	return r.seqs[name], nil
}

type CollaboratorRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.Collaborator
}

func NewCollaboratorRepo() *CollaboratorRepo {
	return &CollaboratorRepo{rows: make(map[uuid.UUID]*model.Collaborator)}
}

func (r *CollaboratorRepo) Create(_ context.Context, c *model.Collaborator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	clone := *c
	r.rows[c.ID] = &clone
	return nil
}

func (r *CollaboratorRepo) Get(_ context.Context, id uuid.UUID) (*model.Collaborator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *c
	return &clone, nil
}

func (r *CollaboratorRepo) GetByEmail(_ context.Context, email string) (*model.Collaborator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.Email == email {
			clone := *c
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *CollaboratorRepo) List(_ context.Context) ([]*model.Collaborator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Collaborator, 0, len(r.rows))
	for _, c := range r.rows {
		clone := *c
		out = append(out, &clone)
	}
	return out, nil
}

func (r *CollaboratorRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]*model.CollaboratorRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.CollaboratorRef
	for _, id := range ids {
		if c, ok := r.rows[id]; ok {
			out = append(out, &model.CollaboratorRef{ID: c.ID, FirstName: c.FirstName, LastName: c.LastName})
		}
	}
	return out, nil
}

type OutboxRepo struct {
	mu     sync.Mutex
	Events []*model.OutboxEvent
}

func NewOutboxRepo() *OutboxRepo {
	return &OutboxRepo{}
}

func (r *OutboxRepo) Create(_ context.Context, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	r.Events = append(r.Events, event)
	return nil
}

func (r *OutboxRepo) GetPendingEventsWithLock(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.OutboxEvent
	for _, e := range r.Events {
		if e.Status == model.OutboxStatusPending {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Events {
		if e.ID == id {
			e.Status = status
			e.ErrorMessage = errorMessage
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *OutboxRepo) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// EventTypes lists the emitted event types in order.
func (r *OutboxRepo) EventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.EventType)
	}
	return out
}
