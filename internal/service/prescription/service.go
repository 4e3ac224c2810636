package prescription

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/pharmapointe/ordonnance-api/internal/document"
	"github.com/pharmapointe/ordonnance-api/internal/email"
	"github.com/pharmapointe/ordonnance-api/internal/model"
	"github.com/pharmapointe/ordonnance-api/internal/repository"
	apperr "github.com/pharmapointe/ordonnance-api/pkg/errors"
	"github.com/pharmapointe/ordonnance-api/pkg/logger"
)

// SequenceName is the counter row shared by every prescription create path.
const SequenceName = "prescriptions"

type Service struct {
	prescriptions repository.PrescriptionRepository
	cycles        repository.CycleRepository
	notes         repository.NoteRepository
	messages      repository.MessageRepository
	counter       repository.CounterRepository
	outbox        repository.OutboxRepository
	documents     document.Store
	notifier      email.Notifier
	logger        *logger.Logger

	// now is captured once per operation so a mutation never observes two
	// different clock readings.
	now func() time.Time
}

func NewService(
	prescriptions repository.PrescriptionRepository,
	cycles repository.CycleRepository,
	notes repository.NoteRepository,
	messages repository.MessageRepository,
	counter repository.CounterRepository,
	outbox repository.OutboxRepository,
	documents document.Store,
	notifier email.Notifier,
	log *logger.Logger,
) *Service {
	return &Service{
		prescriptions: prescriptions,
		cycles:        cycles,
		notes:         notes,
		messages:      messages,
		counter:       counter,
		outbox:        outbox,
		documents:     documents,
		notifier:      notifier,
		logger:        log,
		now:           time.Now,
	}
}

// WithClock overrides the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateFromUpload stores the uploaded document and creates the prescription
// aggregate: the row itself, its global note, and its first cycle.
func (s *Service) CreateFromUpload(ctx context.Context, req *model.CreatePrescriptionRequest, filename, contentType string, content io.Reader) (*model.Prescription, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	now := s.now()
	ref := fmt.Sprintf("prescriptions/%s-%s", uuid.New(), filename)
	if err := s.documents.Put(ctx, ref, contentType, content); err != nil {
		return nil, apperr.Dependency("failed to store document", err)
	}
	req.DocumentRef = ref

	return s.create(ctx, req, model.ChannelManual, now)
}

// PromoteFromInboundMessage turns a deposited inbound message into a
// prescription. The stored document is reused; the message row is consumed.
func (s *Service) PromoteFromInboundMessage(ctx context.Context, messageID uuid.UUID, req *model.CreatePrescriptionRequest) (*model.Prescription, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	// Promotion always yields a single prescription; a renewal series is
	// set up afterwards through ConvertType.
	req.Kind = model.KindSingle

	msg, err := s.messages.Get(ctx, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("inbound message", err)
	}
	if err != nil {
		return nil, apperr.Internal("failed to load inbound message", err)
	}

	req.DocumentRef = msg.DocumentRef
	p, err := s.create(ctx, req, msg.Channel, msg.ReceivedAt)
	if err != nil {
		return nil, err
	}

	if err := s.messages.Delete(ctx, messageID); err != nil {
		s.logger.Error(err, "failed to delete promoted inbound message", "message_id", messageID)
	}
	return p, nil
}

func (s *Service) create(ctx context.Context, req *model.CreatePrescriptionRequest, channel model.IntakeChannel, receivedAt time.Time) (*model.Prescription, error) {
	seq, err := s.counter.Next(ctx, SequenceName)
	if err != nil {
		return nil, apperr.Internal("failed to allocate sequence number", err)
	}

	p := &model.Prescription{
		SequenceNumber: seq,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Phone:          req.Phone,
		Email:          req.Email,
		DocumentRef:    req.DocumentRef,
		Channel:        channel,
		Kind:           req.Kind,
		Status:         model.PrescriptionStatusPending,
		ReceivedAt:     receivedAt,
		CollaboratorID: req.CollaboratorID,

		ExceedsValueThreshold: req.ExceedsValueThreshold,
		RequiresDelivery:      req.RequiresDelivery,
	}
	if req.DeliveryAddress != "" {
		p.DeliveryAddress = &req.DeliveryAddress
	}

	firstCycleStatus := model.CycleStatusPlaceholder
	if req.Kind == model.KindRenewing {
		// Opening cycle #1 consumes one renewal from the series; the
		// prescription itself is already in progress.
		period := req.RenewalPeriodDays
		initial := req.RenewalCount
		remaining := initial - 1
		next := receivedAt.AddDate(0, 0, period)
		p.Status = model.PrescriptionStatusInProgress
		p.RenewalPeriodDays = &period
		p.InitialRenewalCount = &initial
		p.RenewalsRemaining = &remaining
		p.NextRenewalAt = &next
		firstCycleStatus = model.CycleStatusPending
	}

	if err := s.prescriptions.Create(ctx, p); err != nil {
		return nil, apperr.Internal("failed to create prescription", err)
	}

	cycle := &model.Cycle{
		PrescriptionID: p.ID,
		CycleNumber:    1,
		Status:         firstCycleStatus,
		CollaboratorID: req.CollaboratorID,
	}
	if _, err := s.cycles.Create(ctx, cycle); err != nil {
		return nil, apperr.Internal("failed to create first cycle", err)
	}

	globalNote := &model.Note{
		Scope:          model.NoteScopeGlobal,
		Text:           model.NotePlaceholderText,
		PrescriptionID: p.ID,
	}
	if err := s.notes.Create(ctx, globalNote); err != nil {
		return nil, apperr.Internal("failed to create global note", err)
	}
	if req.Kind == model.KindRenewing {
		if err := s.createCycleNote(ctx, p.ID, cycle.ID); err != nil {
			return nil, err
		}
	}

	s.emit(ctx, "prescription.created", p)
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	p, err := s.prescriptions.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("prescription", err)
	}
	if err != nil {
		return nil, apperr.Internal("failed to load prescription", err)
	}
	return p, nil
}

// Claim takes responsibility for a prescription. Exactly one concurrent
// caller wins; the rest get a Conflict. The current open cycle inherits the
// collaborator.
func (s *Service) Claim(ctx context.Context, id, collaboratorID uuid.UUID) (*model.Prescription, error) {
	won, err := s.prescriptions.Claim(ctx, id, collaboratorID)
	if err != nil {
		return nil, apperr.Internal("failed to claim prescription", err)
	}
	if !won {
		if _, err := s.prescriptions.Get(ctx, id); errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("prescription", err)
		}
		return nil, apperr.Conflict("prescription already claimed", nil)
	}

	latest, err := s.cycles.FindLatest(ctx, id)
	if err == nil && latest.Status.Open() {
		if err := s.cycles.SetCollaborator(ctx, latest.ID, &collaboratorID); err != nil {
			s.logger.Error(err, "failed to propagate claim to cycle", "prescription_id", id)
		}
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, "prescription.claimed", p)
	return p, nil
}

// ChangeStatus moves the prescription through its lifecycle. The caller must
// hold the claim. Completing a renewing prescription interrupts every cycle
// of its series.
func (s *Service) ChangeStatus(ctx context.Context, id, collaboratorID uuid.UUID, status model.PrescriptionStatus) (*model.Prescription, error) {
	if !status.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("invalid status %q", status), nil)
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireClaim(p, collaboratorID); err != nil {
		return nil, err
	}

	now := s.now()
	p.Status = status
	p.LastTreatedAt = &now
	if status == model.PrescriptionStatusCompleted && p.Kind == model.KindRenewing {
		if err := s.cycles.BulkSetStatus(ctx, p.ID, model.CycleStatusInterrupted); err != nil {
			return nil, apperr.Internal("failed to interrupt cycles", err)
		}
	}

	if err := s.prescriptions.Update(ctx, p); err != nil {
		return nil, apperr.Internal("failed to update prescription", err)
	}
	s.emit(ctx, "prescription.status_changed", p)
	return p, nil
}

// ChangeCycleStatus updates one cycle of a renewing prescription. Every
// change stamps the treatment time and pins the prescription's claim holder
// on the cycle; completing it also stamps the prescription.
func (s *Service) ChangeCycleStatus(ctx context.Context, cycleID, collaboratorID uuid.UUID, status model.CycleStatus) (*model.Cycle, error) {
	if !status.Valid() || status == model.CycleStatusPlaceholder {
		return nil, apperr.Validation(fmt.Sprintf("invalid cycle status %q", status), nil)
	}

	c, err := s.cycles.Get(ctx, cycleID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("cycle", err)
	}
	if err != nil {
		return nil, apperr.Internal("failed to load cycle", err)
	}

	p, err := s.Get(ctx, c.PrescriptionID)
	if err != nil {
		return nil, err
	}
	if err := requireClaim(p, collaboratorID); err != nil {
		return nil, err
	}

	now := s.now()
	c.Status = status
	c.TreatedAt = &now
	c.CollaboratorID = p.CollaboratorID
	if status == model.CycleStatusCompleted {
		p.LastTreatedAt = &now
		if err := s.prescriptions.Update(ctx, p); err != nil {
			return nil, apperr.Internal("failed to update prescription", err)
		}
	}

	if err := s.cycles.Update(ctx, c); err != nil {
		return nil, apperr.Internal("failed to update cycle", err)
	}
	s.emit(ctx, "cycle.status_changed", c)
	return c, nil
}

// ConvertType switches a prescription between single and renewing. A
// single's placeholder cycle becomes pending cycle #1 of the new series;
// going back to single drops the series and leaves only the global note.
func (s *Service) ConvertType(ctx context.Context, id, collaboratorID uuid.UUID, req *model.ConvertKindRequest) (*model.Prescription, error) {
	if !req.Kind.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("invalid kind %q", req.Kind), nil)
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireClaim(p, collaboratorID); err != nil {
		return nil, err
	}
	if p.Kind == req.Kind {
		return nil, apperr.Validation(fmt.Sprintf("prescription is already %s", req.Kind), nil)
	}

	now := s.now()
	switch req.Kind {
	case model.KindRenewing:
		if req.RenewalPeriodDays <= 0 || req.RenewalCount < 1 {
			return nil, apperr.Validation("renewing prescriptions need a positive period and at least one renewal", nil)
		}
		period := req.RenewalPeriodDays
		initial := req.RenewalCount
		remaining := initial - 1
		next := now.AddDate(0, 0, period)
		p.Kind = model.KindRenewing
		p.RenewalPeriodDays = &period
		p.InitialRenewalCount = &initial
		p.RenewalsRemaining = &remaining
		p.NextRenewalAt = &next

		cycle, err := s.cycles.FindLatest(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.Internal("prescription has no cycle", err)
		}
		if err != nil {
			return nil, apperr.Internal("failed to load cycle", err)
		}
		cycle.Status = model.CycleStatusPending
		cycle.CollaboratorID = p.CollaboratorID
		if err := s.cycles.Update(ctx, cycle); err != nil {
			return nil, apperr.Internal("failed to open first cycle", err)
		}
		if err := s.createCycleNote(ctx, p.ID, cycle.ID); err != nil {
			return nil, err
		}

	case model.KindSingle:
		p.Kind = model.KindSingle
		p.RenewalPeriodDays = nil
		p.InitialRenewalCount = nil
		p.RenewalsRemaining = nil
		p.NextRenewalAt = nil

		if err := s.notes.DeleteCycleNotes(ctx, p.ID); err != nil {
			return nil, apperr.Internal("failed to delete cycle notes", err)
		}
		if err := s.cycles.DeleteByPrescription(ctx, p.ID); err != nil {
			return nil, apperr.Internal("failed to delete cycles", err)
		}
		placeholder := &model.Cycle{
			PrescriptionID: p.ID,
			CycleNumber:    1,
			Status:         model.CycleStatusPlaceholder,
			CollaboratorID: p.CollaboratorID,
		}
		if _, err := s.cycles.Create(ctx, placeholder); err != nil {
			return nil, apperr.Internal("failed to create placeholder cycle", err)
		}
	}

	if err := s.prescriptions.Update(ctx, p); err != nil {
		return nil, apperr.Internal("failed to update prescription", err)
	}
	s.emit(ctx, "prescription.converted", p)
	return p, nil
}

// Update patches contact and delivery fields. When Notify is set and an
// email address is known, a processing notice goes out best-effort.
func (s *Service) Update(ctx context.Context, id, collaboratorID uuid.UUID, req *model.UpdatePrescriptionRequest) (*model.Prescription, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireClaim(p, collaboratorID); err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		p.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		p.LastName = *req.LastName
	}
	if req.Phone != nil {
		p.Phone = *req.Phone
	}
	if req.Email != nil {
		p.Email = *req.Email
	}
	if req.ExceedsValueThreshold != nil {
		p.ExceedsValueThreshold = *req.ExceedsValueThreshold
	}
	if req.RequiresDelivery != nil {
		p.RequiresDelivery = *req.RequiresDelivery
	}
	if req.DeliveryAddress != nil {
		p.DeliveryAddress = req.DeliveryAddress
	}

	if err := s.prescriptions.Update(ctx, p); err != nil {
		return nil, apperr.Internal("failed to update prescription", err)
	}

	if req.Notify && p.Email != "" {
		if err := s.notifier.SendTemplated(ctx, p.Email, "Votre ordonnance est en traitement", email.ProcessingNoticeTemplate, p); err != nil {
			s.logger.Error(err, "failed to send processing notice", "prescription_id", p.ID)
		}
	}

	s.emit(ctx, "prescription.updated", p)
	return p, nil
}

// Delete removes the prescription with its cycles, notes, and document.
// Only the claim holder may delete.
func (s *Service) Delete(ctx context.Context, id, collaboratorID uuid.UUID) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := requireClaim(p, collaboratorID); err != nil {
		return err
	}

	if err := s.notes.DeleteByPrescription(ctx, id); err != nil {
		return apperr.Internal("failed to delete notes", err)
	}
	if err := s.cycles.DeleteByPrescription(ctx, id); err != nil {
		return apperr.Internal("failed to delete cycles", err)
	}
	if err := s.prescriptions.Delete(ctx, id); err != nil {
		return apperr.Internal("failed to delete prescription", err)
	}
	if err := s.documents.Delete(ctx, p.DocumentRef); err != nil {
		s.logger.Error(err, "failed to delete document", "ref", p.DocumentRef)
	}

	s.emit(ctx, "prescription.deleted", p)
	return nil
}

func (s *Service) createCycleNote(ctx context.Context, prescriptionID, cycleID uuid.UUID) error {
	note := &model.Note{
		Scope:          model.NoteScopeCycle,
		Text:           model.NotePlaceholderText,
		PrescriptionID: prescriptionID,
		CycleID:        &cycleID,
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return apperr.Internal("failed to create cycle note", err)
	}
	return nil
}

// emit records a mutation event on the outbox. Event loss is tolerated;
// the mutation itself already committed.
func (s *Service) emit(ctx context.Context, eventType string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error(err, "failed to marshal outbox payload", "event_type", eventType)
		return
	}
	event := &model.OutboxEvent{EventType: eventType, Payload: body}
	if err := s.outbox.Create(ctx, event); err != nil {
		s.logger.Error(err, "failed to enqueue outbox event", "event_type", eventType)
	}
}

func requireClaim(p *model.Prescription, collaboratorID uuid.UUID) error {
	if p.CollaboratorID == nil {
		return apperr.Permission("prescription is not claimed")
	}
	if *p.CollaboratorID != collaboratorID {
		return apperr.Permission("prescription is claimed by another collaborator")
	}
	return nil
}

func validateCreate(req *model.CreatePrescriptionRequest) error {
	if !req.Kind.Valid() {
		return apperr.Validation(fmt.Sprintf("invalid kind %q", req.Kind), nil)
	}
	if req.Kind == model.KindRenewing {
		if req.RenewalPeriodDays <= 0 {
			return apperr.Validation("renewal period must be positive", nil)
		}
		if req.RenewalCount < 1 {
			return apperr.Validation("renewal count must be at least 1", nil)
		}
	}
	return nil
}
