package model

import (
	"time"

	"github.com/google/uuid"
)

// Kind determines whether a prescription is a one-off or carries a renewal
// schedule. Fixed at creation; changed only through the convert operation.
type Kind string

const (
	KindSingle   Kind = "single"
	KindRenewing Kind = "renewing"
)

func (k Kind) Valid() bool {
	return k == KindSingle || k == KindRenewing
}

type IntakeChannel string

const (
	ChannelEmail    IntakeChannel = "email"
	ChannelWhatsApp IntakeChannel = "whatsapp"
	ChannelManual   IntakeChannel = "manual"
)

// PrescriptionStatus and CycleStatus are deliberately distinct enumerations.
// The legacy system reused the same numeric codes for both with different
// meanings; here a prescription status never applies to a cycle.
type PrescriptionStatus string

const (
	PrescriptionStatusPending    PrescriptionStatus = "pending"
	PrescriptionStatusInProgress PrescriptionStatus = "in_progress"
	PrescriptionStatusCompleted  PrescriptionStatus = "completed"
	PrescriptionStatusLate       PrescriptionStatus = "late"
)

func (s PrescriptionStatus) Valid() bool {
	switch s {
	case PrescriptionStatusPending, PrescriptionStatusInProgress,
		PrescriptionStatusCompleted, PrescriptionStatusLate:
		return true
	}
	return false
}

type Prescription struct {
	Base
	SequenceNumber int64         `db:"sequence_number" json:"sequence_number"`
	FirstName      string        `db:"first_name" json:"first_name,omitempty"`
	LastName       string        `db:"last_name" json:"last_name,omitempty"`
	Phone          string        `db:"phone" json:"phone,omitempty"`
	Email          string        `db:"email" json:"email,omitempty"`
	DocumentRef    string        `db:"document_ref" json:"document_ref"`
	Channel        IntakeChannel `db:"channel" json:"channel"`
	Kind           Kind          `db:"kind" json:"kind"`

	Status        PrescriptionStatus `db:"status" json:"status"`
	ReceivedAt    time.Time          `db:"received_at" json:"received_at"`
	LastTreatedAt *time.Time         `db:"last_treated_at" json:"last_treated_at,omitempty"`

	// Renewal fields; all nil unless Kind is renewing.
	RenewalPeriodDays   *int       `db:"renewal_period_days" json:"renewal_period_days,omitempty"`
	NextRenewalAt       *time.Time `db:"next_renewal_at" json:"next_renewal_at,omitempty"`
	RenewalsRemaining   *int       `db:"renewals_remaining" json:"renewals_remaining,omitempty"`
	InitialRenewalCount *int       `db:"initial_renewal_count" json:"initial_renewal_count,omitempty"`

	CollaboratorID *uuid.UUID `db:"collaborator_id" json:"collaborator_id,omitempty"`

	ExceedsValueThreshold bool    `db:"exceeds_value_threshold" json:"exceeds_value_threshold"`
	RequiresDelivery      bool    `db:"requires_delivery" json:"requires_delivery"`
	DeliveryAddress       *string `db:"delivery_address" json:"delivery_address,omitempty"`
}

// Claimed reports whether a collaborator has taken responsibility.
func (p *Prescription) Claimed() bool {
	return p.CollaboratorID != nil
}

type CreatePrescriptionRequest struct {
	FirstName string `json:"first_name" form:"first_name"`
	LastName  string `json:"last_name" form:"last_name"`
	Phone     string `json:"phone" form:"phone"`
	Email     string `json:"email" form:"email" binding:"omitempty,email"`

	Kind              Kind `json:"kind" form:"kind" binding:"required,prescription_kind"`
	RenewalPeriodDays int  `json:"renewal_period_days" form:"renewal_period_days"`
	RenewalCount      int  `json:"renewal_count" form:"renewal_count"`

	ExceedsValueThreshold bool   `json:"exceeds_value_threshold" form:"exceeds_value_threshold"`
	RequiresDelivery      bool   `json:"requires_delivery" form:"requires_delivery"`
	DeliveryAddress       string `json:"delivery_address" form:"delivery_address"`

	DocumentRef    string     `json:"-" form:"-"`
	CollaboratorID *uuid.UUID `json:"collaborator_id" form:"collaborator_id"`
}

type UpdatePrescriptionRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Email     *string `json:"email" binding:"omitempty,email"`

	ExceedsValueThreshold *bool   `json:"exceeds_value_threshold"`
	RequiresDelivery      *bool   `json:"requires_delivery"`
	DeliveryAddress       *string `json:"delivery_address"`

	Notify bool `json:"notify"`
}

type ChangeStatusRequest struct {
	Status PrescriptionStatus `json:"status" binding:"required,prescription_status"`
}

type ConvertKindRequest struct {
	Kind              Kind `json:"kind" binding:"required,prescription_kind"`
	RenewalPeriodDays int  `json:"renewal_period_days"`
	RenewalCount      int  `json:"renewal_count"`
}
