package model

import (
	"time"
)

// InboundMessage is a raw attachment deposited by an intake adapter, waiting
// for staff to promote or discard it.
type InboundMessage struct {
	Base
	Sender      string        `db:"sender" json:"sender"`
	Channel     IntakeChannel `db:"channel" json:"channel"`
	DocumentRef string        `db:"document_ref" json:"document_ref"`
	ReceivedAt  time.Time     `db:"received_at" json:"received_at"`
}

type MessageFilter struct {
	Sender  string        `form:"sender"`
	Channel IntakeChannel `form:"channel"`
	Pagination
}
