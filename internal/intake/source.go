package intake

import (
	"context"
	"io"
	"time"

	"github.com/pharmapointe/ordonnance-api/internal/model"
)

// Attachment is one prescription document pulled from an inbox.
type Attachment struct {
	Sender      string
	Filename    string
	ContentType string
	ReceivedAt  time.Time
	Content     io.Reader
}

// Source is an inbound channel adapter (email inbox, WhatsApp webhook
// buffer). Implementations hold no reconnect logic; the runner owns the
// connection lifecycle.
type Source interface {
	Channel() model.IntakeChannel
	Connect(ctx context.Context) error
	// Poll returns attachments received since the previous poll. Returning
	// an error signals a broken connection; the runner reconnects.
	Poll(ctx context.Context) ([]Attachment, error)
	Close() error
}
