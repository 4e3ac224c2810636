package message

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/pharmapointe/ordonnance-api/internal/document"
	"github.com/pharmapointe/ordonnance-api/internal/model"
	"github.com/pharmapointe/ordonnance-api/internal/repository"
	apperr "github.com/pharmapointe/ordonnance-api/pkg/errors"
	"github.com/pharmapointe/ordonnance-api/pkg/logger"
)

type Service struct {
	messages  repository.MessageRepository
	documents document.Store
	logger    *logger.Logger
}

func NewService(messages repository.MessageRepository, documents document.Store, log *logger.Logger) *Service {
	return &Service{messages: messages, documents: documents, logger: log}
}

// ListItem pairs an inbound message with its media URL.
type ListItem struct {
	model.InboundMessage
	DocumentURL string `json:"document_url"`
}

func (s *Service) List(ctx context.Context, filter *model.MessageFilter) ([]*ListItem, int, error) {
	rows, total, err := s.messages.List(ctx, filter)
	if err != nil {
		return nil, 0, apperr.Internal("failed to list inbound messages", err)
	}
	items := make([]*ListItem, 0, len(rows))
	for _, m := range rows {
		items = append(items, &ListItem{
			InboundMessage: *m,
			DocumentURL:    s.documents.MediaURL(m.DocumentRef),
		})
	}
	return items, total, nil
}

// Delete discards a message and its stored document. A missing document is
// tolerated so a retried delete converges.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	m, err := s.messages.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("inbound message", err)
	}
	if err != nil {
		return apperr.Internal("failed to load inbound message", err)
	}

	if err := s.documents.Delete(ctx, m.DocumentRef); err != nil {
		s.logger.Error(err, "failed to delete message document", "ref", m.DocumentRef)
	}
	if err := s.messages.Delete(ctx, id); err != nil {
		return apperr.Internal("failed to delete inbound message", err)
	}
	return nil
}
