package message

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmapointe/ordonnance-api/internal/model"
	"github.com/pharmapointe/ordonnance-api/internal/repository/repositorytest"
	apperr "github.com/pharmapointe/ordonnance-api/pkg/errors"
	"github.com/pharmapointe/ordonnance-api/pkg/logger"
)

func newService() (*Service, *repositorytest.MessageRepo, *repositorytest.DocumentStore) {
	messages := repositorytest.NewMessageRepo()
	documents := repositorytest.NewDocumentStore()
	log := logger.NewLogger(&logger.Config{Level: logger.FatalLevel, Output: io.Discard})
	return NewService(messages, documents, log), messages, documents
}

func TestListCarriesDocumentURL(t *testing.T) {
	svc, messages, _ := newService()
	ctx := context.Background()
	require.NoError(t, messages.Create(ctx, &model.InboundMessage{
		Sender: "a@b.c", Channel: model.ChannelEmail, DocumentRef: "inbound/email/x.pdf",
	}))

	items, total, err := svc.List(ctx, &model.MessageFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "https://media.test/inbound/email/x.pdf", items[0].DocumentURL)
}

func TestDeleteRemovesDocument(t *testing.T) {
	svc, messages, documents := newService()
	ctx := context.Background()
	m := &model.InboundMessage{Sender: "a@b.c", Channel: model.ChannelWhatsApp, DocumentRef: "inbound/wa/y.pdf"}
	require.NoError(t, messages.Create(ctx, m))
	documents.Objects["inbound/wa/y.pdf"] = []byte("doc")

	require.NoError(t, svc.Delete(ctx, m.ID))
	assert.Empty(t, documents.Objects)
	_, err := messages.Get(ctx, m.ID)
	assert.Error(t, err)
}

func TestDeleteToleratesMissingDocument(t *testing.T) {
	svc, messages, _ := newService()
	ctx := context.Background()
	m := &model.InboundMessage{Sender: "a@b.c", Channel: model.ChannelEmail, DocumentRef: "inbound/email/gone.pdf"}
	require.NoError(t, messages.Create(ctx, m))

	assert.NoError(t, svc.Delete(ctx, m.ID))
}

func TestDeleteUnknownMessage(t *testing.T) {
	svc, _, _ := newService()
	err := svc.Delete(context.Background(), uuid.New())
	assert.True(t, apperr.IsNotFound(err))
}
