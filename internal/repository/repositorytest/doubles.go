package repositorytest

import (
	"context"
	"io"
	"sync"
)

// DocumentStore keeps documents in a map. Deleting an absent reference is a
// no-op, matching the production store.
type DocumentStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
	PutErr  error
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{Objects: make(map[string][]byte)}
}

func (s *DocumentStore) Put(_ context.Context, ref string, _ string, r io.Reader) error {
	if s.PutErr != nil {
		return s.PutErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Objects[ref] = data
	return nil
}

func (s *DocumentStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Objects, ref)
	return nil
}

func (s *DocumentStore) MediaURL(ref string) string {
	return "https://media.test/" + ref
}

// Notifier records outbound emails.
type Notifier struct {
	mu   sync.Mutex
	Sent []string
	Err  error
}

func (n *Notifier) SendTemplated(_ context.Context, to, subject, tmpl string, data any) error {
	if n.Err != nil {
		return n.Err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, to)
	return nil
}
