package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"cloud.google.com/go/storage"
)

type gcsStore struct {
	client *storage.Client
	bucket string
}

func NewGCSStore(ctx context.Context, bucket string) (Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &gcsStore{client: client, bucket: bucket}, nil
}

func (s *gcsStore) Put(ctx context.Context, ref string, contentType string, r io.Reader) error {
	w := s.client.Bucket(s.bucket).Object(ref).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000"

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize document: %w", err)
	}
	return nil
}

// Delete removes the object. An already-absent object is not an error; the
// caller may be retrying a partially applied deletion.
func (s *gcsStore) Delete(ctx context.Context, ref string) error {
	err := s.client.Bucket(s.bucket).Object(ref).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *gcsStore) MediaURL(ref string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, url.PathEscape(ref))
}
