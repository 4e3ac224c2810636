package document

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get when the referenced object does not exist.
// Delete never returns it; removing an absent document is a no-op.
var ErrNotFound = errors.New("document not found")

// Store holds prescription documents. References are opaque object names
// scoped to the store, never raw URLs.
type Store interface {
	Put(ctx context.Context, ref string, contentType string, r io.Reader) error
	Delete(ctx context.Context, ref string) error
	MediaURL(ref string) string
}
