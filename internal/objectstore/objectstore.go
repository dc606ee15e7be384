// Package objectstore abstracts where uploaded pot images live. The pots
// table stores only the object KEY; callers ask the store for a short-lived
// signed URL whenever a pot is served, so the bucket never has to be public.
package objectstore

import (
	"context"
	"io"
)

// Store uploads image blobs and signs read URLs for them.
type Store interface {
	// Upload writes the blob and returns the key it was stored under.
	Upload(ctx context.Context, r io.Reader, contentType string) (key string, err error)
	// SignedURL returns a time-limited read URL for a previously uploaded key.
	SignedURL(ctx context.Context, key string) (string, error)
}
