package objectstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/xid"
	"google.golang.org/api/option"
)

const signedURLTTL = time.Hour

// GCS stores objects in a Google Cloud Storage bucket under a pots/ prefix.
type GCS struct {
	client *storage.Client
	bucket string
}

var _ Store = (*GCS)(nil)

// NewGCS connects to the bucket using the service account key at saKeyPath.
// Pass an empty saKeyPath to use application default credentials.
func NewGCS(ctx context.Context, bucket, saKeyPath string) (*GCS, error) {
	var opts []option.ClientOption
	if saKeyPath != "" {
		opts = append(opts, option.WithCredentialsFile(saKeyPath))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) Upload(ctx context.Context, r io.Reader, contentType string) (string, error) {
	key := "pots/" + xid.New().String()

	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(w, r); err != nil {
		return "", fmt.Errorf("failed to write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer for %s: %w", key, err)
	}
	return key, nil
}

func (g *GCS) SignedURL(ctx context.Context, key string) (string, error) {
	url, err := g.client.Bucket(g.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(signedURLTTL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign URL for %s: %w", key, err)
	}
	return url, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}
