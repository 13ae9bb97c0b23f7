package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

// GCS uploads objects to a Google Cloud Storage bucket using application
// default credentials.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS creates the storage client.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	if bucket == "" {
		return nil, fmt.Errorf("archive: GCS_BUCKET is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("archive: gcs client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) Put(ctx context.Context, key, contentType string, data []byte) (Object, error) {
	writer := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = "no-cache"

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		return Object{}, fmt.Errorf("archive: gcs write %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return Object{}, fmt.Errorf("archive: gcs close %s: %w", key, err)
	}
	return Object{
		Key:         key,
		URL:         fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, key),
		ContentType: contentType,
		Size:        int64(len(data)),
		StoredAt:    time.Now().UTC(),
	}, nil
}

// Close releases the client.
func (g *GCS) Close() error {
	return g.client.Close()
}
