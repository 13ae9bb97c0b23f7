// Package archive stores rendered documents in object storage.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Object describes a stored file.
type Object struct {
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	StoredAt    time.Time `json:"stored_at"`
}

// Archiver writes objects under a key.
type Archiver interface {
	Put(ctx context.Context, key, contentType string, data []byte) (Object, error)
}

// QuoteKey names an archived PDF for a quote: quotes/{key}/{unix}-{uuid}.pdf.
func QuoteKey(quoteKey string, at time.Time) string {
	return fmt.Sprintf("quotes/%s/%d-%s.pdf", quoteKey, at.UTC().Unix(), uuid.NewString())
}

// Backends.
const (
	BackendNone  = "none"
	BackendLocal = "local"
	BackendGCS   = "gcs"
	BackendS3    = "s3"
)

// Options configures New.
type Options struct {
	Backend       string
	Dir           string
	GCSBucket     string
	S3Bucket      string
	S3Endpoint    string
	S3Region      string
	S3AccessKey   string
	S3SecretKey   string
	PublicBaseURL string
}

// New returns the configured Archiver, or nil for BackendNone.
func New(ctx context.Context, opts Options) (Archiver, error) {
	switch opts.Backend {
	case BackendNone, "":
		return nil, nil
	case BackendLocal:
		return NewLocal(opts.Dir, opts.PublicBaseURL), nil
	case BackendGCS:
		g, err := NewGCS(ctx, opts.GCSBucket)
		if err != nil {
			return nil, err
		}
		return g, nil
	case BackendS3:
		s, err := NewS3(ctx, S3Options{
			Bucket:        opts.S3Bucket,
			Endpoint:      opts.S3Endpoint,
			Region:        opts.S3Region,
			AccessKeyID:   opts.S3AccessKey,
			SecretKey:     opts.S3SecretKey,
			PublicBaseURL: opts.PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("archive: unknown backend %q", opts.Backend)
	}
}
