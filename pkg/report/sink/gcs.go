//go:build gcp

package sink

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"

	"github.com/Mindburn-Labs/aicert/pkg/evaluation"
)

// GCSSink uploads reports to a Google Cloud Storage bucket.
type GCSSink struct {
	client *storage.Client
	bucket string
	prefix string
}

func newGCSSink(ctx context.Context, cfg Config) (*GCSSink, error) {
	// Uses ADC by default.
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSSink{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *GCSSink) Put(ctx context.Context, key string, r evaluation.Report) (string, error) {
	fullKey := s.prefix + key
	w := s.client.Bucket(s.bucket).Object(fullKey).NewWriter(ctx)
	w.ContentType = contentTypeFor(r.Format)

	if _, err := w.Write(r.Content); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close failed: %w", err)
	}
	return fullKey, nil
}
