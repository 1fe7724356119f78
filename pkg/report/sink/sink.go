// Package sink publishes serialized compliance reports to object storage so
// auditors can retrieve them outside the machine that ran the evaluation.
package sink

import (
	"context"
	"fmt"

	"github.com/Mindburn-Labs/aicert/pkg/evaluation"
)

// Sink uploads a rendered report. Put returns the storage key the report
// landed under.
type Sink interface {
	Put(ctx context.Context, key string, r evaluation.Report) (string, error)
}

// Provider names a supported object store.
type Provider string

const (
	ProviderS3  Provider = "s3"
	ProviderGCS Provider = "gcs"
)

// Config selects and configures a sink backend.
type Config struct {
	Provider Provider
	Bucket   string
	Region   string // S3 only
	Endpoint string // S3 only, for MinIO/LocalStack
	Prefix   string // optional key prefix, e.g. "reports/"
}

// New builds the configured sink.
func New(ctx context.Context, cfg Config) (Sink, error) {
	switch cfg.Provider {
	case ProviderS3:
		return newS3Sink(ctx, cfg)
	case ProviderGCS:
		return newGCSSink(ctx, cfg)
	default:
		return nil, fmt.Errorf("sink: unknown provider %q", cfg.Provider)
	}
}

func contentTypeFor(format evaluation.ReportFormat) string {
	switch format {
	case evaluation.FormatJSON:
		return "application/json"
	case evaluation.FormatMarkdown:
		return "text/markdown"
	case evaluation.FormatHTML:
		return "text/html"
	case evaluation.FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
