//go:build !gcp

package sink

import (
	"context"
	"fmt"
)

// GCS support is compiled in with the "gcp" build tag to keep the default
// binary free of the Google Cloud SDK.
func newGCSSink(_ context.Context, _ Config) (Sink, error) {
	return nil, fmt.Errorf("sink: GCS support not compiled in (rebuild with -tags gcp)")
}
