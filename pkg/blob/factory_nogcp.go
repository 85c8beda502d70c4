//go:build !gcp

package blob

import (
	"context"
	"fmt"
)

func newGCSBackend(ctx context.Context, bucket, prefix string) (Backend, error) {
	return nil, fmt.Errorf("GCS storage is not enabled in this build (use -tags gcp)")
}
