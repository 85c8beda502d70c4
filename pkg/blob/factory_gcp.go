//go:build gcp

package blob

import "context"

func newGCSBackend(ctx context.Context, bucket, prefix string) (Backend, error) {
	return NewGCSBackend(ctx, GCSConfig{Bucket: bucket, Prefix: prefix})
}
