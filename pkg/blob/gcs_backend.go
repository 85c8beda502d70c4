//go:build gcp

package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCSBackend implements Backend on a Google Cloud Storage bucket.
type GCSBackend struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSBackend creates a GCS backed blob store. Credentials come from ADC.
func NewGCSBackend(ctx context.Context, cfg GCSConfig) (*GCSBackend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSBackend{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *GCSBackend) object(p string) (*storage.ObjectHandle, error) {
	c, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	return s.client.Bucket(s.bucket).Object(s.prefix + c), nil
}

func (s *GCSBackend) Download(ctx context.Context, p string) ([]byte, error) {
	obj, err := s.object(p)
	if err != nil {
		return nil, err
	}
	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, mapGCSError("download", p, err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, transient("download", p, err)
	}
	return data, nil
}

func (s *GCSBackend) Upload(ctx context.Context, p string, data []byte, overwrite bool) error {
	obj, err := s.object(p)
	if err != nil {
		return err
	}
	if !overwrite {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}

	w := obj.NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return mapGCSError("upload", p, err)
	}
	if err := w.Close(); err != nil {
		return mapGCSError("upload", p, err)
	}
	return nil
}

func (s *GCSBackend) Delete(ctx context.Context, p string) error {
	obj, err := s.object(p)
	if err != nil {
		return err
	}
	if err := obj.Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return mapGCSError("delete", p, err)
	}
	return nil
}

// Close closes the GCS client.
func (s *GCSBackend) Close() error {
	return s.client.Close()
}

func mapGCSError(op, p string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("gcs %s %s: %w", op, p, ErrNotAuthorized)
		case http.StatusPreconditionFailed:
			return fmt.Errorf("%s: %w", p, ErrExists)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", p, ErrNotFound)
		}
	}
	return transient("gcs "+op, p, err)
}
