// Package blob is the remote storage seen by the bookmark store: a flat,
// path-addressed set of opaque blobs. Backends offer whole-object download,
// upload and delete only. There is no listing, no partial read and no
// compare-and-swap.
package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Backend defines the contract of a remote blob store.
type Backend interface {
	// Download returns the content at p, or ErrNotFound.
	Download(ctx context.Context, p string) ([]byte, error)
	// Upload writes data at p. With overwrite unset it fails with ErrExists
	// when p is already present.
	Upload(ctx context.Context, p string, data []byte, overwrite bool) error
	// Delete removes p. Deleting an absent path is not an error.
	Delete(ctx context.Context, p string) error
}

var (
	// ErrNotFound reports an absent blob. Callers treat it as empty state.
	ErrNotFound = errors.New("blob not found")
	// ErrNotAuthorized reports a missing, expired or rejected credential.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrExists reports a refused non-overwriting upload.
	ErrExists = errors.New("blob already exists")
)

// TransientError wraps a network or storage failure. The operation that
// produced it is abandoned; nothing in this module retries it.
type TransientError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func transient(op, p string, err error) error {
	return &TransientError{Op: op, Path: p, Err: err}
}

// IsNotFound reports whether err means the blob is absent.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsNotAuthorized reports whether err means the credential was refused.
func IsNotAuthorized(err error) bool { return errors.Is(err, ErrNotAuthorized) }

// IsTransient reports whether err is a storage or network failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// cleanPath normalizes a blob path to a slash-separated form without a
// leading slash. Paths escaping the root are rejected.
func cleanPath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty blob path")
	}
	c := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	if c == "" || c == "." {
		return "", fmt.Errorf("invalid blob path %q", p)
	}
	return c, nil
}
