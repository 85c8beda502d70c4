package blob

import (
	"context"
	"path"
	"strings"
)

// DefaultRoot is the application directory inside the user's storage.
const DefaultRoot = "/Cloud"

// ScopedBackend roots every path under a fixed directory.
type ScopedBackend struct {
	inner Backend
	root  string
}

// Scoped wraps b so that path p resolves to root/p. An empty root selects
// DefaultRoot.
func Scoped(b Backend, root string) *ScopedBackend {
	if root == "" {
		root = DefaultRoot
	}
	root = strings.TrimSuffix(path.Clean("/"+root), "/")
	return &ScopedBackend{inner: b, root: root}
}

// Root returns the absolute directory prefix.
func (s *ScopedBackend) Root() string {
	if s.root == "" {
		return "/"
	}
	return s.root
}

func (s *ScopedBackend) resolve(p string) (string, error) {
	c, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	return s.root + "/" + c, nil
}

func (s *ScopedBackend) Download(ctx context.Context, p string) ([]byte, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	return s.inner.Download(ctx, full)
}

func (s *ScopedBackend) Upload(ctx context.Context, p string, data []byte, overwrite bool) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	return s.inner.Upload(ctx, full, data, overwrite)
}

func (s *ScopedBackend) Delete(ctx context.Context, p string) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	return s.inner.Delete(ctx, full)
}
