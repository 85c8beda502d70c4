package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend is a filesystem-backed implementation of Backend. It is used
// for local shelves and for folders synchronized by a desktop client.
type FileBackend struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileBackend creates a backend rooted at baseDir.
func NewFileBackend(baseDir string) (*FileBackend, error) {
	//nolint:gosec // G301: 0755 is intentional for a user-visible shelf directory
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure shelf dir: %w", err)
	}
	return &FileBackend{baseDir: baseDir}, nil
}

func (b *FileBackend) resolve(p string) (string, error) {
	c, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.baseDir, filepath.FromSlash(c)), nil
}

func (b *FileBackend) Download(ctx context.Context, p string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	full, err := b.resolve(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full) //nolint:gosec // path cleaned above
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%s: %w", p, ErrNotAuthorized)
		}
		return nil, transient("download", p, err)
	}
	return data, nil
}

func (b *FileBackend) Upload(ctx context.Context, p string, data []byte, overwrite bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	full, err := b.resolve(p)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(full); err == nil {
			return fmt.Errorf("%s: %w", p, ErrExists)
		}
	}
	//nolint:gosec // G301: see NewFileBackend
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return transient("upload", p, err)
	}

	// Write to temp, then rename
	tmp := full + ".tmp"
	//nolint:gosec // G306: 0644 is intentional for readable blob files
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("%s: %w", p, ErrNotAuthorized)
		}
		return transient("upload", p, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return transient("upload", p, err)
	}
	return nil
}

func (b *FileBackend) Delete(ctx context.Context, p string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	full, err := b.resolve(p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return transient("delete", p, err)
	}
	return nil
}
