package blob

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Call is one recorded backend invocation.
type Call struct {
	Op        string
	Path      string
	Overwrite bool
}

// MemoryBackend keeps blobs in a map and records every call. It backs the
// memory backend type and the tests of the store.
type MemoryBackend struct {
	mu    sync.Mutex
	blobs map[string][]byte
	calls []Call

	// Fail, when set, is consulted before each call; a non-nil result is
	// returned instead of performing it.
	Fail func(op, path string) error
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{blobs: make(map[string][]byte)}
}

func (m *MemoryBackend) record(op, p string, overwrite bool) (string, error) {
	m.calls = append(m.calls, Call{Op: op, Path: p, Overwrite: overwrite})
	if m.Fail != nil {
		if err := m.Fail(op, p); err != nil {
			return "", err
		}
	}
	return cleanPath(p)
}

func (m *MemoryBackend) Download(ctx context.Context, p string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, err := m.record("download", p, false)
	if err != nil {
		return nil, err
	}
	data, ok := m.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryBackend) Upload(ctx context.Context, p string, data []byte, overwrite bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, err := m.record("upload", p, overwrite)
	if err != nil {
		return err
	}
	if _, ok := m.blobs[key]; ok && !overwrite {
		return fmt.Errorf("%s: %w", p, ErrExists)
	}
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, err := m.record("delete", p, false)
	if err != nil {
		return err
	}
	delete(m.blobs, key)
	return nil
}

// Put seeds a blob without recording a call.
func (m *MemoryBackend) Put(p string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, err := cleanPath(p)
	if err != nil {
		panic(err)
	}
	m.blobs[key] = append([]byte(nil), data...)
}

// Get returns a blob without recording a call.
func (m *MemoryBackend) Get(p string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, err := cleanPath(p)
	if err != nil {
		return nil, false
	}
	data, ok := m.blobs[key]
	return data, ok
}

// Paths lists the stored blob paths in sorted order.
func (m *MemoryBackend) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Calls returns a copy of the recorded calls.
func (m *MemoryBackend) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallsTo returns the recorded calls of one operation kind.
func (m *MemoryBackend) CallsTo(op string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets the recorded calls.
func (m *MemoryBackend) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
