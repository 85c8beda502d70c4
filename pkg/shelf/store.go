// Package shelf implements the cloud bookmark store: an in-memory snapshot
// of the bookmark tree backed by a single remote index document, with large
// node payloads kept in per-node attachment blobs.
//
// The index document is one mutable cell with last-writer-wins semantics.
// A Store is not safe for concurrent use, and callers must serialize whole
// load, mutate, save sequences against a given index document; two racing
// sequences silently lose the earlier Save. Attachment writes are separate
// remote operations, so a caller that needs ordering writes attachments
// first and saves the index that references them afterwards.
package shelf

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vctfence/scrapbee/pkg/blob"
	"github.com/vctfence/scrapbee/pkg/model"
)

// Store owns the authoritative snapshot of the meta record and the ordered
// node collection.
type Store struct {
	backend           blob.Backend
	logger            *slog.Logger
	now               func() time.Time
	strict            bool
	tracer            trace.Tracer
	deleteConcurrency int
	indexName         string

	meta     *model.Meta
	nodes    []*model.Node
	byUUID   map[string]*model.Node
	children map[string][]*model.Node

	// containerExtra holds unrecognized members of the node container
	// record, written back on save.
	containerExtra map[string]json.RawMessage
	lastStamp      int64
}

// New returns an empty store over backend. Paths given to the backend are
// relative to the application root; wrap the backend with blob.Scoped to
// place them.
func New(backend blob.Backend, opts ...Option) *Store {
	s := &Store{
		backend:           backend,
		logger:            slog.Default().With("component", "shelf"),
		now:               time.Now,
		tracer:            otel.Tracer("github.com/vctfence/scrapbee/pkg/shelf"),
		deleteConcurrency: 4,
		indexName:         DefaultIndexName,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s
}

// Open creates a store and loads the remote index document.
func Open(ctx context.Context, backend blob.Backend, opts ...Option) (*Store, error) {
	s := New(backend, opts...)
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reset drops the snapshot and starts over with a fresh meta record.
func (s *Store) Reset() {
	s.meta = model.NewMeta(s.now())
	s.nodes = nil
	s.containerExtra = nil
	s.reindex()
}

// IsEmpty reports whether the snapshot holds no nodes.
func (s *Store) IsEmpty() bool {
	return len(s.nodes) == 0
}

// Meta returns a copy of the meta record.
func (s *Store) Meta() model.Meta {
	m := *s.meta
	return m
}

// Load replaces the snapshot with the remote index document. An absent
// document yields an empty store. A malformed one does too, unless strict
// decoding is enabled, in which case ErrCorruptIndex is returned.
func (s *Store) Load(ctx context.Context) (err error) {
	ctx, end := s.startSpan(ctx, "shelf.Load")
	defer func() { end(err) }()

	data, err := s.backend.Download(ctx, s.indexName)
	if err != nil {
		if blob.IsNotFound(err) {
			s.logger.DebugContext(ctx, "index document not found, starting empty", "index", s.indexName)
			s.Reset()
			return nil
		}
		return fmt.Errorf("load index: %w", err)
	}

	meta, container, err := decodeIndex(data, s.strict)
	if err != nil {
		if s.strict {
			return fmt.Errorf("%w: %v", ErrCorruptIndex, err)
		}
		s.logger.WarnContext(ctx, "index document malformed, starting empty",
			"index", s.indexName, "bytes", len(data), "error", err)
		s.Reset()
		return nil
	}

	s.meta = meta
	s.nodes = container.Nodes
	s.containerExtra = container.Extra
	s.reindex()
	if meta.Timestamp > s.lastStamp {
		s.lastStamp = meta.Timestamp
	}

	if verr := s.Validate(); verr != nil {
		if s.strict {
			s.Reset()
			return fmt.Errorf("%w: %v", ErrCorruptIndex, verr)
		}
		s.logger.WarnContext(ctx, "index document violates tree invariants", "error", verr)
	}

	s.logger.DebugContext(ctx, "index loaded", "nodes", len(s.nodes), "version", meta.Version)
	return nil
}

// Save refreshes the meta timestamp and overwrites the remote index
// document with the whole snapshot in a single upload. Encoding failures
// abort before anything is written.
func (s *Store) Save(ctx context.Context) (err error) {
	ctx, end := s.startSpan(ctx, "shelf.Save", attribute.Int("shelf.nodes", len(s.nodes)))
	defer func() { end(err) }()

	meta := *s.meta
	if meta.Version < model.SchemaVersion {
		meta.Version = model.SchemaVersion
	}
	if meta.Cloud == "" {
		meta.Cloud = model.FormatName
	}
	meta.Timestamp = s.now().UnixMilli()
	if meta.Timestamp <= s.meta.Timestamp {
		meta.Timestamp = s.meta.Timestamp + 1
	}

	data, err := encodeIndex(&meta, s.nodes, s.containerExtra)
	if err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	if err := s.backend.Upload(ctx, s.indexName, data, true); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	*s.meta = meta

	digest, derr := s.Digest()
	if derr != nil {
		digest = "unavailable"
	}
	s.logger.InfoContext(ctx, "index saved", "nodes", len(s.nodes), "bytes", len(data), "digest", digest)
	return nil
}

// stamp returns the current time in milliseconds, never earlier than a
// stamp handed out before.
func (s *Store) stamp() int64 {
	ms := s.now().UnixMilli()
	if ms < s.lastStamp {
		ms = s.lastStamp
	}
	s.lastStamp = ms
	return ms
}

func (s *Store) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
