package shelf

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// DefaultIndexName is the name of the index document under the app root.
const DefaultIndexName = "index.jsonl"

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The store adds its own component attribute.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l.With("component", "shelf") }
}

// WithClock overrides the time source used for node and meta timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithStrictDecoding makes Load fail with ErrCorruptIndex on a malformed
// index document instead of starting from an empty shelf.
func WithStrictDecoding(strict bool) Option {
	return func(s *Store) { s.strict = strict }
}

// WithTracer sets the tracer for store operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Store) { s.tracer = t }
}

// WithDeleteConcurrency bounds the attachment deletions issued in parallel
// by DeleteSubtree.
func WithDeleteConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.deleteConcurrency = n
		}
	}
}

// WithIndexName overrides the index document name.
func WithIndexName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.indexName = name
		}
	}
}
