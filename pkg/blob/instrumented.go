package blob

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vctfence/scrapbee/pkg/observability"
)

// InstrumentedBackend records a span, a count and a latency sample for every call.
type InstrumentedBackend struct {
	inner    Backend
	provider *observability.Provider
	kind     string
}

// Instrumented wraps b. kind names the backend type in metric attributes.
func Instrumented(b Backend, p *observability.Provider, kind string) *InstrumentedBackend {
	return &InstrumentedBackend{inner: b, provider: p, kind: kind}
}

func (i *InstrumentedBackend) track(ctx context.Context, op, p string) (context.Context, func(error)) {
	ctx, done := i.provider.TrackOperation(ctx, "blob."+op,
		attribute.String("blob.backend", i.kind),
		attribute.String("blob.op", op),
	)
	return ctx, func(err error) {
		// Absent blobs are an expected outcome, not a failure.
		if IsNotFound(err) {
			err = nil
		}
		done(err)
	}
}

func (i *InstrumentedBackend) Download(ctx context.Context, p string) ([]byte, error) {
	ctx, done := i.track(ctx, "download", p)
	data, err := i.inner.Download(ctx, p)
	done(err)
	return data, err
}

func (i *InstrumentedBackend) Upload(ctx context.Context, p string, data []byte, overwrite bool) error {
	ctx, done := i.track(ctx, "upload", p)
	err := i.inner.Upload(ctx, p, data, overwrite)
	done(err)
	return err
}

func (i *InstrumentedBackend) Delete(ctx context.Context, p string) error {
	ctx, done := i.track(ctx, "delete", p)
	err := i.inner.Delete(ctx, p)
	done(err)
	return err
}
