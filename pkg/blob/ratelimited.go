package blob

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedBackend throttles calls to a provider's request budget. A
// cascading delete issues one call per attachment, which would otherwise
// burst past most providers' limits.
type RateLimitedBackend struct {
	inner   Backend
	limiter *rate.Limiter
}

// RateLimited wraps b with a token bucket of rps requests per second.
func RateLimited(b Backend, rps float64, burst int) *RateLimitedBackend {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedBackend{inner: b, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimitedBackend) wait(ctx context.Context, op, p string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return transient(op, p, fmt.Errorf("rate limit wait: %w", err))
	}
	return nil
}

func (r *RateLimitedBackend) Download(ctx context.Context, p string) ([]byte, error) {
	if err := r.wait(ctx, "download", p); err != nil {
		return nil, err
	}
	return r.inner.Download(ctx, p)
}

func (r *RateLimitedBackend) Upload(ctx context.Context, p string, data []byte, overwrite bool) error {
	if err := r.wait(ctx, "upload", p); err != nil {
		return err
	}
	return r.inner.Upload(ctx, p, data, overwrite)
}

func (r *RateLimitedBackend) Delete(ctx context.Context, p string) error {
	if err := r.wait(ctx, "delete", p); err != nil {
		return err
	}
	return r.inner.Delete(ctx, p)
}
