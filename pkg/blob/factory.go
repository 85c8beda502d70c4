package blob

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/vctfence/scrapbee/pkg/observability"
)

// Type names a concrete backend.
type Type string

const (
	TypeFS       Type = "fs"
	TypeS3       Type = "s3"
	TypeGCS      Type = "gcs"
	TypeRedis    Type = "redis"
	TypeSQLite   Type = "sqlite"
	TypePostgres Type = "postgres"
	TypeHTTP     Type = "http"
	TypeMemory   Type = "memory"
)

// Config selects and parameterizes a backend.
type Config struct {
	Type  Type
	Root  string // application directory, default /Cloud
	FSDir string
	S3    S3Config
	GCS   GCSConfig
	Redis RedisConfig
	DSN   string // sqlite and postgres
	HTTP  HTTPConfig

	RateLimitRPS   float64 // 0 disables throttling
	RateLimitBurst int
}

// GCSConfig holds configuration for the GCS backend, which is only built
// with the gcp tag.
type GCSConfig struct {
	Bucket string
	Prefix string // Optional key prefix
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewFromConfig builds the configured backend and composes it as
// Instrumented(RateLimited(Scoped(base))). The closer releases the
// underlying client. provider may be nil to skip instrumentation.
func NewFromConfig(ctx context.Context, cfg Config, provider *observability.Provider) (Backend, io.Closer, error) {
	base, closer, err := newBase(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	var b Backend = Scoped(base, cfg.Root)
	if cfg.RateLimitRPS > 0 {
		b = RateLimited(b, cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if provider != nil {
		b = Instrumented(b, provider, string(cfg.Type))
	}
	return b, closer, nil
}

func newBase(ctx context.Context, cfg Config) (Backend, io.Closer, error) {
	switch cfg.Type {
	case TypeFS, "":
		dir := cfg.FSDir
		if dir == "" {
			dir = "data"
		}
		b, err := NewFileBackend(dir)
		if err != nil {
			return nil, nil, err
		}
		return b, nopCloser{}, nil
	case TypeS3:
		b, err := NewS3Backend(ctx, cfg.S3)
		if err != nil {
			return nil, nil, err
		}
		return b, nopCloser{}, nil
	case TypeGCS:
		b, err := newGCSBackend(ctx, cfg.GCS.Bucket, cfg.GCS.Prefix)
		if err != nil {
			return nil, nil, err
		}
		if c, ok := b.(io.Closer); ok {
			return b, c, nil
		}
		return b, nopCloser{}, nil
	case TypeRedis:
		if cfg.Redis.Addr == "" {
			return nil, nil, fmt.Errorf("redis addr is required")
		}
		b := NewRedisBackend(cfg.Redis)
		return b, b, nil
	case TypeSQLite, TypePostgres:
		b, err := OpenSQLBackend(ctx, Dialect(cfg.Type), cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	case TypeHTTP:
		hc := cfg.HTTP
		if hc.Timeout == 0 {
			hc.Timeout = 30 * time.Second
		}
		b, err := NewHTTPBackend(hc)
		if err != nil {
			return nil, nil, err
		}
		return b, nopCloser{}, nil
	case TypeMemory:
		return NewMemoryBackend(), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}
