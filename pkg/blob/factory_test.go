package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vctfence/scrapbee/pkg/observability"
)

func TestNewFromConfig_FSIsScopedUnderRoot(t *testing.T) {
	dir := t.TempDir()
	b, closer, err := NewFromConfig(context.Background(), Config{Type: TypeFS, FSDir: dir}, nil)
	require.NoError(t, err)
	defer func() { _ = closer.Close() }()

	require.NoError(t, b.Upload(context.Background(), "index.jsonl", []byte("x"), true))
	_, err = os.Stat(filepath.Join(dir, "Cloud", "index.jsonl"))
	assert.NoError(t, err)
}

func TestNewFromConfig_Composition(t *testing.T) {
	p, err := observability.New(context.Background(), &observability.Config{Enabled: false})
	require.NoError(t, err)

	b, _, err := NewFromConfig(context.Background(), Config{
		Type:           TypeMemory,
		Root:           "/Apps/ScrapBee",
		RateLimitRPS:   50,
		RateLimitBurst: 5,
	}, p)
	require.NoError(t, err)

	inst, ok := b.(*InstrumentedBackend)
	require.True(t, ok, "got %T", b)
	rl, ok := inst.inner.(*RateLimitedBackend)
	require.True(t, ok, "got %T", inst.inner)
	sc, ok := rl.inner.(*ScopedBackend)
	require.True(t, ok, "got %T", rl.inner)
	assert.Equal(t, "/Apps/ScrapBee", sc.Root())
	_, ok = sc.inner.(*MemoryBackend)
	assert.True(t, ok)

	contract(t, b)
}

func TestNewFromConfig_Errors(t *testing.T) {
	ctx := context.Background()
	cases := map[string]struct {
		cfg  Config
		want string
	}{
		"unsupported": {Config{Type: "azure"}, "unsupported backend type"},
		"s3 bucket":   {Config{Type: TypeS3}, "s3 bucket is required"},
		"redis addr":  {Config{Type: TypeRedis}, "redis addr is required"},
		"sql dsn":     {Config{Type: TypePostgres}, "dsn is required"},
		"http url":    {Config{Type: TypeHTTP}, "base url is required"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := NewFromConfig(ctx, tc.cfg, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestNewFromConfig_GCS(t *testing.T) {
	_, _, err := NewFromConfig(context.Background(), Config{Type: TypeGCS}, nil)
	require.Error(t, err)
	// Without the gcp build tag the backend is unavailable, which is also valid.
	if strings.Contains(err.Error(), "not enabled") {
		return
	}
	assert.Contains(t, err.Error(), "gcs bucket is required")
}
