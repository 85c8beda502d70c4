package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vctfence/scrapbee/pkg/blob"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "fs", cfg.Backend.Type)
	assert.Equal(t, "/Cloud", cfg.Backend.Root)
	assert.Contains(t, cfg.Backend.FS.Dir, filepath.Join(".local", "share", "scrapbee"))
	assert.Equal(t, 30*time.Second, cfg.Backend.HTTP.Timeout)
	assert.False(t, cfg.Store.StrictDecoding)
	assert.Equal(t, "Shared", cfg.Store.SharedFolder)
	assert.Equal(t, 4, cfg.Store.DeleteConcurrency)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8420", cfg.Server.Addr)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
backend:
  type: s3
  root: /Apps/Scrapyard
  s3:
    bucket: shelf
    region: eu-west-1
  rate_limit:
    rps: 5
    burst: 2
store:
  strict_decoding: true
  shared_folder: Inbox
log:
  level: debug
  format: json
`)
	t.Setenv("SCRAPBEE_BACKEND_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("SCRAPBEE_STORE_DELETE_CONCURRENCY", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3", cfg.Backend.Type)
	assert.Equal(t, "shelf", cfg.Backend.S3.Bucket)
	assert.Equal(t, "http://localhost:9000", cfg.Backend.S3.Endpoint)
	assert.True(t, cfg.Store.StrictDecoding)
	assert.Equal(t, "Inbox", cfg.Store.SharedFolder)
	assert.Equal(t, 8, cfg.Store.DeleteConcurrency)

	bc := cfg.BlobConfig()
	assert.Equal(t, blob.TypeS3, bc.Type)
	assert.Equal(t, "/Apps/Scrapyard", bc.Root)
	assert.Equal(t, "eu-west-1", bc.S3.Region)
	assert.Equal(t, 5.0, bc.RateLimitRPS)
	assert.Equal(t, 2, bc.RateLimitBurst)
}

func TestLoad_HTTPTimeoutFromEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SCRAPBEE_BACKEND_TYPE", "http")
	t.Setenv("SCRAPBEE_BACKEND_HTTP_BASE_URL", "https://dav.example.com/remote.php")
	t.Setenv("SCRAPBEE_BACKEND_HTTP_TIMEOUT", "5s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.BlobConfig().HTTP.Timeout)
	assert.Equal(t, "https://dav.example.com/remote.php", cfg.BlobConfig().HTTP.BaseURL)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"s3 bucket":   "backend:\n  type: s3\n",
		"gcs bucket":  "backend:\n  type: gcs\n",
		"redis addr":  "backend:\n  type: redis\n",
		"sqlite dsn":  "backend:\n  type: sqlite\n",
		"http url":    "backend:\n  type: http\n",
		"bad type":    "backend:\n  type: ftp\n",
		"bad level":   "log:\n  level: loud\n",
		"bad format":  "log:\n  format: xml\n",
		"concurrency": "store:\n  delete_concurrency: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.ErrorContains(t, err, "invalid config")
		})
	}

	cfg, err := Load(writeConfig(t, "backend:\n  type: postgres\n  sql:\n    dsn: postgres://localhost/shelf\n"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/shelf", cfg.BlobConfig().DSN)
}

func TestTelemetryProviderConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, "telemetry:\n  enabled: true\n  endpoint: otel:4317\n  insecure: true\n"))
	require.NoError(t, err)

	oc := cfg.TelemetryProviderConfig()
	assert.True(t, oc.Enabled)
	assert.True(t, oc.Insecure)
	assert.Equal(t, "otel:4317", oc.OTLPEndpoint)
	assert.Equal(t, "scrapbee", oc.ServiceName)
	assert.NotEmpty(t, oc.ServiceVersion)
}
