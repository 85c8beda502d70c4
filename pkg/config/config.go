// Package config loads scrapbee settings from a YAML file and SCRAPBEE_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vctfence/scrapbee/pkg/blob"
	"github.com/vctfence/scrapbee/pkg/observability"
	"github.com/vctfence/scrapbee/pkg/version"
)

// EnvPrefix prefixes every environment override, e.g. SCRAPBEE_BACKEND_TYPE.
const EnvPrefix = "SCRAPBEE"

// Config is the full application configuration.
type Config struct {
	Backend   BackendConfig   `mapstructure:"backend"`
	Store     StoreConfig     `mapstructure:"store"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Server    ServerConfig    `mapstructure:"server"`
}

type BackendConfig struct {
	Type      string          `mapstructure:"type"`
	Root      string          `mapstructure:"root"`
	FS        FSConfig        `mapstructure:"fs"`
	S3        S3Config        `mapstructure:"s3"`
	GCS       GCSConfig       `mapstructure:"gcs"`
	Redis     RedisConfig     `mapstructure:"redis"`
	SQL       SQLConfig       `mapstructure:"sql"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type FSConfig struct {
	Dir string `mapstructure:"dir"`
}

type S3Config struct {
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	Prefix   string `mapstructure:"prefix"`
}

type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type SQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

type HTTPConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type StoreConfig struct {
	StrictDecoding    bool   `mapstructure:"strict_decoding"`
	SharedFolder      string `mapstructure:"shared_folder"`
	DeleteConcurrency int    `mapstructure:"delete_concurrency"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// RateLimit throttles each API client; zero rps disables it.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// DefaultPath returns ~/.config/scrapbee/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "scrapbee", "config.yaml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(home, ".local", "share", "scrapbee")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.type", string(blob.TypeFS))
	v.SetDefault("backend.root", blob.DefaultRoot)
	v.SetDefault("backend.fs.dir", defaultDataDir())
	v.SetDefault("backend.s3.bucket", "")
	v.SetDefault("backend.s3.region", "")
	v.SetDefault("backend.s3.endpoint", "")
	v.SetDefault("backend.s3.prefix", "")
	v.SetDefault("backend.gcs.bucket", "")
	v.SetDefault("backend.gcs.prefix", "")
	v.SetDefault("backend.redis.addr", "")
	v.SetDefault("backend.redis.password", "")
	v.SetDefault("backend.redis.db", 0)
	v.SetDefault("backend.redis.prefix", "")
	v.SetDefault("backend.sql.dsn", "")
	v.SetDefault("backend.http.base_url", "")
	v.SetDefault("backend.http.token", "")
	v.SetDefault("backend.http.timeout", 30*time.Second)
	v.SetDefault("backend.rate_limit.rps", 0)
	v.SetDefault("backend.rate_limit.burst", 1)

	v.SetDefault("store.strict_decoding", false)
	v.SetDefault("store.shared_folder", "Shared")
	v.SetDefault("store.delete_concurrency", 4)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.insecure", false)
	v.SetDefault("telemetry.service_name", "scrapbee")
	v.SetDefault("telemetry.sample_rate", 1.0)

	v.SetDefault("server.addr", ":8420")
	v.SetDefault("server.rate_limit.rps", 0)
	v.SetDefault("server.rate_limit.burst", 10)
}

// Load reads the configuration. An explicit path must exist; without one
// the default location is tried and a missing file is not an error.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if def := DefaultPath(); def != "" {
		v.AddConfigPath(filepath.Dir(def))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports missing or out-of-range settings.
func (c *Config) Validate() error {
	var errs []error
	b := c.Backend
	switch blob.Type(b.Type) {
	case blob.TypeFS:
		if b.FS.Dir == "" {
			errs = append(errs, errors.New("backend.fs.dir is required"))
		}
	case blob.TypeS3:
		if b.S3.Bucket == "" {
			errs = append(errs, errors.New("backend.s3.bucket is required"))
		}
	case blob.TypeGCS:
		if b.GCS.Bucket == "" {
			errs = append(errs, errors.New("backend.gcs.bucket is required"))
		}
	case blob.TypeRedis:
		if b.Redis.Addr == "" {
			errs = append(errs, errors.New("backend.redis.addr is required"))
		}
	case blob.TypeSQLite, blob.TypePostgres:
		if b.SQL.DSN == "" {
			errs = append(errs, errors.New("backend.sql.dsn is required"))
		}
	case blob.TypeHTTP:
		if b.HTTP.BaseURL == "" {
			errs = append(errs, errors.New("backend.http.base_url is required"))
		}
	case blob.TypeMemory:
	default:
		errs = append(errs, fmt.Errorf("backend.type %q is not supported", b.Type))
	}
	if b.RateLimit.RPS < 0 {
		errs = append(errs, errors.New("backend.rate_limit.rps must not be negative"))
	}
	if c.Server.RateLimit.RPS < 0 {
		errs = append(errs, errors.New("server.rate_limit.rps must not be negative"))
	}
	if c.Store.DeleteConcurrency < 1 {
		errs = append(errs, errors.New("store.delete_concurrency must be at least 1"))
	}
	if _, err := observability.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// BlobConfig returns the backend factory settings.
func (c *Config) BlobConfig() blob.Config {
	b := c.Backend
	return blob.Config{
		Type:  blob.Type(b.Type),
		Root:  b.Root,
		FSDir: b.FS.Dir,
		S3: blob.S3Config{
			Bucket:   b.S3.Bucket,
			Region:   b.S3.Region,
			Endpoint: b.S3.Endpoint,
			Prefix:   b.S3.Prefix,
		},
		GCS:   blob.GCSConfig{Bucket: b.GCS.Bucket, Prefix: b.GCS.Prefix},
		Redis: blob.RedisConfig{Addr: b.Redis.Addr, Password: b.Redis.Password, DB: b.Redis.DB, Prefix: b.Redis.Prefix},
		DSN:   b.SQL.DSN,
		HTTP: blob.HTTPConfig{
			BaseURL: b.HTTP.BaseURL,
			Token:   b.HTTP.Token,
			Timeout: b.HTTP.Timeout,
		},
		RateLimitRPS:   b.RateLimit.RPS,
		RateLimitBurst: b.RateLimit.Burst,
	}
}

// TelemetryProviderConfig returns the OpenTelemetry provider settings.
func (c *Config) TelemetryProviderConfig() *observability.Config {
	oc := observability.DefaultConfig()
	oc.Enabled = c.Telemetry.Enabled
	oc.OTLPEndpoint = c.Telemetry.Endpoint
	oc.Insecure = c.Telemetry.Insecure
	oc.ServiceName = c.Telemetry.ServiceName
	oc.SampleRate = c.Telemetry.SampleRate
	oc.ServiceVersion = version.Current().String()
	return oc
}
