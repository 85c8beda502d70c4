package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores each blob as a string value under prefix+path.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
}

// RedisConfig holds configuration for RedisBackend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisBackend creates a Redis backed blob store.
func NewRedisBackend(cfg RedisConfig) *RedisBackend {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisBackendWithClient(rdb, cfg.Prefix)
}

// NewRedisBackendWithClient wraps an existing client.
func NewRedisBackendWithClient(client redis.UniversalClient, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "scrapbee:"
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (r *RedisBackend) key(p string) (string, error) {
	c, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	return r.prefix + c, nil
}

func (r *RedisBackend) Download(ctx context.Context, p string) ([]byte, error) {
	key, err := r.key(p)
	if err != nil {
		return nil, err
	}
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, mapRedisError("download", p, err)
	}
	return data, nil
}

func (r *RedisBackend) Upload(ctx context.Context, p string, data []byte, overwrite bool) error {
	key, err := r.key(p)
	if err != nil {
		return err
	}
	if overwrite {
		if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
			return mapRedisError("upload", p, err)
		}
		return nil
	}
	ok, err := r.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return mapRedisError("upload", p, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", p, ErrExists)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, p string) error {
	key, err := r.key(p)
	if err != nil {
		return err
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return mapRedisError("delete", p, err)
	}
	return nil
}

// Close closes the underlying client.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func mapRedisError(op, p string, err error) error {
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	msg := err.Error()
	if strings.HasPrefix(msg, "NOAUTH") || strings.HasPrefix(msg, "WRONGPASS") || strings.HasPrefix(msg, "NOPERM") {
		return fmt.Errorf("redis %s %s: %w", op, p, ErrNotAuthorized)
	}
	return transient("redis "+op, p, err)
}
