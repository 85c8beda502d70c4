package blob

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

// TestRedisBackend_Integration requires a running Redis.
// We skip if connection fails.
func TestRedisBackend_Integration(t *testing.T) {
	b := NewRedisBackend(RedisConfig{Addr: "localhost:6379", DB: 15, Prefix: "scrapbee-test:"})
	defer func() { _ = b.Close() }()

	if err := b.client.Ping(context.Background()).Err(); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}
	_ = b.Delete(context.Background(), "/Cloud/index.jsonl")
	contract(t, b)
}

func TestMapRedisError(t *testing.T) {
	assert.True(t, IsNotFound(mapRedisError("download", "a", redis.Nil)))
	assert.True(t, IsNotAuthorized(mapRedisError("download", "a", errors.New("NOAUTH Authentication required."))))
	assert.True(t, IsNotAuthorized(mapRedisError("upload", "a", errors.New("WRONGPASS invalid username-password pair"))))
	assert.True(t, IsTransient(mapRedisError("upload", "a", errors.New("dial tcp: connection refused"))))
}
