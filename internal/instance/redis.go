package instance

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisKey is a fully composed ephemeral-store key.
type RedisKey string

func (k RedisKey) String() string {
	return string(k)
}

// Redis is the narrow surface of the ephemeral store. State that more than
// one server process may need to observe lives behind this interface only;
// every write is an unconditional put with a TTL, never read-modify-write.
type Redis interface {
	Ping(ctx context.Context) error
	RawClient() redis.UniversalClient
	ComposeKey(svc string, args ...string) RedisKey

	Get(ctx context.Context, key RedisKey) (string, error)
	SetEX(ctx context.Context, key RedisKey, value string, ttl time.Duration) error
	Del(ctx context.Context, key RedisKey) error
	HSetEX(ctx context.Context, key RedisKey, field string, value string, ttl time.Duration) error
	RPushEX(ctx context.Context, key RedisKey, value string, ttl time.Duration) error

	Publish(ctx context.Context, key RedisKey, value string) error
	Subscribe(ctx context.Context, ch chan<- string, keys ...RedisKey)
}

// RedisNil is returned by Get when a key does not exist.
const RedisNil = redis.Nil
