package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps Redis failures.
var ErrUnavailable = errors.New("cache: redis unavailable")

// Redis stores entries as "1"/"0" strings with a millisecond TTL.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedis returns a Redis-backed cache. Keys are namespaced with prefix
// (default "afc").
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "afc"
	}
	return &Redis{redis: client, prefix: prefix}
}

func (r *Redis) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (bool, error), ttl time.Duration) (bool, error) {
	k := r.prefix + ":" + key

	v, err := r.redis.Get(ctx, k).Result()
	switch {
	case err == nil:
		return v == "1", nil
	case !errors.Is(err, redis.Nil):
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out, err := compute(ctx)
	if err != nil {
		return false, err
	}
	if err := r.redis.Set(ctx, k, encode(out), ttl).Err(); err != nil {
		return out, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

func encode(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
