package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds throttle tuning parameters.
type Config struct {
	// MaxSends is the number of codes that may be delivered per (type, email)
	// within Window. Zero means one.
	MaxSends int
	Window   time.Duration
	Prefix   string
}

// Limiter throttles verification code delivery using shared Redis counters,
// so the budget holds across every engine instance.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.MaxSends <= 0 {
		cfg.MaxSends = 1
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "afs"
	}
	return &Limiter{redis: redisClient, config: cfg}
}

// AllowSend records a delivery attempt for the code type and address and
// returns ErrRateLimited once the window budget is spent. A zero Window
// disables the throttle.
func (l *Limiter) AllowSend(ctx context.Context, codeType, email string) error {
	if l == nil || l.config.Window <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, l.sendKey(codeType, email), l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxSends) {
		return ErrRateLimited
	}
	return nil
}

// ResetSend clears the counter, e.g. after an address is verified.
func (l *Limiter) ResetSend(ctx context.Context, codeType, email string) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, l.sendKey(codeType, email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) sendKey(codeType, email string) string {
	return l.config.Prefix + ":" + codeType + ":" + email
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: the TTL is set only by the first hit.
	if count == 1 {
		if err := l.redis.PExpire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}
