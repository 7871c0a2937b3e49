package password

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/authflow/internal"
	"golang.org/x/sync/singleflight"
)

// ResultCache memoizes boolean outcomes for a bounded time.
type ResultCache interface {
	GetOrCompute(ctx context.Context, key string, compute func(context.Context) (bool, error), ttl time.Duration) (bool, error)
}

// Comparer checks secrets against stored digests, memoizing outcomes so that
// repeated checks of the same pair skip the slow primitive.
type Comparer struct {
	hasher Hasher
	cache  ResultCache
	ttl    time.Duration
	log    *slog.Logger
	group  singleflight.Group
}

// NewComparer wires a comparer. A nil cache disables memoization; identical
// concurrent compares are still collapsed into one primitive call.
func NewComparer(h Hasher, cache ResultCache, ttl time.Duration, log *slog.Logger) *Comparer {
	if log == nil {
		log = slog.Default()
	}
	return &Comparer{hasher: h, cache: cache, ttl: ttl, log: log}
}

// Compare reports whether secret matches digest. It never errors: a corrupt
// digest is logged and treated as a mismatch, and a cache failure falls
// through to the primitive.
func (c *Comparer) Compare(ctx context.Context, secret, digest string) bool {
	// The cache key stands for the literal pair secret:digest without carrying
	// the secret itself.
	key := "cmp:" + internal.DigestString(secret+":"+digest)

	if c.cache == nil || c.ttl <= 0 {
		return c.verify(ctx, key, secret, digest)
	}

	var (
		computed bool
		ran      bool
	)
	ok, err := c.cache.GetOrCompute(ctx, key, func(ctx context.Context) (bool, error) {
		computed, ran = c.verify(ctx, key, secret, digest), true
		return computed, nil
	}, c.ttl)
	if err == nil {
		return ok
	}

	c.log.WarnContext(ctx, "compare cache unavailable", "error", err)
	if ran {
		return computed
	}
	return c.verify(ctx, key, secret, digest)
}

func (c *Comparer) verify(ctx context.Context, key, secret, digest string) bool {
	v, _, _ := c.group.Do(key, func() (any, error) {
		ok, err := c.hasher.Verify(secret, digest)
		if err != nil {
			c.log.WarnContext(ctx, "stored digest could not be verified", "error", err)
			return false, nil
		}
		return ok, nil
	})
	return v.(bool)
}
