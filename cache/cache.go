// Package cache provides the bounded get-or-compute store that memoizes secret
// comparison outcomes.
//
// Entries expire after their TTL and are never purged on demand.
package cache

import (
	"context"
	"time"
)

// Cache memoizes boolean results. Implementations must be safe for
// concurrent use.
type Cache interface {
	// GetOrCompute returns the cached value for key, or runs compute, stores
	// its result for ttl and returns it. A compute error is returned as-is and
	// nothing is stored.
	GetOrCompute(ctx context.Context, key string, compute func(context.Context) (bool, error), ttl time.Duration) (bool, error)
}
