package password

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingHasher struct {
	calls atomic.Int32
	delay time.Duration
}

func (h *countingHasher) Hash(secret string) (string, error) { return "h:" + secret, nil }

func (h *countingHasher) Verify(secret, digest string) (bool, error) {
	h.calls.Add(1)
	time.Sleep(h.delay)
	if !strings.HasPrefix(digest, "h:") {
		return false, errors.New("corrupt digest")
	}
	return digest == "h:"+secret, nil
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]bool
	keys []string
	err  error
}

func (c *mapCache) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (bool, error), ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	c.keys = append(c.keys, key)
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	v, err := compute(ctx)
	if err != nil {
		return false, err
	}
	if c.data == nil {
		c.data = map[string]bool{}
	}
	c.data[key] = v
	return v, nil
}

func TestCompareCachesOutcome(t *testing.T) {
	h := &countingHasher{}
	cache := &mapCache{}
	c := NewComparer(h, cache, 300*time.Second, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !c.Compare(ctx, "pw", "h:pw") {
			t.Fatal("expected match")
		}
	}
	if got := h.calls.Load(); got != 1 {
		t.Fatalf("expected one primitive call, got %d", got)
	}
	if c.Compare(ctx, "other", "h:pw") {
		t.Fatal("expected mismatch")
	}
	if got := h.calls.Load(); got != 2 {
		t.Fatalf("expected a second primitive call for a new pair, got %d", got)
	}
	for _, k := range cache.keys {
		if strings.Contains(k, "pw") {
			t.Fatalf("cache key leaks the secret: %s", k)
		}
	}
}

func TestCompareMalformedDigestIsFalse(t *testing.T) {
	c := NewComparer(&countingHasher{}, &mapCache{}, time.Minute, nil)
	if c.Compare(context.Background(), "pw", "corrupt") {
		t.Fatal("corrupt digest must never match")
	}
}

func TestCompareFallsThroughOnCacheError(t *testing.T) {
	h := &countingHasher{}
	c := NewComparer(h, &mapCache{err: errors.New("redis down")}, time.Minute, nil)
	if !c.Compare(context.Background(), "pw", "h:pw") {
		t.Fatal("expected match despite cache failure")
	}
	if h.calls.Load() != 1 {
		t.Fatalf("expected one primitive call, got %d", h.calls.Load())
	}
}

func TestCompareCollapsesConcurrentIdenticalCalls(t *testing.T) {
	h := &countingHasher{delay: 50 * time.Millisecond}
	c := NewComparer(h, nil, 0, nil)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if !c.Compare(context.Background(), "pw", "h:pw") {
				t.Error("expected match")
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := h.calls.Load(); got >= 16 {
		t.Fatalf("expected concurrent compares to share primitive calls, got %d", got)
	}
}
