package fetch

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/tendant/simple-story/pkg/simplestory"
)

// Cached keeps successful fetches for a while. Failures are not cached.
type Cached struct {
	next  simplestory.AssetFetcher
	cache *expirable.LRU[string, []byte]
}

// NewCached wraps next with an LRU of at most size entries, each kept for
// ttl. A size of zero means unlimited.
func NewCached(next simplestory.AssetFetcher, size int, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: expirable.NewLRU[string, []byte](size, nil, ttl),
	}
}

// Fetch returns the cached body for src or fetches it
func (c *Cached) Fetch(ctx context.Context, src string) ([]byte, error) {
	if body, ok := c.cache.Get(src); ok {
		return body, nil
	}
	body, err := c.next.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	c.cache.Add(src, body)
	return body, nil
}

// Purge drops every cached body
func (c *Cached) Purge() {
	c.cache.Purge()
}
