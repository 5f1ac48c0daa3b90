package raster

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize bounds the number of cached renders.
const DefaultCacheSize = 128

// Cached memoizes renders by content hash and size. Concurrent requests for
// the same key share one underlying call.
type Cached struct {
	next  Rasterizer
	cache *lru.Cache[string, []byte]
	group singleflight.Group
}

// NewCached wraps next with an LRU of the given size.
func NewCached(next Rasterizer, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create raster cache: %w", err)
	}
	return &Cached{next: next, cache: cache}, nil
}

// Rasterize returns a cached render or computes one.
func (c *Cached) Rasterize(ctx context.Context, svg []byte, w, h int) ([]byte, error) {
	key := cacheKey(svg, w, h)
	if data, ok := c.cache.Get(key); ok {
		return data, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if data, ok := c.cache.Get(key); ok {
			return data, nil
		}
		data, err := c.next.Rasterize(ctx, svg, w, h)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Len returns the number of cached renders.
func (c *Cached) Len() int {
	return c.cache.Len()
}

func cacheKey(svg []byte, w, h int) string {
	sum := sha256.Sum256(svg)
	return fmt.Sprintf("%s:%dx%d", hex.EncodeToString(sum[:]), w, h)
}
