package metrics

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEngine memoizes an Engine by text checksum. It is safe for
// concurrent use.
type CachedEngine struct {
	engine Engine
	cache  *lru.Cache[string, TextMetrics]

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCachedEngine wraps engine with an LRU cache of size entries.
func NewCachedEngine(engine Engine, size int) (*CachedEngine, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	cache, err := lru.New[string, TextMetrics](size)
	if err != nil {
		return nil, fmt.Errorf("creating metrics cache: %w", err)
	}
	return &CachedEngine{engine: engine, cache: cache}, nil
}

// NewEngine returns the default engine, cached when size is positive.
func NewEngine(size int) (Engine, error) {
	if size <= 0 {
		return FleschKincaid{}, nil
	}
	return NewCachedEngine(FleschKincaid{}, size)
}

// Measure implements Engine.
func (c *CachedEngine) Measure(text string) TextMetrics {
	key := Checksum(text)
	if m, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return m
	}
	c.misses.Add(1)

	m := c.engine.Measure(text)
	c.cache.Add(key, m)
	return m
}

// Hits returns the number of cache hits.
func (c *CachedEngine) Hits() uint64 { return c.hits.Load() }

// Misses returns the number of cache misses.
func (c *CachedEngine) Misses() uint64 { return c.misses.Load() }

// Len returns the number of cached entries.
func (c *CachedEngine) Len() int { return c.cache.Len() }
