// Package browse lists the guilds and channels a session can read and keeps
// the user's current selection.
package browse

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Defaults for CacheOptions.
const (
	DefaultCacheSize = 64
	DefaultCacheTTL  = 5 * time.Minute
)

// CacheOptions sizes the list caches. A negative Size disables caching.
type CacheOptions struct {
	Size int
	TTL  time.Duration
}

// listCache memoises list results per key. A nil *listCache never hits.
type listCache[T any] struct {
	lru *expirable.LRU[string, []T]
}

func newListCache[T any](opts CacheOptions) *listCache[T] {
	if opts.Size < 0 {
		return nil
	}
	if opts.Size == 0 {
		opts.Size = DefaultCacheSize
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultCacheTTL
	}
	return &listCache[T]{lru: expirable.NewLRU[string, []T](opts.Size, nil, opts.TTL)}
}

func (c *listCache[T]) get(key string) ([]T, bool) {
	if c == nil {
		return nil, false
	}
	return c.lru.Get(key)
}

func (c *listCache[T]) put(key string, v []T) {
	if c == nil {
		return
	}
	c.lru.Add(key, v)
}
