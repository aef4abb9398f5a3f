// Package settings holds the runtime-editable configuration keys and the
// read-through cache in front of them.
package settings

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = 5 * time.Minute
)

type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// LoadFunc fetches the current value for key. ok is false when the key has
// never been set.
type LoadFunc func(ctx context.Context, key string) (value string, ok bool, err error)

type entry struct {
	value   string
	ok      bool
	expires time.Time
}

// Cache is a size-bounded, TTL-expiring read-through cache. Misses are
// cached too, so an unset key does not hit the store on every read.
type Cache struct {
	items *lru.Cache[string, entry]
	ttl   time.Duration
	clock Clock
	load  LoadFunc
}

func NewCache(size int, ttl time.Duration, clock Clock, load LoadFunc) (*Cache, error) {
	if load == nil {
		return nil, errors.New("settings: nil loader")
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clock == nil {
		clock = SystemClock
	}
	items, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{items: items, ttl: ttl, clock: clock, load: load}, nil
}

// Get returns the value for key, loading it on a miss or after expiry.
// Loader errors are returned and not cached.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	now := c.clock.Now()
	if e, hit := c.items.Get(key); hit && now.Before(e.expires) {
		return e.value, e.ok, nil
	}

	v, ok, err := c.load(ctx, key)
	if err != nil {
		return "", false, err
	}
	c.items.Add(key, entry{value: v, ok: ok, expires: now.Add(c.ttl)})
	return v, ok, nil
}

// Invalidate drops key so the next Get reloads it.
func (c *Cache) Invalidate(key string) { c.items.Remove(key) }

func (c *Cache) InvalidateAll() { c.items.Purge() }

func (c *Cache) Len() int { return c.items.Len() }
