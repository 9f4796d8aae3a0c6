// Package memory provides a process-local identity cache used when Redis is not configured.
package memory

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	domainauth "github.com/target/mmk-ui-web/internal/domain/auth"
	"github.com/target/mmk-ui-web/internal/ports"
)

// IdentityCache is a bounded LRU with per-entry TTL. Safe for concurrent use.
type IdentityCache struct {
	mu     sync.Mutex
	cap    int
	ll     *list.List               // front = most-recently used
	items  map[string]*list.Element // key -> element
	now    func() time.Time
	hits   atomic.Uint64
	misses atomic.Uint64
	evicts atomic.Uint64
}

var _ ports.IdentityCache = (*IdentityCache)(nil)

type entry struct {
	key    string
	id     domainauth.Identity
	expiry time.Time // zero means no expiry
}

// Config groups constructor options.
type Config struct {
	Capacity int
	Now      func() time.Time
}

// NewIdentityCache creates a cache holding at most cfg.Capacity identities (default 1024).
func NewIdentityCache(cfg Config) *IdentityCache {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = 1024
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &IdentityCache{
		cap:   capacity,
		ll:    list.New(),
		items: make(map[string]*list.Element, capacity),
		now:   nowFn,
	}
}

// Get returns the identity for key if present and neither the entry nor the identity expired.
func (c *IdentityCache) Get(_ context.Context, key string) (domainauth.Identity, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, found := c.items[key]
	if !found {
		c.misses.Add(1)
		return domainauth.Identity{}, false, nil
	}
	ent := el.Value.(*entry)
	now := c.now()
	if (!ent.expiry.IsZero() && now.After(ent.expiry)) || ent.id.Expired(now) {
		c.removeElement(el)
		c.misses.Add(1)
		return domainauth.Identity{}, false, nil
	}
	c.ll.MoveToFront(el)
	c.hits.Add(1)
	return ent.id, true, nil
}

// Set inserts or replaces key. ttl <= 0 keeps the entry until evicted or the identity expires.
func (c *IdentityCache) Set(_ context.Context, key string, id domainauth.Identity, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}

	if el, found := c.items[key]; found {
		ent := el.Value.(*entry)
		ent.id = id
		ent.expiry = exp
		c.ll.MoveToFront(el)
		return nil
	}

	c.items[key] = c.ll.PushFront(&entry{key: key, id: id, expiry: exp})
	for c.ll.Len() > c.cap {
		c.removeElement(c.ll.Back())
		c.evicts.Add(1)
	}
	return nil
}

// Delete removes key.
func (c *IdentityCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
	return nil
}

// Len returns the current number of entries.
func (c *IdentityCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Stats are simple counters for observability.
type Stats struct {
	Hits, Misses, Evictions uint64
	Size, Capacity          int
}

// Stats returns a snapshot of counters and sizes.
func (c *IdentityCache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evicts.Load(),
		Size:      c.Len(),
		Capacity:  c.cap,
	}
}

// caller must hold c.mu.
func (c *IdentityCache) removeElement(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}
