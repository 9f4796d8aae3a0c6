// Package redis provides the Redis-backed identity cache shared by all web replicas.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/target/mmk-ui-web/internal/domain/auth"
	"github.com/target/mmk-ui-web/internal/ports"
)

// DefaultKeyPrefix namespaces identity entries.
const DefaultKeyPrefix = "mmk-web:identity:"

// IdentityCache stores resolved identities as JSON with a TTL.
// Keys are token digests computed by the caller; raw tokens never reach Redis.
type IdentityCache struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ ports.IdentityCache = (*IdentityCache)(nil)

// NewIdentityCache creates a cache using DefaultKeyPrefix.
func NewIdentityCache(client redis.UniversalClient) *IdentityCache {
	return NewIdentityCacheWithPrefix(client, DefaultKeyPrefix)
}

// NewIdentityCacheWithPrefix creates a cache with a custom key prefix.
func NewIdentityCacheWithPrefix(client redis.UniversalClient, prefix string) *IdentityCache {
	return &IdentityCache{client: client, prefix: prefix, now: time.Now}
}

// Set stores id for ttl, shortened to the identity's own expiry when that comes first.
func (c *IdentityCache) Set(ctx context.Context, key string, id domainauth.Identity, ttl time.Duration) error {
	if key == "" {
		return errors.New("identity cache key cannot be empty")
	}
	if !id.ExpiresAt.IsZero() {
		if remaining := id.ExpiresAt.Sub(c.now()); remaining < ttl || ttl <= 0 {
			ttl = remaining
		}
	}
	if ttl <= 0 {
		// Already expired; caching it would only resurrect a dead session.
		return nil
	}

	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	return c.client.Set(ctx, c.prefix+key, data, ttl).Err()
}

// Get returns the cached identity. A miss is (zero, false, nil).
func (c *IdentityCache) Get(ctx context.Context, key string) (domainauth.Identity, bool, error) {
	if key == "" {
		return domainauth.Identity{}, false, nil
	}

	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Identity{}, false, nil
		}
		return domainauth.Identity{}, false, fmt.Errorf("redis get: %w", err)
	}

	var id domainauth.Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return domainauth.Identity{}, false, fmt.Errorf("unmarshal identity: %w", err)
	}
	if id.Expired(c.now()) {
		if err := c.Delete(ctx, key); err != nil {
			return domainauth.Identity{}, false, fmt.Errorf("cleanup expired identity: %w", err)
		}
		return domainauth.Identity{}, false, nil
	}
	return id, true, nil
}

// Delete removes key; deleting a missing key is not an error.
func (c *IdentityCache) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return c.client.Del(ctx, c.prefix+key).Err()
}
