package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/mmk-ui-web/internal/domain/auth"
	"github.com/target/mmk-ui-web/internal/testutil"
)

// setupTestRedis creates a Redis client for testing.
// Tests will be skipped if Redis is not available.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return testutil.SetupTestRedis(t)
}

func TestIdentityCache_SetAndGet(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	cache := NewIdentityCache(client)
	ctx := context.Background()

	id := domainauth.Identity{
		UserID:    "user-123",
		Email:     "user@example.com",
		Name:      "User",
		ExpiresAt: time.Now().Add(30 * time.Minute),
		Profile:   map[string]any{"plan": "pro"},
	}
	require.NoError(t, cache.Set(ctx, "digest-1", id, 5*time.Minute))

	got, ok, err := cache.Get(ctx, "digest-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id.UserID, got.UserID)
	assert.Equal(t, id.Email, got.Email)
	assert.Equal(t, "pro", got.Profile["plan"])
	assert.WithinDuration(t, id.ExpiresAt, got.ExpiresAt, time.Second)

	ttl, err := client.TTL(ctx, DefaultKeyPrefix+"digest-1").Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, 5*time.Minute)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestIdentityCache_TTLCappedByExpiry(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	cache := NewIdentityCache(client)
	ctx := context.Background()

	id := domainauth.Identity{UserID: "u", ExpiresAt: time.Now().Add(10 * time.Second)}
	require.NoError(t, cache.Set(ctx, "short", id, time.Hour))

	ttl, err := client.TTL(ctx, DefaultKeyPrefix+"short").Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, 10*time.Second)
}

func TestIdentityCache_ExpiredIsNotStored(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	cache := NewIdentityCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "dead", domainauth.Identity{UserID: "u", ExpiresAt: time.Now().Add(-time.Minute)}, time.Hour))

	_, ok, err := cache.Get(ctx, "dead")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdentityCache_GetMissAndDelete(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	cache := NewIdentityCacheWithPrefix(client, "test:")
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "k", domainauth.Identity{UserID: "u"}, time.Minute))
	require.NoError(t, cache.Delete(ctx, "k"))
	_, ok, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Delete(ctx, ""))
	require.Error(t, cache.Set(ctx, "", domainauth.Identity{}, time.Minute))
}

func TestIdentityCache_ExpiredEntryIsEvictedOnRead(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	cache := NewIdentityCache(client)
	clock := testutil.NewClock(time.Now())
	cache.now = clock.Now
	ctx := context.Background()

	id := domainauth.Identity{UserID: "u", ExpiresAt: clock.Now().Add(time.Minute)}
	require.NoError(t, cache.Set(ctx, "aging", id, time.Hour))

	clock.Advance(2 * time.Minute)
	_, ok, err := cache.Get(ctx, "aging")
	require.NoError(t, err)
	assert.False(t, ok)

	exists, err := client.Exists(ctx, DefaultKeyPrefix+"aging").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}
