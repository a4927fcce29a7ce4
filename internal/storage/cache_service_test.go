package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mezo-lite/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestCache creates a CacheService backed by a test Redis instance.
func setupTestCache(t *testing.T, ttl time.Duration) (*CacheService, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return NewCacheService(NewRedisCacheFromClient(client), ttl), mr
}

func TestCacheService_GenerateCacheKey(t *testing.T) {
	svc, _ := setupTestCache(t, time.Minute)

	t.Run("lowercases parameters", func(t *testing.T) {
		key := svc.GenerateResolvedUserKey("Alice@Example.COM")
		assert.Equal(t, "resolved:alice@example.com", key)
	})

	t.Run("cashlink key", func(t *testing.T) {
		key := svc.GenerateCashlinkKey("+15551234567")
		assert.Equal(t, "cashlinks:+15551234567", key)
	})
}

func TestCacheService_ResolvedUser(t *testing.T) {
	svc, _ := setupTestCache(t, time.Minute)
	ctx := context.Background()

	user := &models.User{
		ID:            "u-1",
		Identifier:    "alice@example.com",
		Username:      "alice",
		WalletAddress: "0x1111111111111111111111111111111111111111",
	}

	t.Run("miss before set", func(t *testing.T) {
		got, found, err := svc.GetResolvedUser(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, got)
	})

	t.Run("hit after set", func(t *testing.T) {
		require.NoError(t, svc.SetResolvedUser(ctx, "alice", user))

		got, found, err := svc.GetResolvedUser(ctx, "alice")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, user.WalletAddress, got.WalletAddress)
	})

	t.Run("invalidate drops both resolution keys", func(t *testing.T) {
		require.NoError(t, svc.SetResolvedUser(ctx, user.Identifier, user))
		require.NoError(t, svc.SetResolvedUser(ctx, user.Username, user))

		require.NoError(t, svc.InvalidateUser(ctx, user))

		_, found, err := svc.GetResolvedUser(ctx, user.Identifier)
		require.NoError(t, err)
		assert.False(t, found)

		_, found, err = svc.GetResolvedUser(ctx, user.Username)
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestCacheService_CashlinkMap(t *testing.T) {
	svc, mr := setupTestCache(t, time.Minute)
	ctx := context.Background()

	links := map[string]string{
		"0xdeadbeef": "abc123",
		"0xfeedface": "def456",
	}

	require.NoError(t, svc.SetCashlinkMap(ctx, "alice@example.com", links))

	got, found, err := svc.GetCashlinkMap(ctx, "alice@example.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, links, got)

	t.Run("expires after TTL", func(t *testing.T) {
		mr.FastForward(2 * time.Minute)

		_, found, err := svc.GetCashlinkMap(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestRedisCache_SetGetDel(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cache := NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", "v", time.Minute))

	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	exists, err := cache.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, cache.Del(ctx, "k"))

	exists, err = cache.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}
