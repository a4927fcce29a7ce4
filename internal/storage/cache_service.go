package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mezo-lite/internal/models"
	"github.com/redis/go-redis/v9"
)

// CacheService provides high-level caching for resolved users and cash link
// maps, so the common read paths skip Postgres on repeat lookups.
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// CacheKeyType represents different types of cache keys
type CacheKeyType string

const (
	// CacheKeyResolvedUser is for username/identifier resolution results
	CacheKeyResolvedUser CacheKeyType = "resolved"
	// CacheKeyCashlinks is for per-user cash link maps
	CacheKeyCashlinks CacheKeyType = "cashlinks"
)

// GenerateCacheKey generates a cache key for a given type and parameters
// Format: <type>:<param1>:<param2>:...
func (c *CacheService) GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	normalizedParams := make([]string, len(params))
	for i, param := range params {
		normalizedParams[i] = strings.ToLower(param)
	}

	parts := append([]string{string(keyType)}, normalizedParams...)
	return strings.Join(parts, ":")
}

// GenerateResolvedUserKey generates a cache key for a resolution payload
// Format: resolved:<payload>
func (c *CacheService) GenerateResolvedUserKey(payload string) string {
	return c.GenerateCacheKey(CacheKeyResolvedUser, payload)
}

// GenerateCashlinkKey generates a cache key for a user's cash link map
// Format: cashlinks:<identifier>
func (c *CacheService) GenerateCashlinkKey(identifier string) string {
	return c.GenerateCacheKey(CacheKeyCashlinks, identifier)
}

// SetResolvedUser caches a user under a resolution payload
func (c *CacheService) SetResolvedUser(ctx context.Context, payload string, user *models.User) error {
	return c.set(ctx, c.GenerateResolvedUserKey(payload), user)
}

// GetResolvedUser retrieves a cached resolution result. The second return
// value reports whether the cache held an entry.
func (c *CacheService) GetResolvedUser(ctx context.Context, payload string) (*models.User, bool, error) {
	var user models.User
	found, err := c.get(ctx, c.GenerateResolvedUserKey(payload), &user)
	if err != nil || !found {
		return nil, false, err
	}
	return &user, true, nil
}

// SetCashlinkMap caches a user's transaction-hash-to-code map
func (c *CacheService) SetCashlinkMap(ctx context.Context, identifier string, links map[string]string) error {
	return c.set(ctx, c.GenerateCashlinkKey(identifier), links)
}

// GetCashlinkMap retrieves a cached cash link map
func (c *CacheService) GetCashlinkMap(ctx context.Context, identifier string) (map[string]string, bool, error) {
	var links map[string]string
	found, err := c.get(ctx, c.GenerateCashlinkKey(identifier), &links)
	if err != nil || !found {
		return nil, false, err
	}
	return links, true, nil
}

// InvalidateUser drops cached entries affected by a user write. Called after
// mobile-auth upserts and cash link creation.
func (c *CacheService) InvalidateUser(ctx context.Context, user *models.User) error {
	keys := []string{
		c.GenerateResolvedUserKey(user.Identifier),
		c.GenerateResolvedUserKey(user.Username),
		c.GenerateCashlinkKey(user.Identifier),
	}
	return c.redis.Del(ctx, keys...)
}

func (c *CacheService) set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return c.redis.Set(ctx, key, data, c.ttl)
}

func (c *CacheService) get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		// Key not found is a cache miss, not an error
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return true, nil
}
