package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"roles-service/internal/models"
)

// PermissionCache caches effective permissions per (tenant, user,
// module) in Redis. The cache degrades gracefully: when Redis is
// unreachable the service answers from the database.
type PermissionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPermissionCache creates a new permission cache instance
func NewPermissionCache(addr, password string, db int, ttlSeconds int) *PermissionCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		// No Redis: run uncached
		return &PermissionCache{client: nil, ttl: time.Duration(ttlSeconds) * time.Second}
	}

	return &PermissionCache{client: client, ttl: time.Duration(ttlSeconds) * time.Second}
}

func (c *PermissionCache) key(tenantID string, userID uuid.UUID, module string) string {
	return fmt.Sprintf("perms:%s:%s:%s", tenantID, userID.String(), module)
}

// Get retrieves cached capabilities. A nil result with nil error is a
// cache miss.
func (c *PermissionCache) Get(ctx context.Context, tenantID string, userID uuid.UUID, module string) (*models.Capabilities, error) {
	if c.client == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, c.key(tenantID, userID, module)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var caps models.Capabilities
	if err := json.Unmarshal(data, &caps); err != nil {
		return nil, err
	}
	return &caps, nil
}

// Set caches capabilities for a user and module
func (c *PermissionCache) Set(ctx context.Context, tenantID string, userID uuid.UUID, module string, caps models.Capabilities) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(caps)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(tenantID, userID, module), data, c.ttl).Err()
}

// InvalidateUser removes every cached module entry of one user.
// Called on each assignment mutation so effective permissions change
// immediately.
func (c *PermissionCache) InvalidateUser(ctx context.Context, tenantID string, userID uuid.UUID) error {
	if c.client == nil {
		return nil
	}

	pattern := fmt.Sprintf("perms:%s:%s:*", tenantID, userID.String())
	return c.deleteByPattern(ctx, pattern)
}

// InvalidateTenant removes every cached entry of a tenant. Used when a
// matrix row changes, since any user holding the role is affected.
func (c *PermissionCache) InvalidateTenant(ctx context.Context, tenantID string) error {
	if c.client == nil {
		return nil
	}

	pattern := fmt.Sprintf("perms:%s:*", tenantID)
	return c.deleteByPattern(ctx, pattern)
}

func (c *PermissionCache) deleteByPattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) > 0 {
		return c.client.Del(ctx, keys...).Err()
	}
	return nil
}

// Close closes the Redis connection
func (c *PermissionCache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// IsAvailable returns true if the cache is available
func (c *PermissionCache) IsAvailable() bool {
	return c.client != nil
}
