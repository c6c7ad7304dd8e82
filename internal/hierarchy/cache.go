package hierarchy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheTTL = 5 * time.Minute

// RedisCache memoizes manager subtrees in Redis. Entries are keyed by an
// organization-level version counter; invalidation bumps the counter so
// stale keys simply expire instead of being scanned for.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps the given client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, orgID, userID string) (Subtree, bool) {
	key, err := c.entryKey(ctx, orgID, userID)
	if err != nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, false
	}
	subtree := make(Subtree, len(ids))
	for _, id := range ids {
		subtree[id] = struct{}{}
	}
	return subtree, true
}

func (c *RedisCache) Set(ctx context.Context, orgID, userID string, subtree Subtree) {
	key, err := c.entryKey(ctx, orgID, userID)
	if err != nil {
		return
	}
	raw, err := json.Marshal(subtree.IDs())
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key, raw, cacheTTL).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, orgID string) {
	_ = c.client.Incr(ctx, versionKey(orgID)).Err()
}

func (c *RedisCache) entryKey(ctx context.Context, orgID, userID string) (string, error) {
	version, err := c.client.Get(ctx, versionKey(orgID)).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("subtree:%s:%d:%s", orgID, version, userID), nil
}

func versionKey(orgID string) string {
	return "subtree:ver:" + orgID
}
