package repository

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const blacklistSetKey = "blacklist:numbers"

// RedisBlacklistCache mirrors the relational blacklist into a redis set for
// fast lookups on the dial path. Best effort only: the relational table is
// the compliance record, and a cache miss just costs a database read.
type RedisBlacklistCache struct {
	rdb *redis.Client
}

func NewRedisBlacklistCache(rdb *redis.Client) *RedisBlacklistCache {
	return &RedisBlacklistCache{rdb: rdb}
}

// Add puts a phone number into the cached set.
func (c *RedisBlacklistCache) Add(ctx context.Context, phoneNumber string) error {
	return c.rdb.SAdd(ctx, blacklistSetKey, phoneNumber).Err()
}

// Remove drops a phone number from the cached set.
func (c *RedisBlacklistCache) Remove(ctx context.Context, phoneNumber string) error {
	return c.rdb.SRem(ctx, blacklistSetKey, phoneNumber).Err()
}

// Contains reports whether a phone number is in the cached set.
func (c *RedisBlacklistCache) Contains(ctx context.Context, phoneNumber string) (bool, error) {
	return c.rdb.SIsMember(ctx, blacklistSetKey, phoneNumber).Result()
}
