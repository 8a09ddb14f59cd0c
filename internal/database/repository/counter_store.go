package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisCounterStore keeps the hot per-campaign metric counters in a redis
// hash per campaign. Increments are atomic HINCRBY, never read-modify-write,
// so concurrent workers stay correct. The counters are a rebuildable cache;
// CDRs and Actions remain the source of truth.
type RedisCounterStore struct {
	rdb *redis.Client
}

func NewRedisCounterStore(rdb *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{rdb: rdb}
}

func counterKey(campaignID string) string {
	return fmt.Sprintf("metrics:%s", campaignID)
}

// Incr atomically adds delta to one counter of one campaign.
func (s *RedisCounterStore) Incr(ctx context.Context, campaignID, counter string, delta int64) error {
	return s.rdb.HIncrBy(ctx, counterKey(campaignID), counter, delta).Err()
}

// Get returns all counters for a campaign.
func (s *RedisCounterStore) Get(ctx context.Context, campaignID string) (map[string]int64, error) {
	raw, err := s.rdb.HGetAll(ctx, counterKey(campaignID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[k] = n
	}
	return out, nil
}

// Reset clears a campaign's counters, used before a rebuild by replay.
func (s *RedisCounterStore) Reset(ctx context.Context, campaignID string) error {
	return s.rdb.Del(ctx, counterKey(campaignID)).Err()
}
