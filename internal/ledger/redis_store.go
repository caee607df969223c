package ledger

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the Redis SET holding processed message IDs
const DefaultRedisKey = "invoice-scanner:processed"

// saveChunk bounds the number of members per SADD
const saveChunk = 500

// RedisStore keeps the ledger in a Redis SET. Members never expire.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore creates a store on the given client and key
func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{rdb: rdb, key: key}
}

// Load returns all members of the set
func (s *RedisStore) Load(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("ledger SMEMBERS %s: %w", s.key, err)
	}
	return ids, nil
}

// Save adds every ID to the set. Since the set only grows, adding is
// equivalent to replacing.
func (s *RedisStore) Save(ctx context.Context, ids []string) error {
	for start := 0; start < len(ids); start += saveChunk {
		end := min(start+saveChunk, len(ids))
		members := make([]interface{}, 0, end-start)
		for _, id := range ids[start:end] {
			members = append(members, id)
		}
		if err := s.rdb.SAdd(ctx, s.key, members...).Err(); err != nil {
			return fmt.Errorf("ledger SADD %s: %w", s.key, err)
		}
	}
	return nil
}
