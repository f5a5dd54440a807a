package grading

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/academy/internal/platform/cache"
)

// RedisAttemptStore keeps one set per user, unit and kind:
//
//	<prefix>:attempts:<user>:<kind>:<unit>
//
// Each write refreshes the set's expiry, so grading sessions survive server
// restarts and are shared between instances.
type RedisAttemptStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewRedisAttemptStore stores attempts through c with the given expiry.
func NewRedisAttemptStore(c *cache.Cache, ttl time.Duration) *RedisAttemptStore {
	return &RedisAttemptStore{cache: c, ttl: ttl}
}

func (s *RedisAttemptStore) key(userID string, unit Unit, kind ItemKind) string {
	return s.cache.Key("attempts", userID, string(kind), unit.String())
}

func (s *RedisAttemptStore) Record(ctx context.Context, userID string, unit Unit, kind ItemKind, itemID string) error {
	key := s.key(userID, unit, kind)
	_, err := s.cache.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, key, itemID)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("recording attempt: %w", err)
	}
	return nil
}

func (s *RedisAttemptStore) Passed(ctx context.Context, userID string, unit Unit, kind ItemKind) (map[string]bool, error) {
	ids, err := s.cache.Client.SMembers(ctx, s.key(userID, unit, kind)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading attempts: %w", err)
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (s *RedisAttemptStore) Clear(ctx context.Context, userID string, unit Unit) error {
	err := s.cache.Client.Del(ctx, s.key(userID, unit, KindQuiz), s.key(userID, unit, KindTask)).Err()
	if err != nil {
		return fmt.Errorf("clearing attempts: %w", err)
	}
	return nil
}
