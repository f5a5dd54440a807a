package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/academy/internal/platform/cache"
)

// RedisStore keeps each user as a JSON string, with a username index and a
// set of all user ids.
//
//	<prefix>:user:<id>              JSON record
//	<prefix>:username:<normalised>  user id
//	<prefix>:users                  set of ids
type RedisStore struct {
	cache *cache.Cache
}

// NewRedisStore uses c for all keys.
func NewRedisStore(c *cache.Cache) *RedisStore {
	return &RedisStore{cache: c}
}

func (s *RedisStore) userKey(id string) string       { return s.cache.Key("user", id) }
func (s *RedisStore) usernameKey(name string) string { return s.cache.Key("username", NormalizeUsername(name)) }
func (s *RedisStore) indexKey() string               { return s.cache.Key("users") }

func (s *RedisStore) Create(ctx context.Context, u *User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	ok, err := s.cache.Client.SetNX(ctx, s.usernameKey(u.Username), u.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("reserve username: %w", err)
	}
	if !ok {
		return fmt.Errorf("create %q: %w", u.Username, ErrUsernameTaken)
	}

	_, err = s.cache.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.userKey(u.ID), data, 0)
		p.SAdd(ctx, s.indexKey(), u.ID)
		return nil
	})
	if err != nil {
		s.cache.Client.Del(ctx, s.usernameKey(u.Username))
		return fmt.Errorf("store user: %w", err)
	}
	return nil
}

func (s *RedisStore) GetByID(ctx context.Context, id string) (*User, error) {
	data, err := s.cache.Client.Get(ctx, s.userKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", id, err)
	}
	return &u, nil
}

func (s *RedisStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	id, err := s.cache.Client.Get(ctx, s.usernameKey(username)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup username: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Save replaces the record. A changed username moves the index entry.
func (s *RedisStore) Save(ctx context.Context, u *User) error {
	old, err := s.GetByID(ctx, u.ID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	renamed := NormalizeUsername(old.Username) != NormalizeUsername(u.Username)
	if renamed {
		ok, err := s.cache.Client.SetNX(ctx, s.usernameKey(u.Username), u.ID, 0).Result()
		if err != nil {
			return fmt.Errorf("reserve username: %w", err)
		}
		if !ok {
			return fmt.Errorf("rename %q: %w", u.Username, ErrUsernameTaken)
		}
	}

	_, err = s.cache.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.userKey(u.ID), data, 0)
		if renamed {
			p.Del(ctx, s.usernameKey(old.Username))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]*User, error) {
	ids, err := s.cache.Client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]*User, 0, len(ids))
	for _, id := range ids {
		u, err := s.GetByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	sortUsers(users)
	return users, nil
}
