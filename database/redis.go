package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "surveyer:storage:"

// RedisStore keeps one hash per client, so several front-end replicas can
// share cached profiles.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func OpenRedis(url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "database.redis.parse_url")
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "database.redis.ping")
	}
	return NewRedisStore(client, ttl), nil
}

// NewRedisStore wraps an existing client. A positive ttl expires a client's
// entries that long after their last write.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(clientID string) string {
	return redisKeyPrefix + clientID
}

func (s *RedisStore) Get(ctx context.Context, clientID, key string) (string, bool, error) {
	value, err := s.client.HGet(ctx, redisKey(clientID), key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", false, nil
	case err != nil:
		return "", false, errors.Wrapf(err, "database.redis.get %s", key)
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, clientID, key, value string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, redisKey(clientID), key, value)
		if s.ttl > 0 {
			pipe.Expire(ctx, redisKey(clientID), s.ttl)
		}
		return nil
	})
	return errors.Wrapf(err, "database.redis.set %s", key)
}

func (s *RedisStore) Remove(ctx context.Context, clientID, key string) error {
	err := s.client.HDel(ctx, redisKey(clientID), key).Err()
	return errors.Wrapf(err, "database.redis.remove %s", key)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
