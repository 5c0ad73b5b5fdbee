package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"sherpa/internal/locale"
)

// RedisStore keeps the keys in Redis under a common prefix, so one server can
// hold several profiles.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis unreachable: %w", err)
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

func (s *RedisStore) Load(ctx context.Context) (Saved, error) {
	values, err := s.client.MGet(ctx, s.key(KeyUserName), s.key(KeyLanguage)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Saved{}, fmt.Errorf("failed to load session: %w", err)
	}

	var name, lang string
	if len(values) == 2 {
		name, _ = values[0].(string)
		lang, _ = values[1].(string)
	}
	return savedFromValues(name, lang), nil
}

func (s *RedisStore) SaveName(ctx context.Context, name string) error {
	if err := s.client.Set(ctx, s.key(KeyUserName), name, 0).Err(); err != nil {
		return fmt.Errorf("failed to save name: %w", err)
	}
	return nil
}

func (s *RedisStore) SavePreferredLanguage(ctx context.Context, lang locale.Language) error {
	if err := s.client.Set(ctx, s.key(KeyLanguage), string(lang), 0).Err(); err != nil {
		return fmt.Errorf("failed to save language: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key(KeyUserName)).Err(); err != nil {
		return fmt.Errorf("failed to clear identity: %w", err)
	}
	return nil
}
