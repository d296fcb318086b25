package secrets

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "tower:credentials"

// RedisBackend keeps sealed credentials in a single Redis hash.
type RedisBackend struct {
	client *redis.Client
	key    string
}

// RedisConfig holds connection settings for the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string // hash key (default: "tower:credentials")
}

// NewRedisBackend connects a backend with its own client.
func NewRedisBackend(cfg RedisConfig) *RedisBackend {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisBackendFromClient(client, cfg.Key)
}

// NewRedisBackendFromClient wraps an existing client.
func NewRedisBackendFromClient(client *redis.Client, key string) *RedisBackend {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisBackend{client: client, key: key}
}

func (b *RedisBackend) SaveSecret(ctx context.Context, name, sealed string) error {
	if err := b.client.HSet(ctx, b.key, name, sealed).Err(); err != nil {
		return fmt.Errorf("save credential %s: %w", name, err)
	}
	return nil
}

func (b *RedisBackend) GetSecret(ctx context.Context, name string) (string, error) {
	val, err := b.client.HGet(ctx, b.key, name).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("get credential %s: %w", name, err)
	}
	return val, nil
}

func (b *RedisBackend) DeleteSecret(ctx context.Context, name string) error {
	n, err := b.client.HDel(ctx, b.key, name).Result()
	if err != nil {
		return fmt.Errorf("delete credential %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

func (b *RedisBackend) ListSecrets(ctx context.Context) ([]string, error) {
	names, err := b.client.HKeys(ctx, b.key).Result()
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Ping checks connectivity.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
