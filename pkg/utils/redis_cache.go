package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const stateKeyPrefix = "madebuy:oauth_state:"

// RedisStateStore 多实例部署时共享 state
type RedisStateStore struct {
	client *redis.Client
}

// NewRedisStateStore 使用 redis URL 创建，例如 redis://localhost:6379/0
func NewRedisStateStore(redisURL string) (*RedisStateStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisStateStore{client: redis.NewClient(opts)}, nil
}

func (s *RedisStateStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return s.client.Set(ctx, stateKeyPrefix+key, value, ttl).Err()
}

// Take 使用 GETDEL 保证原子的一次性读取
func (s *RedisStateStore) Take(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.GetDel(ctx, stateKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Ping 检查连接
func (s *RedisStateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close 关闭连接
func (s *RedisStateStore) Close() error {
	return s.client.Close()
}
