package utils

import (
	"context"
	"sync"
	"time"
)

// DefaultStateTTL 足够完成一次授权流程
const DefaultStateTTL = 10 * time.Minute

// StateStore OAuth state 暂存
// Take 读取后立即删除，一个 state 只能使用一次
type StateStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Take(ctx context.Context, key string) (string, bool, error)
}

// cacheItem 内部结构，包含值和过期时间
type cacheItem struct {
	value      string
	expiration time.Time
}

// MemoryStateStore 单实例部署使用
type MemoryStateStore struct {
	items sync.Map
	now   func() time.Time
}

// NewMemoryStateStore 创建内存 state 存储
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{now: time.Now}
}

func (s *MemoryStateStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	s.items.Store(key, cacheItem{
		value:      value,
		expiration: s.now().Add(ttl),
	})
	return nil
}

func (s *MemoryStateStore) Take(_ context.Context, key string) (string, bool, error) {
	val, ok := s.items.LoadAndDelete(key)
	if !ok {
		return "", false, nil
	}

	item := val.(cacheItem)
	if s.now().After(item.expiration) {
		return "", false, nil
	}
	return item.value, true, nil
}

// Sweep 清理过期项
func (s *MemoryStateStore) Sweep() int {
	removed := 0
	now := s.now()
	s.items.Range(func(key, val any) bool {
		if now.After(val.(cacheItem).expiration) {
			s.items.Delete(key)
			removed++
		}
		return true
	})
	return removed
}
