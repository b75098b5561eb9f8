package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/crossfin/crossfin-route-engine/pkg/logger"
)

// Entry 单个缓存条目，刷新时整体替换
type Entry[V any] struct {
	Value     V
	ExpiresAt time.Time
	StoredAt  time.Time
	Source    string
}

// SingleFlightCache 按 key 缓存上游拉取结果
//
// 行为约定：
//  1. 命中未过期条目直接返回，不触发 I/O
//  2. 同一 key 的并发未命中共享一次上游拉取（singleflight）
//  3. 拉取成功按 successTTL 缓存；拉取失败时若存在旧值，
//     按 failureTTL 重新缓存旧值并返回（降级），否则向上抛错
type SingleFlightCache[K ~string, V any] struct {
	name        string
	successTTL  time.Duration
	failureTTL  time.Duration
	clock       Clock
	emptyIsMiss func(V) bool

	mu      sync.RWMutex
	entries map[K]Entry[V]
	sf      singleflight.Group
}

// NewSingleFlight 创建缓存
// failureTTL 通常短于 successTTL，失败后更快重试
func NewSingleFlight[K ~string, V any](name string, successTTL, failureTTL time.Duration) *SingleFlightCache[K, V] {
	return &SingleFlightCache[K, V]{
		name:       name,
		successTTL: successTTL,
		failureTTL: failureTTL,
		clock:      SystemClock,
		entries:    make(map[K]Entry[V]),
	}
}

// WithClock 注入时钟（测试用）
func (c *SingleFlightCache[K, V]) WithClock(clock Clock) *SingleFlightCache[K, V] {
	c.clock = clock
	return c
}

// WithEmptyIsMiss 设置空值判定
// 某些信息源的"空集合"与"尚未拉取"无法区分，此时空值视为未命中
func (c *SingleFlightCache[K, V]) WithEmptyIsMiss(fn func(V) bool) *SingleFlightCache[K, V] {
	c.emptyIsMiss = fn
	return c
}

// Name 缓存名（指标标签用）
func (c *SingleFlightCache[K, V]) Name() string {
	return c.name
}

// Get 获取 key 对应的值，未命中时调用 fetch 拉取
func (c *SingleFlightCache[K, V]) Get(ctx context.Context, key K, fetch func(context.Context) (V, error)) (V, bool, error) {
	if v, ok := c.live(key); ok {
		return v, true, nil
	}

	v, err, _ := c.sf.Do(string(key), func() (any, error) {
		// 等待期间可能已有其他调用者写入
		if v, ok := c.live(key); ok {
			return v, nil
		}

		val, err := fetch(ctx)
		now := c.clock.Now()

		if err == nil {
			c.put(key, val, now, now.Add(c.successTTL), c.name)
			return val, nil
		}

		// 降级：失败时沿用旧值，缩短 TTL 以便更快重试
		if prev, ok := c.peek(key); ok {
			c.put(key, prev.Value, prev.StoredAt, now.Add(c.failureTTL), prev.Source)
			logger.Warn().
				Err(err).
				Str("cache", c.name).
				Str("key", string(key)).
				Msg("fetch failed, serving stale value")
			return prev.Value, nil
		}

		return nil, err
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return v.(V), false, nil
}

// Put 直接写入（手动预热或旁路刷新）
func (c *SingleFlightCache[K, V]) Put(key K, value V, source string) {
	now := c.clock.Now()
	c.put(key, value, now, now.Add(c.successTTL), source)
}

// Peek 返回当前条目（可能已过期），不触发拉取
func (c *SingleFlightCache[K, V]) Peek(key K) (Entry[V], bool) {
	return c.peek(key)
}

// Age 返回条目自写入以来经过的时间
func (c *SingleFlightCache[K, V]) Age(key K) (time.Duration, bool) {
	ent, ok := c.peek(key)
	if !ok {
		return 0, false
	}
	return c.clock.Now().Sub(ent.StoredAt), true
}

// Invalidate 使条目立即过期（保留旧值用于降级）
func (c *SingleFlightCache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.entries[key]
	if !ok {
		return
	}
	ent.ExpiresAt = c.clock.Now()
	c.entries[key] = ent
}

// Len 当前条目数（含过期条目）
func (c *SingleFlightCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *SingleFlightCache[K, V]) live(key K) (V, bool) {
	c.mu.RLock()
	ent, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !c.clock.Now().Before(ent.ExpiresAt) {
		var zero V
		return zero, false
	}
	if c.emptyIsMiss != nil && c.emptyIsMiss(ent.Value) {
		var zero V
		return zero, false
	}
	return ent.Value, true
}

func (c *SingleFlightCache[K, V]) peek(key K) (Entry[V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ent, ok := c.entries[key]
	return ent, ok
}

func (c *SingleFlightCache[K, V]) put(key K, value V, storedAt, expiresAt time.Time, source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry[V]{
		Value:     value,
		ExpiresAt: expiresAt,
		StoredAt:  storedAt,
		Source:    source,
	}
}
