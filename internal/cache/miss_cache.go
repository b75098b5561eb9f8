package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MissCache 记录近期拉取失败的 symbol，使用 go-cache 实现 TTL 自动过期
// 补缺阶段跳过被标记的 symbol，避免每次请求都重复敲打持续缺失的上游
type MissCache struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// NewMissCache 创建缺失标记缓存
// 清理间隔自动设为 2×TTL
func NewMissCache(ttl time.Duration) *MissCache {
	return &MissCache{
		cache: gocache.New(ttl, ttl*2),
		ttl:   ttl,
	}
}

// Mark 标记 symbol 拉取失败
func (c *MissCache) Mark(symbol string) {
	c.cache.Set(strings.ToUpper(symbol), time.Now(), gocache.DefaultExpiration)
}

// Seen 检查 symbol 是否在标记窗口内
func (c *MissCache) Seen(symbol string) bool {
	_, exists := c.cache.Get(strings.ToUpper(symbol))
	return exists
}

// Stats 获取统计信息
func (c *MissCache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"item_count":  c.cache.ItemCount(),
		"ttl_minutes": c.ttl.Minutes(),
	}
}
