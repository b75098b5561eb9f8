package cache

import (
	"strings"
	"time"

	"github.com/crossfin/crossfin-route-engine/pkg/concurrent"
)

type localPrice struct {
	price     float64
	updatedAt time.Time
}

// LocalPriceCache 地区交易所本币计价的实时价格缓存
// WebSocket 行情与 HTTP 轮询共同写入，溢价计算读取
type LocalPriceCache struct {
	prices concurrent.Map[string, localPrice]
	maxAge time.Duration
}

// NewLocalPriceCache 创建本地价格缓存
// maxAge 之外的价格视为过期，不再参与计算
func NewLocalPriceCache(maxAge time.Duration) *LocalPriceCache {
	return &LocalPriceCache{maxAge: maxAge}
}

// Set 写入一个币种的本币价格
func (c *LocalPriceCache) Set(coin string, price float64) {
	if price <= 0 {
		return
	}
	c.prices.Store(strings.ToUpper(coin), localPrice{price: price, updatedAt: time.Now()})
}

// Get 读取币种价格，过期返回 false
func (c *LocalPriceCache) Get(coin string) (float64, bool) {
	p, ok := c.prices.Load(strings.ToUpper(coin))
	if !ok || time.Since(p.updatedAt) > c.maxAge {
		return 0, false
	}
	return p.price, true
}

// Snapshot 返回当前未过期价格的快照
func (c *LocalPriceCache) Snapshot() map[string]float64 {
	result := make(map[string]float64)
	now := time.Now()
	c.prices.Range(func(coin string, p localPrice) bool {
		if now.Sub(p.updatedAt) <= c.maxAge {
			result[coin] = p.price
		}
		return true
	})
	return result
}

// Stats 获取统计信息
func (c *LocalPriceCache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"coin_count":      c.prices.Len(),
		"max_age_seconds": c.maxAge.Seconds(),
	}
}
