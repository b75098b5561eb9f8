package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/crossfin/crossfin-route-engine/internal/cache"
	"github.com/crossfin/crossfin-route-engine/internal/feeds"
	"github.com/crossfin/crossfin-route-engine/internal/pricing"
	"github.com/crossfin/crossfin-route-engine/internal/routing"
)

// LocalTickerFeed 地区交易所的本币行情上游
type LocalTickerFeed interface {
	Name() string
	FetchTickers(ctx context.Context, coins []string) (map[string]float64, error)
}

// MarketManager 把价格、汇率与本地行情装配成一次路径计算所需的市场快照
//
// Upbit 的本地价优先取 WebSocket 推送缓存，缓存为空或过期时回退到按
// TTL 缓存的 HTTP 轮询；其余地区交易所只走 HTTP。
type MarketManager struct {
	prices *pricing.Service
	fx     *pricing.FxService
	coins  []string

	wsPrices   *cache.LocalPriceCache
	wsExchange string

	localFeeds  []LocalTickerFeed
	tickerCache *cache.SingleFlightCache[string, map[string]float64]
}

// Options 本地行情缓存参数
type Options struct {
	SuccessTTL time.Duration
	FailureTTL time.Duration
}

func NewMarketManager(prices *pricing.Service, fx *pricing.FxService, coins []string, opts Options) *MarketManager {
	return &MarketManager{
		prices: prices,
		fx:     fx,
		coins:  coins,
		tickerCache: cache.NewSingleFlight[string, map[string]float64](
			"local_tickers", opts.SuccessTTL, opts.FailureTTL).
			WithEmptyIsMiss(func(v map[string]float64) bool { return len(v) == 0 }),
	}
}

// AttachTickerStream 挂接 WebSocket 推送缓存，exchange 的本地价优先取这里
func (m *MarketManager) AttachTickerStream(exchange string, prices *cache.LocalPriceCache) {
	m.wsExchange = exchange
	m.wsPrices = prices
}

// AddLocalFeed 注册一个 HTTP 本地行情上游
func (m *MarketManager) AddLocalFeed(feed LocalTickerFeed) {
	m.localFeeds = append(m.localFeeds, feed)
}

// Snapshot 装配市场快照
// 全球价格拿不到任何层级时返回错误；本地行情与汇率各自降级，不阻塞快照
func (m *MarketManager) Snapshot(ctx context.Context) (routing.MarketSnapshot, error) {
	global, err := m.prices.GlobalPrices(ctx)
	if err != nil {
		return routing.MarketSnapshot{}, fmt.Errorf("global prices: %w", err)
	}

	fx := m.fx.Rates(ctx)

	snap := routing.MarketSnapshot{
		GlobalUSD:   make(map[string]float64, len(m.coins)),
		Local:       make(map[string]map[string]float64),
		FxRates:     fx.Rates,
		PriceSource: global.Source,
		PriceAgeMs:  global.AgeMs,
		Warnings:    append(append([]string{}, global.Warnings...), fx.Warnings...),
	}
	for _, coin := range m.coins {
		if price, ok := global.Prices[pricing.Symbol(coin)]; ok {
			snap.GlobalUSD[coin] = price
		}
	}

	for _, feed := range m.localFeeds {
		local := m.localPrices(ctx, feed)
		if len(local) > 0 {
			snap.Local[feed.Name()] = local
		}
	}

	return snap, nil
}

// Premiums 当前本地溢价表，与装配快照共用同一份数据源
func (m *MarketManager) Premiums(ctx context.Context) ([]pricing.Premium, string, float64, error) {
	if len(m.localFeeds) == 0 {
		return nil, "", 0, fmt.Errorf("no local ticker feed configured")
	}
	feed := m.localFeeds[0]

	global, err := m.prices.GlobalPrices(ctx)
	if err != nil {
		return nil, "", 0, err
	}

	fx := m.fx.Rates(ctx)
	rate := fx.Rates["KRW"]

	local := m.localPrices(ctx, feed)
	premiums := pricing.CalcPremiums(feed.Name(), m.coins, local, global.Prices, rate)
	return premiums, global.Source, rate, nil
}

// localPrices 本地价合并：WS 推送优先，HTTP 轮询补齐
func (m *MarketManager) localPrices(ctx context.Context, feed LocalTickerFeed) map[string]float64 {
	merged := make(map[string]float64, len(m.coins))

	if m.wsPrices != nil && feed.Name() == m.wsExchange {
		for coin, price := range m.wsPrices.Snapshot() {
			merged[coin] = price
		}
	}

	if len(merged) < len(m.coins) {
		polled, _, err := m.tickerCache.Get(ctx, feed.Name(), func(ctx context.Context) (map[string]float64, error) {
			return feed.FetchTickers(ctx, m.coins)
		})
		if err == nil {
			for coin, price := range polled {
				if _, ok := merged[coin]; !ok {
					merged[coin] = price
				}
			}
		}
	}

	return merged
}

var _ LocalTickerFeed = (*feeds.UpbitFeed)(nil)
var _ LocalTickerFeed = (*feeds.BithumbFeed)(nil)
