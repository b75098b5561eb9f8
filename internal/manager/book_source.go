package manager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/crossfin/crossfin-route-engine/internal/cache"
	"github.com/crossfin/crossfin-route-engine/internal/pricing"
	"github.com/crossfin/crossfin-route-engine/internal/routing"
)

// OrderBookFeed 交易所订单簿上游
// symbolStyle 区分传参是交易对（BTCUSDT）还是币种（BTC）
type OrderBookFeed interface {
	FetchOrderBook(ctx context.Context, symbol, side string) ([]routing.BookLevel, error)
}

type bookSource struct {
	feed       OrderBookFeed
	pairSymbol bool
}

// BookSource 带缓存的订单簿读取器，按 exchange/coin/side 做单飞缓存
// 深度数据变化快，TTL 给短一点即可起到合并并发请求的作用
type BookSource struct {
	sources map[string]bookSource
	cache   *cache.SingleFlightCache[string, []routing.BookLevel]
}

func NewBookSource(successTTL, failureTTL time.Duration) *BookSource {
	return &BookSource{
		sources: make(map[string]bookSource),
		cache: cache.NewSingleFlight[string, []routing.BookLevel](
			"order_books", successTTL, failureTTL).
			WithEmptyIsMiss(func(v []routing.BookLevel) bool { return len(v) == 0 }),
	}
}

// Register 注册交易所订单簿上游
// pairSymbol 为 true 时按 BTCUSDT 形式传交易对，否则直接传币种
func (b *BookSource) Register(exchange string, feed OrderBookFeed, pairSymbol bool) {
	b.sources[strings.ToLower(exchange)] = bookSource{feed: feed, pairSymbol: pairSymbol}
}

// FetchOrderBook 实现 routing.BookFetcher
func (b *BookSource) FetchOrderBook(ctx context.Context, exchange, coin, side string) ([]routing.BookLevel, error) {
	src, ok := b.sources[strings.ToLower(exchange)]
	if !ok {
		return nil, fmt.Errorf("no order book feed for exchange %s", exchange)
	}

	symbol := strings.ToUpper(coin)
	if src.pairSymbol {
		symbol = pricing.Symbol(coin)
	}

	key := strings.ToLower(exchange) + "/" + strings.ToUpper(coin) + "/" + strings.ToLower(side)
	levels, _, err := b.cache.Get(ctx, key, func(ctx context.Context) ([]routing.BookLevel, error) {
		return src.feed.FetchOrderBook(ctx, symbol, side)
	})
	return levels, err
}

var _ routing.BookFetcher = (*BookSource)(nil)
