package pricing

import (
	"context"
	"fmt"

	"github.com/crossfin/crossfin-route-engine/internal/monitor"
	"github.com/crossfin/crossfin-route-engine/pkg/goplus"
	"github.com/crossfin/crossfin-route-engine/pkg/logger"
)

// Provider 一个价格层级
type Provider interface {
	Name() string
	Fetch(ctx context.Context) (PriceSet, error)
}

// FallbackChain 有序层级链，前面的层级产出有效集后不再询问后面的
type FallbackChain struct {
	tiers []Provider
}

func NewFallbackChain(tiers ...Provider) *FallbackChain {
	return &FallbackChain{tiers: tiers}
}

// Fetch 依次询问各层级，返回第一个有效集与命中层级名
// 无效集（含参考价低于下限）视为该层级失败
func (c *FallbackChain) Fetch(ctx context.Context) (PriceSet, string, error) {
	for _, tier := range c.tiers {
		prices, err := tier.Fetch(ctx)
		if err != nil {
			logger.Warn().Err(err).Str("tier", tier.Name()).Msg("price tier failed")
			continue
		}

		prices.Sanitize()
		if err = prices.CheckValid(); err != nil {
			logger.Warn().
				Err(err).
				Str("tier", tier.Name()).
				Int("size", len(prices)).
				Msg("price tier produced invalid set")
			continue
		}

		monitor.GetMetrics().IncFallbackTier(tier.Name())
		return prices, tier.Name(), nil
	}

	monitor.GetMetrics().IncFallbackTier("none")
	return nil, "", ErrAllTiersFailed
}

type fetchFunc func(ctx context.Context) (PriceSet, error)

type funcProvider struct {
	name  string
	fetch fetchFunc
}

func (p *funcProvider) Name() string { return p.name }

func (p *funcProvider) Fetch(ctx context.Context) (PriceSet, error) {
	return p.fetch(ctx)
}

// NewProvider 从函数构造层级
func NewProvider(name string, fetch fetchFunc) Provider {
	return &funcProvider{name: name, fetch: fetch}
}

// SymbolFeed 全量行情上游
type SymbolFeed interface {
	Name() string
	FetchPrices(ctx context.Context, symbols map[string]bool) (map[string]float64, error)
}

// realtimeProvider 第一梯队：并行拉取多家全球交易所，按优先级先到先得合并
// 允许部分失败，只要合并结果有效即算成功
type realtimeProvider struct {
	feeds   []SymbolFeed
	symbols []string
}

// NewRealtimeProvider feeds 按优先级从高到低排列
func NewRealtimeProvider(symbols []string, feeds ...SymbolFeed) Provider {
	return &realtimeProvider{feeds: feeds, symbols: symbols}
}

func (p *realtimeProvider) Name() string { return "realtime" }

func (p *realtimeProvider) Fetch(ctx context.Context) (PriceSet, error) {
	wanted := make(map[string]bool, len(p.symbols))
	for _, sym := range p.symbols {
		wanted[sym] = true
	}

	results := make([]PriceSet, len(p.feeds))
	errs := make([]error, len(p.feeds))

	wg := goplus.NewWaitGroup()
	for i, feed := range p.feeds {
		i, feed := i, feed
		wg.Go(func() {
			prices, err := feed.FetchPrices(ctx, wanted)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", feed.Name(), err)
				return
			}
			results[i] = prices
		})
	}
	wg.Wait()

	merged := make(PriceSet, len(p.symbols))
	failed := 0
	for i, result := range results {
		if errs[i] != nil {
			failed++
			logger.Warn().Err(errs[i]).Msg("realtime feed failed, merging remaining")
			continue
		}
		merged.MergeMissing(result)
	}

	if failed == len(p.feeds) {
		return nil, fmt.Errorf("all realtime feeds failed: %w", errs[0])
	}
	return merged, nil
}
