package pricing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/crossfin/crossfin-route-engine/internal/cache"
	"github.com/crossfin/crossfin-route-engine/internal/models"
	"github.com/crossfin/crossfin-route-engine/internal/monitor"
	"github.com/crossfin/crossfin-route-engine/pkg/goplus"
	"github.com/crossfin/crossfin-route-engine/pkg/logger"
)

const globalKey = "global"

// SymbolPriceFetcher 单交易对补缺上游
type SymbolPriceFetcher interface {
	FetchSymbolPrice(ctx context.Context, symbol string) (float64, error)
}

// SnapshotStore 价格快照持久层
type SnapshotStore interface {
	BatchInsert(rows []*models.PriceSnapshot) error
	LatestWithin(maxAge time.Duration) (map[string]float64, error)
}

// GlobalPrices 缓存的聚合结果
type GlobalPrices struct {
	Prices   PriceSet
	Source   string
	Warnings []string
}

// GlobalPricesMeta 返回给调用方的聚合结果与数据来源元信息
type GlobalPricesMeta struct {
	Prices   PriceSet
	Source   string
	AgeMs    int64
	Warnings []string
}

// ServiceOptions 聚合服务配置
type ServiceOptions struct {
	SuccessTTL     time.Duration
	FailureTTL     time.Duration
	GapFillWorkers int
	GapFillMarkTTL time.Duration
}

// Service 全球价格聚合服务
// 回退链产出的集合缓存一份，补缺在克隆的副本上做，缓存值本身不被改写
type Service struct {
	chain     *FallbackChain
	gapFill   SymbolPriceFetcher
	snapshots SnapshotStore
	symbols   []string

	cache *cache.SingleFlightCache[string, GlobalPrices]
	miss  *cache.MissCache
	pool  *ants.Pool

	mu         sync.RWMutex
	lastSource string
	lastAt     time.Time
}

func NewService(chain *FallbackChain, gapFill SymbolPriceFetcher, snapshots SnapshotStore, coins []string, opts ServiceOptions) (*Service, error) {
	workers := opts.GapFillWorkers
	if workers <= 0 {
		workers = 4
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create gap-fill pool: %w", err)
	}

	sf := cache.NewSingleFlight[string, GlobalPrices]("global_prices", opts.SuccessTTL, opts.FailureTTL).
		WithEmptyIsMiss(func(v GlobalPrices) bool { return len(v.Prices) == 0 })

	return &Service{
		chain:     chain,
		gapFill:   gapFill,
		snapshots: snapshots,
		symbols:   Symbols(coins),
		cache:     sf,
		miss:      cache.NewMissCache(opts.GapFillMarkTTL),
		pool:      pool,
	}, nil
}

// Close 释放补缺工作池
func (s *Service) Close() {
	s.pool.Release()
}

// GlobalPrices 获取聚合价格
// 所有层级和补缺都失败时返回错误，否则总能拿到结构完整的结果
func (s *Service) GlobalPrices(ctx context.Context) (GlobalPricesMeta, error) {
	value, _, err := s.cache.Get(ctx, globalKey, s.fetchChain)
	if err != nil {
		return GlobalPricesMeta{}, err
	}

	// 补缺在克隆副本上进行，缓存值保持不变
	prices := value.Prices.Clone()
	source := value.Source
	warnings := append([]string{}, value.Warnings...)

	if missing := prices.Missing(s.symbols); len(missing) > 0 {
		filled := s.gapFillPass(ctx, prices, missing)
		if filled > 0 {
			source += "+gapfill"
		}
		if still := prices.Missing(s.symbols); len(still) > 0 {
			warnings = append(warnings, fmt.Sprintf("no price for: %s", strings.Join(still, ",")))
		}
	}

	var ageMs int64
	if age, ok := s.cache.Age(globalKey); ok {
		ageMs = age.Milliseconds()
	}

	s.mu.Lock()
	s.lastSource = source
	s.lastAt = time.Now().Add(-time.Duration(ageMs) * time.Millisecond)
	s.mu.Unlock()
	monitor.GetMetrics().SetPriceAge(value.Source, float64(ageMs)/1000)

	return GlobalPricesMeta{
		Prices:   prices,
		Source:   source,
		AgeMs:    ageMs,
		Warnings: warnings,
	}, nil
}

// LastSource 最近一次聚合的来源
func (s *Service) LastSource() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSource
}

// LastAgeMs 最近一次聚合数据的年龄
func (s *Service) LastAgeMs() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastAt.IsZero() {
		return 0
	}
	return time.Since(s.lastAt).Milliseconds()
}

func (s *Service) fetchChain(ctx context.Context) (GlobalPrices, error) {
	prices, source, err := s.chain.Fetch(ctx)
	if err != nil {
		return GlobalPrices{}, err
	}

	var warnings []string
	if source != "realtime" {
		warnings = append(warnings, "serving from fallback tier: "+source)
	} else if s.snapshots != nil {
		s.persistSnapshot(prices, source)
	}

	return GlobalPrices{Prices: prices, Source: source, Warnings: warnings}, nil
}

// persistSnapshot 实时层成功时异步落库，供第四层回退使用
func (s *Service) persistSnapshot(prices PriceSet, source string) {
	rows := make([]*models.PriceSnapshot, 0, len(prices))
	for sym, price := range prices {
		rows = append(rows, &models.PriceSnapshot{
			Coin:   strings.TrimSuffix(sym, "USDT"),
			Price:  price,
			Source: source,
		})
	}

	goplus.Go(func() {
		if err := s.snapshots.BatchInsert(rows); err != nil {
			logger.Warn().Err(err).Int("rows", len(rows)).Msg("price snapshot write failed")
			return
		}
		monitor.GetMetrics().AddSnapshotRowsWritten(len(rows))
	})
}

// gapFillPass 对缺失交易对做有界并发的单对补缺，返回补到的数量
// 近期确认拿不到的交易对由负缓存跳过
func (s *Service) gapFillPass(ctx context.Context, prices PriceSet, missing []string) int {
	var mu sync.Mutex
	filled := make(map[string]float64, len(missing))

	var wg sync.WaitGroup
	for _, sym := range missing {
		sym := sym
		if s.miss.Seen(sym) {
			monitor.GetMetrics().IncGapFill("skipped")
			continue
		}

		task := func() {
			defer wg.Done()
			defer goplus.Recover()

			price, err := s.gapFill.FetchSymbolPrice(ctx, sym)
			if err != nil || price <= 0 {
				s.miss.Mark(sym)
				monitor.GetMetrics().IncGapFill("miss")
				logger.Debug().Err(err).Str("symbol", sym).Msg("gap-fill miss")
				return
			}

			mu.Lock()
			filled[sym] = price
			mu.Unlock()
			monitor.GetMetrics().IncGapFill("filled")
		}

		wg.Add(1)
		if err := s.pool.Submit(task); err != nil {
			// 池已关闭或饱和时直接内联执行
			task()
		}
	}
	wg.Wait()

	for sym, price := range filled {
		prices[sym] = price
	}
	return len(filled)
}

// NewSnapshotProvider 第四梯队：持久化快照，限定最大年龄
func NewSnapshotProvider(store SnapshotStore, maxAge time.Duration) Provider {
	return NewProvider("snapshot", func(ctx context.Context) (PriceSet, error) {
		byCoin, err := store.LatestWithin(maxAge)
		if err != nil {
			return nil, err
		}

		prices := make(PriceSet, len(byCoin))
		for coin, price := range byCoin {
			prices[Symbol(coin)] = price
		}
		return prices, nil
	})
}
