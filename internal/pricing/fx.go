package pricing

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/crossfin/crossfin-route-engine/internal/cache"
	"github.com/crossfin/crossfin-route-engine/internal/monitor"
)

const fxKey = "usd"

// fxBand 单种货币的可信区间与兜底常数
// 区间外的上游数值按垃圾处理，退回上一次好值或兜底常数
type fxBand struct {
	min      float64
	max      float64
	fallback float64
}

var fxBands = map[string]fxBand{
	"KRW": {min: 900, max: 2000, fallback: 1350},
	"JPY": {min: 80, max: 250, fallback: 150},
	"EUR": {min: 0.7, max: 1.4, fallback: 0.93},
	"GBP": {min: 0.5, max: 1.2, fallback: 0.78},
	"CNY": {min: 5, max: 9, fallback: 7.2},
	"SGD": {min: 1, max: 2, fallback: 1.34},
}

// RatesFetcher 汇率上游
type RatesFetcher interface {
	FetchRates(ctx context.Context, currencies []string) (map[string]float64, error)
}

// FxRatesMeta 汇率表与降级信息，USD 恒为 1
type FxRatesMeta struct {
	Rates      map[string]float64
	IsFallback bool
	Source     string
	Warnings   []string
}

// FxService 汇率服务
// 上游与缓存全部失效时逐币种退回兜底常数，调用方永远拿得到完整的表
type FxService struct {
	feed       RatesFetcher
	currencies []string
	cache      *cache.SingleFlightCache[string, map[string]float64]

	mu       sync.RWMutex
	lastGood map[string]float64
}

func NewFxService(feed RatesFetcher, currencies []string, successTTL, failureTTL time.Duration) *FxService {
	sf := cache.NewSingleFlight[string, map[string]float64]("fx_rates", successTTL, failureTTL).
		WithEmptyIsMiss(func(v map[string]float64) bool { return len(v) == 0 })

	return &FxService{
		feed:       feed,
		currencies: currencies,
		cache:      sf,
		lastGood:   make(map[string]float64),
	}
}

// Rates 获取每美元汇率表
func (s *FxService) Rates(ctx context.Context) FxRatesMeta {
	raw, _, err := s.cache.Get(ctx, fxKey, func(ctx context.Context) (map[string]float64, error) {
		return s.feed.FetchRates(ctx, s.currencies)
	})

	meta := FxRatesMeta{
		Rates:  map[string]float64{"USD": 1},
		Source: "er-api",
	}
	if err != nil {
		raw = nil
		meta.IsFallback = true
		meta.Source = "fallback"
		meta.Warnings = append(meta.Warnings, "fx upstream unavailable, no cached rates")
		monitor.GetMetrics().IncFxFallback()
	}

	for _, currency := range s.currencies {
		currency = strings.ToUpper(currency)
		if currency == "USD" {
			continue
		}

		value, ok := raw[currency]
		if ok && s.inBand(currency, value) {
			meta.Rates[currency] = value
			s.mu.Lock()
			s.lastGood[currency] = value
			s.mu.Unlock()
			continue
		}

		if ok {
			meta.Warnings = append(meta.Warnings,
				fmt.Sprintf("fx rate for %s out of band: %g", currency, value))
		}

		// 上一次好值优先于兜底常数
		s.mu.RLock()
		prev := s.lastGood[currency]
		s.mu.RUnlock()

		switch {
		case prev > 0:
			meta.Rates[currency] = prev
		case fxBands[currency].fallback > 0:
			meta.Rates[currency] = fxBands[currency].fallback
		default:
			meta.Warnings = append(meta.Warnings, "no fx rate for "+currency)
			continue
		}
		meta.IsFallback = true
		monitor.GetMetrics().IncFxFallback()
	}

	return meta
}

// inBand 校验汇率是否落在货币的可信区间内
// 没有登记区间的货币只要求正的有限值
func (s *FxService) inBand(currency string, value float64) bool {
	if value <= 0 || math.IsInf(value, 0) || math.IsNaN(value) {
		return false
	}
	band, ok := fxBands[currency]
	if !ok {
		return true
	}
	return value >= band.min && value <= band.max
}
