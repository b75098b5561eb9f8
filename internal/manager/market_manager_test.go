package manager

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossfin/crossfin-route-engine/internal/cache"
	"github.com/crossfin/crossfin-route-engine/internal/models"
	"github.com/crossfin/crossfin-route-engine/internal/pricing"
)

type stubTickerFeed struct {
	name   string
	prices map[string]float64
	err    error
	calls  int64
}

func (s *stubTickerFeed) Name() string { return s.name }

func (s *stubTickerFeed) FetchTickers(ctx context.Context, coins []string) (map[string]float64, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]float64, len(s.prices))
	for coin, price := range s.prices {
		out[coin] = price
	}
	return out, nil
}

type stubGapFetcher struct{}

func (stubGapFetcher) FetchSymbolPrice(ctx context.Context, symbol string) (float64, error) {
	return 0, fmt.Errorf("not available")
}

type noopSnapshotStore struct{}

func (noopSnapshotStore) BatchInsert(rows []*models.PriceSnapshot) error { return nil }

func (noopSnapshotStore) LatestWithin(maxAge time.Duration) (map[string]float64, error) {
	return nil, fmt.Errorf("empty")
}

type stubRates struct {
	rates map[string]float64
	err   error
}

func (s *stubRates) FetchRates(ctx context.Context, currencies []string) (map[string]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rates, nil
}

func newTestPricing(t *testing.T, prices pricing.PriceSet) *pricing.Service {
	t.Helper()
	tier := pricing.NewProvider("realtime", func(ctx context.Context) (pricing.PriceSet, error) {
		return prices.Clone(), nil
	})
	svc, err := pricing.NewService(
		pricing.NewFallbackChain(tier),
		stubGapFetcher{},
		noopSnapshotStore{},
		[]string{"BTC", "XRP"},
		pricing.ServiceOptions{SuccessTTL: time.Minute, FailureTTL: 10 * time.Second},
	)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func newTestManager(t *testing.T) (*MarketManager, *stubTickerFeed) {
	t.Helper()
	prices := newTestPricing(t, pricing.PriceSet{"BTCUSDT": 50000, "XRPUSDT": 0.5})
	fx := pricing.NewFxService(&stubRates{rates: map[string]float64{"KRW": 1350}}, []string{"KRW"}, time.Minute, 10*time.Second)

	m := NewMarketManager(prices, fx, []string{"BTC", "XRP"}, Options{
		SuccessTTL: time.Minute,
		FailureTTL: 5 * time.Second,
	})
	feed := &stubTickerFeed{name: "upbit", prices: map[string]float64{"BTC": 68000000, "XRP": 700}}
	m.AddLocalFeed(feed)
	return m, feed
}

func TestMarketManager_Snapshot(t *testing.T) {
	m, _ := newTestManager(t)

	snap, err := m.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 50000.0, snap.GlobalUSD["BTC"])
	assert.Equal(t, 0.5, snap.GlobalUSD["XRP"])
	assert.Equal(t, 68000000.0, snap.Local["upbit"]["BTC"])
	assert.Equal(t, 1350.0, snap.FxRates["KRW"])
	assert.Equal(t, "realtime", snap.PriceSource)
}

func TestMarketManager_TickersCached(t *testing.T) {
	m, feed := newTestManager(t)

	_, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	_, err = m.Snapshot(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt64(&feed.calls))
}

func TestMarketManager_StreamPreferredOverPolling(t *testing.T) {
	m, feed := newTestManager(t)

	stream := cache.NewLocalPriceCache(time.Minute)
	stream.Set("BTC", 67000000)
	m.AttachTickerStream("upbit", stream)

	snap, err := m.Snapshot(context.Background())
	require.NoError(t, err)

	// 推送里有的币种以推送为准，缺的用 HTTP 补齐
	assert.Equal(t, 67000000.0, snap.Local["upbit"]["BTC"])
	assert.Equal(t, 700.0, snap.Local["upbit"]["XRP"])
	assert.EqualValues(t, 1, atomic.LoadInt64(&feed.calls))
}

func TestMarketManager_StreamCoversAllCoins(t *testing.T) {
	m, feed := newTestManager(t)

	stream := cache.NewLocalPriceCache(time.Minute)
	stream.Set("BTC", 67000000)
	stream.Set("XRP", 710)
	m.AttachTickerStream("upbit", stream)

	snap, err := m.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 710.0, snap.Local["upbit"]["XRP"])
	assert.Zero(t, atomic.LoadInt64(&feed.calls))
}

func TestMarketManager_LocalFeedFailure(t *testing.T) {
	m, feed := newTestManager(t)
	feed.err = fmt.Errorf("upstream down")

	snap, err := m.Snapshot(context.Background())
	require.NoError(t, err)

	// 本地行情失败不阻塞快照，只是没有本地价
	assert.Empty(t, snap.Local)
	assert.NotEmpty(t, snap.GlobalUSD)
}

func TestMarketManager_Premiums(t *testing.T) {
	m, _ := newTestManager(t)

	premiums, source, rate, err := m.Premiums(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "realtime", source)
	assert.Equal(t, 1350.0, rate)
	require.Len(t, premiums, 2)
	// XRP 溢价幅度更大，排前面
	assert.Equal(t, "XRP", premiums[0].Coin)
	assert.InDelta(t, (700.0/1350.0-0.5)/0.5*100, premiums[0].PremiumPct, 1e-9)
}

func TestMarketManager_PremiumsNoFeed(t *testing.T) {
	prices := newTestPricing(t, pricing.PriceSet{"BTCUSDT": 50000})
	fx := pricing.NewFxService(&stubRates{rates: map[string]float64{"KRW": 1350}}, []string{"KRW"}, time.Minute, 10*time.Second)
	m := NewMarketManager(prices, fx, []string{"BTC"}, Options{SuccessTTL: time.Minute, FailureTTL: time.Second})

	_, _, _, err := m.Premiums(context.Background())
	assert.Error(t, err)
}
