package pricing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossfin/crossfin-route-engine/internal/models"
)

type stubGapFill struct {
	prices map[string]float64
	calls  atomic.Int64
}

func (s *stubGapFill) FetchSymbolPrice(_ context.Context, symbol string) (float64, error) {
	s.calls.Add(1)
	price, ok := s.prices[symbol]
	if !ok {
		return 0, errors.New("symbol not found")
	}
	return price, nil
}

type memSnapshotStore struct {
	mu     sync.Mutex
	rows   []*models.PriceSnapshot
	latest map[string]float64
	err    error
}

func (m *memSnapshotStore) BatchInsert(rows []*models.PriceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *memSnapshotStore) LatestWithin(_ time.Duration) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.latest, nil
}

func (m *memSnapshotStore) rowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func newTestService(t *testing.T, chain *FallbackChain, gapFill SymbolPriceFetcher, snapshots SnapshotStore, coins []string) *Service {
	t.Helper()
	svc, err := NewService(chain, gapFill, snapshots, coins, ServiceOptions{
		SuccessTTL:     30 * time.Second,
		FailureTTL:     10 * time.Second,
		GapFillWorkers: 2,
		GapFillMarkTTL: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func TestServiceGlobalPrices_RealtimePath(t *testing.T) {
	tier1 := &countingProvider{name: "realtime", prices: PriceSet{"BTCUSDT": 65000, "XRPUSDT": 0.5}}
	svc := newTestService(t, NewFallbackChain(tier1), &stubGapFill{}, nil, []string{"BTC", "XRP"})

	meta, err := svc.GlobalPrices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "realtime", meta.Source)
	assert.Equal(t, 65000.0, meta.Prices["BTCUSDT"])
	assert.Empty(t, meta.Warnings)
	assert.Equal(t, "realtime", svc.LastSource())
}

func TestServiceGlobalPrices_CachedSecondCall(t *testing.T) {
	tier1 := &countingProvider{name: "realtime", prices: PriceSet{"BTCUSDT": 65000, "XRPUSDT": 0.5}}
	svc := newTestService(t, NewFallbackChain(tier1), &stubGapFill{}, nil, []string{"BTC", "XRP"})

	_, err := svc.GlobalPrices(context.Background())
	require.NoError(t, err)
	_, err = svc.GlobalPrices(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 1, tier1.calls.Load())
}

func TestServiceGlobalPrices_GapFill(t *testing.T) {
	tier1 := &countingProvider{name: "realtime", prices: PriceSet{"BTCUSDT": 65000}}
	gapFill := &stubGapFill{prices: map[string]float64{"XRPUSDT": 0.5}}
	svc := newTestService(t, NewFallbackChain(tier1), gapFill, nil, []string{"BTC", "XRP"})

	meta, err := svc.GlobalPrices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "realtime+gapfill", meta.Source)
	assert.Equal(t, 0.5, meta.Prices["XRPUSDT"])
}

func TestServiceGlobalPrices_GapFillDoesNotMutateCache(t *testing.T) {
	tier1 := &countingProvider{name: "realtime", prices: PriceSet{"BTCUSDT": 65000}}
	gapFill := &stubGapFill{prices: map[string]float64{"XRPUSDT": 0.5}}
	svc := newTestService(t, NewFallbackChain(tier1), gapFill, nil, []string{"BTC", "XRP"})

	first, err := svc.GlobalPrices(context.Background())
	require.NoError(t, err)
	require.Contains(t, first.Prices, "XRPUSDT")

	// 缓存值未被补缺结果污染
	entry, ok := svc.cache.Peek(globalKey)
	require.True(t, ok)
	assert.NotContains(t, entry.Value.Prices, "XRPUSDT")

	// 调用方改写自己的副本也不影响缓存
	first.Prices["BTCUSDT"] = 1
	entry, _ = svc.cache.Peek(globalKey)
	assert.Equal(t, 65000.0, entry.Value.Prices["BTCUSDT"])
}

func TestServiceGlobalPrices_MissMarkerStopsRehammering(t *testing.T) {
	tier1 := &countingProvider{name: "realtime", prices: PriceSet{"BTCUSDT": 65000}}
	gapFill := &stubGapFill{} // 任何补缺都失败
	svc := newTestService(t, NewFallbackChain(tier1), gapFill, nil, []string{"BTC", "XRP"})

	meta, err := svc.GlobalPrices(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, meta.Warnings)
	require.EqualValues(t, 1, gapFill.calls.Load())

	_, err = svc.GlobalPrices(context.Background())
	require.NoError(t, err)
	// 负缓存生效，不再重复请求同一个缺口
	assert.EqualValues(t, 1, gapFill.calls.Load())
}

func TestServiceGlobalPrices_SnapshotWrittenOnRealtime(t *testing.T) {
	tier1 := &countingProvider{name: "realtime", prices: PriceSet{"BTCUSDT": 65000, "XRPUSDT": 0.5}}
	store := &memSnapshotStore{}
	svc := newTestService(t, NewFallbackChain(tier1), &stubGapFill{}, store, []string{"BTC", "XRP"})

	_, err := svc.GlobalPrices(context.Background())
	require.NoError(t, err)

	// 落库是异步的
	require.Eventually(t, func() bool { return store.rowCount() == 2 }, time.Second, 10*time.Millisecond)
}

func TestServiceGlobalPrices_AllTiersFailed(t *testing.T) {
	tier1 := &countingProvider{name: "realtime", err: errors.New("down")}
	svc := newTestService(t, NewFallbackChain(tier1), &stubGapFill{}, nil, []string{"BTC"})

	_, err := svc.GlobalPrices(context.Background())
	assert.ErrorIs(t, err, ErrAllTiersFailed)
}

func TestServiceGlobalPrices_FallbackTierWarning(t *testing.T) {
	tier1 := &countingProvider{name: "realtime", err: errors.New("down")}
	tier2 := &countingProvider{name: "coingecko", prices: PriceSet{"BTCUSDT": 64000}}
	svc := newTestService(t, NewFallbackChain(tier1, tier2), &stubGapFill{}, nil, []string{"BTC"})

	meta, err := svc.GlobalPrices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "coingecko", meta.Source)
	assert.NotEmpty(t, meta.Warnings)
}

func TestSnapshotProvider(t *testing.T) {
	store := &memSnapshotStore{latest: map[string]float64{"BTC": 64000, "XRP": 0.5}}
	p := NewSnapshotProvider(store, 7*24*time.Hour)

	prices, err := p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 64000.0, prices["BTCUSDT"])
	assert.Equal(t, 0.5, prices["XRPUSDT"])
	assert.Equal(t, "snapshot", p.Name())
}

func TestSnapshotProvider_Error(t *testing.T) {
	store := &memSnapshotStore{err: errors.New("db down")}
	p := NewSnapshotProvider(store, 7*24*time.Hour)

	_, err := p.Fetch(context.Background())
	assert.Error(t, err)
}
