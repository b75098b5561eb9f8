package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFees struct {
	tradingPct map[string]float64
	withdraw   map[string]float64 // "exchange/coin" -> 币本位费用
	suspended  map[string]bool    // "exchange/coin"
}

func (s *stubFees) TradingFeePct(exchange string) float64 {
	return s.tradingPct[exchange]
}

func (s *stubFees) WithdrawalFee(exchange, coin string) float64 {
	return s.withdraw[exchange+"/"+coin]
}

func (s *stubFees) IsSuspended(exchange, coin string) bool {
	return s.suspended[exchange+"/"+coin]
}

type stubBooks struct {
	levels map[string][]BookLevel // "exchange/coin/side"
	err    error
	calls  int
}

func (s *stubBooks) FetchOrderBook(_ context.Context, exchange, coin, side string) ([]BookLevel, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.levels[exchange+"/"+coin+"/"+side], nil
}

func testSnapshot() MarketSnapshot {
	return MarketSnapshot{
		GlobalUSD: map[string]float64{
			"BTC": 50000,
			"XRP": 0.5,
			"TRX": 0.1,
		},
		Local: map[string]map[string]float64{
			"upbit": {
				"BTC": 70000000,
				"XRP": 700,
				"TRX": 140,
			},
		},
		FxRates: map[string]float64{
			"USD": 1,
			"KRW": 1350,
		},
		PriceSource: "realtime",
		PriceAgeMs:  120,
	}
}

func testRequest() Request {
	return Request{
		From:     Endpoint{Exchange: "binance", Currency: "USD"},
		To:       Endpoint{Exchange: "upbit", Currency: "KRW"},
		Amount:   10000,
		Strategy: StrategyCheapest,
	}
}

func newTestEngine(fees FeeSource, books BookFetcher) *Engine {
	return NewEngine(fees, books, []string{"BTC", "XRP", "TRX"}, DefaultTunables())
}

func TestEngineCompute_BasicRoute(t *testing.T) {
	fees := &stubFees{
		tradingPct: map[string]float64{"binance": 0.1, "upbit": 0.05},
		withdraw:   map[string]float64{"binance/XRP": 0.25, "binance/BTC": 0.0002, "binance/TRX": 1},
	}
	engine := newTestEngine(fees, nil)

	resp := engine.Compute(context.Background(), testRequest(), testSnapshot())

	require.NotNil(t, resp.Optimal)
	assert.Len(t, resp.Alternatives, 2)
	assert.Equal(t, 3, resp.Meta.CandidateSize)
	assert.Equal(t, "realtime", resp.Meta.PriceSource)

	route := resp.Optimal
	require.Len(t, route.Steps, 3)
	assert.Equal(t, StepBuy, route.Steps[0].Kind)
	assert.Equal(t, StepTransfer, route.Steps[1].Kind)
	assert.Equal(t, StepSell, route.Steps[2].Kind)
	assert.Greater(t, route.EstimatedOutput, 0.0)
	assert.Greater(t, route.TotalCostPct, 0.0)
	assert.NotEmpty(t, route.Action)
	assert.NotEmpty(t, route.Reason)
}

func TestEngineCompute_CheapestWins(t *testing.T) {
	fees := &stubFees{
		tradingPct: map[string]float64{"binance": 0.1, "upbit": 0.05},
		// BTC 提币费换算后远高于 XRP/TRX
		withdraw: map[string]float64{"binance/BTC": 0.001, "binance/XRP": 0.25, "binance/TRX": 1},
	}
	engine := newTestEngine(fees, nil)

	resp := engine.Compute(context.Background(), testRequest(), testSnapshot())

	require.NotNil(t, resp.Optimal)
	for _, alt := range resp.Alternatives {
		assert.GreaterOrEqual(t, alt.TotalCostPct, resp.Optimal.TotalCostPct)
	}
	assert.NotEqual(t, "BTC", resp.Optimal.BridgeCoin)
}

func TestEngineCompute_FastestStrategy(t *testing.T) {
	fees := &stubFees{
		tradingPct: map[string]float64{"binance": 0.1, "upbit": 0.05},
		withdraw:   map[string]float64{},
	}
	engine := newTestEngine(fees, nil)

	req := testRequest()
	req.Strategy = StrategyFastest
	resp := engine.Compute(context.Background(), req, testSnapshot())

	require.NotNil(t, resp.Optimal)
	// XRP 转账最快
	assert.Equal(t, "XRP", resp.Optimal.BridgeCoin)
	for _, alt := range resp.Alternatives {
		assert.GreaterOrEqual(t, alt.TotalTimeMinutes, resp.Optimal.TotalTimeMinutes)
	}
}

func TestEngineCompute_BalancedStrategy(t *testing.T) {
	fees := &stubFees{
		tradingPct: map[string]float64{"binance": 0.1, "upbit": 0.05},
		withdraw:   map[string]float64{},
	}
	engine := newTestEngine(fees, nil)

	req := testRequest()
	req.Strategy = StrategyBalanced
	resp := engine.Compute(context.Background(), req, testSnapshot())

	require.NotNil(t, resp.Optimal)
	tun := DefaultTunables()
	blend := func(r Route) float64 {
		return tun.BalancedCostWeight*r.TotalCostPct + tun.BalancedTimeWeight*r.TotalTimeMinutes/60
	}
	for _, alt := range resp.Alternatives {
		assert.GreaterOrEqual(t, blend(alt), blend(*resp.Optimal))
	}
}

func TestEngineCompute_SuspendedExcluded(t *testing.T) {
	fees := &stubFees{
		tradingPct: map[string]float64{"binance": 0.1, "upbit": 0.05},
		withdraw:   map[string]float64{},
		suspended:  map[string]bool{"binance/XRP": true},
	}
	engine := newTestEngine(fees, nil)

	resp := engine.Compute(context.Background(), testRequest(), testSnapshot())

	require.NotNil(t, resp.Optimal)
	assert.Equal(t, 2, resp.Meta.CandidateSize)
	assert.Contains(t, resp.Meta.Excluded, "XRP")
	assert.Contains(t, resp.Meta.Excluded["XRP"], "suspended")
	for _, r := range append(resp.Alternatives, *resp.Optimal) {
		assert.NotEqual(t, "XRP", r.BridgeCoin)
	}
}

func TestEngineCompute_MissingPriceExcluded(t *testing.T) {
	fees := &stubFees{
		tradingPct: map[string]float64{"binance": 0.1, "upbit": 0.05},
		withdraw:   map[string]float64{},
	}
	engine := newTestEngine(fees, nil)

	snap := testSnapshot()
	delete(snap.GlobalUSD, "TRX")
	delete(snap.Local["upbit"], "TRX")
	resp := engine.Compute(context.Background(), testRequest(), snap)

	require.NotNil(t, resp.Optimal)
	assert.Equal(t, 2, resp.Meta.CandidateSize)
	assert.Contains(t, resp.Meta.Excluded, "TRX")
}

func TestEngineCompute_AllExcluded(t *testing.T) {
	fees := &stubFees{
		tradingPct: map[string]float64{},
		withdraw:   map[string]float64{},
		suspended: map[string]bool{
			"binance/BTC": true,
			"binance/XRP": true,
			"binance/TRX": true,
		},
	}
	engine := newTestEngine(fees, nil)

	resp := engine.Compute(context.Background(), testRequest(), testSnapshot())

	assert.Nil(t, resp.Optimal)
	assert.Empty(t, resp.Alternatives)
	assert.Equal(t, 0, resp.Meta.CandidateSize)
	assert.Len(t, resp.Meta.Excluded, 3)
	assert.NotEmpty(t, resp.Meta.Warnings)
}

func TestEngineCompute_NonPositiveAmount(t *testing.T) {
	fees := &stubFees{tradingPct: map[string]float64{}, withdraw: map[string]float64{}}
	engine := newTestEngine(fees, nil)

	req := testRequest()
	req.Amount = 0
	resp := engine.Compute(context.Background(), req, testSnapshot())

	assert.Nil(t, resp.Optimal)
	assert.Empty(t, resp.Alternatives)
	assert.NotEmpty(t, resp.Meta.Warnings)
}

func TestEngineCompute_FxSpreadApplied(t *testing.T) {
	fees := &stubFees{
		tradingPct: map[string]float64{"binance": 0, "upbit": 0},
		withdraw:   map[string]float64{},
	}
	engine := newTestEngine(fees, nil)

	crossFx := engine.Compute(context.Background(), testRequest(), testSnapshot())
	require.NotNil(t, crossFx.Optimal)

	sameFx := testRequest()
	sameFx.To.Currency = "USD"
	snap := testSnapshot()
	// 目的地也用美元计价，去掉本币行情以强制走全球价换算
	delete(snap.Local, "upbit")
	sameResp := engine.Compute(context.Background(), sameFx, snap)
	require.NotNil(t, sameResp.Optimal)

	tun := DefaultTunables()
	assert.InDelta(t, tun.FxSpreadPct,
		crossFx.Optimal.TotalCostPct-sameResp.Optimal.TotalCostPct, 1e-9)
}

func TestEngineCompute_SlippageFromBook(t *testing.T) {
	fees := &stubFees{
		tradingPct: map[string]float64{"binance": 0.1, "upbit": 0.05},
		withdraw:   map[string]float64{},
	}
	books := &stubBooks{
		levels: map[string][]BookLevel{
			// 首档深度远小于 1 万美元名义量，买入必然吃到次档
			"binance/XRP/buy": {
				{Price: 0.5, Quantity: 2000},
				{Price: 0.6, Quantity: 100000},
			},
		},
	}
	engine := NewEngine(fees, books, []string{"XRP"}, DefaultTunables())

	resp := engine.Compute(context.Background(), testRequest(), testSnapshot())

	require.NotNil(t, resp.Optimal)
	assert.Greater(t, resp.Optimal.Steps[0].SlippagePct, 0.0)
	assert.Greater(t, books.calls, 0)
}

func TestEngineCompute_BookErrorDegradesToZeroSlippage(t *testing.T) {
	fees := &stubFees{
		tradingPct: map[string]float64{"binance": 0.1, "upbit": 0.05},
		withdraw:   map[string]float64{},
	}
	books := &stubBooks{err: errors.New("upstream down")}
	engine := NewEngine(fees, books, []string{"XRP"}, DefaultTunables())

	resp := engine.Compute(context.Background(), testRequest(), testSnapshot())

	require.NotNil(t, resp.Optimal)
	assert.Equal(t, 0.0, resp.Optimal.Steps[0].SlippagePct)
	assert.Equal(t, 0.0, resp.Optimal.Steps[2].SlippagePct)
}

func TestEngineCompute_WithdrawalFeeReducesOutput(t *testing.T) {
	base := &stubFees{
		tradingPct: map[string]float64{"binance": 0, "upbit": 0},
		withdraw:   map[string]float64{},
	}
	costly := &stubFees{
		tradingPct: map[string]float64{"binance": 0, "upbit": 0},
		withdraw:   map[string]float64{"binance/XRP": 5},
	}

	req := testRequest()
	snap := testSnapshot()

	freeResp := NewEngine(base, nil, []string{"XRP"}, DefaultTunables()).Compute(context.Background(), req, snap)
	feeResp := NewEngine(costly, nil, []string{"XRP"}, DefaultTunables()).Compute(context.Background(), req, snap)

	require.NotNil(t, freeResp.Optimal)
	require.NotNil(t, feeResp.Optimal)
	assert.Greater(t, freeResp.Optimal.EstimatedOutput, feeResp.Optimal.EstimatedOutput)
	assert.Greater(t, feeResp.Optimal.TotalCostPct, freeResp.Optimal.TotalCostPct)
}

func BenchmarkEngineCompute(b *testing.B) {
	fees := &stubFees{
		tradingPct: map[string]float64{"binance": 0.1, "upbit": 0.05},
		withdraw:   map[string]float64{"binance/XRP": 0.25},
	}
	engine := newTestEngine(fees, nil)
	req := testRequest()
	snap := testSnapshot()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Compute(context.Background(), req, snap)
	}
}
