package manager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossfin/crossfin-route-engine/internal/pricing"
	"github.com/crossfin/crossfin-route-engine/internal/routing"
)

type flatFees struct{}

func (flatFees) TradingFeePct(exchange string) float64       { return 0.1 }
func (flatFees) WithdrawalFee(exchange, coin string) float64 { return 0 }
func (flatFees) IsSuspended(exchange, coin string) bool      { return false }

func TestRouteWatcher_EvaluateOnce(t *testing.T) {
	m, _ := newTestManager(t)

	books := NewBookSource(time.Minute, time.Second)
	engine := routing.NewEngine(flatFees{}, books, []string{"BTC", "XRP"}, routing.DefaultTunables())

	req := routing.Request{
		From:     routing.Endpoint{Exchange: "binance", Currency: "USD"},
		To:       routing.Endpoint{Exchange: "upbit", Currency: "KRW"},
		Amount:   10000,
		Strategy: routing.StrategyCheapest,
	}
	w := NewRouteWatcher(engine, m, req, time.Minute)

	resp, err := w.EvaluateOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, resp.Optimal)
	assert.Len(t, resp.Optimal.Steps, 3)
	assert.Equal(t, "realtime", resp.Meta.PriceSource)
}

func TestRouteWatcher_SnapshotFailure(t *testing.T) {
	failing := pricing.NewProvider("realtime", func(ctx context.Context) (pricing.PriceSet, error) {
		return nil, assert.AnError
	})
	svc, err := pricing.NewService(
		pricing.NewFallbackChain(failing),
		stubGapFetcher{},
		noopSnapshotStore{},
		[]string{"BTC"},
		pricing.ServiceOptions{SuccessTTL: time.Minute, FailureTTL: time.Second},
	)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	fx := pricing.NewFxService(&stubRates{rates: map[string]float64{"KRW": 1350}}, []string{"KRW"}, time.Minute, time.Second)
	m := NewMarketManager(svc, fx, []string{"BTC"}, Options{SuccessTTL: time.Minute, FailureTTL: time.Second})

	engine := routing.NewEngine(flatFees{}, NewBookSource(time.Minute, time.Second), []string{"BTC"}, routing.DefaultTunables())
	w := NewRouteWatcher(engine, m, routing.Request{Amount: 1}, time.Minute)

	_, err = w.EvaluateOnce(context.Background())
	assert.Error(t, err)
}
