package manager

import (
	"context"
	"time"

	"github.com/crossfin/crossfin-route-engine/internal/routing"
	"github.com/crossfin/crossfin-route-engine/pkg/logger"
)

// RouteWatcher 周期性评估一条固定转移路径并输出结果日志
// 作为常驻哨兵暴露路径成本变化，真正的按需计算走 Engine.Compute
type RouteWatcher struct {
	engine   *routing.Engine
	market   *MarketManager
	req      routing.Request
	interval time.Duration
}

func NewRouteWatcher(engine *routing.Engine, market *MarketManager, req routing.Request, interval time.Duration) *RouteWatcher {
	return &RouteWatcher{
		engine:   engine,
		market:   market,
		req:      req,
		interval: interval,
	}
}

func (w *RouteWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.EvaluateOnce(ctx)
		}
	}
}

// EvaluateOnce 装配一次市场快照并计算路径
func (w *RouteWatcher) EvaluateOnce(ctx context.Context) (*routing.Response, error) {
	snap, err := w.market.Snapshot(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("route watch: snapshot failed")
		return nil, err
	}

	resp := w.engine.Compute(ctx, w.req, snap)
	if resp.Optimal == nil {
		logger.Warn().
			Str("from", w.req.From.Exchange).
			Str("to", w.req.To.Exchange).
			Int("excluded", len(resp.Meta.Excluded)).
			Strs("warnings", resp.Meta.Warnings).
			Msg("route watch: no viable route")
		return resp, nil
	}

	logger.Info().
		Str("route", resp.Optimal.String()).
		Float64("cost_pct", resp.Optimal.TotalCostPct).
		Float64("time_min", resp.Optimal.TotalTimeMinutes).
		Str("action", resp.Optimal.Action).
		Str("price_source", resp.Meta.PriceSource).
		Int("candidates", resp.Meta.CandidateSize).
		Msg("route watch")
	return resp, nil
}
