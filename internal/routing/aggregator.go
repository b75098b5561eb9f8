package routing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/crossfin/crossfin-route-engine/internal/monitor"
	"github.com/crossfin/crossfin-route-engine/pkg/logger"
)

// FeeSource 费用表视图，未知的 (交易所, 币种) 解析为 0 而不是错误
type FeeSource interface {
	TradingFeePct(exchange string) float64
	WithdrawalFee(exchange, coin string) float64
	IsSuspended(exchange, coin string) bool
}

// BookFetcher 拉取指定交易所某币种的盘口
// side 为 buy 时返回卖盘，sell 时返回买盘
type BookFetcher interface {
	FetchOrderBook(ctx context.Context, exchange, coin, side string) ([]BookLevel, error)
}

// MarketSnapshot 一次路径计算所依赖的市场数据快照
type MarketSnapshot struct {
	GlobalUSD   map[string]float64            // coin -> USD 价格
	Local       map[string]map[string]float64 // exchange -> coin -> 本币价格
	FxRates     map[string]float64            // currency -> 每美元数量，USD 恒为 1
	PriceSource string
	PriceAgeMs  int64
	Warnings    []string
}

// Engine 路径成本聚合器
// 在固定的桥接币集合上枚举候选路径并排序，不做图搜索
type Engine struct {
	fees        FeeSource
	books       BookFetcher
	bridgeCoins []string
	tunables    Tunables
}

func NewEngine(fees FeeSource, books BookFetcher, bridgeCoins []string, tunables Tunables) *Engine {
	return &Engine{
		fees:        fees,
		books:       books,
		bridgeCoins: bridgeCoins,
		tunables:    tunables,
	}
}

// Compute 枚举桥接币并生成排序后的候选路径
// 提币暂停或任一侧无有效价格的币种被排除而非报错；
// 候选集为空时返回 Optimal 为 nil 的合法响应
func (e *Engine) Compute(ctx context.Context, req Request, snap MarketSnapshot) *Response {
	start := time.Now()

	resp := &Response{
		Request:      req,
		Alternatives: []Route{},
		Meta: Meta{
			PriceSource: snap.PriceSource,
			PriceAgeMs:  snap.PriceAgeMs,
			Warnings:    append([]string{}, snap.Warnings...),
			Excluded:    make(map[string]string),
		},
		At: time.Now().UTC(),
	}

	if req.Amount <= 0 {
		resp.Meta.Warnings = append(resp.Meta.Warnings, "non-positive amount")
		return resp
	}

	var candidates []Route
	for _, coin := range e.bridgeCoins {
		coin = strings.ToUpper(coin)

		if e.fees.IsSuspended(req.From.Exchange, coin) {
			resp.Meta.Excluded[coin] = "withdrawal suspended"
			continue
		}

		srcPrice := e.coinPrice(snap, req.From.Exchange, coin, req.From.Currency)
		dstPrice := e.coinPrice(snap, req.To.Exchange, coin, req.To.Currency)
		if srcPrice <= 0 || dstPrice <= 0 {
			resp.Meta.Excluded[coin] = "no valid price"
			continue
		}

		route := e.buildRoute(ctx, req, coin, srcPrice, dstPrice)
		candidates = append(candidates, route)
	}

	resp.Meta.CandidateSize = len(candidates)

	if len(candidates) == 0 {
		resp.Meta.Warnings = append(resp.Meta.Warnings, "no candidate routes")
		monitor.GetMetrics().ObserveRouteComputation(time.Since(start).Seconds(), 0)
		return resp
	}

	sortRoutes(candidates, req.Strategy, e.tunables)

	resp.Optimal = &candidates[0]
	resp.Alternatives = candidates[1:]

	monitor.GetMetrics().ObserveRouteComputation(time.Since(start).Seconds(), len(candidates))
	return resp
}

// coinPrice 币种在指定交易所计价货币下的价格
// 地区交易所优先使用本币行情，否则用全球 USD 价格换算
func (e *Engine) coinPrice(snap MarketSnapshot, exchange, coin, currency string) float64 {
	if local, ok := snap.Local[exchange]; ok {
		if p, ok := local[coin]; ok && p > 0 {
			return p
		}
	}

	usd, ok := snap.GlobalUSD[coin]
	if !ok || usd <= 0 {
		return 0
	}
	fx, ok := snap.FxRates[strings.ToUpper(currency)]
	if !ok || fx <= 0 {
		if strings.EqualFold(currency, "USD") || strings.EqualFold(currency, "USDT") {
			fx = 1
		} else {
			return 0
		}
	}
	return usd * fx
}

func (e *Engine) buildRoute(ctx context.Context, req Request, coin string, srcPrice, dstPrice float64) Route {
	buyFeePct := e.fees.TradingFeePct(req.From.Exchange)
	sellFeePct := e.fees.TradingFeePct(req.To.Exchange)

	buySlip := e.slippage(ctx, req.From.Exchange, coin, "buy", req.Amount)

	// 买入：滑点抬高有效成交价
	effBuyPrice := srcPrice * (1 + buySlip/100)
	coinQty := req.Amount * (1 - buyFeePct/100) / effBuyPrice

	buyStep := Step{
		Kind:        StepBuy,
		From:        Endpoint{Exchange: req.From.Exchange, Currency: req.From.Currency},
		To:          Endpoint{Exchange: req.From.Exchange, Currency: coin},
		FeePct:      buyFeePct,
		FeeAbsolute: req.Amount * buyFeePct / 100,
		SlippagePct: buySlip,
		TimeMinutes: 1,
		AmountIn:    req.Amount,
		AmountOut:   coinQty,
	}

	// 转账：提币手续费以币本位扣除
	withdrawFee := e.fees.WithdrawalFee(req.From.Exchange, coin)
	qtyAfterTransfer := coinQty - withdrawFee
	if qtyAfterTransfer < 0 {
		qtyAfterTransfer = 0
	}
	transferFeePct := 0.0
	if coinQty > 0 {
		transferFeePct = withdrawFee / coinQty * 100
	}
	transferStep := Step{
		Kind:        StepTransfer,
		From:        Endpoint{Exchange: req.From.Exchange, Currency: coin},
		To:          Endpoint{Exchange: req.To.Exchange, Currency: coin},
		FeePct:      transferFeePct,
		FeeAbsolute: withdrawFee * srcPrice,
		TimeMinutes: TransferMinutes(coin),
		AmountIn:    coinQty,
		AmountOut:   qtyAfterTransfer,
	}

	sellNotional := qtyAfterTransfer * dstPrice
	sellSlip := e.slippage(ctx, req.To.Exchange, coin, "sell", sellNotional)

	// 卖出：滑点压低有效成交价
	effSellPrice := dstPrice * (1 - sellSlip/100)
	proceeds := qtyAfterTransfer * effSellPrice * (1 - sellFeePct/100)

	sellStep := Step{
		Kind:        StepSell,
		From:        Endpoint{Exchange: req.To.Exchange, Currency: coin},
		To:          Endpoint{Exchange: req.To.Exchange, Currency: req.To.Currency},
		FeePct:      sellFeePct,
		FeeAbsolute: sellNotional * sellFeePct / 100,
		SlippagePct: sellSlip,
		TimeMinutes: 1,
		AmountIn:    qtyAfterTransfer,
		AmountOut:   proceeds,
	}

	totalCost := buyFeePct + sellFeePct + transferFeePct + buySlip + sellSlip
	if !strings.EqualFold(req.From.Currency, req.To.Currency) {
		totalCost += e.tunables.FxSpreadPct
	}
	totalTime := buyStep.TimeMinutes + transferStep.TimeMinutes + sellStep.TimeMinutes

	decision := ComputeRouteAction(totalCost, buySlip+sellSlip, totalTime, e.tunables)

	return Route{
		BridgeCoin:       coin,
		Steps:            []Step{buyStep, transferStep, sellStep},
		TotalCostPct:     totalCost,
		TotalTimeMinutes: totalTime,
		EstimatedInput:   req.Amount,
		EstimatedOutput:  proceeds,
		Action:           decision.Indicator,
		Confidence:       decision.Confidence,
		Reason:           decision.Reason,
	}
}

// slippage 从盘口估算滑点，盘口不可用时记 0 并告警日志
func (e *Engine) slippage(ctx context.Context, exchange, coin, side string, notional float64) float64 {
	if e.books == nil || notional <= 0 {
		return 0
	}
	levels, err := e.books.FetchOrderBook(ctx, exchange, coin, side)
	if err != nil {
		logger.Debug().
			Err(err).
			Str("exchange", exchange).
			Str("coin", coin).
			Str("side", side).
			Msg("orderbook unavailable, slippage unknown")
		return 0
	}
	return EstimateSlippage(levels, notional)
}

func sortRoutes(routes []Route, strategy Strategy, t Tunables) {
	sort.SliceStable(routes, func(i, j int) bool {
		a, b := routes[i], routes[j]
		switch strategy {
		case StrategyFastest:
			if a.TotalTimeMinutes != b.TotalTimeMinutes {
				return a.TotalTimeMinutes < b.TotalTimeMinutes
			}
			return a.TotalCostPct < b.TotalCostPct
		case StrategyBalanced:
			sa := t.BalancedCostWeight*a.TotalCostPct + t.BalancedTimeWeight*a.TotalTimeMinutes/60
			sb := t.BalancedCostWeight*b.TotalCostPct + t.BalancedTimeWeight*b.TotalTimeMinutes/60
			if sa != sb {
				return sa < sb
			}
			return a.TotalCostPct < b.TotalCostPct
		default: // cheapest
			if a.TotalCostPct != b.TotalCostPct {
				return a.TotalCostPct < b.TotalCostPct
			}
			return a.TotalTimeMinutes < b.TotalTimeMinutes
		}
	})
}

// String 便于日志输出
func (r Route) String() string {
	return fmt.Sprintf("bridge=%s cost=%.3f%% time=%.1fmin action=%s", r.BridgeCoin, r.TotalCostPct, r.TotalTimeMinutes, r.Action)
}
