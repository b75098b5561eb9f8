package feeds

import (
	"context"
	"fmt"
	"strings"

	"github.com/crossfin/crossfin-route-engine/internal/routing"
)

// UpbitFeed Upbit 行情：KRW 计价 ticker、盘口、充提状态
type UpbitFeed struct {
	client  *Client
	baseURL string
}

func NewUpbitFeed(client *Client, baseURL string) *UpbitFeed {
	return &UpbitFeed{client: client, baseURL: baseURL}
}

func (f *UpbitFeed) Name() string { return "upbit" }

// FetchTickers 批量拉取 KRW 市场价格，返回 coin -> KRW 价格
func (f *UpbitFeed) FetchTickers(ctx context.Context, coins []string) (map[string]float64, error) {
	markets := make([]string, 0, len(coins))
	for _, coin := range coins {
		markets = append(markets, "KRW-"+strings.ToUpper(coin))
	}

	url := f.baseURL + "/v1/ticker?markets=" + strings.Join(markets, ",")
	result, err := f.client.GetJSON(ctx, f.Name(), url)
	if err != nil {
		return nil, err
	}
	if !result.IsArray() {
		return nil, fmt.Errorf("%w: expected ticker array", ErrInvalidShape)
	}

	prices := make(map[string]float64, len(coins))
	for _, r := range result.Array() {
		market := r.Get("market").String()
		price := r.Get("trade_price").Float()
		coin := strings.TrimPrefix(market, "KRW-")
		if coin == "" || price <= 0 {
			continue
		}
		prices[coin] = price
	}
	return prices, nil
}

// FetchOrderBook 拉取盘口，side 为 buy 时返回卖盘，sell 时返回买盘
func (f *UpbitFeed) FetchOrderBook(ctx context.Context, coin, side string) ([]routing.BookLevel, error) {
	url := f.baseURL + "/v1/orderbook?markets=KRW-" + strings.ToUpper(coin)
	result, err := f.client.GetJSON(ctx, f.Name(), url)
	if err != nil {
		return nil, err
	}
	if !result.IsArray() || len(result.Array()) == 0 {
		return nil, fmt.Errorf("%w: expected orderbook array", ErrInvalidShape)
	}

	units := result.Array()[0].Get("orderbook_units")
	if !units.IsArray() {
		return nil, fmt.Errorf("%w: missing orderbook_units", ErrInvalidShape)
	}

	priceField, sizeField := "ask_price", "ask_size"
	if side == "sell" {
		priceField, sizeField = "bid_price", "bid_size"
	}

	levels := make([]routing.BookLevel, 0, len(units.Array()))
	for _, u := range units.Array() {
		levels = append(levels, routing.BookLevel{
			Price:    u.Get(priceField).Float(),
			Quantity: u.Get(sizeField).Float(),
		})
	}
	return levels, nil
}

// WalletState 单个币种的钱包状态
type WalletState struct {
	Currency string
	State    string
}

// WithdrawSuspended 判断该状态下提币是否被暂停
// working / withdraw_only 可以提币，其余状态（paused, deposit_only, unsupported）不可
func (w WalletState) WithdrawSuspended() bool {
	switch w.State {
	case "working", "withdraw_only":
		return false
	default:
		return true
	}
}

// FetchWalletStatus 拉取全币种充提状态
func (f *UpbitFeed) FetchWalletStatus(ctx context.Context) ([]WalletState, error) {
	result, err := f.client.GetJSON(ctx, f.Name(), f.baseURL+"/v1/status/wallet")
	if err != nil {
		return nil, err
	}
	if !result.IsArray() {
		return nil, fmt.Errorf("%w: expected wallet status array", ErrInvalidShape)
	}

	states := make([]WalletState, 0, len(result.Array()))
	for _, r := range result.Array() {
		currency := r.Get("currency").String()
		state := r.Get("wallet_state").String()
		if currency == "" || state == "" {
			continue
		}
		states = append(states, WalletState{
			Currency: strings.ToUpper(currency),
			State:    state,
		})
	}
	return states, nil
}
