package feeds

import (
	"context"
	"fmt"

	"github.com/spf13/cast"
)

// BybitFeed Bybit 现货行情
type BybitFeed struct {
	client  *Client
	baseURL string
}

func NewBybitFeed(client *Client, baseURL string) *BybitFeed {
	return &BybitFeed{client: client, baseURL: baseURL}
}

func (f *BybitFeed) Name() string { return "bybit" }

// FetchPrices 批量拉取现货 ticker
func (f *BybitFeed) FetchPrices(ctx context.Context, symbols map[string]bool) (map[string]float64, error) {
	result, err := f.client.GetJSON(ctx, f.Name(), f.baseURL+"/v5/market/tickers?category=spot")
	if err != nil {
		return nil, err
	}
	if result.Get("retCode").Int() != 0 {
		return nil, fmt.Errorf("%w: bybit retCode %d", ErrUpstreamUnavailable, result.Get("retCode").Int())
	}
	list := result.Get("result.list")
	if !list.IsArray() {
		return nil, fmt.Errorf("%w: missing result.list", ErrInvalidShape)
	}

	prices := make(map[string]float64, len(symbols))
	for _, r := range list.Array() {
		sym := r.Get("symbol").String()
		if sym == "" || !symbols[sym] {
			continue
		}
		price := cast.ToFloat64(r.Get("lastPrice").String())
		if price > 0 {
			prices[sym] = price
		}
	}
	return prices, nil
}
