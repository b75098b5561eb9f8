package feeds

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// OKXFeed OKX 现货行情
type OKXFeed struct {
	client  *Client
	baseURL string
}

func NewOKXFeed(client *Client, baseURL string) *OKXFeed {
	return &OKXFeed{client: client, baseURL: baseURL}
}

func (f *OKXFeed) Name() string { return "okx" }

// FetchPrices 批量拉取现货 ticker
// instId 形如 "BTC-USDT"，转换为 "BTCUSDT" 统一 symbol 格式
func (f *OKXFeed) FetchPrices(ctx context.Context, symbols map[string]bool) (map[string]float64, error) {
	result, err := f.client.GetJSON(ctx, f.Name(), f.baseURL+"/api/v5/market/tickers?instType=SPOT")
	if err != nil {
		return nil, err
	}
	if result.Get("code").String() != "0" {
		return nil, fmt.Errorf("%w: okx code %s", ErrUpstreamUnavailable, result.Get("code").String())
	}
	data := result.Get("data")
	if !data.IsArray() {
		return nil, fmt.Errorf("%w: missing data array", ErrInvalidShape)
	}

	prices := make(map[string]float64, len(symbols))
	for _, r := range data.Array() {
		sym := strings.ReplaceAll(r.Get("instId").String(), "-", "")
		if sym == "" || !symbols[sym] {
			continue
		}
		price := cast.ToFloat64(r.Get("last").String())
		if price > 0 {
			prices[sym] = price
		}
	}
	return prices, nil
}
