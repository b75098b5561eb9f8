package feeds

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
)

// BithumbFeed Bithumb KRW 市场行情
type BithumbFeed struct {
	client  *Client
	baseURL string
}

func NewBithumbFeed(client *Client, baseURL string) *BithumbFeed {
	return &BithumbFeed{client: client, baseURL: baseURL}
}

func (f *BithumbFeed) Name() string { return "bithumb" }

// FetchTickers 拉取全市场 ticker，返回 coin -> KRW 价格
func (f *BithumbFeed) FetchTickers(ctx context.Context, coins []string) (map[string]float64, error) {
	result, err := f.client.GetJSON(ctx, f.Name(), f.baseURL+"/public/ticker/ALL_KRW")
	if err != nil {
		return nil, err
	}
	if result.Get("status").String() != "0000" {
		return nil, fmt.Errorf("%w: bithumb status %s", ErrUpstreamUnavailable, result.Get("status").String())
	}
	data := result.Get("data")
	if !data.IsObject() {
		return nil, fmt.Errorf("%w: missing data object", ErrInvalidShape)
	}

	wanted := make(map[string]bool, len(coins))
	for _, coin := range coins {
		wanted[strings.ToUpper(coin)] = true
	}

	prices := make(map[string]float64, len(coins))
	data.ForEach(func(key, value gjson.Result) bool {
		coin := strings.ToUpper(key.String())
		if !wanted[coin] {
			return true // data 对象中混有 "date" 等非币种键
		}
		price := cast.ToFloat64(value.Get("closing_price").String())
		if price > 0 {
			prices[coin] = price
		}
		return true
	})
	return prices, nil
}
