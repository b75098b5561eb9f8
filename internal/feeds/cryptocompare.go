package feeds

import (
	"context"
	"fmt"
	"strings"
)

// CryptoCompareFeed 免密钥多币种聚合价格 API
// 全球价格信息源全部失效时的第二梯队
type CryptoCompareFeed struct {
	client  *Client
	baseURL string
}

func NewCryptoCompareFeed(client *Client, baseURL string) *CryptoCompareFeed {
	return &CryptoCompareFeed{client: client, baseURL: baseURL}
}

func (f *CryptoCompareFeed) Name() string { return "cryptocompare" }

// FetchPrices 单次请求拉取全部跟踪币种的 USDT 价格
func (f *CryptoCompareFeed) FetchPrices(ctx context.Context, coins []string) (map[string]float64, error) {
	url := fmt.Sprintf("%s/data/pricemulti?fsyms=%s&tsyms=USDT",
		f.baseURL, strings.Join(coins, ","))

	result, err := f.client.GetJSON(ctx, f.Name(), url)
	if err != nil {
		return nil, err
	}
	if !result.IsObject() {
		return nil, fmt.Errorf("%w: expected object body", ErrInvalidShape)
	}
	// 错误时返回 {"Response":"Error", ...}
	if result.Get("Response").String() == "Error" {
		return nil, fmt.Errorf("%w: %s", ErrUpstreamUnavailable, result.Get("Message").String())
	}

	prices := make(map[string]float64, len(coins))
	for _, coin := range coins {
		price := result.Get(coin + ".USDT").Float()
		if price > 0 {
			prices[strings.ToUpper(coin)+"USDT"] = price
		}
	}
	return prices, nil
}
