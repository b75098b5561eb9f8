package feeds

import (
	"context"
	"fmt"
	"strings"
)

// coinGeckoIDs 跟踪币种到 CoinGecko coin id 的静态映射
var coinGeckoIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"XRP":  "ripple",
	"SOL":  "solana",
	"TRX":  "tron",
	"ADA":  "cardano",
	"DOGE": "dogecoin",
	"DOT":  "polkadot",
	"AVAX": "avalanche-2",
	"LINK": "chainlink",
	"USDT": "tether",
}

// CoinGeckoFeed 按 coin id 查询的聚合价格 API，第三梯队
type CoinGeckoFeed struct {
	client  *Client
	baseURL string
}

func NewCoinGeckoFeed(client *Client, baseURL string) *CoinGeckoFeed {
	return &CoinGeckoFeed{client: client, baseURL: baseURL}
}

func (f *CoinGeckoFeed) Name() string { return "coingecko" }

// FetchPrices 按静态 id 映射拉取 USD 价格
// 映射表中没有的币种跳过，不视为错误
func (f *CoinGeckoFeed) FetchPrices(ctx context.Context, coins []string) (map[string]float64, error) {
	ids := make([]string, 0, len(coins))
	idToCoin := make(map[string]string, len(coins))
	for _, coin := range coins {
		coin = strings.ToUpper(coin)
		if id, ok := coinGeckoIDs[coin]; ok {
			ids = append(ids, id)
			idToCoin[id] = coin
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no mapped coin ids", ErrInvalidShape)
	}

	url := fmt.Sprintf("%s/api/v3/simple/price?ids=%s&vs_currencies=usd",
		f.baseURL, strings.Join(ids, ","))

	result, err := f.client.GetJSON(ctx, f.Name(), url)
	if err != nil {
		return nil, err
	}
	if !result.IsObject() {
		return nil, fmt.Errorf("%w: expected object body", ErrInvalidShape)
	}

	prices := make(map[string]float64, len(ids))
	for id, coin := range idToCoin {
		price := result.Get(id + ".usd").Float()
		if price > 0 {
			prices[coin+"USDT"] = price
		}
	}
	return prices, nil
}
