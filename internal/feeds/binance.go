package feeds

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/crossfin/crossfin-route-engine/internal/routing"
)

// BinanceFeed 币安现货行情
type BinanceFeed struct {
	client  *Client
	baseURL string
	mirrors []string
}

func NewBinanceFeed(client *Client, baseURL string, mirrors []string) *BinanceFeed {
	return &BinanceFeed{client: client, baseURL: baseURL, mirrors: mirrors}
}

// Name 信息源名称
func (f *BinanceFeed) Name() string { return "binance" }

// FetchPrices 批量拉取全部现货价格，过滤出跟踪的 USDT 交易对
func (f *BinanceFeed) FetchPrices(ctx context.Context, symbols map[string]bool) (map[string]float64, error) {
	result, err := f.client.GetJSON(ctx, f.Name(), f.baseURL+"/api/v3/ticker/price")
	if err != nil {
		return nil, err
	}
	if !result.IsArray() {
		return nil, fmt.Errorf("%w: expected ticker array", ErrInvalidShape)
	}

	prices := make(map[string]float64, len(symbols))
	for _, r := range result.Array() {
		sym := r.Get("symbol").String()
		if sym == "" || !symbols[sym] {
			continue
		}
		price := cast.ToFloat64(r.Get("price").String())
		if price > 0 {
			prices[sym] = price
		}
	}
	return prices, nil
}

// FetchSymbolPrice 拉取单个交易对价格，依次尝试主地址和镜像
// 补缺阶段使用
func (f *BinanceFeed) FetchSymbolPrice(ctx context.Context, symbol string) (float64, error) {
	bases := append([]string{f.baseURL}, f.mirrors...)
	path := "/api/v3/ticker/price?symbol=" + strings.ToUpper(symbol)

	result, err := f.client.GetJSONMirrors(ctx, f.Name(), bases, path)
	if err != nil {
		return 0, err
	}

	priceField := result.Get("price")
	if !priceField.Exists() {
		return 0, fmt.Errorf("%w: missing price field", ErrInvalidShape)
	}
	price := cast.ToFloat64(priceField.String())
	if price <= 0 {
		return 0, fmt.Errorf("%w: non-positive price %q", ErrInvalidShape, priceField.String())
	}
	return price, nil
}

// FetchOrderBook 拉取深度，side 为 buy 时返回卖盘（asks），sell 时返回买盘（bids）
// 返回按最优价格在前排序的档位
func (f *BinanceFeed) FetchOrderBook(ctx context.Context, symbol, side string) ([]routing.BookLevel, error) {
	url := fmt.Sprintf("%s/api/v3/depth?symbol=%s&limit=50", f.baseURL, strings.ToUpper(symbol))
	result, err := f.client.GetJSON(ctx, f.Name(), url)
	if err != nil {
		return nil, err
	}

	field := "asks"
	if side == "sell" {
		field = "bids"
	}
	rows := result.Get(field)
	if !rows.IsArray() {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidShape, field)
	}

	levels := make([]routing.BookLevel, 0, len(rows.Array()))
	for _, row := range rows.Array() {
		arr := row.Array()
		if len(arr) < 2 {
			continue
		}
		levels = append(levels, routing.BookLevel{
			Price:    cast.ToFloat64(arr[0].String()),
			Quantity: cast.ToFloat64(arr[1].String()),
		})
	}
	return levels, nil
}
