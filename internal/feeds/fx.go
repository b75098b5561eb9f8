package feeds

import (
	"context"
	"fmt"
)

// FxFeed 法币对美元汇率
type FxFeed struct {
	client  *Client
	baseURL string
}

func NewFxFeed(client *Client, baseURL string) *FxFeed {
	return &FxFeed{client: client, baseURL: baseURL}
}

func (f *FxFeed) Name() string { return "fx" }

// FetchRates 拉取 USD 基准汇率，返回 ISO 货币代码 -> 每美元数量
func (f *FxFeed) FetchRates(ctx context.Context, currencies []string) (map[string]float64, error) {
	result, err := f.client.GetJSON(ctx, f.Name(), f.baseURL+"/v6/latest/USD")
	if err != nil {
		return nil, err
	}
	if result.Get("result").String() != "success" {
		return nil, fmt.Errorf("%w: fx result %s", ErrUpstreamUnavailable, result.Get("result").String())
	}
	rates := result.Get("rates")
	if !rates.IsObject() {
		return nil, fmt.Errorf("%w: missing rates object", ErrInvalidShape)
	}

	out := make(map[string]float64, len(currencies))
	for _, code := range currencies {
		rate := rates.Get(code).Float()
		if rate > 0 {
			out[code] = rate
		}
	}
	return out, nil
}
