package pricing

import (
	"math"
	"sort"
	"strings"
)

// Premium 单币种的本地对全球价差
type Premium struct {
	Coin       string  `json:"coin"`
	Exchange   string  `json:"exchange"`
	LocalPrice float64 `json:"localPrice"`
	LocalUSD   float64 `json:"localUsd"`
	GlobalUSD  float64 `json:"globalUsd"`
	PremiumPct float64 `json:"premiumPct"`
}

// CalcPremiums 计算各跟踪币种的本地溢价
//
// localUsd = 本地价 / 汇率，premiumPct = (localUsd - globalUsd) / globalUsd * 100。
// 任一输入非正或非有限的币种跳过，结果按 |premiumPct| 降序排列。
func CalcPremiums(exchange string, coins []string, local map[string]float64, global PriceSet, fxRate float64) []Premium {
	if fxRate <= 0 || math.IsInf(fxRate, 0) || math.IsNaN(fxRate) {
		return nil
	}

	premiums := make([]Premium, 0, len(coins))
	for _, coin := range coins {
		coin = strings.ToUpper(coin)

		localPrice, ok := local[coin]
		if !ok || localPrice <= 0 || math.IsInf(localPrice, 0) || math.IsNaN(localPrice) {
			continue
		}
		globalUSD, ok := global[Symbol(coin)]
		if !ok || globalUSD <= 0 || math.IsInf(globalUSD, 0) || math.IsNaN(globalUSD) {
			continue
		}

		localUSD := localPrice / fxRate
		pct := (localUSD - globalUSD) / globalUSD * 100
		if math.IsInf(pct, 0) || math.IsNaN(pct) {
			continue
		}

		premiums = append(premiums, Premium{
			Coin:       coin,
			Exchange:   exchange,
			LocalPrice: localPrice,
			LocalUSD:   localUSD,
			GlobalUSD:  globalUSD,
			PremiumPct: pct,
		})
	}

	sort.SliceStable(premiums, func(i, j int) bool {
		return math.Abs(premiums[i].PremiumPct) > math.Abs(premiums[j].PremiumPct)
	})
	return premiums
}
