package routing

import "math"

// unknownLiquiditySlippagePct 盘口数量全部无效时的高滑点哨兵
// 返回 0 会误导调用方认为流动性充足
const unknownLiquiditySlippagePct = 2.0

// EstimateSlippage 估算吃掉 tradeAmountQuote（计价货币）深度的滑点百分比
//
// 从最优档开始逐档累计成交量，成交均价相对最优价的偏离即滑点。
// 深度不足时按已成交部分计算；价格或数量非法的档位跳过。
func EstimateSlippage(levels []BookLevel, tradeAmountQuote float64) float64 {
	if len(levels) == 0 || tradeAmountQuote <= 0 {
		return 0
	}
	if levels[0].Price == 0 {
		return 0
	}

	bestPrice := 0.0
	for _, lv := range levels {
		if validPrice(lv.Price) {
			bestPrice = lv.Price
			break
		}
	}
	if bestPrice == 0 {
		return 0
	}

	var filledQty, filledNotional float64
	remaining := tradeAmountQuote

	for _, lv := range levels {
		if !validPrice(lv.Price) || !validQty(lv.Quantity) {
			continue
		}
		capacity := lv.Price * lv.Quantity
		take := capacity
		if take > remaining {
			take = remaining
		}
		filledNotional += take
		filledQty += take / lv.Price
		remaining -= take
		if remaining <= 0 {
			break
		}
	}

	if filledQty == 0 {
		return unknownLiquiditySlippagePct
	}

	// 买盘方向均价低于最优价，取绝对偏离使两个方向一致
	avgFillPrice := filledNotional / filledQty
	return math.Abs(avgFillPrice-bestPrice) / bestPrice * 100
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}

func validQty(q float64) bool {
	return q > 0 && !math.IsInf(q, 0) && !math.IsNaN(q)
}
