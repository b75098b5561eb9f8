package pricing

import (
	"fmt"
	"math"
	"strings"
)

// referenceSymbol 参考交易对，PriceSet 有效性以它为锚
const referenceSymbol = "BTCUSDT"

// btcSanityFloorUSD 参考价下限，低于它视为上游返回了垃圾数据
const btcSanityFloorUSD = 1000

// PriceSet 交易对 -> USD 等值价格
type PriceSet map[string]float64

// Valid 参考币价格必须超过下限，空集无效
func (p PriceSet) Valid() bool {
	return p[referenceSymbol] > btcSanityFloorUSD
}

// CheckValid Valid 的错误形式，带上被拒绝的参考价
func (p PriceSet) CheckValid() error {
	if !p.Valid() {
		return fmt.Errorf("%w: %s=%v not above %d", ErrSanityCheck, referenceSymbol, p[referenceSymbol], btcSanityFloorUSD)
	}
	return nil
}

// Sanitize 删除非正或非有限的条目，返回自身便于链式调用
func (p PriceSet) Sanitize() PriceSet {
	for sym, price := range p {
		if price <= 0 || math.IsInf(price, 0) || math.IsNaN(price) {
			delete(p, sym)
		}
	}
	return p
}

// Clone 深拷贝
func (p PriceSet) Clone() PriceSet {
	out := make(PriceSet, len(p))
	for sym, price := range p {
		out[sym] = price
	}
	return out
}

// MergeMissing 只合入自身没有的交易对，先到者优先
func (p PriceSet) MergeMissing(other PriceSet) {
	for sym, price := range other {
		if _, ok := p[sym]; !ok && price > 0 {
			p[sym] = price
		}
	}
}

// Missing 返回 symbols 中缺失的交易对
func (p PriceSet) Missing(symbols []string) []string {
	var missing []string
	for _, sym := range symbols {
		if _, ok := p[sym]; !ok {
			missing = append(missing, sym)
		}
	}
	return missing
}

// Symbol 币种转交易对符号
func Symbol(coin string) string {
	return strings.ToUpper(coin) + "USDT"
}

// Symbols 币种列表转交易对符号列表
func Symbols(coins []string) []string {
	out := make([]string, 0, len(coins))
	for _, coin := range coins {
		out = append(out, Symbol(coin))
	}
	return out
}
