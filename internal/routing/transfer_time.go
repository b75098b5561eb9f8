package routing

import "strings"

// defaultTransferMinutes 未知币种的链上转账预期时间
const defaultTransferMinutes = 10

// transferMinutes 各币种链上转账的经验预期时间（分钟）
var transferMinutes = map[string]float64{
	"BTC":  28,
	"ETH":  6,
	"XRP":  0.5,
	"SOL":  1,
	"TRX":  3,
	"ADA":  8,
	"DOGE": 20,
	"DOT":  5,
	"AVAX": 1,
	"LINK": 6,
	"USDT": 5,
}

// TransferMinutes 返回币种的预期转账时间，大小写不敏感，未知币种返回默认值
func TransferMinutes(coin string) float64 {
	if minutes, ok := transferMinutes[strings.ToUpper(coin)]; ok {
		return minutes
	}
	return defaultTransferMinutes
}
