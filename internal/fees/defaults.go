package fees

// 内置费用表，仅用于首次启动时播种数据库
// 运行期读取一律走数据库，这里的数值不参与热路径

// defaultTradingFeePct 各交易所现货吃单费率（百分比）
var defaultTradingFeePct = map[string]float64{
	"binance": 0.1,
	"okx":     0.1,
	"bybit":   0.1,
	"upbit":   0.05,
	"bithumb": 0.25,
}

// defaultWithdrawalFee 各交易所提币费用（币本位）
var defaultWithdrawalFee = map[string]map[string]float64{
	"binance": {
		"BTC":  0.0002,
		"ETH":  0.0001,
		"XRP":  0.2,
		"SOL":  0.001,
		"TRX":  1,
		"ADA":  0.8,
		"DOGE": 4,
		"DOT":  0.08,
		"AVAX": 0.008,
		"LINK": 0.15,
		"USDT": 1,
	},
	"okx": {
		"BTC":  0.0002,
		"ETH":  0.00008,
		"XRP":  0.1,
		"SOL":  0.008,
		"TRX":  1,
		"ADA":  0.8,
		"DOGE": 4,
		"DOT":  0.08,
		"AVAX": 0.008,
		"LINK": 0.1,
		"USDT": 1,
	},
	"bybit": {
		"BTC":  0.0002,
		"ETH":  0.00012,
		"XRP":  0.2,
		"SOL":  0.008,
		"TRX":  1,
		"ADA":  0.8,
		"DOGE": 5,
		"DOT":  0.1,
		"AVAX": 0.01,
		"LINK": 0.15,
		"USDT": 1,
	},
	"upbit": {
		"BTC":  0.0009,
		"ETH":  0.01,
		"XRP":  1,
		"SOL":  0.01,
		"TRX":  1,
		"ADA":  0.5,
		"DOGE": 5,
		"DOT":  0.1,
		"AVAX": 0.01,
		"LINK": 0.55,
		"USDT": 6,
	},
	"bithumb": {
		"BTC":  0.001,
		"ETH":  0.01,
		"XRP":  1,
		"SOL":  0.01,
		"TRX":  1,
		"ADA":  0.5,
		"DOGE": 5,
		"DOT":  0.11,
		"AVAX": 0.01,
		"LINK": 0.6,
		"USDT": 6,
	},
}
