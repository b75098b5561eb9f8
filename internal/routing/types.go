package routing

import "time"

// BookLevel 盘口单档，列表按最优价格在前排序
type BookLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// Strategy 路径排序策略
type Strategy string

const (
	StrategyCheapest Strategy = "cheapest"
	StrategyFastest  Strategy = "fastest"
	StrategyBalanced Strategy = "balanced"
)

// StepKind 路径步骤类型
type StepKind string

const (
	StepBuy      StepKind = "buy"
	StepSell     StepKind = "sell"
	StepTransfer StepKind = "transfer"
)

// Endpoint 交易所与计价货币
type Endpoint struct {
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
}

// Step 路径中的一步
type Step struct {
	Kind        StepKind `json:"kind"`
	From        Endpoint `json:"from"`
	To          Endpoint `json:"to"`
	FeePct      float64  `json:"feePct"`
	FeeAbsolute float64  `json:"feeAbsolute"`
	SlippagePct float64  `json:"slippagePct"`
	TimeMinutes float64  `json:"timeMinutes"`
	AmountIn    float64  `json:"amountIn"`
	AmountOut   float64  `json:"amountOut"`
}

// Route 一条候选路径，按请求构建，返回后不再修改
type Route struct {
	BridgeCoin       string  `json:"bridgeCoin"`
	Steps            []Step  `json:"steps"`
	TotalCostPct     float64 `json:"totalCostPct"`
	TotalTimeMinutes float64 `json:"totalTimeMinutes"`
	EstimatedInput   float64 `json:"estimatedInput"`
	EstimatedOutput  float64 `json:"estimatedOutput"`
	Action           string  `json:"action"`
	Confidence       float64 `json:"confidence"`
	Reason           string  `json:"reason"`
}

// Request 路径计算请求，Amount 以 From.Currency 计价
type Request struct {
	From     Endpoint `json:"from"`
	To       Endpoint `json:"to"`
	Amount   float64  `json:"amount"`
	Strategy Strategy `json:"strategy"`
}

// Meta 计算过程元信息，供调用方展示数据新鲜度与降级情况
type Meta struct {
	PriceSource   string            `json:"priceSource"`
	PriceAgeMs    int64             `json:"priceAgeMs"`
	Warnings      []string          `json:"warnings,omitempty"`
	Excluded      map[string]string `json:"excluded,omitempty"` // 被排除的桥接币 -> 原因
	CandidateSize int               `json:"candidateSize"`
}

// Response 路径计算结果
// 候选集为空时 Optimal 为 nil、Alternatives 为空数组，不视为错误
type Response struct {
	Request      Request   `json:"request"`
	Optimal      *Route    `json:"optimal"`
	Alternatives []Route   `json:"alternatives"`
	Meta         Meta      `json:"meta"`
	At           time.Time `json:"at"`
}
