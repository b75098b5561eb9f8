package routing

import "fmt"

// 价差信号指标
const (
	IndicatorPositiveSpread = "POSITIVE_SPREAD"
	IndicatorNeutral        = "NEUTRAL"
	IndicatorNegativeSpread = "NEGATIVE_SPREAD"
)

// 路径执行动作
const (
	ActionExecute = "EXECUTE"
	ActionWait    = "WAIT"
	ActionSkip    = "SKIP"
)

// Decision 动作分类结果
type Decision struct {
	Indicator  string  `json:"indicator"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	Caveat     string  `json:"caveat"`
}

// Tunables 分类器阈值与系数
// 经验调参值，作为配置而非推导结果；文档化的是各分支的边界与单调性
type Tunables struct {
	SpreadUpperThreshold float64
	SpreadLowerThreshold float64
	SlippagePenalty      float64
	TimeVolPenalty       float64

	RouteExecuteMaxCostPct float64
	RouteSkipMinCostPct    float64

	BalancedCostWeight float64
	BalancedTimeWeight float64

	FxSpreadPct float64
}

// DefaultTunables 默认阈值
func DefaultTunables() Tunables {
	return Tunables{
		SpreadUpperThreshold:   1.2,
		SpreadLowerThreshold:   -0.5,
		SlippagePenalty:        0.35,
		TimeVolPenalty:         0.02,
		RouteExecuteMaxCostPct: 1.0,
		RouteSkipMinCostPct:    2.5,
		BalancedCostWeight:     0.7,
		BalancedTimeWeight:     0.3,
		FxSpreadPct:            0.1,
	}
}

const spreadCaveat = "estimates only; prices, fees and liquidity can move before execution"

// ComputeAction 将价差分数转为信号
//
// 调整分 = score - 滑点罚分 - 转账时间×波动率罚分。
// POSITIVE/NEGATIVE 分支信号强度限制在 [0.1, 0.95]，NEUTRAL 限制在 [0.5, 0.81)。
// 滑点或转账时间增加只会降低指标档位，不会提升。
func ComputeAction(score, slippagePct, transferTimeMinutes, volatility float64, t Tunables) Decision {
	adjusted := score - slippagePct*t.SlippagePenalty - transferTimeMinutes*volatility*t.TimeVolPenalty

	switch {
	case adjusted > t.SpreadUpperThreshold:
		return Decision{
			Indicator:  IndicatorPositiveSpread,
			Confidence: clamp(0.5+(adjusted-t.SpreadUpperThreshold)*0.1, 0.1, 0.95),
			Reason:     fmt.Sprintf("adjusted spread %.2f%% above threshold %.2f%%", adjusted, t.SpreadUpperThreshold),
			Caveat:     spreadCaveat,
		}
	case adjusted < t.SpreadLowerThreshold:
		return Decision{
			Indicator:  IndicatorNegativeSpread,
			Confidence: clamp(0.5+(t.SpreadLowerThreshold-adjusted)*0.1, 0.1, 0.95),
			Reason:     fmt.Sprintf("adjusted spread %.2f%% below threshold %.2f%%", adjusted, t.SpreadLowerThreshold),
			Caveat:     spreadCaveat,
		}
	default:
		span := t.SpreadUpperThreshold - t.SpreadLowerThreshold
		pos := 0.5
		if span > 0 {
			pos = (adjusted - t.SpreadLowerThreshold) / span
		}
		return Decision{
			Indicator:  IndicatorNeutral,
			Confidence: clamp(0.5+pos*0.3, 0.5, 0.80),
			Reason:     fmt.Sprintf("adjusted spread %.2f%% within neutral band", adjusted),
			Caveat:     spreadCaveat,
		}
	}
}

// ComputeRouteAction 将路径总成本转为执行动作
//
// 有效成本 = 总成本 + 滑点与时间的附加罚分，滑点或时间增加不会提升动作档位。
// EXECUTE 分支置信度 ≥ 0.58，SKIP 分支 ≥ 0.62 且不超过 0.97。
// caveat 必须提及滑点：滑点是模型中不确定性最大的输入。
func ComputeRouteAction(totalCostPct, slippagePct, totalTimeMinutes float64, t Tunables) Decision {
	effective := totalCostPct + slippagePct*0.25 + totalTimeMinutes*0.005

	const routeCaveat = "slippage is the least certain input; realized cost may differ from this estimate"

	switch {
	case effective <= t.RouteExecuteMaxCostPct:
		return Decision{
			Indicator:  ActionExecute,
			Confidence: clamp(0.58+(t.RouteExecuteMaxCostPct-effective)*0.12, 0.58, 0.95),
			Reason:     fmt.Sprintf("effective cost %.2f%% within execute threshold %.2f%%", effective, t.RouteExecuteMaxCostPct),
			Caveat:     routeCaveat,
		}
	case effective >= t.RouteSkipMinCostPct:
		return Decision{
			Indicator:  ActionSkip,
			Confidence: clamp(0.62+(effective-t.RouteSkipMinCostPct)*0.1, 0.62, 0.97),
			Reason:     fmt.Sprintf("effective cost %.2f%% above skip threshold %.2f%%", effective, t.RouteSkipMinCostPct),
			Caveat:     routeCaveat,
		}
	default:
		span := t.RouteSkipMinCostPct - t.RouteExecuteMaxCostPct
		pos := 0.5
		if span > 0 {
			pos = (t.RouteSkipMinCostPct - effective) / span
		}
		return Decision{
			Indicator:  ActionWait,
			Confidence: clamp(0.5+pos*0.3, 0.5, 0.80),
			Reason:     fmt.Sprintf("effective cost %.2f%% between thresholds", effective),
			Caveat:     routeCaveat,
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
