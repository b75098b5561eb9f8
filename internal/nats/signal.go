package nats

import (
	"encoding/json"

	"github.com/crossfin/crossfin-route-engine/pkg/logger"
)

// PremiumSignal 本地溢价信号消息
type PremiumSignal struct {
	Exchange   string  `json:"exchange"`    // 本地交易所
	Coin       string  `json:"coin"`        // 币种
	LocalPrice float64 `json:"local_price"` // 本币价格
	LocalUSD   float64 `json:"local_usd"`   // 折算 USD 价格
	GlobalUSD  float64 `json:"global_usd"`  // 全球 USD 价格
	PremiumPct float64 `json:"premium_pct"` // 溢价百分比
	FxRate     float64 `json:"fx_rate"`     // 使用的汇率（每美元）
	Source     string  `json:"source"`      // 全球价格来源
	Indicator  string  `json:"indicator"`   // 价差信号档位
	Confidence float64 `json:"confidence"`  // 信号强度
	Reason     string  `json:"reason"`      // 档位判定依据
	Timestamp  int64   `json:"timestamp"`   // 时间戳(毫秒)
}

// Marshal 序列化信号
func (s *PremiumSignal) Marshal() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		logger.Error().Err(err).Msg("marshal premium signal failed")
		return nil, err
	}
	return data, nil
}
