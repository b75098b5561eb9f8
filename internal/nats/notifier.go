package nats

import (
	"context"
	"math"
	"time"

	"github.com/crossfin/crossfin-route-engine/internal/pricing"
	"github.com/crossfin/crossfin-route-engine/internal/routing"
	"github.com/crossfin/crossfin-route-engine/pkg/logger"
)

// PremiumFunc 产出当前溢价表、全球价格来源与使用的汇率
type PremiumFunc func(ctx context.Context) ([]pricing.Premium, string, float64, error)

// Notifier 定期计算溢价并把越过阈值的信号发到 NATS
// 没有发布器时降级为只记日志
type Notifier struct {
	publisher    *Publisher
	subject      string
	thresholdPct float64
	interval     time.Duration
	tunables     routing.Tunables
	compute      PremiumFunc
}

func NewNotifier(publisher *Publisher, subject string, thresholdPct float64, interval time.Duration, tunables routing.Tunables, compute PremiumFunc) *Notifier {
	return &Notifier{
		publisher:    publisher,
		subject:      subject,
		thresholdPct: thresholdPct,
		interval:     interval,
		tunables:     tunables,
		compute:      compute,
	}
}

// Run 信号循环，ctx 取消后退出
func (n *Notifier) Run(ctx context.Context) {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("premium notifier stopped")
			return
		case <-ticker.C:
			n.PublishOnce(ctx)
		}
	}
}

// PublishOnce 计算一轮溢价并发布越过阈值的信号，返回发布数量
func (n *Notifier) PublishOnce(ctx context.Context) int {
	premiums, source, fxRate, err := n.compute(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("premium computation failed, skip signal round")
		return 0
	}

	published := 0
	for _, p := range premiums {
		if math.Abs(p.PremiumPct) < n.thresholdPct {
			// 表按 |溢价| 降序，后面的更小
			break
		}

		signal := n.buildSignal(p, source, fxRate)

		if n.publisher == nil || !n.publisher.IsConnected() {
			logger.Info().
				Str("coin", p.Coin).
				Str("exchange", p.Exchange).
				Float64("premium_pct", p.PremiumPct).
				Str("indicator", signal.Indicator).
				Msg("premium signal (nats absent, log only)")
			published++
			continue
		}

		if err := n.publisher.PublishPremiumSignal(n.subject, signal); err != nil {
			logger.Warn().Err(err).Str("coin", p.Coin).Msg("premium signal publish failed")
			continue
		}
		published++
	}

	if published > 0 {
		logger.Debug().Int("signals", published).Str("source", source).Msg("premium signal round done")
	}
	return published
}

// buildSignal 组装信号并定档
// 发布时拿不到路径滑点与转账时间，按零罚分定档
func (n *Notifier) buildSignal(p pricing.Premium, source string, fxRate float64) *PremiumSignal {
	decision := routing.ComputeAction(p.PremiumPct, 0, 0, 0, n.tunables)

	return &PremiumSignal{
		Exchange:   p.Exchange,
		Coin:       p.Coin,
		LocalPrice: p.LocalPrice,
		LocalUSD:   p.LocalUSD,
		GlobalUSD:  p.GlobalUSD,
		PremiumPct: p.PremiumPct,
		FxRate:     fxRate,
		Source:     source,
		Indicator:  decision.Indicator,
		Confidence: decision.Confidence,
		Reason:     decision.Reason,
		Timestamp:  time.Now().UnixMilli(),
	}
}
