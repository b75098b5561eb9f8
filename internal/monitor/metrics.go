package monitor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 指标收集器
type Metrics struct {
	upstreamErrors     *prometheus.CounterVec
	upstreamLatency    *prometheus.HistogramVec
	cacheHitTotal      *prometheus.CounterVec
	cacheMissTotal     *prometheus.CounterVec
	fallbackTierTotal  *prometheus.CounterVec
	gapFillTotal       *prometheus.CounterVec
	fxFallbackTotal    prometheus.Counter
	priceAgeSeconds    *prometheus.GaugeVec
	routeComputeSecs   prometheus.Histogram
	routeCandidateSize prometheus.Histogram
	signalsPublished   *prometheus.CounterVec
	signalErrors       *prometheus.CounterVec
	snapshotRowsWrote  prometheus.Counter
	snapshotRowsPruned prometheus.Counter
	websocketConnected prometheus.Gauge
	natsConnected      prometheus.Gauge
}

// NewMetrics 创建指标收集器
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		upstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_errors_total",
				Help:      "Total number of upstream feed errors",
			},
			[]string{"feed", "kind"}, // kind: network, status, read, shape
		),
		upstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_latency_seconds",
				Help:      "上游行情请求耗时分布（秒）",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"feed"},
		),
		cacheHitTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hit_total",
				Help:      "缓存命中总数（按缓存名）",
			},
			[]string{"cache"},
		),
		cacheMissTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_miss_total",
				Help:      "缓存未命中总数（按缓存名）",
			},
			[]string{"cache"},
		),
		fallbackTierTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "price_fallback_tier_total",
				Help:      "全球价格各回退层级命中总数",
			},
			[]string{"tier"}, // realtime, cryptocompare, coingecko, snapshot, none
		),
		gapFillTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "price_gap_fill_total",
				Help:      "缺口补价任务总数",
			},
			[]string{"status"}, // filled, miss, skipped
		),
		fxFallbackTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fx_fallback_total",
				Help:      "汇率回退到旧值或兜底值的总数",
			},
		),
		priceAgeSeconds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "price_age_seconds",
				Help:      "最近一次价格数据的年龄（秒）",
			},
			[]string{"source"},
		),
		routeComputeSecs: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "route_compute_duration_seconds",
				Help:      "路径计算耗时分布（秒）",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
			},
		),
		routeCandidateSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "route_candidate_size",
				Help:      "每次计算产生的候选路径数量分布",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
			},
		),
		signalsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_published_total",
				Help:      "Total number of premium signals published to NATS",
			},
			[]string{"exchange", "coin"},
		),
		signalErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signal_errors_total",
				Help:      "Total number of signal publish errors",
			},
			[]string{"type"},
		),
		snapshotRowsWrote: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_rows_written_total",
				Help:      "写入的价格快照行总数",
			},
		),
		snapshotRowsPruned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_rows_pruned_total",
				Help:      "清理掉的价格快照行总数",
			},
		),
		websocketConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_connected",
				Help:      "WebSocket connection status (1=connected, 0=disconnected)",
			},
		),
		natsConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "nats_connected",
				Help:      "NATS connection status (1=connected, 0=disconnected)",
			},
		),
	}

	prometheus.MustRegister(
		m.upstreamErrors,
		m.upstreamLatency,
		m.cacheHitTotal,
		m.cacheMissTotal,
		m.fallbackTierTotal,
		m.gapFillTotal,
		m.fxFallbackTotal,
		m.priceAgeSeconds,
		m.routeComputeSecs,
		m.routeCandidateSize,
		m.signalsPublished,
		m.signalErrors,
		m.snapshotRowsWrote,
		m.snapshotRowsPruned,
		m.websocketConnected,
		m.natsConnected,
	)

	return m
}

// IncUpstreamError 增加上游错误计数
func (m *Metrics) IncUpstreamError(feed, kind string) {
	m.upstreamErrors.WithLabelValues(feed, kind).Inc()
}

// ObserveUpstreamLatency 观察上游请求耗时
func (m *Metrics) ObserveUpstreamLatency(feed string, seconds float64) {
	m.upstreamLatency.WithLabelValues(feed).Observe(seconds)
}

// IncCacheHit 增加缓存命中计数
func (m *Metrics) IncCacheHit(cache string) {
	m.cacheHitTotal.WithLabelValues(cache).Inc()
}

// IncCacheMiss 增加缓存未命中计数
func (m *Metrics) IncCacheMiss(cache string) {
	m.cacheMissTotal.WithLabelValues(cache).Inc()
}

// IncFallbackTier 增加回退层级命中计数
func (m *Metrics) IncFallbackTier(tier string) {
	m.fallbackTierTotal.WithLabelValues(tier).Inc()
}

// IncGapFill 增加缺口补价计数
func (m *Metrics) IncGapFill(status string) {
	m.gapFillTotal.WithLabelValues(status).Inc()
}

// IncFxFallback 增加汇率回退计数
func (m *Metrics) IncFxFallback() {
	m.fxFallbackTotal.Inc()
}

// SetPriceAge 设置价格数据年龄
func (m *Metrics) SetPriceAge(source string, seconds float64) {
	m.priceAgeSeconds.WithLabelValues(source).Set(seconds)
}

// ObserveRouteComputation 观察一次路径计算
func (m *Metrics) ObserveRouteComputation(seconds float64, candidates int) {
	m.routeComputeSecs.Observe(seconds)
	m.routeCandidateSize.Observe(float64(candidates))
}

// IncSignalsPublished 增加发布的信号计数
func (m *Metrics) IncSignalsPublished(exchange, coin string) {
	m.signalsPublished.WithLabelValues(exchange, coin).Inc()
}

// IncSignalErrors 增加信号错误计数
func (m *Metrics) IncSignalErrors(errType string) {
	m.signalErrors.WithLabelValues(errType).Inc()
}

// AddSnapshotRowsWritten 增加快照写入行数
func (m *Metrics) AddSnapshotRowsWritten(n int) {
	m.snapshotRowsWrote.Add(float64(n))
}

// AddSnapshotRowsPruned 增加快照清理行数
func (m *Metrics) AddSnapshotRowsPruned(n int64) {
	m.snapshotRowsPruned.Add(float64(n))
}

// SetWebSocketConnected 设置WebSocket连接状态
func (m *Metrics) SetWebSocketConnected(connected bool) {
	if connected {
		m.websocketConnected.Set(1)
	} else {
		m.websocketConnected.Set(0)
	}
}

// SetNATSConnected 设置NATS连接状态
func (m *Metrics) SetNATSConnected(connected bool) {
	if connected {
		m.natsConnected.Set(1)
	} else {
		m.natsConnected.Set(0)
	}
}

var globalMetrics *Metrics
var metricsOnce sync.Once

// GetMetrics 获取全局指标收集器
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = NewMetrics("route_engine")
	})
	return globalMetrics
}

// InitMetrics 初始化指标收集器（供main使用）
func InitMetrics() {
	GetMetrics()
}
