package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crossfin/crossfin-route-engine/pkg/goplus"
	"github.com/crossfin/crossfin-route-engine/pkg/logger"
)

// TickerRef 本地行情 WebSocket 工作器引用接口
type TickerRef interface {
	IsConnected() bool
	IsReconnecting() bool
}

// PublisherRef NATS发布器引用接口
type PublisherRef interface {
	IsConnected() bool
}

// PriceRef 价格服务引用接口，暴露最近一次聚合的来源与年龄
type PriceRef interface {
	LastSource() string
	LastAgeMs() int64
}

// HealthServer HTTP 健康检查和指标服务器
type HealthServer struct {
	addr         string
	ticker       TickerRef
	publisher    PublisherRef
	prices       PriceRef
	server       *http.Server
	mu           sync.RWMutex
	healthy      bool
	healthySince time.Time
	startTime    time.Time
}

// NewHealthServer 创建健康检查服务器
func NewHealthServer(addr string, ticker TickerRef, publisher PublisherRef, prices PriceRef) *HealthServer {
	return &HealthServer{
		addr:         addr,
		ticker:       ticker,
		publisher:    publisher,
		prices:       prices,
		healthy:      true,
		healthySince: time.Now(),
		startTime:    time.Now(),
	}
}

// Start 启动HTTP服务器
func (h *HealthServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", h.healthHandler)
	mux.HandleFunc("/health/ready", h.readyHandler)
	mux.HandleFunc("/health/live", h.liveHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status", h.statusHandler)

	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info().Str("addr", h.addr).Msg("health server starting")

	goplus.Go(func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("health server error")
		}
	})

	return nil
}

// Stop 停止服务器
func (h *HealthServer) Stop(ctx context.Context) error {
	h.mu.Lock()
	h.healthy = false
	h.mu.Unlock()

	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

func (h *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := h.getHealthStatus()
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}

// readyHandler 就绪以服务自身状态为准
// 上游行情或 NATS 断连走降级路径，不把进程判为未就绪
func (h *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	healthy := h.healthy
	h.mu.RUnlock()

	if !healthy {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *HealthServer) liveHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *HealthServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := h.getHealthStatus()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (h *HealthServer) getHealthStatus() HealthStatus {
	h.mu.RLock()
	healthy := h.healthy
	healthySince := h.healthySince
	h.mu.RUnlock()

	wsConnected := false
	wsReconnecting := false
	if h.ticker != nil {
		wsConnected = h.ticker.IsConnected()
		wsReconnecting = h.ticker.IsReconnecting()
	}

	natsConnected := false
	if h.publisher != nil {
		natsConnected = h.publisher.IsConnected()
	}

	priceSource := ""
	var priceAgeMs int64
	if h.prices != nil {
		priceSource = h.prices.LastSource()
		priceAgeMs = h.prices.LastAgeMs()
	}

	return HealthStatus{
		Healthy:      healthy,
		HealthySince: healthySince.Format(time.RFC3339),
		Uptime:       time.Since(h.startTime).String(),
		WebSocket: WebSocketStatus{
			Connected:    wsConnected,
			Reconnecting: wsReconnecting,
		},
		NATS: NATSStatus{
			Connected: natsConnected,
		},
		Prices: PriceStatus{
			Source: priceSource,
			AgeMs:  priceAgeMs,
		},
	}
}

// HealthStatus 健康状态结构
type HealthStatus struct {
	Healthy      bool            `json:"healthy"`
	HealthySince string          `json:"healthy_since"`
	Uptime       string          `json:"uptime"`
	WebSocket    WebSocketStatus `json:"websocket"`
	NATS         NATSStatus      `json:"nats"`
	Prices       PriceStatus     `json:"prices"`
}

// WebSocketStatus WebSocket连接状态
type WebSocketStatus struct {
	Connected    bool `json:"connected"`
	Reconnecting bool `json:"reconnecting"`
}

// NATSStatus NATS连接状态
type NATSStatus struct {
	Connected bool `json:"connected"`
}

// PriceStatus 最近一次价格聚合的来源与年龄
type PriceStatus struct {
	Source string `json:"source"`
	AgeMs  int64  `json:"age_ms"`
}
