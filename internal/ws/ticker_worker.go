package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/crossfin/crossfin-route-engine/internal/cache"
	"github.com/crossfin/crossfin-route-engine/internal/monitor"
	"github.com/crossfin/crossfin-route-engine/pkg/goplus"
	"github.com/crossfin/crossfin-route-engine/pkg/logger"
)

const (
	writeWait      = 10 * time.Second // 写入超时
	pongWait       = 60 * time.Second // 读取超时（应大于心跳间隔）
	pingPeriod     = 50 * time.Second // 心跳间隔
	maxMessageSize = 1024 * 1024 * 2  // 最大消息限制 2MB

	reconnectBase = time.Second
	reconnectMax  = time.Minute
)

// TickerWorker Upbit 行情 WebSocket 工作器
// 把实时成交价写进本地价格缓存，HTTP 轮询之间的溢价计算因此不吃旧数据
type TickerWorker struct {
	url    string
	coins  []string
	prices *cache.LocalPriceCache

	mu           sync.RWMutex
	conn         *websocket.Conn
	reconnecting bool

	done      chan struct{}
	closeOnce sync.Once
}

func NewTickerWorker(url string, coins []string, prices *cache.LocalPriceCache) *TickerWorker {
	if url == "" {
		panic("ws: URL cannot be empty")
	}
	return &TickerWorker{
		url:    url,
		coins:  coins,
		prices: prices,
		done:   make(chan struct{}),
	}
}

// Start 启动连接循环，断线指数退避重连
func (w *TickerWorker) Start(ctx context.Context) {
	goplus.Go(func() {
		backoff := reconnectBase
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.done:
				return
			default:
			}

			if err := w.connectAndRun(ctx); err != nil {
				logger.Warn().Err(err).Dur("backoff", backoff).Msg("upbit ws disconnected, will reconnect")
			}

			w.setReconnecting(true)
			select {
			case <-ctx.Done():
				return
			case <-w.done:
				return
			case <-time.After(backoff):
			}

			backoff *= 2
			if backoff > reconnectMax {
				backoff = reconnectMax
			}
			// 成功连接后 connectAndRun 内部会重置退避
			if w.IsConnected() {
				backoff = reconnectBase
			}
		}
	})
}

// Stop 停止工作器
func (w *TickerWorker) Stop() {
	w.closeOnce.Do(func() {
		close(w.done)
		w.closeConn()
	})
}

// IsConnected 检查是否已连接
func (w *TickerWorker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.conn != nil
}

// IsReconnecting 检查是否处于重连等待
func (w *TickerWorker) IsReconnecting() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.reconnecting
}

func (w *TickerWorker) setReconnecting(v bool) {
	w.mu.Lock()
	w.reconnecting = v
	w.mu.Unlock()
	monitor.GetMetrics().SetWebSocketConnected(!v && w.IsConnected())
}

func (w *TickerWorker) closeConn() {
	w.mu.Lock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.mu.Unlock()
}

// connectAndRun 建立连接、订阅并阻塞读取，连接断开时返回
func (w *TickerWorker) connectAndRun(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("dial error: %w", err)
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	w.mu.Lock()
	w.conn = conn
	w.reconnecting = false
	w.mu.Unlock()
	monitor.GetMetrics().SetWebSocketConnected(true)

	defer func() {
		w.closeConn()
		monitor.GetMetrics().SetWebSocketConnected(false)
	}()

	if err := w.subscribe(conn); err != nil {
		return fmt.Errorf("subscribe error: %w", err)
	}
	logger.Info().Int("coins", len(w.coins)).Msg("upbit ticker stream subscribed")

	// 监控取消信号，主动关闭连接解除 ReadMessage 阻塞
	goplus.Go(func() {
		select {
		case <-ctx.Done():
		case <-w.done:
		}
		w.closeConn()
	})

	goplus.Go(func() { w.pingPump(conn) })

	return w.readPump(conn)
}

// subscribe 发送 ticker 订阅请求
func (w *TickerWorker) subscribe(conn *websocket.Conn) error {
	codes := make([]string, 0, len(w.coins))
	for _, coin := range w.coins {
		codes = append(codes, "KRW-"+strings.ToUpper(coin))
	}

	request := []any{
		map[string]string{"ticket": fmt.Sprintf("route-engine-%d", time.Now().UnixNano())},
		map[string]any{"type": "ticker", "codes": codes},
		map[string]string{"format": "DEFAULT"},
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (w *TickerWorker) readPump(conn *websocket.Conn) error {
	for {
		select {
		case <-w.done:
			return nil
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error().Err(err).Msg("upbit ws read error")
			}
			return err
		}

		conn.SetReadDeadline(time.Now().Add(pongWait))
		w.handleTicker(msg)
	}
}

// handleTicker 解析单条 ticker 帧并写缓存
// 非 ticker 帧和缺字段的帧直接丢弃
func (w *TickerWorker) handleTicker(msg []byte) {
	if !gjson.ValidBytes(msg) {
		return
	}
	result := gjson.ParseBytes(msg)

	code := result.Get("code").String() // KRW-BTC
	price := result.Get("trade_price").Float()
	if code == "" || price <= 0 {
		return
	}

	coin, ok := strings.CutPrefix(code, "KRW-")
	if !ok {
		return
	}
	w.prices.Set(coin, price)
}

func (w *TickerWorker) pingPump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug().Err(err).Msg("upbit ws ping failed")
				return
			}
		}
	}
}
