package nats

import (
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/crossfin/crossfin-route-engine/internal/monitor"
)

// Publisher NATS 发布器
type Publisher struct {
	*nats.Conn
	mu     sync.RWMutex
	closed bool
}

// NewPublisher 创建 NATS 发布器
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}

	p := &Publisher{
		Conn: conn,
	}

	// 更新指标
	monitor.GetMetrics().SetNATSConnected(true)

	return p, nil
}

// PublishPremiumSignal 发布溢价信号
func (p *Publisher) PublishPremiumSignal(subject string, signal *PremiumSignal) error {
	data, err := signal.Marshal()
	if err != nil {
		return err
	}

	if err := p.Publish(subject, data); err != nil {
		monitor.GetMetrics().IncSignalErrors("publish")
		return err
	}
	monitor.GetMetrics().IncSignalsPublished(signal.Exchange, signal.Coin)
	return nil
}

// IsConnected 检查发布器是否已连接，nil 接收者视为未连接
func (p *Publisher) IsConnected() bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed && p.Conn != nil && !p.Conn.IsClosed()
}

// Close 关闭连接
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true

	// 更新指标
	monitor.GetMetrics().SetNATSConnected(false)

	if p.Conn != nil {
		p.Conn.Close()
	}
	return nil
}
