package fees

import (
	"strings"
	"sync"
	"time"

	"github.com/crossfin/crossfin-route-engine/internal/dao"
	"github.com/crossfin/crossfin-route-engine/internal/models"
	"github.com/crossfin/crossfin-route-engine/internal/monitor"
	"github.com/crossfin/crossfin-route-engine/pkg/logger"
)

type withdrawalEntry struct {
	fee       float64
	suspended bool
}

// Store 费用表的 TTL 缓存读取层
// 真实数据在数据库，内置默认表只用于播种；数据库不可用时退回内存中
// 最后一次成功加载的快照，从未加载成功过则退回默认表
type Store struct {
	trading    *dao.TradingFeeDAO
	withdrawal *dao.WithdrawalFeeDAO
	cacheTTL   time.Duration

	mu         sync.RWMutex
	tradingPct map[string]float64
	withdraw   map[string]withdrawalEntry
	loadedAt   time.Time
}

func NewStore(trading *dao.TradingFeeDAO, withdrawal *dao.WithdrawalFeeDAO, cacheTTL time.Duration) *Store {
	return &Store{
		trading:    trading,
		withdrawal: withdrawal,
		cacheTTL:   cacheTTL,
		tradingPct: make(map[string]float64),
		withdraw:   make(map[string]withdrawalEntry),
	}
}

// Bootstrap 首次启动时用内置默认表播种空库，随后加载缓存
// 已有数据的库不会被默认表覆盖
func (s *Store) Bootstrap() error {
	if n, err := s.trading.Count(); err != nil {
		return err
	} else if n == 0 {
		var rows []*models.ExchangeTradingFee
		for exchange, pct := range defaultTradingFeePct {
			rows = append(rows, &models.ExchangeTradingFee{Exchange: exchange, FeePct: pct})
		}
		if err := s.trading.BatchUpsert(rows); err != nil {
			return err
		}
		logger.Info().Int("rows", len(rows)).Msg("trading fees seeded from defaults")
	}

	if n, err := s.withdrawal.Count(); err != nil {
		return err
	} else if n == 0 {
		var rows []*models.ExchangeWithdrawalFee
		for exchange, coins := range defaultWithdrawalFee {
			for coin, fee := range coins {
				rows = append(rows, &models.ExchangeWithdrawalFee{Exchange: exchange, Coin: coin, Fee: fee})
			}
		}
		if err := s.withdrawal.BatchUpsert(rows); err != nil {
			return err
		}
		logger.Info().Int("rows", len(rows)).Msg("withdrawal fees seeded from defaults")
	}

	s.reload()
	return nil
}

// Invalidate 强制下一次读取重新加载
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.loadedAt = time.Time{}
	s.mu.Unlock()
}

// TradingFeePct 交易所吃单费率，未知交易所返回 0
func (s *Store) TradingFeePct(exchange string) float64 {
	s.ensureFresh()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tradingPct[strings.ToLower(exchange)]
}

// WithdrawalFee 提币费用（币本位），未知组合返回 0
func (s *Store) WithdrawalFee(exchange, coin string) float64 {
	s.ensureFresh()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.withdraw[feeKey(exchange, coin)].fee
}

// IsSuspended 提币是否暂停，未知组合视为未暂停
func (s *Store) IsSuspended(exchange, coin string) bool {
	s.ensureFresh()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.withdraw[feeKey(exchange, coin)].suspended
}

func (s *Store) ensureFresh() {
	s.mu.RLock()
	fresh := time.Since(s.loadedAt) < s.cacheTTL
	s.mu.RUnlock()

	if fresh {
		monitor.GetMetrics().IncCacheHit("fees")
		return
	}
	monitor.GetMetrics().IncCacheMiss("fees")
	s.reload()
}

func (s *Store) reload() {
	tradingRows, terr := s.trading.ListAll()
	withdrawalRows, werr := s.withdrawal.ListAll()

	if terr != nil || werr != nil {
		logger.Warn().
			AnErr("trading_err", terr).
			AnErr("withdrawal_err", werr).
			Msg("fee reload failed, keeping previous snapshot")

		s.mu.Lock()
		defer s.mu.Unlock()
		if len(s.tradingPct) == 0 && len(s.withdraw) == 0 {
			// 从未加载成功过，退回内置默认表
			s.fillFromDefaultsLocked()
		}
		// 推迟下一次重试，避免每次读取都打数据库
		s.loadedAt = time.Now().Add(-s.cacheTTL + 10*time.Second)
		return
	}

	tradingPct := make(map[string]float64, len(tradingRows))
	for _, row := range tradingRows {
		tradingPct[strings.ToLower(row.Exchange)] = row.FeePct
	}

	withdraw := make(map[string]withdrawalEntry, len(withdrawalRows))
	for _, row := range withdrawalRows {
		withdraw[feeKey(row.Exchange, row.Coin)] = withdrawalEntry{
			fee:       row.Fee,
			suspended: row.Suspended,
		}
	}

	s.mu.Lock()
	s.tradingPct = tradingPct
	s.withdraw = withdraw
	s.loadedAt = time.Now()
	s.mu.Unlock()
}

func (s *Store) fillFromDefaultsLocked() {
	s.tradingPct = make(map[string]float64, len(defaultTradingFeePct))
	for exchange, pct := range defaultTradingFeePct {
		s.tradingPct[exchange] = pct
	}
	s.withdraw = make(map[string]withdrawalEntry)
	for exchange, coins := range defaultWithdrawalFee {
		for coin, fee := range coins {
			s.withdraw[feeKey(exchange, coin)] = withdrawalEntry{fee: fee}
		}
	}
}

func feeKey(exchange, coin string) string {
	return strings.ToLower(exchange) + "/" + strings.ToUpper(coin)
}
