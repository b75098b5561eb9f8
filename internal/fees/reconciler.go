package fees

import (
	"context"
	"strings"
	"time"

	"github.com/crossfin/crossfin-route-engine/internal/dao"
	"github.com/crossfin/crossfin-route-engine/internal/feeds"
	"github.com/crossfin/crossfin-route-engine/pkg/logger"
)

// WalletStatusFetcher 钱包状态上游
type WalletStatusFetcher interface {
	FetchWalletStatus(ctx context.Context) ([]feeds.WalletState, error)
}

// Reconciler 定期把交易所钱包状态同步到提币暂停标记
// 只写有漂移的行，有变更时让费用缓存失效
type Reconciler struct {
	store    *Store
	dao      *dao.WithdrawalFeeDAO
	fetcher  WalletStatusFetcher
	exchange string
	interval time.Duration
}

func NewReconciler(store *Store, withdrawalDAO *dao.WithdrawalFeeDAO, fetcher WalletStatusFetcher, exchange string, interval time.Duration) *Reconciler {
	return &Reconciler{
		store:    store,
		dao:      withdrawalDAO,
		fetcher:  fetcher,
		exchange: strings.ToLower(exchange),
		interval: interval,
	}
}

// Run 同步循环，ctx 取消后退出
func (r *Reconciler) Run(ctx context.Context) {
	// 启动即同步一次，避免等待整个周期
	r.SyncOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Str("exchange", r.exchange).Msg("suspension reconciler stopped")
			return
		case <-ticker.C:
			r.SyncOnce(ctx)
		}
	}
}

// SyncOnce 执行一次钱包状态同步，返回漂移修正的行数
func (r *Reconciler) SyncOnce(ctx context.Context) int {
	states, err := r.fetcher.FetchWalletStatus(ctx)
	if err != nil {
		logger.Warn().Err(err).Str("exchange", r.exchange).Msg("wallet status fetch failed, suspension flags unchanged")
		return 0
	}

	rows, err := r.dao.ListByExchange(r.exchange)
	if err != nil {
		logger.Warn().Err(err).Str("exchange", r.exchange).Msg("withdrawal fee list failed, skip sync")
		return 0
	}

	current := make(map[string]bool, len(rows))
	for _, row := range rows {
		current[strings.ToUpper(row.Coin)] = row.Suspended
	}

	changed := 0
	for _, state := range states {
		coin := strings.ToUpper(state.Currency)
		want := state.WithdrawSuspended()

		have, known := current[coin]
		if !known || have == want {
			continue
		}

		if err := r.dao.SetSuspended(r.exchange, coin, want); err != nil {
			logger.Warn().Err(err).
				Str("exchange", r.exchange).
				Str("coin", coin).
				Msg("suspension flag update failed")
			continue
		}
		changed++

		logger.Info().
			Str("exchange", r.exchange).
			Str("coin", coin).
			Bool("suspended", want).
			Str("wallet_state", state.State).
			Msg("withdrawal suspension flag updated")
	}

	if changed > 0 {
		r.store.Invalidate()
	}
	return changed
}
