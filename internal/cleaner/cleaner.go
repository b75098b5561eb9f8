package cleaner

import (
	"time"

	"github.com/crossfin/crossfin-route-engine/internal/dao"
	"github.com/crossfin/crossfin-route-engine/internal/monitor"
	"github.com/crossfin/crossfin-route-engine/pkg/goplus"
	"github.com/crossfin/crossfin-route-engine/pkg/logger"
)

// Cleaner 价格快照清理器
// 双重上限：按保留天数删过期行，再按总行数裁掉最老的行
type Cleaner struct {
	snapshots     *dao.PriceSnapshotDAO
	retentionDays int
	maxRows       int64
	interval      time.Duration
	done          chan struct{}
}

// NewCleaner 创建清理器
func NewCleaner(snapshots *dao.PriceSnapshotDAO, retentionDays int, maxRows int64, interval time.Duration) *Cleaner {
	return &Cleaner{
		snapshots:     snapshots,
		retentionDays: retentionDays,
		maxRows:       maxRows,
		interval:      interval,
		done:          make(chan struct{}),
	}
}

// Start 启动清理任务
func (c *Cleaner) Start() {
	goplus.Go(func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		logger.Info().
			Int("retention_days", c.retentionDays).
			Int64("max_rows", c.maxRows).
			Msg("snapshot cleaner started")

		// 启动时立即执行一次
		c.Clean()

		for {
			select {
			case <-ticker.C:
				c.Clean()
			case <-c.done:
				logger.Info().Msg("snapshot cleaner stopped")
				return
			}
		}
	})
}

// Stop 停止清理器
func (c *Cleaner) Stop() {
	close(c.done)
}

// Clean 执行一轮清理，返回删除的总行数
func (c *Cleaner) Clean() int64 {
	var total int64

	cutoff := time.Now().AddDate(0, 0, -c.retentionDays)
	deleted, err := c.snapshots.DeleteOlderThan(cutoff)
	if err != nil {
		logger.Warn().Err(err).Msg("snapshot retention cleanup failed")
	} else {
		total += deleted
	}

	if c.maxRows > 0 {
		count, err := c.snapshots.Count()
		if err != nil {
			logger.Warn().Err(err).Msg("snapshot count failed")
		} else if excess := count - c.maxRows; excess > 0 {
			deleted, err := c.snapshots.DeleteOldestRows(excess)
			if err != nil {
				logger.Warn().Err(err).Msg("snapshot row cap cleanup failed")
			} else {
				total += deleted
			}
		}
	}

	if total > 0 {
		monitor.GetMetrics().AddSnapshotRowsPruned(total)
		logger.Info().Int64("rows", total).Msg("snapshot rows pruned")
	}
	return total
}
