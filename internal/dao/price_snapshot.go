package dao

import (
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/crossfin/crossfin-route-engine/internal/models"
)

type PriceSnapshotDAO struct {
	db *gorm.DB
}

var (
	_priceSnapshot     *PriceSnapshotDAO
	_priceSnapshotOnce sync.Once
)

// NewPriceSnapshotDAO 创建 PriceSnapshotDAO
func NewPriceSnapshotDAO(db *gorm.DB) *PriceSnapshotDAO {
	return &PriceSnapshotDAO{db: db}
}

// InitPriceSnapshotDAO 初始化 PriceSnapshotDAO 单例
func InitPriceSnapshotDAO(db *gorm.DB) {
	_priceSnapshotOnce.Do(func() {
		_priceSnapshot = NewPriceSnapshotDAO(db)
	})
}

// PriceSnapshot 获取 PriceSnapshotDAO 单例
func PriceSnapshot() *PriceSnapshotDAO {
	return _priceSnapshot
}

// BatchInsert 批量写入快照行
func (d *PriceSnapshotDAO) BatchInsert(rows []*models.PriceSnapshot) error {
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		row.Coin = strings.ToUpper(row.Coin)
	}
	return d.db.CreateInBatches(rows, 100).Error
}

// LatestWithin 获取每个币种在 maxAge 内的最新快照价格
func (d *PriceSnapshotDAO) LatestWithin(maxAge time.Duration) (map[string]float64, error) {
	cutoff := time.Now().Add(-maxAge)

	var rows []models.PriceSnapshot
	err := d.db.
		Where("created_at >= ?", cutoff).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	// 按采集时间升序遍历，后写的覆盖先写的
	prices := make(map[string]float64, len(rows))
	for _, row := range rows {
		if row.Price > 0 {
			prices[row.Coin] = row.Price
		}
	}
	return prices, nil
}

// LatestCoin 获取单个币种在 maxAge 内的最新快照
func (d *PriceSnapshotDAO) LatestCoin(coin string, maxAge time.Duration) (*models.PriceSnapshot, error) {
	cutoff := time.Now().Add(-maxAge)

	var row models.PriceSnapshot
	err := d.db.
		Where("coin = ? AND created_at >= ?", strings.ToUpper(coin), cutoff).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Count 获取快照行数
func (d *PriceSnapshotDAO) Count() (int64, error) {
	var n int64
	err := d.db.Model(&models.PriceSnapshot{}).Count(&n).Error
	return n, err
}

// DeleteOlderThan 删除早于 cutoff 的快照行，返回删除行数
func (d *PriceSnapshotDAO) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res := d.db.Where("created_at < ?", cutoff).Delete(&models.PriceSnapshot{})
	return res.RowsAffected, res.Error
}

// DeleteOldestRows 删除最老的 n 行，用于行数上限裁剪
func (d *PriceSnapshotDAO) DeleteOldestRows(n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}

	var ids []uint
	err := d.db.Model(&models.PriceSnapshot{}).
		Order("created_at ASC").
		Limit(int(n)).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := d.db.Where("id IN ?", ids).Delete(&models.PriceSnapshot{})
	return res.RowsAffected, res.Error
}
