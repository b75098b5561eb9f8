package dao

import (
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/crossfin/crossfin-route-engine/internal/models"
)

type TradingFeeDAO struct {
	db *gorm.DB
}

var (
	_tradingFee     *TradingFeeDAO
	_tradingFeeOnce sync.Once
)

// NewTradingFeeDAO 创建 TradingFeeDAO
func NewTradingFeeDAO(db *gorm.DB) *TradingFeeDAO {
	return &TradingFeeDAO{db: db}
}

// InitTradingFeeDAO 初始化 TradingFeeDAO 单例
func InitTradingFeeDAO(db *gorm.DB) {
	_tradingFeeOnce.Do(func() {
		_tradingFee = NewTradingFeeDAO(db)
	})
}

// TradingFee 获取 TradingFeeDAO 单例
func TradingFee() *TradingFeeDAO {
	return _tradingFee
}

// ListAll 获取全部交易费率
func (d *TradingFeeDAO) ListAll() ([]models.ExchangeTradingFee, error) {
	var fees []models.ExchangeTradingFee
	err := d.db.Find(&fees).Error
	return fees, err
}

// Count 获取费率行数
func (d *TradingFeeDAO) Count() (int64, error) {
	var n int64
	err := d.db.Model(&models.ExchangeTradingFee{}).Count(&n).Error
	return n, err
}

// Upsert 按交易所更新或插入费率
func (d *TradingFeeDAO) Upsert(fee *models.ExchangeTradingFee) error {
	fee.Exchange = strings.ToLower(fee.Exchange)
	return d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "exchange"}},
		DoUpdates: clause.AssignmentColumns([]string{"fee_pct", "updated_at"}),
	}).Create(fee).Error
}

// BatchUpsert 批量 upsert 费率
func (d *TradingFeeDAO) BatchUpsert(fees []*models.ExchangeTradingFee) error {
	if len(fees) == 0 {
		return nil
	}
	for _, fee := range fees {
		fee.Exchange = strings.ToLower(fee.Exchange)
	}
	return d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "exchange"}},
		DoUpdates: clause.AssignmentColumns([]string{"fee_pct", "updated_at"}),
	}).Create(fees).Error
}
