package dao

import (
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/crossfin/crossfin-route-engine/internal/models"
)

type WithdrawalFeeDAO struct {
	db *gorm.DB
}

var (
	_withdrawalFee     *WithdrawalFeeDAO
	_withdrawalFeeOnce sync.Once
)

// NewWithdrawalFeeDAO 创建 WithdrawalFeeDAO
func NewWithdrawalFeeDAO(db *gorm.DB) *WithdrawalFeeDAO {
	return &WithdrawalFeeDAO{db: db}
}

// InitWithdrawalFeeDAO 初始化 WithdrawalFeeDAO 单例
func InitWithdrawalFeeDAO(db *gorm.DB) {
	_withdrawalFeeOnce.Do(func() {
		_withdrawalFee = NewWithdrawalFeeDAO(db)
	})
}

// WithdrawalFee 获取 WithdrawalFeeDAO 单例
func WithdrawalFee() *WithdrawalFeeDAO {
	return _withdrawalFee
}

// ListAll 获取全部提币费用
func (d *WithdrawalFeeDAO) ListAll() ([]models.ExchangeWithdrawalFee, error) {
	var fees []models.ExchangeWithdrawalFee
	err := d.db.Find(&fees).Error
	return fees, err
}

// ListByExchange 获取指定交易所的提币费用
func (d *WithdrawalFeeDAO) ListByExchange(exchange string) ([]models.ExchangeWithdrawalFee, error) {
	var fees []models.ExchangeWithdrawalFee
	err := d.db.Where("exchange = ?", strings.ToLower(exchange)).Find(&fees).Error
	return fees, err
}

// Count 获取提币费用行数
func (d *WithdrawalFeeDAO) Count() (int64, error) {
	var n int64
	err := d.db.Model(&models.ExchangeWithdrawalFee{}).Count(&n).Error
	return n, err
}

// Upsert 按 (交易所, 币种) 更新或插入
func (d *WithdrawalFeeDAO) Upsert(fee *models.ExchangeWithdrawalFee) error {
	normalize(fee)
	return d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "exchange"}, {Name: "coin"}},
		DoUpdates: clause.AssignmentColumns([]string{"fee", "suspended", "updated_at"}),
	}).Create(fee).Error
}

// BatchUpsert 批量 upsert 提币费用
func (d *WithdrawalFeeDAO) BatchUpsert(fees []*models.ExchangeWithdrawalFee) error {
	if len(fees) == 0 {
		return nil
	}
	for _, fee := range fees {
		normalize(fee)
	}
	return d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "exchange"}, {Name: "coin"}},
		DoUpdates: clause.AssignmentColumns([]string{"fee", "suspended", "updated_at"}),
	}).Create(fees).Error
}

// SetSuspended 更新提币暂停状态，行不存在时不报错
func (d *WithdrawalFeeDAO) SetSuspended(exchange, coin string, suspended bool) error {
	return d.db.Model(&models.ExchangeWithdrawalFee{}).
		Where("exchange = ? AND coin = ?", strings.ToLower(exchange), strings.ToUpper(coin)).
		Update("suspended", suspended).Error
}

func normalize(fee *models.ExchangeWithdrawalFee) {
	fee.Exchange = strings.ToLower(fee.Exchange)
	fee.Coin = strings.ToUpper(fee.Coin)
}
