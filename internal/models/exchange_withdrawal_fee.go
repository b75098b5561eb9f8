package models

import (
	"time"
)

// ExchangeWithdrawalFee 交易所提币费用与暂停状态
// 费用以币本位计，Suspended 由钱包状态同步任务维护
type ExchangeWithdrawalFee struct {
	ID       uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Exchange string  `gorm:"type:varchar(32);not null;uniqueIndex:uidx_exchange_coin;comment:交易所标识" json:"exchange"`
	Coin     string  `gorm:"type:varchar(16);not null;uniqueIndex:uidx_exchange_coin;comment:币种" json:"coin"`
	Fee      float64 `gorm:"not null;default:0;comment:提币费用(币本位)" json:"fee"`

	Suspended bool `gorm:"type:tinyint(1);not null;default:0;index:idx_suspended;comment:提币是否暂停" json:"suspended"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ExchangeWithdrawalFee) TableName() string {
	return "exchange_withdrawal_fees"
}
