package models

import (
	"time"
)

// ExchangeTradingFee 交易所现货吃单费率
type ExchangeTradingFee struct {
	ID       uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Exchange string  `gorm:"type:varchar(32);not null;uniqueIndex:uidx_exchange;comment:交易所标识" json:"exchange"`
	FeePct   float64 `gorm:"not null;default:0;comment:吃单费率百分比" json:"fee_pct"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ExchangeTradingFee) TableName() string {
	return "exchange_trading_fees"
}
