package models

import (
	"time"
)

// PriceSnapshot 全球价格快照行
// 实时聚合成功时落库，作为上游全部失效时的最后回退层
type PriceSnapshot struct {
	ID     uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Coin   string  `gorm:"type:varchar(16);not null;index:idx_coin_created;comment:币种" json:"coin"`
	Price  float64 `gorm:"not null;comment:USD价格" json:"price"`
	Source string  `gorm:"type:varchar(32);not null;default:'';comment:价格来源" json:"source"`

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_coin_created;index:idx_created;comment:采集时间" json:"created_at"`
}

func (PriceSnapshot) TableName() string {
	return "price_snapshots"
}
