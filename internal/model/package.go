package model

import (
	"time"
)

// DiamondPackage 钻石套餐表（商品目录）
// 订单创建时会快照 diamonds/amount，套餐被引用后视为不可变
type DiamondPackage struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name              string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Diamonds          int       `gorm:"not null" json:"diamonds"`                    // 钻石数量，必须大于0
	PriceCents        int64     `gorm:"not null" json:"price_cents"`                 // 现价（美分）
	PriceNGNCents     int64     `gorm:"not null;default:0" json:"price_ngn_cents"`   // 奈拉展示价（固定汇率换算）
	OriginalCents     int64     `gorm:"not null" json:"original_cents"`              // 原价（美分）
	OriginalNGNCents  int64     `gorm:"not null;default:0" json:"original_ngn_cents"`
	Discount          int       `gorm:"not null;default:0" json:"discount"`          // 折扣百分比
	Popular           bool      `gorm:"not null;default:false" json:"popular"`       // 热门标记
	Description       string    `gorm:"type:text" json:"description"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (DiamondPackage) TableName() string {
	return "diamond_packages"
}
