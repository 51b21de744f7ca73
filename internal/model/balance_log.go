package model

import (
	"time"
)

const (
	BalanceLogTypePurchase = "PURCHASE" // 购买套餐入账
)

// BalanceLog 钻石余额流水表
//
// 流水只追加，不修改，不删除，每笔关联订单号并记录入账前后余额，
// 便于对账和追查余额不一致
type BalanceLog struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	UserID        int64     `gorm:"index;not null" json:"user_id"`
	OrderNo       string    `gorm:"type:varchar(64);index;not null" json:"order_no"`
	Diamonds      int       `gorm:"not null" json:"diamonds"`       // 入账钻石数
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`
	BalanceBefore int64     `gorm:"not null" json:"balance_before"` // 入账前余额
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`  // 入账后余额
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (BalanceLog) TableName() string {
	return "balance_log"
}
