package model

import (
	"time"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusFailed    = "failed"
)

// ValidStatusTransitions 订单状态机
// pending 是初始瞬态，completed / failed 都是终态
var ValidStatusTransitions = map[string][]string{
	OrderStatusPending: {OrderStatusCompleted, OrderStatusFailed},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// Order 订单表
// diamonds/amount 是下单时的套餐快照，创建后不再变更
type Order struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo         string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	UserID          int64      `gorm:"index;not null" json:"user_id"`
	PackageID       int64      `gorm:"index;not null" json:"package_id"`
	Diamonds        int        `gorm:"not null" json:"diamonds"`                     // 套餐钻石数快照
	AmountCents     int64      `gorm:"not null" json:"amount_cents"`                 // 套餐价格快照（美分）
	Status          string     `gorm:"type:varchar(20);index;not null" json:"status"`
	PaymentMethodID *int64     `gorm:"index" json:"payment_method_id"`               // 使用的已存卡，可为空
	TransactionID   string     `gorm:"type:varchar(100)" json:"transaction_id"`      // 模拟支付网络返回的交易号
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at"`
}

func (Order) TableName() string {
	return "orders"
}
