package model

import (
	"time"
)

// User 用户表
// 钻石余额挂在用户身上，只能通过已完成订单入账
type User struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username      string    `gorm:"type:varchar(80);uniqueIndex;not null" json:"username"`       // 用户名，全局唯一
	Email         string    `gorm:"type:varchar(120);uniqueIndex;not null" json:"email"`         // 邮箱，全局唯一
	PasswordHash  string    `gorm:"type:varchar(255);not null" json:"-"`                         // bcrypt 密码哈希
	GameID        string    `gorm:"type:varchar(20);not null" json:"game_id"`                    // 游戏内账号ID
	Balance       int64     `gorm:"not null;default:0" json:"balance"`                           // 钻石余额
	IsAdmin       bool      `gorm:"not null;default:false" json:"is_admin"`                      // 管理员标记
	EncryptionKey string    `gorm:"type:varchar(64);not null" json:"-"`                          // 卡数据加密密钥（base64，注册时生成）
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
