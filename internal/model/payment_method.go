package model

import (
	"time"
)

// 卡品牌常量
const (
	CardBrandVisa       = "visa"
	CardBrandMastercard = "mastercard"
	CardBrandAmex       = "amex"
	CardBrandDiscover   = "discover"
	CardBrandDiners     = "diners"
	CardBrandUnknown    = "unknown"
)

// PaymentMethod 用户保存的支付方式（银行卡）
//
// 敏感字段（卡号、CVV）以独立密文存储，密钥是持卡用户的 EncryptionKey。
// 同一账户同一时刻至多一张默认卡。
// json 序列化永远不输出卡号/CVV，对外只暴露品牌、尾号、有效期、持卡人。
type PaymentMethod struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         int64     `gorm:"index;not null" json:"user_id"`
	CardBrand      string    `gorm:"type:varchar(20);not null" json:"card_brand"`       // 由卡号前缀推导，不信任调用方
	LastFour       string    `gorm:"type:varchar(4);not null" json:"last_four"`         // 卡号后四位，可安全展示
	CardHolderName string    `gorm:"type:varchar(100);not null" json:"card_holder_name"`
	ExpiryMonth    int       `gorm:"not null" json:"expiry_month"`
	ExpiryYear     int       `gorm:"not null" json:"expiry_year"`
	NumberCipher   string    `gorm:"type:text;not null" json:"-"` // 卡号密文（AES-GCM，base64）
	CVVCipher      string    `gorm:"type:text;not null" json:"-"` // CVV 密文（AES-GCM，base64）
	CipherTag      string    `gorm:"type:varchar(64);not null" json:"-"` // 密文配对标签，作为 GCM 附加数据的一部分，防止密文跨卡拼接
	IsDefault      bool      `gorm:"not null;default:false" json:"is_default"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (PaymentMethod) TableName() string {
	return "payment_methods"
}
