package repository

import (
	"context"
	"errors"

	"diamondshop/internal/model"

	"gorm.io/gorm"
)

// ErrMethodNotFound 支付方式不存在或不属于当前用户
// 两种情况对外是同一个错误，避免泄露"该 ID 在别的账户下存在"
var ErrMethodNotFound = errors.New("支付方式不存在")

type PaymentMethodRepository struct {
	db *gorm.DB
}

func NewPaymentMethodRepository(db *gorm.DB) *PaymentMethodRepository {
	return &PaymentMethodRepository{db: db}
}

func (r *PaymentMethodRepository) Create(ctx context.Context, tx *gorm.DB, method *model.PaymentMethod) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(method).Error
}

// GetByIDForUser 按用户范围查询，跨用户的 ID 一律当作不存在
func (r *PaymentMethodRepository) GetByIDForUser(ctx context.Context, methodID, userID int64) (*model.PaymentMethod, error) {
	var method model.PaymentMethod
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", methodID, userID).
		First(&method).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMethodNotFound
		}
		return nil, err
	}
	return &method, nil
}

func (r *PaymentMethodRepository) GetByID(ctx context.Context, methodID int64) (*model.PaymentMethod, error) {
	var method model.PaymentMethod
	err := r.db.WithContext(ctx).Where("id = ?", methodID).First(&method).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMethodNotFound
		}
		return nil, err
	}
	return &method, nil
}

func (r *PaymentMethodRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.PaymentMethod, error) {
	var methods []*model.PaymentMethod
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&methods).Error
	return methods, err
}

func (r *PaymentMethodRepository) ListAll(ctx context.Context) ([]*model.PaymentMethod, error) {
	var methods []*model.PaymentMethod
	err := r.db.WithContext(ctx).Order("id ASC").Find(&methods).Error
	return methods, err
}

func (r *PaymentMethodRepository) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.PaymentMethod{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

func (r *PaymentMethodRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.PaymentMethod{}).Count(&total).Error
	return total, err
}

// ClearDefaults 清掉用户名下所有默认标记
// 必须和 SetDefault 在同一个事务里执行，否则并发请求会出现双默认卡
func (r *PaymentMethodRepository) ClearDefaults(ctx context.Context, tx *gorm.DB, userID int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.PaymentMethod{}).
		Where("user_id = ?", userID).
		Update("is_default", false).Error
}

// SetDefault 把指定卡设为默认，按用户范围匹配
func (r *PaymentMethodRepository) SetDefault(ctx context.Context, tx *gorm.DB, methodID, userID int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.PaymentMethod{}).
		Where("id = ? AND user_id = ?", methodID, userID).
		Update("is_default", true)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMethodNotFound
	}
	return nil
}

func (r *PaymentMethodRepository) Delete(ctx context.Context, methodID, userID int64) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", methodID, userID).
		Delete(&model.PaymentMethod{})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMethodNotFound
	}
	return nil
}

// UpdateCiphers 更新卡密文（密钥轮换用）
func (r *PaymentMethodRepository) UpdateCiphers(ctx context.Context, tx *gorm.DB, methodID int64, numberCipher, cvvCipher, cipherTag string) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.PaymentMethod{}).
		Where("id = ?", methodID).
		Updates(map[string]interface{}{
			"number_cipher": numberCipher,
			"cvv_cipher":    cvvCipher,
			"cipher_tag":    cipherTag,
		}).Error
}

// BrandDistribution 按品牌统计保存卡数量
func (r *PaymentMethodRepository) BrandDistribution(ctx context.Context) (map[string]int64, error) {
	type row struct {
		CardBrand string
		Total     int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&model.PaymentMethod{}).
		Select("card_brand, COUNT(*) AS total").
		Group("card_brand").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	dist := make(map[string]int64, len(rows))
	for _, r := range rows {
		dist[r.CardBrand] = r.Total
	}
	return dist, nil
}
