package repository

import (
	"context"
	"errors"

	"diamondshop/internal/model"

	"gorm.io/gorm"
)

type BalanceLogRepository struct {
	db *gorm.DB
}

func NewBalanceLogRepository(db *gorm.DB) *BalanceLogRepository {
	return &BalanceLogRepository{db: db}
}

// Create 写入一条余额流水，只追加
func (r *BalanceLogRepository) Create(ctx context.Context, tx *gorm.DB, log *model.BalanceLog) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(log).Error
}

func (r *BalanceLogRepository) GetByOrderNo(ctx context.Context, orderNo string) (*model.BalanceLog, error) {
	var log model.BalanceLog
	err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&log).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &log, nil
}

func (r *BalanceLogRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.BalanceLog, int64, error) {
	var logs []*model.BalanceLog
	var total int64

	query := r.db.WithContext(ctx).Model(&model.BalanceLog{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&logs).Error

	return logs, total, err
}
