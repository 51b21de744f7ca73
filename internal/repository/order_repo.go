package repository

import (
	"context"
	"errors"

	"diamondshop/internal/model"

	"gorm.io/gorm"
)

var ErrOrderNotFound = errors.New("订单不存在")

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(order).Error
}

func (r *OrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// GetByIDForUser 按用户范围查询订单
func (r *OrderRepository) GetByIDForUser(ctx context.Context, orderID, userID int64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Order, int64, error) {
	var orders []*model.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Order{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error

	return orders, total, err
}

func (r *OrderRepository) ListRecentByUserID(ctx context.Context, userID int64, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *OrderRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).Count(&total).Error
	return total, err
}

func (r *OrderRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("status = ?", status).
		Count(&total).Error
	return total, err
}

// CompletedTotals 已完成订单的总营收（美分）和总售出钻石数
func (r *OrderRepository) CompletedTotals(ctx context.Context) (int64, int64, error) {
	type row struct {
		Revenue  int64
		Diamonds int64
	}
	var res row
	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Select("COALESCE(SUM(amount_cents), 0) AS revenue, COALESCE(SUM(diamonds), 0) AS diamonds").
		Where("status = ?", model.OrderStatusCompleted).
		Scan(&res).Error
	return res.Revenue, res.Diamonds, err
}

// UserCompletedTotals 单个用户已完成订单的累计消费（美分）和累计购钻数
func (r *OrderRepository) UserCompletedTotals(ctx context.Context, userID int64) (int64, int64, error) {
	type row struct {
		Spent    int64
		Diamonds int64
	}
	var res row
	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Select("COALESCE(SUM(amount_cents), 0) AS spent, COALESCE(SUM(diamonds), 0) AS diamonds").
		Where("user_id = ? AND status = ?", userID, model.OrderStatusCompleted).
		Scan(&res).Error
	return res.Spent, res.Diamonds, err
}

func (r *OrderRepository) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

func (r *OrderRepository) CountByUserIDAndStatus(ctx context.Context, userID int64, status string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("user_id = ? AND status = ?", userID, status).
		Count(&total).Error
	return total, err
}

func (r *OrderRepository) ListRecent(ctx context.Context, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
