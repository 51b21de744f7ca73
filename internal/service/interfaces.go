package service

import (
	"context"
	"database/sql"

	"diamondshop/internal/infrastructure/lock"
	"diamondshop/internal/model"

	"gorm.io/gorm"
)

// 服务层依赖的接口收窄定义
// 具体实现在 repository / infrastructure 包，单元测试注入 mock

// TxManager 事务执行器，*gorm.DB 天然满足
type TxManager interface {
	Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
}

// LockFactory 按用户创建分布式锁，测试时返回空实现
type LockFactory func(userID int64, ownerToken string) lock.Handle

type UserRepo interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	CreditBalance(ctx context.Context, tx *gorm.DB, userID int64, diamonds int) error
	UpdateEncryptionKey(ctx context.Context, tx *gorm.DB, userID int64, encodedKey string) error
	ListAll(ctx context.Context) ([]*model.User, error)
	Count(ctx context.Context) (int64, error)
}

type PackageRepo interface {
	GetByID(ctx context.Context, id int64) (*model.DiamondPackage, error)
	ListAll(ctx context.Context) ([]*model.DiamondPackage, error)
}

type PaymentMethodRepo interface {
	Create(ctx context.Context, tx *gorm.DB, method *model.PaymentMethod) error
	GetByID(ctx context.Context, methodID int64) (*model.PaymentMethod, error)
	GetByIDForUser(ctx context.Context, methodID, userID int64) (*model.PaymentMethod, error)
	ListByUserID(ctx context.Context, userID int64) ([]*model.PaymentMethod, error)
	ListAll(ctx context.Context) ([]*model.PaymentMethod, error)
	CountByUserID(ctx context.Context, userID int64) (int64, error)
	Count(ctx context.Context) (int64, error)
	ClearDefaults(ctx context.Context, tx *gorm.DB, userID int64) error
	SetDefault(ctx context.Context, tx *gorm.DB, methodID, userID int64) error
	Delete(ctx context.Context, methodID, userID int64) error
	UpdateCiphers(ctx context.Context, tx *gorm.DB, methodID int64, numberCipher, cvvCipher, cipherTag string) error
	BrandDistribution(ctx context.Context) (map[string]int64, error)
}

type OrderRepo interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	GetByOrderNo(ctx context.Context, orderNo string) (*model.Order, error)
	GetByIDForUser(ctx context.Context, orderID, userID int64) (*model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Order, int64, error)
	ListRecentByUserID(ctx context.Context, userID int64, limit int) ([]*model.Order, error)
	ListRecent(ctx context.Context, limit int) ([]*model.Order, error)
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
	CountByUserID(ctx context.Context, userID int64) (int64, error)
	CountByUserIDAndStatus(ctx context.Context, userID int64, status string) (int64, error)
	CompletedTotals(ctx context.Context) (int64, int64, error)
	UserCompletedTotals(ctx context.Context, userID int64) (int64, int64, error)
}

type BalanceLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, log *model.BalanceLog) error
}

type OutboxRepo interface {
	Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error
}

// SessionStore 登录会话存储
type SessionStore interface {
	Save(ctx context.Context, token string, userID int64) error
	Resolve(ctx context.Context, token string) (int64, error)
	Delete(ctx context.Context, token string) error
}
