package service

import (
	"context"
	"database/sql"
	"time"

	"diamondshop/internal/infrastructure/lock"
	"diamondshop/internal/model"
	"diamondshop/internal/processor"

	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

// 服务层单测用的 mock 集合
// 事务用假实现直接回调，分布式锁用空实现，仓储用 testify mock

// fakeTxManager 直接执行回调，tx 传 nil（仓储 mock 不关心 tx）
type fakeTxManager struct {
	err error
}

func (f *fakeTxManager) Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error {
	if f.err != nil {
		return f.err
	}
	return fc(nil)
}

type noopLock struct{}

func (noopLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	return nil
}
func (noopLock) Unlock(ctx context.Context) error { return nil }

func noopLockFactory(userID int64, ownerToken string) lock.Handle { return noopLock{} }

// stubCharger 固定返回指定结果，并记录收到的参数
type stubCharger struct {
	result    processor.ChargeResult
	gotAmount int64
	gotCard   *processor.CardContext
	chargeCnt int
}

func (s *stubCharger) Charge(amountCents int64, card *processor.CardContext) processor.ChargeResult {
	s.gotAmount = amountCents
	s.gotCard = card
	s.chargeCnt++
	return s.result
}

// ---------------------------------------------------------------------------

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, user *model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.User, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepo) CreditBalance(ctx context.Context, tx *gorm.DB, userID int64, diamonds int) error {
	return m.Called(ctx, tx, userID, diamonds).Error(0)
}

func (m *MockUserRepo) UpdateEncryptionKey(ctx context.Context, tx *gorm.DB, userID int64, encodedKey string) error {
	return m.Called(ctx, tx, userID, encodedKey).Error(0)
}

func (m *MockUserRepo) ListAll(ctx context.Context) ([]*model.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.User), args.Error(1)
}

func (m *MockUserRepo) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// ---------------------------------------------------------------------------

type MockPackageRepo struct {
	mock.Mock
}

func (m *MockPackageRepo) GetByID(ctx context.Context, id int64) (*model.DiamondPackage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DiamondPackage), args.Error(1)
}

func (m *MockPackageRepo) ListAll(ctx context.Context) ([]*model.DiamondPackage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.DiamondPackage), args.Error(1)
}

// ---------------------------------------------------------------------------

type MockPaymentMethodRepo struct {
	mock.Mock
}

func (m *MockPaymentMethodRepo) Create(ctx context.Context, tx *gorm.DB, method *model.PaymentMethod) error {
	return m.Called(ctx, tx, method).Error(0)
}

func (m *MockPaymentMethodRepo) GetByID(ctx context.Context, methodID int64) (*model.PaymentMethod, error) {
	args := m.Called(ctx, methodID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentMethod), args.Error(1)
}

func (m *MockPaymentMethodRepo) GetByIDForUser(ctx context.Context, methodID, userID int64) (*model.PaymentMethod, error) {
	args := m.Called(ctx, methodID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentMethod), args.Error(1)
}

func (m *MockPaymentMethodRepo) ListByUserID(ctx context.Context, userID int64) ([]*model.PaymentMethod, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PaymentMethod), args.Error(1)
}

func (m *MockPaymentMethodRepo) ListAll(ctx context.Context) ([]*model.PaymentMethod, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PaymentMethod), args.Error(1)
}

func (m *MockPaymentMethodRepo) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPaymentMethodRepo) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPaymentMethodRepo) ClearDefaults(ctx context.Context, tx *gorm.DB, userID int64) error {
	return m.Called(ctx, tx, userID).Error(0)
}

func (m *MockPaymentMethodRepo) SetDefault(ctx context.Context, tx *gorm.DB, methodID, userID int64) error {
	return m.Called(ctx, tx, methodID, userID).Error(0)
}

func (m *MockPaymentMethodRepo) Delete(ctx context.Context, methodID, userID int64) error {
	return m.Called(ctx, methodID, userID).Error(0)
}

func (m *MockPaymentMethodRepo) UpdateCiphers(ctx context.Context, tx *gorm.DB, methodID int64, numberCipher, cvvCipher, cipherTag string) error {
	return m.Called(ctx, tx, methodID, numberCipher, cvvCipher, cipherTag).Error(0)
}

func (m *MockPaymentMethodRepo) BrandDistribution(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

// ---------------------------------------------------------------------------

type MockOrderRepo struct {
	mock.Mock
}

func (m *MockOrderRepo) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return m.Called(ctx, tx, order).Error(0)
}

func (m *MockOrderRepo) GetByOrderNo(ctx context.Context, orderNo string) (*model.Order, error) {
	args := m.Called(ctx, orderNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepo) GetByIDForUser(ctx context.Context, orderID, userID int64) (*model.Order, error) {
	args := m.Called(ctx, orderID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepo) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Order, int64, error) {
	args := m.Called(ctx, userID, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderRepo) ListRecentByUserID(ctx context.Context, userID int64, limit int) ([]*model.Order, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Order), args.Error(1)
}

func (m *MockOrderRepo) ListRecent(ctx context.Context, limit int) ([]*model.Order, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Order), args.Error(1)
}

func (m *MockOrderRepo) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepo) CountByStatus(ctx context.Context, status string) (int64, error) {
	args := m.Called(ctx, status)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepo) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepo) CountByUserIDAndStatus(ctx context.Context, userID int64, status string) (int64, error) {
	args := m.Called(ctx, userID, status)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepo) CompletedTotals(ctx context.Context) (int64, int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderRepo) UserCompletedTotals(ctx context.Context, userID int64) (int64, int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

// ---------------------------------------------------------------------------

type MockBalanceLogRepo struct {
	mock.Mock
}

func (m *MockBalanceLogRepo) Create(ctx context.Context, tx *gorm.DB, log *model.BalanceLog) error {
	return m.Called(ctx, tx, log).Error(0)
}

type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error {
	return m.Called(ctx, tx, msg).Error(0)
}

// ---------------------------------------------------------------------------

type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) Save(ctx context.Context, token string, userID int64) error {
	return m.Called(ctx, token, userID).Error(0)
}

func (m *MockSessionStore) Resolve(ctx context.Context, token string) (int64, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSessionStore) Delete(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}
