package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"diamondshop/internal/model"
	"diamondshop/internal/processor"
	"diamondshop/internal/repository"
	"diamondshop/internal/vault"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentMethodService 保存卡的增删改查
//
// 不变量：同一用户同一时刻至多一张默认卡。
// "清掉所有默认 + 设置新默认"在一个事务里执行，并按用户加分布式锁，
// 防止并发切换出现双默认卡。
type PaymentMethodService struct {
	txm        TxManager
	methodRepo PaymentMethodRepo
	userRepo   UserRepo
	validator  *processor.CardValidator
	lockFor    LockFactory
}

func NewPaymentMethodService(
	txm TxManager,
	methodRepo PaymentMethodRepo,
	userRepo UserRepo,
	validator *processor.CardValidator,
	lockFor LockFactory,
) *PaymentMethodService {
	return &PaymentMethodService{
		txm:        txm,
		methodRepo: methodRepo,
		userRepo:   userRepo,
		validator:  validator,
		lockFor:    lockFor,
	}
}

// AddCardRequest 新卡提交，不可变值对象，明文只在本次调用内存活
type AddCardRequest struct {
	CardHolderName string
	CardNumber     string
	ExpiryMonth    int
	ExpiryYear     int
	CVV            string
	SaveCard       bool
}

// AddCard 校验新卡，save_card 为 true 时加密入库
// 校验失败返回 ErrCardInvalid（带原因），不落任何写入
// 返回的 method 在仅校验（不保存）时为 nil
func (s *PaymentMethodService) AddCard(ctx context.Context, user *model.User, req *AddCardRequest) (*model.PaymentMethod, error) {
	ok, reason := s.validator.Validate(req.CardNumber, req.ExpiryMonth, req.ExpiryYear, req.CVV)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCardInvalid, reason)
	}

	if !req.SaveCard {
		return nil, nil
	}

	number := processor.NormalizeCardNumber(req.CardNumber)
	brand := processor.ClassifyBrand(number)
	lastFour := number[len(number)-4:]

	// 配对标签：卡号/CVV 两段密文通过它互相绑定，也绑定到本条记录
	pairTag := uuid.NewString()

	numberCipher, err := vault.Encrypt(number, user.EncryptionKey, user.ID, pairTag, vault.FieldCardNumber)
	if err != nil {
		log.Printf("[PaymentMethod] 加密卡号失败: userID=%d, err=%v", user.ID, err)
		return nil, ErrProcessing
	}
	cvvCipher, err := vault.Encrypt(req.CVV, user.EncryptionKey, user.ID, pairTag, vault.FieldCVV)
	if err != nil {
		log.Printf("[PaymentMethod] 加密CVV失败: userID=%d, err=%v", user.ID, err)
		return nil, ErrProcessing
	}

	method := &model.PaymentMethod{
		UserID:         user.ID,
		CardBrand:      brand,
		LastFour:       lastFour,
		CardHolderName: req.CardHolderName,
		ExpiryMonth:    req.ExpiryMonth,
		ExpiryYear:     req.ExpiryYear,
		NumberCipher:   numberCipher,
		CVVCipher:      cvvCipher,
		CipherTag:      pairTag,
	}

	err = s.txm.Transaction(func(tx *gorm.DB) error {
		count, err := s.methodRepo.CountByUserID(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("查询已有支付方式失败: %w", err)
		}
		// 第一张卡强制设为默认，忽略调用方意愿
		method.IsDefault = count == 0

		return s.methodRepo.Create(ctx, tx, method)
	})
	if err != nil {
		return nil, fmt.Errorf("保存支付方式失败: %w", err)
	}

	return method, nil
}

// SetDefault 切换默认卡
// 跨用户的 methodID 返回 ErrMethodNotFound，不泄露存在性
func (s *PaymentMethodService) SetDefault(ctx context.Context, userID, methodID int64) error {
	dl := s.lockFor(userID, uuid.NewString())
	if err := dl.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer dl.Unlock(ctx)

	return s.txm.Transaction(func(tx *gorm.DB) error {
		if _, err := s.methodRepo.GetByIDForUser(ctx, methodID, userID); err != nil {
			if errors.Is(err, repository.ErrMethodNotFound) {
				return ErrMethodNotFound
			}
			return err
		}

		if err := s.methodRepo.ClearDefaults(ctx, tx, userID); err != nil {
			return fmt.Errorf("清除默认标记失败: %w", err)
		}
		if err := s.methodRepo.SetDefault(ctx, tx, methodID, userID); err != nil {
			if errors.Is(err, repository.ErrMethodNotFound) {
				return ErrMethodNotFound
			}
			return fmt.Errorf("设置默认卡失败: %w", err)
		}
		return nil
	})
}

// Delete 删除保存卡
// 删除默认卡后不自动提升其它卡为默认，用户需要显式再选一张
func (s *PaymentMethodService) Delete(ctx context.Context, userID, methodID int64) error {
	err := s.methodRepo.Delete(ctx, methodID, userID)
	if errors.Is(err, repository.ErrMethodNotFound) {
		return ErrMethodNotFound
	}
	return err
}

func (s *PaymentMethodService) List(ctx context.Context, userID int64) ([]*model.PaymentMethod, error) {
	return s.methodRepo.ListByUserID(ctx, userID)
}

// DecryptCard 解出保存卡的明文上下文，结算时用
// 任何解密失败都 fail closed，返回 (nil, false)
func DecryptCard(user *model.User, method *model.PaymentMethod) (*processor.CardContext, bool) {
	number, ok := vault.Decrypt(method.NumberCipher, user.EncryptionKey, method.UserID, method.CipherTag, vault.FieldCardNumber)
	if !ok {
		return nil, false
	}
	cvv, ok := vault.Decrypt(method.CVVCipher, user.EncryptionKey, method.UserID, method.CipherTag, vault.FieldCVV)
	if !ok {
		return nil, false
	}
	return &processor.CardContext{
		CardNumber:     number,
		CVV:            cvv,
		CardHolderName: method.CardHolderName,
		ExpiryMonth:    method.ExpiryMonth,
		ExpiryYear:     method.ExpiryYear,
	}, true
}

// RotateKey 密钥轮换：生成新密钥，用旧密钥解出所有卡明文，
// 重新加密后连同新密钥在一个事务里提交
// 任何一张卡解密失败则整体放弃，不留半轮换状态
func (s *PaymentMethodService) RotateKey(ctx context.Context, user *model.User) error {
	dl := s.lockFor(user.ID, uuid.NewString())
	if err := dl.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer dl.Unlock(ctx)

	methods, err := s.methodRepo.ListByUserID(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("查询支付方式失败: %w", err)
	}

	newKey, err := vault.GenerateKey()
	if err != nil {
		return fmt.Errorf("生成新密钥失败: %w", err)
	}

	type reEncrypted struct {
		methodID     int64
		numberCipher string
		cvvCipher    string
		pairTag      string
	}

	updates := make([]reEncrypted, 0, len(methods))
	for _, m := range methods {
		card, ok := DecryptCard(user, m)
		if !ok {
			log.Printf("[PaymentMethod] 密钥轮换解密失败: userID=%d, methodID=%d", user.ID, m.ID)
			return ErrProcessing
		}

		pairTag := uuid.NewString()
		numberCipher, err := vault.Encrypt(card.CardNumber, newKey, user.ID, pairTag, vault.FieldCardNumber)
		if err != nil {
			return ErrProcessing
		}
		cvvCipher, err := vault.Encrypt(card.CVV, newKey, user.ID, pairTag, vault.FieldCVV)
		if err != nil {
			return ErrProcessing
		}
		updates = append(updates, reEncrypted{
			methodID:     m.ID,
			numberCipher: numberCipher,
			cvvCipher:    cvvCipher,
			pairTag:      pairTag,
		})
	}

	return s.txm.Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			if err := s.methodRepo.UpdateCiphers(ctx, tx, u.methodID, u.numberCipher, u.cvvCipher, u.pairTag); err != nil {
				return fmt.Errorf("更新卡密文失败: %w", err)
			}
		}
		if err := s.userRepo.UpdateEncryptionKey(ctx, tx, user.ID, newKey); err != nil {
			return fmt.Errorf("更新用户密钥失败: %w", err)
		}
		return nil
	})
}
