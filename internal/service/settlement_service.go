package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"diamondshop/internal/config"
	"diamondshop/internal/model"
	"diamondshop/internal/processor"
	"diamondshop/internal/repository"
	"diamondshop/pkg/idgen"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SettlementService 订单结算
//
// 状态机：pending -> completed / pending -> failed，两个终态。
// 成功路径的"订单入库 + 余额入账 + 流水 + 发件箱"必须一个事务提交，
// 崩溃不能留下有订单没入账（或反过来）的中间态。
//
// 【关键点】按用户加分布式锁，同一用户的结算串行执行，
// 并发下不会丢失入账；入账本身也是 balance = balance + ? 的原子自增。
type SettlementService struct {
	txm        TxManager
	orderRepo  OrderRepo
	userRepo   UserRepo
	pkgRepo    PackageRepo
	methodRepo PaymentMethodRepo
	logRepo    BalanceLogRepo
	outboxRepo OutboxRepo
	charger    processor.Charger
	lockFor    LockFactory
	cfg        *config.Config
}

func NewSettlementService(
	txm TxManager,
	orderRepo OrderRepo,
	userRepo UserRepo,
	pkgRepo PackageRepo,
	methodRepo PaymentMethodRepo,
	logRepo BalanceLogRepo,
	outboxRepo OutboxRepo,
	charger processor.Charger,
	lockFor LockFactory,
	cfg *config.Config,
) *SettlementService {
	return &SettlementService{
		txm:        txm,
		orderRepo:  orderRepo,
		userRepo:   userRepo,
		pkgRepo:    pkgRepo,
		methodRepo: methodRepo,
		logRepo:    logRepo,
		outboxRepo: outboxRepo,
		charger:    charger,
		lockFor:    lockFor,
		cfg:        cfg,
	}
}

type CreateOrderRequest struct {
	PackageID       int64  `json:"package_id" binding:"required"`
	PaymentMethodID *int64 `json:"payment_method_id"`
	UseSavedCard    bool   `json:"use_saved_card"`
}

type CreateOrderResult struct {
	OrderID       int64  `json:"order_id,omitempty"`
	OrderNo       string `json:"order_no,omitempty"`
	Status        string `json:"status"`
	Diamonds      int    `json:"diamonds,omitempty"`
	NewBalance    int64  `json:"new_balance,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Message       string `json:"message"`
}

// CreateOrder 结算一笔购买
// 模拟拒绝是正常业务结果：返回 Status=failed 的结果，error 为 nil，不自动重试
func (s *SettlementService) CreateOrder(ctx context.Context, user *model.User, req *CreateOrderRequest) (*CreateOrderResult, error) {
	pkg, err := s.pkgRepo.GetByID(ctx, req.PackageID)
	if err != nil {
		if errors.Is(err, repository.ErrPackageNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("查询套餐失败: %w", err)
	}

	dl := s.lockFor(user.ID, uuid.NewString())
	if err := dl.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer dl.Unlock(ctx)

	// 已存卡：按用户范围加载并解密，跨用户 ID 一律视为不存在
	var card *processor.CardContext
	var usedMethodID *int64
	if req.UseSavedCard && req.PaymentMethodID != nil {
		method, err := s.methodRepo.GetByIDForUser(ctx, *req.PaymentMethodID, user.ID)
		if err != nil {
			if errors.Is(err, repository.ErrMethodNotFound) {
				return nil, ErrMethodNotFound
			}
			return nil, fmt.Errorf("查询支付方式失败: %w", err)
		}

		decrypted, ok := DecryptCard(user, method)
		if !ok {
			log.Printf("[Settlement] 卡数据解密失败: userID=%d, methodID=%d", user.ID, method.ID)
			return nil, ErrProcessing
		}
		card = decrypted
		usedMethodID = &method.ID
	}

	charge := s.charger.Charge(pkg.PriceCents, card)

	if !charge.OK {
		// 拒绝也落一条 failed 订单，便于订单历史里看到失败记录
		failed := &model.Order{
			OrderNo:         idgen.GenerateOrderNo(),
			UserID:          user.ID,
			PackageID:       pkg.ID,
			Diamonds:        pkg.Diamonds,
			AmountCents:     pkg.PriceCents,
			Status:          model.OrderStatusFailed,
			PaymentMethodID: usedMethodID,
		}
		if err := s.orderRepo.Create(ctx, nil, failed); err != nil {
			log.Printf("[Settlement] 记录失败订单失败: userID=%d, err=%v", user.ID, err)
		}
		return &CreateOrderResult{
			OrderNo: failed.OrderNo,
			Status:  model.OrderStatusFailed,
			Message: charge.Message,
		}, nil
	}

	now := time.Now()
	order := &model.Order{
		OrderNo:         idgen.GenerateOrderNo(),
		UserID:          user.ID,
		PackageID:       pkg.ID,
		Diamonds:        pkg.Diamonds,
		AmountCents:     pkg.PriceCents,
		Status:          model.OrderStatusCompleted,
		PaymentMethodID: usedMethodID,
		TransactionID:   charge.TransactionID,
		CompletedAt:     &now,
	}

	var newBalance int64
	err = s.txm.Transaction(func(tx *gorm.DB) error {
		// 行锁读余额，拿到入账前快照
		locked, err := s.userRepo.GetByIDForUpdate(ctx, tx, user.ID)
		if err != nil {
			return fmt.Errorf("锁定用户失败: %w", err)
		}

		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("创建订单失败: %w", err)
		}

		if err := s.userRepo.CreditBalance(ctx, tx, user.ID, pkg.Diamonds); err != nil {
			return fmt.Errorf("钻石入账失败: %w", err)
		}
		newBalance = locked.Balance + int64(pkg.Diamonds)

		balanceLog := &model.BalanceLog{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        user.ID,
			OrderNo:       order.OrderNo,
			Diamonds:      pkg.Diamonds,
			Type:          model.BalanceLogTypePurchase,
			BalanceBefore: locked.Balance,
			BalanceAfter:  newBalance,
			Remark:        fmt.Sprintf("购买-%s", pkg.Name),
		}
		if err := s.logRepo.Create(ctx, tx, balanceLog); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		msgPayload := map[string]interface{}{
			"order_no":       order.OrderNo,
			"user_id":        user.ID,
			"package_id":     pkg.ID,
			"diamonds":       pkg.Diamonds,
			"amount_cents":   pkg.PriceCents,
			"transaction_id": charge.TransactionID,
			"status":         model.OrderStatusCompleted,
			"completed_at":   now.Format(time.RFC3339),
		}
		payloadBytes, _ := json.Marshal(msgPayload)

		outboxMsg := &model.OutboxMessage{
			MessageKey: order.OrderNo,
			Topic:      s.cfg.Kafka.Topic.OrderEvents,
			Payload:    string(payloadBytes),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Settlement] 结算成功: orderNo=%s, userID=%d, diamonds=%d", order.OrderNo, user.ID, pkg.Diamonds)

	return &CreateOrderResult{
		OrderID:       order.ID,
		OrderNo:       order.OrderNo,
		Status:        model.OrderStatusCompleted,
		Diamonds:      pkg.Diamonds,
		NewBalance:    newBalance,
		TransactionID: charge.TransactionID,
		Message:       fmt.Sprintf("成功购买 %d 钻石", pkg.Diamonds),
	}, nil
}

func (s *SettlementService) ListUserOrders(ctx context.Context, userID int64, page, pageSize int) ([]*model.Order, int64, error) {
	return s.orderRepo.ListByUserID(ctx, userID, page, pageSize)
}

func (s *SettlementService) GetUserOrder(ctx context.Context, orderID, userID int64) (*model.Order, error) {
	order, err := s.orderRepo.GetByIDForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, repository.ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}
