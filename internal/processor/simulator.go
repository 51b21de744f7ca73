package processor

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// ============================================================================
// 模拟支付网络
// ============================================================================
//
// 只负责"扣款决策 + 交易号生成"，不落任何持久化状态，订单/余额的记录
// 完全是调用方的职责（模拟外部支付网络 与 记录本地订单 分离）。
//
// 按固定概率拒绝（参考值 5%），与金额和卡数据无关，用于演练调用方的
// 失败路径。交易号碰撞概率可忽略但不为零，全局唯一性由存储层的唯一
// 约束兜底，调用方不得直接假设唯一。
//
// ============================================================================

const (
	txnIDPrefix  = "txn_"
	txnIDLength  = 14
	txnIDCharset = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// CardContext 扣款时携带的卡上下文，已存卡走解密结果，新卡直接透传
type CardContext struct {
	CardNumber     string
	CVV            string
	CardHolderName string
	ExpiryMonth    int
	ExpiryYear     int
}

// ChargeResult 扣款结果
type ChargeResult struct {
	OK            bool
	TransactionID string // 成功时非空
	Message       string
}

// Charger 扣款接口，结算服务依赖该接口而非具体实现，便于注入假网络
type Charger interface {
	Charge(amountCents int64, card *CardContext) ChargeResult
}

// Simulator 模拟支付网络实现
type Simulator struct {
	declineRate float64
	mu          sync.Mutex // rand.Rand 非并发安全
	rng         *rand.Rand
}

// NewSimulator 创建模拟支付网络
// rng 可注入固定种子的随机源，便于测试强制成功/失败
func NewSimulator(declineRate float64, rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{
		declineRate: declineRate,
		rng:         rng,
	}
}

// Charge 模拟一次扣款
func (s *Simulator) Charge(amountCents int64, card *CardContext) ChargeResult {
	s.mu.Lock()
	declined := s.rng.Float64() < s.declineRate
	txnID := s.newTransactionID()
	s.mu.Unlock()

	if declined {
		return ChargeResult{
			OK:      false,
			Message: "支付被拒绝: 余额不足",
		}
	}

	return ChargeResult{
		OK:            true,
		TransactionID: txnID,
		Message:       fmt.Sprintf("支付成功: $%.2f", float64(amountCents)/100),
	}
}

// newTransactionID 生成交易号：txn_ + 14位小写字母数字
// 调用方需持有 s.mu
func (s *Simulator) newTransactionID() string {
	suffix := make([]byte, txnIDLength)
	for i := range suffix {
		suffix[i] = txnIDCharset[s.rng.Intn(len(txnIDCharset))]
	}
	return txnIDPrefix + string(suffix)
}
