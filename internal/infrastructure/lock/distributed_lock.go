package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁
// ============================================================================
//
// 两处多步读写需要按用户串行化，否则并发请求会破坏不变量：
//
//   1. 订单结算："写订单 + 余额入账"并发时可能丢失入账
//   2. 默认卡切换："清掉所有默认 + 设置新默认"并发时可能出现双默认卡
//
// 【原理】加锁 SET key value NX EX timeout：
//   - NX 保证互斥，EX 防止持有者崩溃后死锁
//   - value 是持有者标识，释放时用 Lua 脚本先校验再删除，
//     避免 A 超时后误删 B 刚拿到的锁
//
// 按用户维度加锁：不同用户互不影响，同一用户的结算/改默认串行。
//
// ============================================================================

var ErrLockFailed = errors.New("获取分布式锁失败")

// Handle 锁句柄，结算服务依赖该接口，测试时注入空实现
type Handle interface {
	Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error
	Unlock(ctx context.Context) error
}

// DistributedLock 基于 Redis 的分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string        // 锁持有者标识
	expiration time.Duration
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
// Lua 脚本保证"校验持有者 + 删除"的原子性
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// NewSettleLock 订单结算锁（按用户维度）
func NewSettleLock(client *redis.Client, userID int64, ownerToken string) *DistributedLock {
	key := fmt.Sprintf("settle:lock:user:%d", userID)
	return NewDistributedLock(client, key, ownerToken, 30*time.Second)
}

// NewDefaultCardLock 默认卡切换锁（按用户维度）
func NewDefaultCardLock(client *redis.Client, userID int64, ownerToken string) *DistributedLock {
	key := fmt.Sprintf("paymethod:lock:user:%d", userID)
	return NewDistributedLock(client, key, ownerToken, 10*time.Second)
}
