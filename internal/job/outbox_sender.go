package job

import (
	"context"
	"log"
	"time"

	"diamondshop/internal/config"
	"diamondshop/internal/infrastructure/mq"
	"diamondshop/internal/model"
	"diamondshop/internal/repository"
)

// OutboxSender 发件箱投递任务
// 轮询 PENDING 消息发往 Kafka，订单事件的落库和投递由此解耦：
// 结算事务只负责把消息写进发件箱，投递失败不影响订单结果
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	cfg        *config.Config
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(outboxRepo *repository.OutboxRepository, cfg *config.Config) *OutboxSender {
	return &OutboxSender{
		outboxRepo: outboxRepo,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		interval:   200 * time.Millisecond,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	log.Println("[OutboxSender] 订单事件投递任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			log.Println("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.drainPending(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

func (s *OutboxSender) drainPending(ctx context.Context) {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		log.Printf("[OutboxSender] 查询待发消息失败: %v", err)
		return
	}

	for _, msg := range messages {
		s.deliver(ctx, msg)
	}
}

func (s *OutboxSender) deliver(ctx context.Context, msg *model.OutboxMessage) {
	err := mq.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)

	if err == nil {
		if updateErr := s.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			log.Printf("[OutboxSender] 更新消息状态失败: id=%d, err=%v", msg.ID, updateErr)
		} else {
			log.Printf("[OutboxSender] 订单事件已投递: id=%d, topic=%s, key=%s", msg.ID, msg.Topic, msg.MessageKey)
		}
		return
	}

	log.Printf("[OutboxSender] 投递失败: id=%d, err=%v", msg.ID, err)

	if msg.RetryCount+1 >= s.cfg.Business.MaxRetryCount {
		if failErr := s.outboxRepo.MarkAsFailed(ctx, msg.ID); failErr != nil {
			log.Printf("[OutboxSender] 标记失败状态出错: id=%d, err=%v", msg.ID, failErr)
		} else {
			log.Printf("[OutboxSender] 超过最大重试次数，标记失败: id=%d", msg.ID)
		}
		return
	}

	if retryErr := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); retryErr != nil {
		log.Printf("[OutboxSender] 增加重试次数失败: id=%d, err=%v", msg.ID, retryErr)
	}
}
