package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"hdrEnhancer/pkg/task"
	"hdrEnhancer/worker/pool"
)

// MessageHandler runs one job. A non-nil error leaves the message unmarked so
// the group redelivers it.
type MessageHandler func(ctx context.Context, msg *task.Message) error

type Consumer struct {
	group        sarama.ConsumerGroup
	pool         *pool.WorkerPool
	retryBackoff time.Duration
	logger       *zap.Logger
}

// NewConsumer joins groupID. After a handler error the claim pauses for
// retryBackoff before handing the partition back for redelivery.
func NewConsumer(brokers []string, groupID string, workers *pool.WorkerPool, retryBackoff time.Duration, logger *zap.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	return NewConsumerFromGroup(group, workers, retryBackoff, logger), nil
}

func NewConsumerFromGroup(group sarama.ConsumerGroup, workers *pool.WorkerPool, retryBackoff time.Duration, logger *zap.Logger) *Consumer {
	return &Consumer{group: group, pool: workers, retryBackoff: retryBackoff, logger: logger}
}

type consumerHandler struct {
	fn           MessageHandler
	pool         *pool.WorkerPool
	retryBackoff time.Duration
	logger       *zap.Logger
}

func (h *consumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			var taskMsg task.Message
			if err := json.Unmarshal(msg.Value, &taskMsg); err != nil || taskMsg.TaskID == "" {
				h.logger.Warn("Skipping malformed task message",
					zap.String("topic", msg.Topic),
					zap.Int32("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
				session.MarkMessage(msg, "")
				continue
			}

			err := h.pool.Do(session.Context(), func(ctx context.Context) error {
				return h.fn(ctx, &taskMsg)
			})
			if err != nil {
				h.logger.Info("Leaving message for redelivery",
					zap.String("task_id", taskMsg.TaskID),
					zap.Int64("offset", msg.Offset),
					zap.Duration("backoff", h.retryBackoff),
					zap.Error(err),
				)
				h.backoff(session.Context())
				return nil
			}
			session.MarkMessage(msg, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// backoff keeps a failing claim from rejoining the group in a tight loop
// while a dependency such as Postgres is down.
func (h *consumerHandler) backoff(ctx context.Context) {
	if h.retryBackoff <= 0 {
		return
	}

	timer := time.NewTimer(h.retryBackoff)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Consume blocks until ctx is cancelled, rejoining the group after every
// rebalance.
func (c *Consumer) Consume(ctx context.Context, topic string, handler MessageHandler) error {
	h := &consumerHandler{fn: handler, pool: c.pool, retryBackoff: c.retryBackoff, logger: c.logger}
	for {
		if err := c.group.Consume(ctx, []string{topic}, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}
