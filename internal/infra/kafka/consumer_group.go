package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/caldora/practice-authz/internal/infra/config"
)

// MessageHandler processes one consumed Kafka message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// InvalidationTopics lists the topics the cache invalidation consumer subscribes to.
func InvalidationTopics(cfg config.KafkaSettings) []string {
	return []string{
		fullTopicName(cfg.TopicPrefix, topicRoleChanged),
		fullTopicName(cfg.TopicPrefix, topicUserAccessChanged),
	}
}

func fullTopicName(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	if strings.HasPrefix(eventType, prefix+".") {
		return eventType
	}
	return prefix + "." + eventType
}

// ConsumerGroup pumps messages from a set of topics into a handler.
type ConsumerGroup struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler MessageHandler
	logger  *zap.Logger
}

// NewConsumerGroup joins the configured consumer group for the given topics.
func NewConsumerGroup(cfg config.KafkaSettings, topics []string, handler MessageHandler, logger *zap.Logger) (*ConsumerGroup, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if handler == nil {
		return nil, fmt.Errorf("message handler is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.Version = sarama.V3_5_0_0
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaCfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	return &ConsumerGroup{
		group:   group,
		topics:  topics,
		handler: handler,
		logger:  logger,
	}, nil
}

// Run consumes until the context is cancelled. Rebalances re-enter Consume.
func (c *ConsumerGroup) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("kafka consumer group error", zap.Error(err))
		}
	}()

	handler := &groupHandler{handler: c.handler, logger: c.logger}
	for {
		if err := c.group.Consume(ctx, c.topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("consume: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close leaves the consumer group.
func (c *ConsumerGroup) Close() error {
	if err := c.group.Close(); err != nil {
		return fmt.Errorf("close consumer group: %w", err)
	}
	return nil
}

type groupHandler struct {
	handler MessageHandler
	logger  *zap.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks every message consumed. A failed invalidation is logged
// and skipped rather than retried forever; the cache TTL bounds the staleness.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := h.handler.HandleMessage(session.Context(), msg); err != nil {
			h.logger.Error("failed to handle message",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
		session.MarkMessage(msg, "")
	}
	return nil
}
