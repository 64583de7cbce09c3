package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/caldora/practice-authz/internal/core/domain"
	"github.com/caldora/practice-authz/internal/core/port"
)

// InvalidationConsumer applies role and user access change events from peer
// instances to the local caches. Mutating instances invalidate their own
// caches synchronously; this consumer is how the remaining instances converge.
type InvalidationConsumer struct {
	roleCache port.RolePermissionCache
	ctxCache  port.UserContextCache
	logger    *zap.Logger
}

// NewInvalidationConsumer constructs a consumer that keeps local caches current.
func NewInvalidationConsumer(roleCache port.RolePermissionCache, ctxCache port.UserContextCache, logger *zap.Logger) *InvalidationConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvalidationConsumer{
		roleCache: roleCache,
		ctxCache:  ctxCache,
		logger:    logger,
	}
}

type consumedEnvelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// HandleMessage decodes a Kafka message and dispatches it by event type.
func (c *InvalidationConsumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if msg == nil {
		return fmt.Errorf("message is nil")
	}

	var envelope consumedEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return fmt.Errorf("decode event envelope: %w", err)
	}

	switch envelope.EventType {
	case topicRoleChanged:
		var event domain.RoleChangedEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			return fmt.Errorf("decode role changed event: %w", err)
		}
		return c.HandleRoleChanged(ctx, event)
	case topicUserAccessChanged:
		var event domain.UserAccessChangedEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			return fmt.Errorf("decode user access changed event: %w", err)
		}
		return c.HandleUserAccessChanged(ctx, event)
	default:
		c.logger.Debug("ignoring event", zap.String("event_type", envelope.EventType))
		return nil
	}
}

// HandleRoleChanged drops the affected role's cached permissions. A catalog
// seed purges everything since any role may reference new entries.
func (c *InvalidationConsumer) HandleRoleChanged(ctx context.Context, event domain.RoleChangedEvent) error {
	if event.Change == domain.RoleChangeCatalogSeeded {
		if err := c.roleCache.InvalidateAll(ctx); err != nil {
			return fmt.Errorf("purge role permission cache: %w", err)
		}
	} else {
		if event.RoleID == "" {
			return fmt.Errorf("role changed event without role id")
		}
		if err := c.roleCache.Invalidate(ctx, event.RoleID); err != nil {
			return fmt.Errorf("invalidate role permissions: %w", err)
		}
	}

	if c.ctxCache != nil {
		if err := c.ctxCache.InvalidateAll(ctx); err != nil {
			return fmt.Errorf("purge user context cache: %w", err)
		}
	}

	c.logger.Debug("role change applied",
		zap.String("role_id", event.RoleID),
		zap.String("change", string(event.Change)),
	)
	return nil
}

// HandleUserAccessChanged drops the affected user's cached contexts.
func (c *InvalidationConsumer) HandleUserAccessChanged(ctx context.Context, event domain.UserAccessChangedEvent) error {
	if event.UserID == "" {
		return fmt.Errorf("user access changed event without user id")
	}

	if c.ctxCache != nil {
		if err := c.ctxCache.InvalidateUser(ctx, event.UserID); err != nil {
			return fmt.Errorf("invalidate user contexts: %w", err)
		}
	}

	c.logger.Debug("user access change applied",
		zap.String("user_id", event.UserID),
		zap.String("change", string(event.Change)),
	)
	return nil
}
