package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/caldora/practice-authz/internal/core/domain"
	"github.com/caldora/practice-authz/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments without brokers.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishRoleChanged logs authz.role.changed events.
func (p *StubPublisher) PublishRoleChanged(_ context.Context, event domain.RoleChangedEvent) error {
	p.logEvent(topicRoleChanged, event.OccurredAt, event)
	return nil
}

// PublishUserAccessChanged logs authz.user.access_changed events.
func (p *StubPublisher) PublishUserAccessChanged(_ context.Context, event domain.UserAccessChangedEvent) error {
	p.logEvent(topicUserAccessChanged, event.OccurredAt, event)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)

// StubAuditSink logs decision records instead of streaming them.
type StubAuditSink struct {
	logger *zap.Logger
}

// NewStubAuditSink constructs a development-friendly audit sink.
func NewStubAuditSink(logger *zap.Logger) *StubAuditSink {
	return &StubAuditSink{logger: logger}
}

// Record logs the decision record.
func (p *StubAuditSink) Record(_ context.Context, record domain.AuditRecord) error {
	p.logger.Info("Stub audit record",
		zap.String("actor", record.Actor),
		zap.String("permission", record.Permission),
		zap.Bool("granted", record.Granted),
		zap.String("reason", string(record.Reason)),
		zap.Time("decided_at", record.DecidedAt),
	)
	return nil
}

var _ port.AuditSink = (*StubAuditSink)(nil)
