package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/caldora/practice-authz/internal/core/domain"
	"github.com/caldora/practice-authz/internal/core/port"
	"github.com/caldora/practice-authz/internal/infra/config"
)

const schemaVersion = "1.0"

const (
	topicRoleChanged       = "authz.role.changed"
	topicUserAccessChanged = "authz.user.access_changed"
	topicDecisionRecorded  = "authz.decision.recorded"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishRoleChanged publishes authz.role.changed events.
func (p *EventPublisher) PublishRoleChanged(ctx context.Context, event domain.RoleChangedEvent) error {
	return p.publish(ctx, event.EventID, topicRoleChanged, event.OccurredAt, event)
}

// PublishUserAccessChanged publishes authz.user.access_changed events.
func (p *EventPublisher) PublishUserAccessChanged(ctx context.Context, event domain.UserAccessChangedEvent) error {
	return p.publish(ctx, event.EventID, topicUserAccessChanged, event.OccurredAt, event)
}

var _ port.EventPublisher = (*EventPublisher)(nil)

// AuditPublisher streams permission decisions to the audit topic. Writes are
// queued on the async producer, so a slow broker never blocks a decision.
type AuditPublisher struct {
	producer *Producer
	appCfg   config.AppSettings
	logger   *zap.Logger
}

// NewAuditPublisher constructs a Kafka-backed audit sink.
func NewAuditPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *AuditPublisher {
	return &AuditPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

// Record appends a decision record to the audit topic.
func (p *AuditPublisher) Record(ctx context.Context, record domain.AuditRecord) error {
	envelope := eventEnvelope{
		EventID:   uuid.NewString(),
		EventType: topicDecisionRecorded,
		Timestamp: record.DecidedAt.UTC(),
		Version:   schemaVersion,
		Payload:   record,
		Metadata: envelopeMetadata{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(topicDecisionRecorded),
		Key:   sarama.StringEncoder(record.Actor),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ port.AuditSink = (*AuditPublisher)(nil)
