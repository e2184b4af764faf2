package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/clubworks/billing-engine/pkg/logger"
)

// Publisher wraps Kafka producer
type Publisher struct {
	producer sarama.SyncProducer
	brokers  []string
}

// NewPublisher creates a new Kafka publisher
func NewPublisher(brokers []string) (*Publisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = 3
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.MaxMessageBytes = 1000000

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Logger.Info().
		Strs("brokers", brokers).
		Msg("Kafka publisher initialized")

	return &Publisher{
		producer: producer,
		brokers:  brokers,
	}, nil
}

// PublishInstallmentCharged publishes a successful charge event with tracing
func (p *Publisher) PublishInstallmentCharged(ctx context.Context, event InstallmentChargedEvent) error {
	event.EventID = eventID(event.EventID)
	event.EventType = EventTypeInstallmentCharged
	event.Timestamp = time.Now()

	return p.publish(ctx, TopicInstallmentCharged, event.EventType, event.EventID,
		invoiceKey(event.InvoiceID), event,
		attribute.Int64("invoice.id", int64(event.InvoiceID)),
		attribute.Int64("installment.id", int64(event.InstallmentID)),
		attribute.Int64("payment.id", int64(event.PaymentID)),
	)
}

// PublishInstallmentChargeFailed publishes a failed charge attempt with tracing
func (p *Publisher) PublishInstallmentChargeFailed(ctx context.Context, event InstallmentChargeFailedEvent) error {
	event.EventID = eventID(event.EventID)
	event.EventType = EventTypeInstallmentChargeFailed
	event.Timestamp = time.Now()

	return p.publish(ctx, TopicInstallmentChargeFailed, event.EventType, event.EventID,
		invoiceKey(event.InvoiceID), event,
		attribute.Int64("invoice.id", int64(event.InvoiceID)),
		attribute.Int64("installment.id", int64(event.InstallmentID)),
		attribute.Int("attempt.count", event.AttemptCount),
		attribute.Bool("attempt.terminal", event.Terminal),
	)
}

// PublishPlanCompleted publishes a plan completion event with tracing
func (p *Publisher) PublishPlanCompleted(ctx context.Context, event PlanCompletedEvent) error {
	event.EventID = eventID(event.EventID)
	event.EventType = EventTypePlanCompleted
	event.Timestamp = time.Now()

	return p.publish(ctx, TopicPlanCompleted, event.EventType, event.EventID,
		invoiceKey(event.InvoiceID), event,
		attribute.Int64("invoice.id", int64(event.InvoiceID)),
	)
}

// PublishPlanCancelled publishes a plan cancellation event with tracing
func (p *Publisher) PublishPlanCancelled(ctx context.Context, event PlanCancelledEvent) error {
	event.EventID = eventID(event.EventID)
	event.EventType = EventTypePlanCancelled
	event.Timestamp = time.Now()

	return p.publish(ctx, TopicPlanCancelled, event.EventType, event.EventID,
		invoiceKey(event.InvoiceID), event,
		attribute.Int64("invoice.id", int64(event.InvoiceID)),
	)
}

// publish marshals the event, injects trace context into the message
// headers and sends through the sync producer
func (p *Publisher) publish(ctx context.Context, topic, eventType, evtID, key string, event interface{}, attrs ...attribute.KeyValue) error {
	tracer := otel.Tracer("kafka-publisher")
	ctx, span := tracer.Start(ctx, "kafka.publish."+eventType,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", topic),
			attribute.String("messaging.destination_kind", "topic"),
			attribute.String("event.type", eventType),
			attribute.String("event.id", evtID),
		}, attrs...)...),
	)
	defer span.End()

	eventBytes, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to marshal event")
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Inject trace context into Kafka headers
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := []sarama.RecordHeader{
		{Key: []byte("event_type"), Value: []byte(eventType)},
		{Key: []byte("event_id"), Value: []byte(evtID)},
	}
	for k, v := range carrier {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte(k),
			Value: []byte(v),
		})
	}

	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(eventBytes),
		Headers: headers,
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to send message")
		logger.Logger.Error().
			Err(err).
			Str("topic", topic).
			Str("event_id", evtID).
			Str("trace_id", span.SpanContext().TraceID().String()).
			Msg("Failed to publish event")
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	span.SetAttributes(
		attribute.Int("messaging.kafka.partition", int(partition)),
		attribute.Int64("messaging.kafka.offset", offset),
	)
	span.SetStatus(codes.Ok, "Event published successfully")

	logger.Logger.Info().
		Str("event_id", evtID).
		Str("event_type", eventType).
		Str("topic", topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("Billing event published")

	return nil
}

// Close closes the Kafka producer
func (p *Publisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

func eventID(existing string) string {
	if existing != "" {
		return existing
	}
	return fmt.Sprintf("evt_%s", uuid.New().String())
}

func invoiceKey(invoiceID uint) string {
	return fmt.Sprintf("invoice_%d", invoiceID)
}
