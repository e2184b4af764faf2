package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/clubworks/billing-engine/pkg/logger"
)

// EventHandler is a function that handles events. Handlers must tolerate
// redelivery: a failed message is not acknowledged and will come back.
type EventHandler func(ctx context.Context, event RegistrationCompletedEvent) error

// errDropMessage marks a message that can never succeed (bad payload,
// unknown type). It is acknowledged and skipped instead of redelivered.
var errDropMessage = errors.New("message dropped")

// Consumer wraps a Kafka consumer group subscribed to billing input topics
type Consumer struct {
	group    sarama.ConsumerGroup
	groupID  string
	topics   []string
	handlers map[string]EventHandler
	mu       sync.RWMutex
}

// NewConsumer creates a new Kafka consumer. Offsets start from the oldest
// available message so registrations that arrived while billing was down
// still get invoiced.
func NewConsumer(brokers []string, groupID string, topics []string) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Logger.Info().
		Strs("brokers", brokers).
		Str("group_id", groupID).
		Strs("topics", topics).
		Msg("Kafka consumer initialized")

	return &Consumer{
		group:    group,
		groupID:  groupID,
		topics:   topics,
		handlers: make(map[string]EventHandler),
	}, nil
}

// RegisterHandler registers an event handler for a specific event type
func (c *Consumer) RegisterHandler(eventType string, handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = handler
	logger.Logger.Info().
		Str("event_type", eventType).
		Msg("Event handler registered")
}

func (c *Consumer) handlerFor(eventType string) (EventHandler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[eventType]
	return h, ok
}

// Start starts consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	handler := &groupHandler{consumer: c}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Logger.Info().Msg("Consumer context cancelled, stopping...")
				return
			default:
				// Consume returns on rebalance or on a processing error;
				// unacknowledged messages are redelivered on the next cycle
				if err := c.group.Consume(ctx, c.topics, handler); err != nil {
					logger.Logger.Error().
						Err(err).
						Msg("Error from consumer")
				}
			}
		}
	}()

	go func() {
		for err := range c.group.Errors() {
			logger.Logger.Error().
				Err(err).
				Msg("Consumer error")
		}
	}()

	logger.Logger.Info().
		Strs("topics", c.topics).
		Str("group_id", c.groupID).
		Msg("Kafka consumer started")

	return nil
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	if c.group != nil {
		return c.group.Close()
	}
	return nil
}

// groupHandler implements sarama.ConsumerGroupHandler
type groupHandler struct {
	consumer *Consumer
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		err := h.process(session.Context(), message)
		switch {
		case err == nil:
			session.MarkMessage(message, "")
		case errors.Is(err, errDropMessage):
			// Poison message; acknowledging keeps the partition moving
			session.MarkMessage(message, "")
		default:
			// Leave unacknowledged so the message is redelivered
			return err
		}
	}
	return nil
}

func (h *groupHandler) process(ctx context.Context, message *sarama.ConsumerMessage) error {
	ctx = extractTraceContext(ctx, message)

	tracer := otel.Tracer("kafka-consumer")
	ctx, span := tracer.Start(ctx, "billing.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.source", message.Topic),
			attribute.Int("messaging.kafka.partition", int(message.Partition)),
			attribute.Int64("messaging.kafka.offset", message.Offset),
		),
	)
	defer span.End()

	eventType := headerValue(message, "event_type")
	eventID := headerValue(message, "event_id")

	if eventType == "" {
		span.SetStatus(codes.Error, "Message without event_type header")
		logger.Logger.Warn().
			Str("topic", message.Topic).
			Int64("offset", message.Offset).
			Msg("Message without event_type header")
		return errDropMessage
	}

	span.SetAttributes(
		attribute.String("event.type", eventType),
		attribute.String("event.id", eventID),
	)

	handler, ok := h.consumer.handlerFor(eventType)
	if !ok {
		span.SetStatus(codes.Error, "No handler registered")
		logger.Logger.Warn().
			Str("event_type", eventType).
			Msg("No handler registered for event type")
		return errDropMessage
	}

	var event RegistrationCompletedEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to unmarshal event")
		logger.Logger.Error().
			Err(err).
			Str("event_type", eventType).
			Str("event_id", eventID).
			Msg("Failed to unmarshal event")
		return errDropMessage
	}

	span.SetAttributes(
		attribute.Int64("registration.id", int64(event.RegistrationID)),
		attribute.Int64("user.id", int64(event.UserID)),
		attribute.Int64("billing.total_amount", event.TotalAmount),
		attribute.Int("billing.installments", event.Installments),
	)

	if err := handler(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to handle event")
		logger.Logger.Error().
			Err(err).
			Str("event_type", eventType).
			Str("event_id", event.EventID).
			Str("trace_id", span.SpanContext().TraceID().String()).
			Msg("Failed to handle event")
		return err
	}

	span.SetStatus(codes.Ok, "Event handled")
	logger.Logger.Info().
		Str("event_type", eventType).
		Str("event_id", event.EventID).
		Uint("registration_id", event.RegistrationID).
		Int("installments", event.Installments).
		Str("trace_id", span.SpanContext().TraceID().String()).
		Msg("Event handled")

	return nil
}

func extractTraceContext(ctx context.Context, message *sarama.ConsumerMessage) context.Context {
	carrier := propagation.MapCarrier{}
	for _, header := range message.Headers {
		key := string(header.Key)
		if key == "traceparent" || key == "tracestate" {
			carrier[key] = string(header.Value)
		}
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

func headerValue(message *sarama.ConsumerMessage, key string) string {
	for _, header := range message.Headers {
		if string(header.Key) == key {
			return string(header.Value)
		}
	}
	return ""
}
