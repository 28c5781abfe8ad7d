package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/labstock/backend/internal/domain/consumable"
	"github.com/labstock/backend/internal/domain/maintenance"
	"github.com/labstock/backend/internal/domain/shared"
	"github.com/labstock/backend/internal/infrastructure/config"
)

// alertRoutingKeys maps alert-worthy event types to their topic routing
// keys on the broker. Event types missing from this map are published
// under their raw type name.
var alertRoutingKeys = map[string]string{
	consumable.EventTypeStockLow:     "consumable.stock_low",
	maintenance.EventTypeTaskOverdue: "maintenance.task_overdue",
}

// AMQPAlertRelay forwards low-stock and overdue-maintenance events to a
// RabbitMQ topic exchange so external notifiers (mail, chat) can react
// without polling the API. Delivery is at-least-once; the relay dedupes
// through an IdempotencyStore so a re-detected condition does not spam
// the exchange within the dedupe window.
type AMQPAlertRelay struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	dedupe   shared.IdempotencyStore
	ttl      time.Duration
	logger   *zap.Logger
}

var _ shared.EventHandler = (*AMQPAlertRelay)(nil)

// NewAMQPAlertRelay connects to the broker and declares the durable
// topic exchange the alerts are published to.
func NewAMQPAlertRelay(cfg *config.AMQPConfig, dedupe shared.IdempotencyStore, dedupeTTL time.Duration, logger *zap.Logger) (*AMQPAlertRelay, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	logger.Info("connected to RabbitMQ",
		zap.String("exchange", cfg.Exchange),
	)

	return &AMQPAlertRelay{
		conn:     conn,
		channel:  channel,
		exchange: cfg.Exchange,
		dedupe:   dedupe,
		ttl:      dedupeTTL,
		logger:   logger,
	}, nil
}

// EventTypes returns the event types the relay subscribes to.
func (r *AMQPAlertRelay) EventTypes() []string {
	return []string{
		consumable.EventTypeStockLow,
		maintenance.EventTypeTaskOverdue,
	}
}

// Handle publishes the event to the alert exchange unless the same
// alert was already relayed within the dedupe TTL. A broken dedupe
// store degrades to publishing anyway; a duplicate alert beats a
// silently dropped one.
func (r *AMQPAlertRelay) Handle(ctx context.Context, event shared.DomainEvent) error {
	key := alertDedupeKey(event)

	fresh, err := r.dedupe.MarkProcessed(ctx, key, r.ttl)
	if err != nil {
		r.logger.Warn("alert dedupe check failed, publishing anyway",
			zap.String("key", key),
			zap.Error(err),
		)
	} else if !fresh {
		r.logger.Debug("suppressing duplicate alert",
			zap.String("key", key),
		)
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
	}

	if err := r.channel.PublishWithContext(ctx,
		r.exchange,
		routingKeyFor(event.EventType()),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.EventID().String(),
			Type:         event.EventType(),
			Timestamp:    event.OccurredAt(),
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("failed to publish alert %s: %w", event.EventType(), err)
	}

	r.logger.Info("alert relayed",
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("routing_key", routingKeyFor(event.EventType())),
	)
	return nil
}

// Close shuts down the channel and the connection.
func (r *AMQPAlertRelay) Close() error {
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.logger.Warn("failed to close channel", zap.Error(err))
		}
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// alertDedupeKey identifies an alert by what it reports on, not by
// event instance. Two low-stock detections for the same item within
// the TTL collapse into one notification.
func alertDedupeKey(event shared.DomainEvent) string {
	return "alert:" + event.EventType() + ":" + event.AggregateID().String()
}

func routingKeyFor(eventType string) string {
	if key, ok := alertRoutingKeys[eventType]; ok {
		return key
	}
	return eventType
}
