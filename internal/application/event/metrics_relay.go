package event

import (
	"context"

	"go.uber.org/zap"

	"github.com/labstock/backend/internal/domain/consumable"
	"github.com/labstock/backend/internal/domain/equipment"
	"github.com/labstock/backend/internal/domain/maintenance"
	"github.com/labstock/backend/internal/domain/shared"
)

// LedgerMetricsRecorder is the slice of the telemetry layer the relay
// records into.
type LedgerMetricsRecorder interface {
	RecordConsume(ctx context.Context, quantity int64)
	RecordUsageReturn(ctx context.Context)
	RecordBorrow(ctx context.Context, borrowerType string, quantity int64)
	RecordEquipmentReturn(ctx context.Context, partial bool)
	RecordTasksMarkedOverdue(ctx context.Context, count int64)
}

// MetricsRelay mirrors ledger events into metrics counters. Subscribing
// it to the event bus keeps the application services free of any
// telemetry dependency.
type MetricsRelay struct {
	metrics LedgerMetricsRecorder
	logger  *zap.Logger
}

var _ shared.EventHandler = (*MetricsRelay)(nil)

// NewMetricsRelay creates a new MetricsRelay.
func NewMetricsRelay(metrics LedgerMetricsRecorder, logger *zap.Logger) *MetricsRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetricsRelay{
		metrics: metrics,
		logger:  logger,
	}
}

// EventTypes returns the event types the relay counts.
func (r *MetricsRelay) EventTypes() []string {
	return []string{
		consumable.EventTypeConsumed,
		consumable.EventTypeUsageReturned,
		equipment.EventTypeBorrowed,
		equipment.EventTypeReturned,
		maintenance.EventTypeTaskOverdue,
	}
}

// Handle increments the counter matching the event. Unknown event
// types are logged and dropped; counting is best-effort and never
// fails the publish.
func (r *MetricsRelay) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *consumable.ConsumedEvent:
		r.metrics.RecordConsume(ctx, e.Quantity)
	case *consumable.UsageReturnedEvent:
		r.metrics.RecordUsageReturn(ctx)
	case *equipment.BorrowedEvent:
		r.metrics.RecordBorrow(ctx, e.BorrowerType, e.Quantity)
	case *equipment.ReturnedEvent:
		r.metrics.RecordEquipmentReturn(ctx, e.Partial)
	case *maintenance.TaskOverdueEvent:
		r.metrics.RecordTasksMarkedOverdue(ctx, 1)
	default:
		r.logger.Debug("Metrics relay received an uncounted event type",
			zap.String("event_type", event.EventType()),
		)
	}
	return nil
}
