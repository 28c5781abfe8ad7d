package consumable

import (
	"context"
	"fmt"
	"time"

	"github.com/labstock/backend/internal/domain/consumable"
	"github.com/labstock/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// LowStockHandler reacts to ConsumableStockLow events by raising an
// alert through the configured notifier. Alerts are deduplicated per
// item and accounting period so a burst of consumptions near the
// threshold produces a single notification.
type LowStockHandler struct {
	logger    *zap.Logger
	notifier  LowStockNotifier
	dedupe    shared.IdempotencyStore
	dedupeTTL time.Duration
}

// LowStockNotifier is the interface for delivering low-stock alerts.
// Implementations can support different channels (in-app, email, chat).
type LowStockNotifier interface {
	// SendAlert delivers a low-stock alert
	SendAlert(ctx context.Context, alert LowStockAlert) error
}

// LowStockAlert describes an item that crossed the low-stock threshold
type LowStockAlert struct {
	ItemID         string `json:"item_id"`
	ItemName       string `json:"item_name"`
	ItemsOnHand    int64  `json:"items_on_hand"`
	OpeningBalance int64  `json:"opening_balance"`
	AlertType      string `json:"alert_type"` // "low_stock", "out_of_stock"
}

// NewLowStockHandler creates a new handler for low-stock events
func NewLowStockHandler(logger *zap.Logger) *LowStockHandler {
	return &LowStockHandler{
		logger:    logger,
		dedupeTTL: shared.DefaultIdempotencyConfig().TTL,
	}
}

// WithNotifier sets the notifier used to deliver alerts
func (h *LowStockHandler) WithNotifier(notifier LowStockNotifier) *LowStockHandler {
	h.notifier = notifier
	return h
}

// WithDedupeStore sets the store used to suppress duplicate alerts
func (h *LowStockHandler) WithDedupeStore(store shared.IdempotencyStore, ttl time.Duration) *LowStockHandler {
	h.dedupe = store
	if ttl > 0 {
		h.dedupeTTL = ttl
	}
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *LowStockHandler) EventTypes() []string {
	return []string{consumable.EventTypeStockLow}
}

// Handle processes a StockLowEvent
func (h *LowStockHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	stockLow, ok := event.(*consumable.StockLowEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", consumable.EventTypeStockLow),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			consumable.EventTypeStockLow, event.EventType())
	}

	h.logger.Warn("consumable stock low",
		zap.String("item_id", stockLow.ItemID.String()),
		zap.String("item_name", stockLow.ItemName),
		zap.Int64("items_on_hand", stockLow.ItemsOnHand),
		zap.Int64("opening_balance", stockLow.OpeningBalance),
	)

	// The opening balance only changes at rollover, so keying on it
	// scopes the dedupe window to the current accounting period.
	if h.dedupe != nil {
		key := fmt.Sprintf("lowstock:%s:%d", stockLow.ItemID, stockLow.OpeningBalance)
		fresh, err := h.dedupe.MarkProcessed(ctx, key, h.dedupeTTL)
		if err != nil {
			h.logger.Debug("low-stock dedupe check failed, alerting anyway",
				zap.Error(err),
			)
		} else if !fresh {
			h.logger.Debug("suppressing duplicate low-stock alert",
				zap.String("item_id", stockLow.ItemID.String()),
			)
			return nil
		}
	}

	alertType := "low_stock"
	if stockLow.ItemsOnHand == 0 {
		alertType = "out_of_stock"
	}

	alert := LowStockAlert{
		ItemID:         stockLow.ItemID.String(),
		ItemName:       stockLow.ItemName,
		ItemsOnHand:    stockLow.ItemsOnHand,
		OpeningBalance: stockLow.OpeningBalance,
		AlertType:      alertType,
	}

	if h.notifier != nil {
		if err := h.notifier.SendAlert(ctx, alert); err != nil {
			h.logger.Error("failed to send low-stock alert",
				zap.String("item_id", alert.ItemID),
				zap.Error(err),
			)
			// Notification failure must not fail the event handling
		} else {
			h.logger.Info("low-stock alert sent",
				zap.String("item_id", alert.ItemID),
				zap.String("alert_type", alertType),
			)
		}
	}

	return nil
}

// Ensure LowStockHandler implements shared.EventHandler
var _ shared.EventHandler = (*LowStockHandler)(nil)

// LoggingLowStockNotifier is a notifier that only logs alerts.
// Useful for development and as the default wiring.
type LoggingLowStockNotifier struct {
	logger *zap.Logger
}

// NewLoggingLowStockNotifier creates a new logging notifier
func NewLoggingLowStockNotifier(logger *zap.Logger) *LoggingLowStockNotifier {
	return &LoggingLowStockNotifier{
		logger: logger,
	}
}

// SendAlert logs the low-stock alert
func (n *LoggingLowStockNotifier) SendAlert(ctx context.Context, alert LowStockAlert) error {
	n.logger.Warn("LOW STOCK ALERT",
		zap.String("type", alert.AlertType),
		zap.String("item_id", alert.ItemID),
		zap.String("item_name", alert.ItemName),
		zap.Int64("items_on_hand", alert.ItemsOnHand),
		zap.Int64("opening_balance", alert.OpeningBalance),
	)
	return nil
}

// Ensure LoggingLowStockNotifier implements LowStockNotifier
var _ LowStockNotifier = (*LoggingLowStockNotifier)(nil)
