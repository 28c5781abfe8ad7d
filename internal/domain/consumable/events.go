package consumable

import (
	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeConsumableItem = "ConsumableItem"

// Event type constants
const (
	EventTypeConsumed      = "ConsumableConsumed"
	EventTypeStockLow      = "ConsumableStockLow"
	EventTypeUsageReturned = "ConsumableUsageReturned"
)

// ConsumedEvent is raised when a quantity is consumed from on-hand stock
type ConsumedEvent struct {
	shared.BaseDomainEvent
	ItemID        uuid.UUID `json:"item_id"`
	ItemName      string    `json:"item_name"`
	UsageRecordID uuid.UUID `json:"usage_record_id"`
	Quantity      int64     `json:"quantity"`
	OnHandAfter   int64     `json:"on_hand_after"`
}

// NewConsumedEvent creates a new ConsumedEvent
func NewConsumedEvent(item *Item, record *UsageRecord) *ConsumedEvent {
	return &ConsumedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeConsumed, AggregateTypeConsumableItem, item.ID),
		ItemID:          item.ID,
		ItemName:        item.Name,
		UsageRecordID:   record.ID,
		Quantity:        record.Quantity,
		OnHandAfter:     item.ItemsOnHand,
	}
}

// EventType returns the event type name
func (e *ConsumedEvent) EventType() string {
	return EventTypeConsumed
}

// StockLowEvent is raised when on-hand stock crosses the low-stock
// threshold after a consumption.
type StockLowEvent struct {
	shared.BaseDomainEvent
	ItemID         uuid.UUID `json:"item_id"`
	ItemName       string    `json:"item_name"`
	ItemsOnHand    int64     `json:"items_on_hand"`
	OpeningBalance int64     `json:"opening_balance"`
}

// NewStockLowEvent creates a new StockLowEvent
func NewStockLowEvent(item *Item) *StockLowEvent {
	return &StockLowEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockLow, AggregateTypeConsumableItem, item.ID),
		ItemID:          item.ID,
		ItemName:        item.Name,
		ItemsOnHand:     item.ItemsOnHand,
		OpeningBalance:  item.OpeningBalance,
	}
}

// EventType returns the event type name
func (e *StockLowEvent) EventType() string {
	return EventTypeStockLow
}

// UsageReturnedEvent is raised when a consumed quantity comes back on hand
type UsageReturnedEvent struct {
	shared.BaseDomainEvent
	ItemID        uuid.UUID `json:"item_id"`
	UsageRecordID uuid.UUID `json:"usage_record_id"`
	Quantity      int64     `json:"quantity"`
	OnHandAfter   int64     `json:"on_hand_after"`
}

// NewUsageReturnedEvent creates a new UsageReturnedEvent
func NewUsageReturnedEvent(item *Item, record *UsageRecord) *UsageReturnedEvent {
	return &UsageReturnedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeUsageReturned, AggregateTypeConsumableItem, item.ID),
		ItemID:          item.ID,
		UsageRecordID:   record.ID,
		Quantity:        record.Quantity,
		OnHandAfter:     item.ItemsOnHand,
	}
}

// EventType returns the event type name
func (e *UsageReturnedEvent) EventType() string {
	return EventTypeUsageReturned
}
