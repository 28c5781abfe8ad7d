package equipment

import (
	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeEquipmentItem = "EquipmentItem"

// Event type constants
const (
	EventTypeBorrowed = "EquipmentBorrowed"
	EventTypeReturned = "EquipmentReturned"
)

// BorrowedEvent is raised when equipment is lent out
type BorrowedEvent struct {
	shared.BaseDomainEvent
	EquipmentID    uuid.UUID `json:"equipment_id"`
	EquipmentName  string    `json:"equipment_name"`
	BorrowRecordID uuid.UUID `json:"borrow_record_id"`
	ReferenceCode  string    `json:"reference_code"`
	BorrowerType   string    `json:"borrower_type"`
	Quantity       int64     `json:"quantity"`
	AvailableAfter int64     `json:"available_after"`
}

// NewBorrowedEvent creates a new BorrowedEvent
func NewBorrowedEvent(item *Item, record *BorrowRecord, availableAfter int64) *BorrowedEvent {
	return &BorrowedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBorrowed, AggregateTypeEquipmentItem, item.ID),
		EquipmentID:     item.ID,
		EquipmentName:   item.Name,
		BorrowRecordID:  record.ID,
		ReferenceCode:   record.ReferenceCode,
		BorrowerType:    record.BorrowerType,
		Quantity:        record.QuantityBorrowed,
		AvailableAfter:  availableAfter,
	}
}

// EventType returns the event type name
func (e *BorrowedEvent) EventType() string {
	return EventTypeBorrowed
}

// ReturnedEvent is raised when equipment comes back, fully or partially
type ReturnedEvent struct {
	shared.BaseDomainEvent
	EquipmentID    uuid.UUID `json:"equipment_id"`
	EquipmentName  string    `json:"equipment_name"`
	BorrowRecordID uuid.UUID `json:"borrow_record_id"`
	Quantity       int64     `json:"quantity"`
	Partial        bool      `json:"partial"`
}

// NewReturnedEvent creates a new ReturnedEvent
func NewReturnedEvent(item *Item, record *BorrowRecord, quantity int64, partial bool) *ReturnedEvent {
	return &ReturnedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReturned, AggregateTypeEquipmentItem, item.ID),
		EquipmentID:     item.ID,
		EquipmentName:   item.Name,
		BorrowRecordID:  record.ID,
		Quantity:        quantity,
		Partial:         partial,
	}
}

// EventType returns the event type name
func (e *ReturnedEvent) EventType() string {
	return EventTypeReturned
}
