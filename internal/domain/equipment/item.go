package equipment

import (
	"time"

	"github.com/labstock/backend/internal/domain/shared"
)

// Item is the aggregate root for a reusable equipment type. The total
// quantity is a fixed stock count; how much is out on loan is never
// stored on the item. Callers derive it from active borrow records at
// read time and feed it into the loan operations, which keeps the
// availability figure impossible to leave stale.
//
// Loan operations still increment the aggregate version even though no
// stored field changes: the version write is the serialization point
// that makes concurrent borrows against the same item conflict.
type Item struct {
	shared.BaseAggregateRoot
	Name          string `gorm:"type:varchar(200);not null;index:idx_equipment_name"`
	Location      string `gorm:"type:varchar(200)"`
	Notes         string `gorm:"type:text"`
	TotalQuantity int64  `gorm:"not null"`

	// Associations - loaded lazily
	BorrowRecords []BorrowRecord `gorm:"foreignKey:EquipmentID;references:ID"`
}

// TableName returns the table name for GORM
func (Item) TableName() string {
	return "equipment_items"
}

// NewItem registers a new equipment type with a fixed stock count
func NewItem(name, location, notes string, totalQuantity int64) (*Item, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Equipment name cannot be empty")
	}
	if totalQuantity <= 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Total quantity must be positive")
	}

	return &Item{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Location:          location,
		Notes:             notes,
		TotalQuantity:     totalQuantity,
		BorrowRecords:     make([]BorrowRecord, 0),
	}, nil
}

// Available derives the lendable count from the currently borrowed
// total, floored at zero.
func (i *Item) Available(inUse int64) int64 {
	available := i.TotalQuantity - inUse
	if available < 0 {
		return 0
	}
	return available
}

// Borrower carries the loan-taker details recorded on a borrow record.
// These are free-text: user management lives outside the engine.
type Borrower struct {
	Name          string
	Type          string
	SectionCourse string
	Purpose       string
}

// Valid reports whether the borrower details are usable
func (b Borrower) Valid() bool {
	return b.Name != "" && b.Type != ""
}

// Borrow lends out a quantity. inUse is the sum of active borrow
// quantities derived by the caller inside the same transaction;
// referenceCode is the pre-generated human-scannable code for the new
// record.
func (i *Item) Borrow(inUse int64, referenceCode string, borrower Borrower, quantity int64) (*BorrowRecord, error) {
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Borrow quantity must be positive")
	}
	if !borrower.Valid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Borrower name and type are required")
	}
	if i.Available(inUse) < quantity {
		return nil, shared.NewDomainError("INSUFFICIENT_STOCK", "Requested quantity exceeds available equipment")
	}

	record := newBorrowRecord(i.ID, referenceCode, borrower, quantity)
	i.BorrowRecords = append(i.BorrowRecords, *record)
	i.UpdatedAt = time.Now()
	i.IncrementVersion()

	i.AddDomainEvent(NewBorrowedEvent(i, record, i.Available(inUse+quantity)))

	return record, nil
}

// ReturnFull closes an active loan in one step
func (i *Item) ReturnFull(record *BorrowRecord, now time.Time) error {
	if record.EquipmentID != i.ID {
		return shared.NewDomainError("INVALID_INPUT", "Borrow record does not belong to this equipment")
	}
	if err := record.markReturned(now); err != nil {
		return err
	}

	i.UpdatedAt = now
	i.IncrementVersion()

	i.AddDomainEvent(NewReturnedEvent(i, record, record.QuantityBorrowed, false))

	return nil
}

// ReturnPartial takes back part of an active loan. The open record is
// decremented and a new, already-returned record is created for the
// returned portion, so no record's history is rewritten after the fact
// except the still-open remainder's count. Returning the full quantity
// this way is rejected; that is what ReturnFull is for.
func (i *Item) ReturnPartial(record *BorrowRecord, quantity int64, referenceCode string, now time.Time) (*BorrowRecord, error) {
	if record.EquipmentID != i.ID {
		return nil, shared.NewDomainError("INVALID_INPUT", "Borrow record does not belong to this equipment")
	}
	if record.IsReturned() {
		return nil, shared.NewDomainError("INVALID_STATE", "Borrow record has already been returned")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Return quantity must be positive")
	}
	if quantity >= record.QuantityBorrowed {
		return nil, shared.NewDomainError("INVALID_INPUT", "Quantity equals or exceeds the open loan; use a full return")
	}

	record.decrement(quantity)
	record.UpdatedAt = now

	returned := record.split(referenceCode, quantity, now)
	i.BorrowRecords = append(i.BorrowRecords, *returned)
	i.UpdatedAt = now
	i.IncrementVersion()

	i.AddDomainEvent(NewReturnedEvent(i, returned, quantity, true))

	return returned, nil
}

// UpdateMetadata changes descriptive fields only. The total quantity
// is fixed at registration; correcting it is a re-registration concern.
func (i *Item) UpdateMetadata(name, location, notes string) error {
	if name == "" {
		return shared.NewDomainError("INVALID_INPUT", "Equipment name cannot be empty")
	}

	i.Name = name
	i.Location = location
	i.Notes = notes
	i.UpdatedAt = time.Now()
	i.IncrementVersion()

	return nil
}
