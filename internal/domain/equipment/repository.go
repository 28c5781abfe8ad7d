package equipment

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/shared"
)

// BorrowTally aggregates how often a piece of equipment has been lent out.
type BorrowTally struct {
	EquipmentID   uuid.UUID `json:"equipment_id"`
	EquipmentName string    `json:"equipment_name"`
	BorrowCount   int64     `json:"borrow_count"`
	TotalQuantity int64     `json:"total_quantity"`
}

// ItemRepository defines the persistence port for equipment items
type ItemRepository interface {
	// FindByID finds an equipment item by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Item, error)

	// FindByName finds an equipment item by its exact name
	FindByName(ctx context.Context, name string) (*Item, error)

	// FindAll returns equipment items matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]*Item, error)

	// Count returns the number of equipment items
	Count(ctx context.Context) (int64, error)

	// Save persists an equipment item
	Save(ctx context.Context, item *Item) error

	// SaveWithLock persists an item using optimistic locking on its version
	SaveWithLock(ctx context.Context, item *Item) error

	// Delete removes an equipment item
	Delete(ctx context.Context, id uuid.UUID) error

	// MostBorrowed returns equipment ranked by number of borrow records
	MostBorrowed(ctx context.Context, limit int) ([]BorrowTally, error)
}

// BorrowRecordRepository defines the persistence port for borrow records
type BorrowRecordRepository interface {
	// FindByID finds a borrow record by ID
	FindByID(ctx context.Context, id uuid.UUID) (*BorrowRecord, error)

	// FindByReference finds a borrow record by its reference code
	FindByReference(ctx context.Context, referenceCode string) (*BorrowRecord, error)

	// FindByEquipment returns records for one equipment item, newest first
	FindByEquipment(ctx context.Context, equipmentID uuid.UUID, filter shared.Filter) ([]*BorrowRecord, error)

	// FindActive returns all records not yet returned, oldest first
	FindActive(ctx context.Context, filter shared.Filter) ([]*BorrowRecord, error)

	// SumActiveQuantity returns the total quantity currently lent out for an item
	SumActiveQuantity(ctx context.Context, equipmentID uuid.UUID) (int64, error)

	// CountActiveByEquipment returns how many open records an item has
	CountActiveByEquipment(ctx context.Context, equipmentID uuid.UUID) (int64, error)

	// CountByEquipment returns how many records an item has, open or closed
	CountByEquipment(ctx context.Context, equipmentID uuid.UUID) (int64, error)

	// Save persists a borrow record
	Save(ctx context.Context, record *BorrowRecord) error

	// Update persists changes to an existing borrow record
	Update(ctx context.Context, record *BorrowRecord) error

	// DeleteByEquipment removes all records belonging to an equipment item
	DeleteByEquipment(ctx context.Context, equipmentID uuid.UUID) error
}
