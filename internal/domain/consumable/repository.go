package consumable

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/shared"
)

// ItemRepository defines the interface for consumable item persistence
type ItemRepository interface {
	// FindByID finds a consumable item by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Item, error)

	// FindAll finds consumable items matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]Item, error)

	// Count counts consumable items matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// Save creates or updates an item without a version check
	Save(ctx context.Context, item *Item) error

	// SaveWithLock saves with optimistic locking (checks version)
	SaveWithLock(ctx context.Context, item *Item) error

	// Delete deletes an item. Callers must have settled child records first.
	Delete(ctx context.Context, id uuid.UUID) error

	// FindLowStock finds items whose on-hand stock is at or below
	// openingBalance divided by denominator (openingBalance > 0 only)
	FindLowStock(ctx context.Context, denominator int64) ([]Item, error)

	// FindExpiringWithin finds items whose expiry falls inside [now, now+days]
	FindExpiringWithin(ctx context.Context, now time.Time, days int) ([]Item, error)

	// TopConsumed returns items ordered by period consumption, highest first
	TopConsumed(ctx context.Context, limit int) ([]Item, error)
}

// UsageRecordRepository defines the interface for usage record persistence.
// Records are created by Item.Consume and flipped exactly once by the
// return transition; nothing else mutates them.
type UsageRecordRepository interface {
	// FindByID finds a usage record by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*UsageRecord, error)

	// FindByItem finds usage records belonging to an item, newest first
	FindByItem(ctx context.Context, itemID uuid.UUID, filter shared.Filter) ([]UsageRecord, error)

	// Save inserts a new usage record
	Save(ctx context.Context, record *UsageRecord) error

	// Update persists the one-way return transition
	Update(ctx context.Context, record *UsageRecord) error

	// CountByItem counts records belonging to an item
	CountByItem(ctx context.Context, itemID uuid.UUID) (int64, error)

	// DeleteByItem removes all records of an item (cascade delete path)
	DeleteByItem(ctx context.Context, itemID uuid.UUID) error
}
