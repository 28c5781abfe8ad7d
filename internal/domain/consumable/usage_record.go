package consumable

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/shared"
)

// UsageRecord is one consumption of a consumable item. It is owned by
// the item and immutable once returned: the return transition is
// strictly one way, null to timestamp.
type UsageRecord struct {
	shared.BaseEntity
	ItemID     uuid.UUID  `gorm:"type:uuid;not null;index:idx_usage_item"`
	Quantity   int64      `gorm:"not null"`
	UsedBy     string     `gorm:"type:varchar(100)"`
	Purpose    string     `gorm:"type:varchar(255)"`
	ConsumedAt time.Time  `gorm:"type:timestamptz;not null;index:idx_usage_consumed"`
	ReturnedAt *time.Time `gorm:"type:timestamptz"`
}

// TableName returns the table name for GORM
func (UsageRecord) TableName() string {
	return "usage_records"
}

func newUsageRecord(itemID uuid.UUID, quantity int64, usedBy, purpose string) *UsageRecord {
	return &UsageRecord{
		BaseEntity: shared.NewBaseEntity(),
		ItemID:     itemID,
		Quantity:   quantity,
		UsedBy:     usedBy,
		Purpose:    purpose,
		ConsumedAt: time.Now(),
	}
}

// IsReturned reports whether the consumed quantity has come back
func (r *UsageRecord) IsReturned() bool {
	return r.ReturnedAt != nil
}

// markReturned performs the one-way return transition. The aggregate
// drives this so that the stock adjustment and the record flip stay
// together.
func (r *UsageRecord) markReturned(now time.Time) error {
	if r.ReturnedAt != nil {
		return shared.NewDomainError("INVALID_STATE", "Usage record has already been returned")
	}
	r.ReturnedAt = &now
	r.UpdatedAt = now
	return nil
}
