package consumable

import (
	"time"

	"github.com/labstock/backend/internal/domain/shared"
)

// DefaultLowStockDenominator defines the low-stock threshold as a
// fraction of the opening balance: on-hand at or below 1/10 of the
// opening balance counts as low.
const DefaultLowStockDenominator = 10

// Item is the aggregate root for a consumable supply. It carries the
// period ledger: the opening balance from the prior accounting period,
// cumulative consumption since the last rollover, the unreleased
// storage buffer, and the physically available on-hand count. The
// closing balance is derived and normalized after every mutation.
type Item struct {
	shared.BaseAggregateRoot
	Name               string `gorm:"type:varchar(200);not null;index:idx_consumable_name"`
	Unit               string `gorm:"type:varchar(50)"`
	LotNumber          string `gorm:"type:varchar(100)"`
	IsReturnable       bool   `gorm:"not null;default:false"`
	ItemsOnHand        int64  `gorm:"not null;default:0"`
	ItemsInStorage     int64  `gorm:"not null;default:0"`
	OpeningBalance     int64  `gorm:"not null;default:0"`
	ConsumedThisPeriod int64  `gorm:"not null;default:0"`
	ClosingBalance     int64  `gorm:"not null;default:0"`
	ExpiresAt          *time.Time `gorm:"type:timestamptz;index:idx_consumable_expiry"`
	ReceivedAt         *time.Time `gorm:"type:timestamptz"`

	// Associations - loaded lazily
	UsageRecords []UsageRecord `gorm:"foreignKey:ItemID;references:ID"`
}

// TableName returns the table name for GORM
func (Item) TableName() string {
	return "consumable_items"
}

// NewItem registers a new consumable item with its initial stock
// position. The closing balance is derived immediately.
func NewItem(name, unit string, isReturnable bool, onHand, inStorage, opening int64) (*Item, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Item name cannot be empty")
	}
	if onHand < 0 || inStorage < 0 || opening < 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Initial stock quantities cannot be negative")
	}

	item := &Item{
		BaseAggregateRoot:  shared.NewBaseAggregateRoot(),
		Name:               name,
		Unit:               unit,
		IsReturnable:       isReturnable,
		ItemsOnHand:        onHand,
		ItemsInStorage:     inStorage,
		OpeningBalance:     opening,
		ConsumedThisPeriod: 0,
		UsageRecords:       make([]UsageRecord, 0),
	}
	item.recalc()

	return item, nil
}

// Consume removes quantity from on-hand stock and books it against the
// current period. Consumption is all-or-nothing: a request larger than
// the on-hand count fails without touching any field.
func (i *Item) Consume(quantity int64, usedBy, purpose string) (*UsageRecord, error) {
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Consume quantity must be positive")
	}
	if i.ItemsOnHand < quantity {
		return nil, shared.NewDomainError("INSUFFICIENT_STOCK", "Requested quantity exceeds on-hand stock")
	}

	i.ItemsOnHand -= quantity
	i.ConsumedThisPeriod += quantity
	i.recalc()
	i.UpdatedAt = time.Now()
	i.IncrementVersion()

	record := newUsageRecord(i.ID, quantity, usedBy, purpose)
	i.UsageRecords = append(i.UsageRecords, *record)

	i.AddDomainEvent(NewConsumedEvent(i, record))
	if i.isLowStock() {
		i.AddDomainEvent(NewStockLowEvent(i))
	}

	return record, nil
}

// Replenish releases quantity from the storage buffer into on-hand
// stock. It never creates stock: the storage buffer must cover it.
func (i *Item) Replenish(quantity int64) error {
	if quantity <= 0 {
		return shared.NewDomainError("INVALID_INPUT", "Replenish quantity must be positive")
	}
	if i.ItemsInStorage < quantity {
		return shared.NewDomainError("INSUFFICIENT_STOCK", "Requested quantity exceeds storage buffer")
	}

	i.ItemsInStorage -= quantity
	i.ItemsOnHand += quantity
	i.recalc()
	i.UpdatedAt = time.Now()
	i.IncrementVersion()

	return nil
}

// ReceiveStock books an external supply arrival into the storage
// buffer. There is no upper cap.
func (i *Item) ReceiveStock(quantity int64, receivedAt time.Time) error {
	if quantity <= 0 {
		return shared.NewDomainError("INVALID_INPUT", "Received quantity must be positive")
	}

	i.ItemsInStorage += quantity
	i.ReceivedAt = &receivedAt
	i.recalc()
	i.UpdatedAt = time.Now()
	i.IncrementVersion()

	return nil
}

// AcceptReturn puts a previously consumed quantity back on hand. The
// period consumption figure is deliberately left untouched: the
// consumption happened and remains accounting history. Only returnable
// items accept returns, and a record returns at most once.
func (i *Item) AcceptReturn(record *UsageRecord, now time.Time) error {
	if !i.IsReturnable {
		return shared.NewDomainError("INVALID_STATE", "Item is not returnable")
	}
	if record.ItemID != i.ID {
		return shared.NewDomainError("INVALID_INPUT", "Usage record does not belong to this item")
	}
	if err := record.markReturned(now); err != nil {
		return err
	}

	i.ItemsOnHand += record.Quantity
	i.recalc()
	i.UpdatedAt = time.Now()
	i.IncrementVersion()

	i.AddDomainEvent(NewUsageReturnedEvent(i, record))

	return nil
}

// RolloverSummary captures the ledger position a rollover closed out,
// for the audit trail.
type RolloverSummary struct {
	PreviousOpening  int64
	PreviousClosing  int64
	ConsumedInPeriod int64
	DroppedStorage   int64
}

// RolloverPeriod closes the current accounting period: the closing
// balance becomes the next opening balance, period consumption resets,
// and any unreleased storage buffer is dropped from the ledger rather
// than silently carried. On-hand stock is physical and period
// independent, so it stays as is. Calling twice in one period is
// accepted; gating on the period boundary is the caller's job.
func (i *Item) RolloverPeriod() RolloverSummary {
	summary := RolloverSummary{
		PreviousOpening:  i.OpeningBalance,
		PreviousClosing:  i.ClosingBalance,
		ConsumedInPeriod: i.ConsumedThisPeriod,
		DroppedStorage:   i.ItemsInStorage,
	}

	i.OpeningBalance = i.ClosingBalance
	i.ConsumedThisPeriod = 0
	i.ItemsInStorage = 0
	i.recalc()
	i.UpdatedAt = time.Now()
	i.IncrementVersion()

	return summary
}

// RecalcAndNormalize recomputes the derived closing balance and clamps
// every stock field to non-negative. The same computation runs inside
// every mutating method; this exported form exists for external
// repair and reconciliation.
func (i *Item) RecalcAndNormalize() {
	i.recalc()
	i.UpdatedAt = time.Now()
	i.IncrementVersion()
}

// recalc centralizes the derived-state arithmetic:
// closingBalance = max(0, openingBalance + itemsInStorage - consumedThisPeriod),
// with all stored fields clamped to >= 0.
func (i *Item) recalc() {
	i.ItemsOnHand = clampNonNegative(i.ItemsOnHand)
	i.ItemsInStorage = clampNonNegative(i.ItemsInStorage)
	i.OpeningBalance = clampNonNegative(i.OpeningBalance)
	i.ConsumedThisPeriod = clampNonNegative(i.ConsumedThisPeriod)
	i.ClosingBalance = clampNonNegative(i.OpeningBalance + i.ItemsInStorage - i.ConsumedThisPeriod)
}

// UpdateMetadata changes descriptive fields only; the ledger numbers
// are never touched here.
func (i *Item) UpdateMetadata(name, unit, lotNumber string, expiresAt *time.Time) error {
	if name == "" {
		return shared.NewDomainError("INVALID_INPUT", "Item name cannot be empty")
	}

	i.Name = name
	i.Unit = unit
	i.LotNumber = lotNumber
	i.ExpiresAt = expiresAt
	i.UpdatedAt = time.Now()
	i.IncrementVersion()

	return nil
}

// isLowStock reports whether on-hand stock has fallen to or below the
// low-stock threshold relative to the opening balance.
func (i *Item) isLowStock() bool {
	if i.OpeningBalance <= 0 {
		return false
	}
	return i.ItemsOnHand*DefaultLowStockDenominator <= i.OpeningBalance
}

func clampNonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
