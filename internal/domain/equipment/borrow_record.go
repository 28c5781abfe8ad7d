package equipment

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/shared"
)

// BorrowRecord is one loan of a quantity of equipment. A record with a
// nil ReturnedAt is an active loan and counts toward the equipment's
// in-use total. Partial returns decrement the open record and spawn a
// new record for the returned portion, already stamped as returned.
type BorrowRecord struct {
	shared.BaseEntity
	EquipmentID      uuid.UUID  `gorm:"type:uuid;not null;index:idx_borrow_equipment"`
	ReferenceCode    string     `gorm:"type:varchar(30);not null;uniqueIndex:idx_borrow_reference"`
	BorrowerName     string     `gorm:"type:varchar(100);not null"`
	BorrowerType     string     `gorm:"type:varchar(50);not null;index:idx_borrow_borrower_type"`
	SectionCourse    string     `gorm:"type:varchar(100)"`
	Purpose          string     `gorm:"type:varchar(255)"`
	QuantityBorrowed int64      `gorm:"not null"`
	BorrowedAt       time.Time  `gorm:"type:timestamptz;not null;index:idx_borrow_borrowed"`
	ReturnedAt       *time.Time `gorm:"type:timestamptz"`
}

// TableName returns the table name for GORM
func (BorrowRecord) TableName() string {
	return "borrow_records"
}

func newBorrowRecord(equipmentID uuid.UUID, referenceCode string, borrower Borrower, quantity int64) *BorrowRecord {
	return &BorrowRecord{
		BaseEntity:       shared.NewBaseEntity(),
		EquipmentID:      equipmentID,
		ReferenceCode:    referenceCode,
		BorrowerName:     borrower.Name,
		BorrowerType:     borrower.Type,
		SectionCourse:    borrower.SectionCourse,
		Purpose:          borrower.Purpose,
		QuantityBorrowed: quantity,
		BorrowedAt:       time.Now(),
	}
}

// IsReturned reports whether the loan is closed
func (r *BorrowRecord) IsReturned() bool {
	return r.ReturnedAt != nil
}

// IsActive reports whether the loan still counts toward in-use stock
func (r *BorrowRecord) IsActive() bool {
	return r.ReturnedAt == nil
}

// markReturned performs the one-way return transition
func (r *BorrowRecord) markReturned(now time.Time) error {
	if r.ReturnedAt != nil {
		return shared.NewDomainError("INVALID_STATE", "Borrow record has already been returned")
	}
	r.ReturnedAt = &now
	r.UpdatedAt = now
	return nil
}

// decrement shrinks the open loan during a partial return
func (r *BorrowRecord) decrement(quantity int64) {
	r.QuantityBorrowed -= quantity
}

// split creates the already-returned record for a partially returned
// portion, preserving the borrower details and the original loan time.
func (r *BorrowRecord) split(referenceCode string, quantity int64, now time.Time) *BorrowRecord {
	returned := &BorrowRecord{
		BaseEntity:       shared.NewBaseEntity(),
		EquipmentID:      r.EquipmentID,
		ReferenceCode:    referenceCode,
		BorrowerName:     r.BorrowerName,
		BorrowerType:     r.BorrowerType,
		SectionCourse:    r.SectionCourse,
		Purpose:          r.Purpose,
		QuantityBorrowed: quantity,
		BorrowedAt:       r.BorrowedAt,
	}
	returned.ReturnedAt = &now
	return returned
}
