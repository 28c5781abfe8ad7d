package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/equipment"
	"github.com/labstock/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormBorrowRecordRepository implements equipment.BorrowRecordRepository using GORM
type GormBorrowRecordRepository struct {
	db *gorm.DB
}

// NewGormBorrowRecordRepository creates a new GormBorrowRecordRepository
func NewGormBorrowRecordRepository(db *gorm.DB) *GormBorrowRecordRepository {
	return &GormBorrowRecordRepository{db: db}
}

// FindByID finds a borrow record by ID
func (r *GormBorrowRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*equipment.BorrowRecord, error) {
	var record equipment.BorrowRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// FindByReference finds a borrow record by its reference code
func (r *GormBorrowRecordRepository) FindByReference(ctx context.Context, referenceCode string) (*equipment.BorrowRecord, error) {
	var record equipment.BorrowRecord
	if err := r.db.WithContext(ctx).First(&record, "reference_code = ?", referenceCode).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// FindByEquipment returns records for one equipment item, newest first
func (r *GormBorrowRecordRepository) FindByEquipment(ctx context.Context, equipmentID uuid.UUID, filter shared.Filter) ([]*equipment.BorrowRecord, error) {
	var records []*equipment.BorrowRecord
	query := r.db.WithContext(ctx).
		Model(&equipment.BorrowRecord{}).
		Where("equipment_id = ?", equipmentID)

	query = r.applyRecordFilters(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, BorrowRecordSortFields, "borrowed_at")
	orderDir := ValidateSortOrder(filter.OrderDir)

	if err := query.Order(orderBy + " " + orderDir).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// FindActive returns all records not yet returned, oldest first
func (r *GormBorrowRecordRepository) FindActive(ctx context.Context, filter shared.Filter) ([]*equipment.BorrowRecord, error) {
	var records []*equipment.BorrowRecord
	query := r.db.WithContext(ctx).
		Model(&equipment.BorrowRecord{}).
		Where("returned_at IS NULL")

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if err := query.Order("borrowed_at ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// SumActiveQuantity returns the total quantity currently lent out for an item.
// This is the in-use figure availability derives from; it must run inside
// the same transaction as the item write it informs.
func (r *GormBorrowRecordRepository) SumActiveQuantity(ctx context.Context, equipmentID uuid.UUID) (int64, error) {
	var result struct {
		Total int64
	}
	if err := r.db.WithContext(ctx).
		Model(&equipment.BorrowRecord{}).
		Select("COALESCE(SUM(quantity_borrowed), 0) AS total").
		Where("equipment_id = ? AND returned_at IS NULL", equipmentID).
		Scan(&result).Error; err != nil {
		return 0, err
	}
	return result.Total, nil
}

// CountActiveByEquipment returns how many open records an item has
func (r *GormBorrowRecordRepository) CountActiveByEquipment(ctx context.Context, equipmentID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&equipment.BorrowRecord{}).
		Where("equipment_id = ? AND returned_at IS NULL", equipmentID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountByEquipment returns how many records an item has, open or closed
func (r *GormBorrowRecordRepository) CountByEquipment(ctx context.Context, equipmentID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&equipment.BorrowRecord{}).
		Where("equipment_id = ?", equipmentID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save persists a borrow record
func (r *GormBorrowRecordRepository) Save(ctx context.Context, record *equipment.BorrowRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// Update persists changes to an existing borrow record
func (r *GormBorrowRecordRepository) Update(ctx context.Context, record *equipment.BorrowRecord) error {
	result := r.db.WithContext(ctx).
		Model(&equipment.BorrowRecord{}).
		Where("id = ?", record.ID).
		Updates(map[string]interface{}{
			"quantity_borrowed": record.QuantityBorrowed,
			"returned_at":       record.ReturnedAt,
			"updated_at":        record.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteByEquipment removes all records belonging to an equipment item
func (r *GormBorrowRecordRepository) DeleteByEquipment(ctx context.Context, equipmentID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&equipment.BorrowRecord{}, "equipment_id = ?", equipmentID).Error
}

// applyRecordFilters applies the map filters understood by record listings
func (r *GormBorrowRecordRepository) applyRecordFilters(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "active":
			if value == true {
				query = query.Where("returned_at IS NULL")
			}
		case "returned":
			if value == true {
				query = query.Where("returned_at IS NOT NULL")
			}
		case "borrower_type":
			query = query.Where("borrower_type = ?", value)
		case "borrower_name":
			query = query.Where("borrower_name = ?", value)
		}
	}
	return query
}

// Ensure GormBorrowRecordRepository implements equipment.BorrowRecordRepository
var _ equipment.BorrowRecordRepository = (*GormBorrowRecordRepository)(nil)
