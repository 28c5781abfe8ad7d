package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/equipment"
	"github.com/labstock/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormEquipmentItemRepository implements equipment.ItemRepository using GORM
type GormEquipmentItemRepository struct {
	db *gorm.DB
}

// NewGormEquipmentItemRepository creates a new GormEquipmentItemRepository
func NewGormEquipmentItemRepository(db *gorm.DB) *GormEquipmentItemRepository {
	return &GormEquipmentItemRepository{db: db}
}

// FindByID finds an equipment item by ID
func (r *GormEquipmentItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*equipment.Item, error) {
	var item equipment.Item
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// FindByName finds an equipment item by its exact name
func (r *GormEquipmentItemRepository) FindByName(ctx context.Context, name string) (*equipment.Item, error) {
	var item equipment.Item
	if err := r.db.WithContext(ctx).First(&item, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// FindAll returns equipment items matching the filter
func (r *GormEquipmentItemRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*equipment.Item, error) {
	var items []*equipment.Item
	query := r.db.WithContext(ctx).Model(&equipment.Item{})

	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(location) LIKE ?", pattern, pattern)
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, EquipmentSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)

	if err := query.Order(orderBy + " " + orderDir).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Count returns the number of equipment items
func (r *GormEquipmentItemRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&equipment.Item{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save persists an equipment item. Borrow record children are written
// through their own repository.
func (r *GormEquipmentItemRepository) Save(ctx context.Context, item *equipment.Item) error {
	return r.db.WithContext(ctx).Omit("BorrowRecords").Save(item).Error
}

// SaveWithLock persists an item using optimistic locking on its version.
// Loan operations bump the version without changing stored stock, so
// this write is what serializes concurrent availability decisions.
func (r *GormEquipmentItemRepository) SaveWithLock(ctx context.Context, item *equipment.Item) error {
	result := r.db.WithContext(ctx).
		Model(&equipment.Item{}).
		Where("id = ? AND version = ?", item.ID, item.Version-1).
		Updates(map[string]interface{}{
			"name":           item.Name,
			"location":       item.Location,
			"notes":          item.Notes,
			"total_quantity": item.TotalQuantity,
			"version":        item.Version,
			"updated_at":     item.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("CONCURRENCY_CONFLICT", "Equipment item was modified by another transaction")
	}
	return nil
}

// Delete removes an equipment item
func (r *GormEquipmentItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&equipment.Item{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MostBorrowed returns equipment ranked by number of borrow records
func (r *GormEquipmentItemRepository) MostBorrowed(ctx context.Context, limit int) ([]equipment.BorrowTally, error) {
	if limit <= 0 {
		limit = 10
	}

	var tallies []equipment.BorrowTally
	if err := r.db.WithContext(ctx).
		Model(&equipment.BorrowRecord{}).
		Select("borrow_records.equipment_id AS equipment_id, equipment_items.name AS equipment_name, COUNT(borrow_records.id) AS borrow_count, COALESCE(SUM(borrow_records.quantity_borrowed), 0) AS total_quantity").
		Joins("JOIN equipment_items ON equipment_items.id = borrow_records.equipment_id").
		Group("borrow_records.equipment_id, equipment_items.name").
		Order("borrow_count DESC").
		Limit(limit).
		Scan(&tallies).Error; err != nil {
		return nil, err
	}
	return tallies, nil
}

// Ensure GormEquipmentItemRepository implements equipment.ItemRepository
var _ equipment.ItemRepository = (*GormEquipmentItemRepository)(nil)
