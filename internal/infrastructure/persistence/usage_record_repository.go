package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/consumable"
	"github.com/labstock/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormUsageRecordRepository implements consumable.UsageRecordRepository using GORM
type GormUsageRecordRepository struct {
	db *gorm.DB
}

// NewGormUsageRecordRepository creates a new GormUsageRecordRepository
func NewGormUsageRecordRepository(db *gorm.DB) *GormUsageRecordRepository {
	return &GormUsageRecordRepository{db: db}
}

// FindByID finds a usage record by its ID
func (r *GormUsageRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*consumable.UsageRecord, error) {
	var record consumable.UsageRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// FindByItem finds usage records belonging to an item, newest first
func (r *GormUsageRecordRepository) FindByItem(ctx context.Context, itemID uuid.UUID, filter shared.Filter) ([]consumable.UsageRecord, error) {
	var records []consumable.UsageRecord
	query := r.db.WithContext(ctx).
		Model(&consumable.UsageRecord{}).
		Where("item_id = ?", itemID)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, UsageRecordSortFields, "consumed_at")
	orderDir := ValidateSortOrder(filter.OrderDir)

	if err := query.Order(orderBy + " " + orderDir).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Save inserts a new usage record
func (r *GormUsageRecordRepository) Save(ctx context.Context, record *consumable.UsageRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// Update persists the one-way return transition
func (r *GormUsageRecordRepository) Update(ctx context.Context, record *consumable.UsageRecord) error {
	result := r.db.WithContext(ctx).
		Model(&consumable.UsageRecord{}).
		Where("id = ?", record.ID).
		Updates(map[string]interface{}{
			"returned_at": record.ReturnedAt,
			"updated_at":  record.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountByItem counts records belonging to an item
func (r *GormUsageRecordRepository) CountByItem(ctx context.Context, itemID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&consumable.UsageRecord{}).
		Where("item_id = ?", itemID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteByItem removes all records of an item (cascade delete path)
func (r *GormUsageRecordRepository) DeleteByItem(ctx context.Context, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&consumable.UsageRecord{}, "item_id = ?", itemID).Error
}

// Ensure GormUsageRecordRepository implements consumable.UsageRecordRepository
var _ consumable.UsageRecordRepository = (*GormUsageRecordRepository)(nil)
