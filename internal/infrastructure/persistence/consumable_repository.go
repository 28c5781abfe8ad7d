package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/consumable"
	"github.com/labstock/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormConsumableItemRepository implements consumable.ItemRepository using GORM
type GormConsumableItemRepository struct {
	db *gorm.DB
}

// NewGormConsumableItemRepository creates a new GormConsumableItemRepository
func NewGormConsumableItemRepository(db *gorm.DB) *GormConsumableItemRepository {
	return &GormConsumableItemRepository{db: db}
}

// FindByID finds a consumable item by its ID
func (r *GormConsumableItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*consumable.Item, error) {
	var item consumable.Item
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// FindAll finds consumable items matching the filter
func (r *GormConsumableItemRepository) FindAll(ctx context.Context, filter shared.Filter) ([]consumable.Item, error) {
	var items []consumable.Item
	query := r.applyFilter(r.db.WithContext(ctx).Model(&consumable.Item{}), filter)

	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Count counts consumable items matching the filter
func (r *GormConsumableItemRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(r.db.WithContext(ctx).Model(&consumable.Item{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates an item without a version check.
// Usage record children are written through their own repository, so
// association writes are skipped here.
func (r *GormConsumableItemRepository) Save(ctx context.Context, item *consumable.Item) error {
	return r.db.WithContext(ctx).Omit("UsageRecords").Save(item).Error
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormConsumableItemRepository) SaveWithLock(ctx context.Context, item *consumable.Item) error {
	result := r.db.WithContext(ctx).
		Model(&consumable.Item{}).
		Where("id = ? AND version = ?", item.ID, item.Version-1).
		Updates(map[string]interface{}{
			"name":                 item.Name,
			"unit":                 item.Unit,
			"lot_number":           item.LotNumber,
			"is_returnable":        item.IsReturnable,
			"items_on_hand":        item.ItemsOnHand,
			"items_in_storage":     item.ItemsInStorage,
			"opening_balance":      item.OpeningBalance,
			"consumed_this_period": item.ConsumedThisPeriod,
			"closing_balance":      item.ClosingBalance,
			"expires_at":           item.ExpiresAt,
			"received_at":          item.ReceivedAt,
			"version":              item.Version,
			"updated_at":           item.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("CONCURRENCY_CONFLICT", "Consumable item was modified by another transaction")
	}
	return nil
}

// Delete deletes an item. Callers must have settled child records first.
func (r *GormConsumableItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&consumable.Item{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindLowStock finds items whose on-hand stock is at or below
// openingBalance divided by denominator. Items with no opening balance
// never qualify; a fresh registration is not "low".
func (r *GormConsumableItemRepository) FindLowStock(ctx context.Context, denominator int64) ([]consumable.Item, error) {
	if denominator <= 0 {
		denominator = consumable.DefaultLowStockDenominator
	}

	var items []consumable.Item
	if err := r.db.WithContext(ctx).
		Where("opening_balance > 0 AND items_on_hand * ? <= opening_balance", denominator).
		Order("items_on_hand ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// FindExpiringWithin finds items whose expiry falls inside [now, now+days]
func (r *GormConsumableItemRepository) FindExpiringWithin(ctx context.Context, now time.Time, days int) ([]consumable.Item, error) {
	horizon := now.AddDate(0, 0, days)

	var items []consumable.Item
	if err := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at >= ? AND expires_at <= ?", now, horizon).
		Order("expires_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// TopConsumed returns items ordered by period consumption, highest first
func (r *GormConsumableItemRepository) TopConsumed(ctx context.Context, limit int) ([]consumable.Item, error) {
	if limit <= 0 {
		limit = 10
	}

	var items []consumable.Item
	if err := r.db.WithContext(ctx).
		Where("consumed_this_period > 0").
		Order("consumed_this_period DESC").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// applyFilter applies filter options to the query
func (r *GormConsumableItemRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	// Apply pagination
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	// Apply ordering
	orderBy := ValidateSortField(filter.OrderBy, ConsumableSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir)

	return query
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormConsumableItemRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(lot_number) LIKE ?", pattern, pattern)
	}

	for key, value := range filter.Filters {
		switch key {
		case "is_returnable":
			query = query.Where("is_returnable = ?", value)
		case "unit":
			query = query.Where("unit = ?", value)
		case "has_stock":
			if value == true {
				query = query.Where("items_on_hand > 0")
			}
		case "no_stock":
			if value == true {
				query = query.Where("items_on_hand = 0 AND items_in_storage = 0")
			}
		}
	}

	return query
}

// Ensure GormConsumableItemRepository implements consumable.ItemRepository
var _ consumable.ItemRepository = (*GormConsumableItemRepository)(nil)
