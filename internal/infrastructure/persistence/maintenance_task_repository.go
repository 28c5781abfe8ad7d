package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/maintenance"
	"github.com/labstock/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormMaintenanceTaskRepository implements maintenance.TaskRepository using GORM
type GormMaintenanceTaskRepository struct {
	db *gorm.DB
}

// NewGormMaintenanceTaskRepository creates a new GormMaintenanceTaskRepository
func NewGormMaintenanceTaskRepository(db *gorm.DB) *GormMaintenanceTaskRepository {
	return &GormMaintenanceTaskRepository{db: db}
}

// FindByID finds a task by ID
func (r *GormMaintenanceTaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*maintenance.Task, error) {
	var task maintenance.Task
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

// FindAll returns tasks matching the filter, soonest due first
func (r *GormMaintenanceTaskRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*maintenance.Task, error) {
	var tasks []*maintenance.Task
	query := r.applyTaskFilters(r.db.WithContext(ctx).Model(&maintenance.Task{}), filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, MaintenanceTaskSortFields, "scheduled_at")
	orderDir := "ASC"
	if filter.OrderDir != "" {
		orderDir = ValidateSortOrder(filter.OrderDir)
	}

	if err := query.Order(orderBy + " " + orderDir).Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Count returns the number of tasks matching the filter
func (r *GormMaintenanceTaskRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyTaskFilters(r.db.WithContext(ctx).Model(&maintenance.Task{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindByEquipment returns tasks for one equipment item, newest first
func (r *GormMaintenanceTaskRepository) FindByEquipment(ctx context.Context, equipmentID uuid.UUID, filter shared.Filter) ([]*maintenance.Task, error) {
	var tasks []*maintenance.Task
	query := r.db.WithContext(ctx).
		Model(&maintenance.Task{}).
		Where("equipment_id = ?", equipmentID)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if err := query.Order("scheduled_at DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// FindByStatus returns tasks in the given status, oldest due first
func (r *GormMaintenanceTaskRepository) FindByStatus(ctx context.Context, status maintenance.TaskStatus, filter shared.Filter) ([]*maintenance.Task, error) {
	var tasks []*maintenance.Task
	query := r.db.WithContext(ctx).
		Model(&maintenance.Task{}).
		Where("status = ?", status)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if err := query.Order("scheduled_at ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// FindDueBefore returns scheduled tasks whose due time lies before now,
// oldest due first. The rows come back locked so the candidate set
// cannot change under the sweep before it marks them.
func (r *GormMaintenanceTaskRepository) FindDueBefore(ctx context.Context, now time.Time) ([]*maintenance.Task, error) {
	var tasks []*maintenance.Task
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status = ? AND scheduled_at < ?", maintenance.StatusScheduled, now).
		Order("scheduled_at ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// MarkOverdueByIDs flips the given scheduled tasks to overdue in one
// bulk update. The ID scope pins the update to the candidate rows the
// sweep just selected; the status predicate keeps the transition
// idempotent under concurrent sweeps.
func (r *GormMaintenanceTaskRepository) MarkOverdueByIDs(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&maintenance.Task{}).
		Where("id IN ? AND status = ?", ids, maintenance.StatusScheduled).
		Updates(map[string]interface{}{
			"status":     maintenance.StatusOverdue,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})

	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// FindUpcoming returns scheduled tasks due inside [now, now+horizon],
// soonest first
func (r *GormMaintenanceTaskRepository) FindUpcoming(ctx context.Context, now time.Time, horizon time.Duration) ([]*maintenance.Task, error) {
	until := now.Add(horizon)

	var tasks []*maintenance.Task
	if err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at >= ? AND scheduled_at <= ?", maintenance.StatusScheduled, now, until).
		Order("scheduled_at ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Save persists a task
func (r *GormMaintenanceTaskRepository) Save(ctx context.Context, task *maintenance.Task) error {
	return r.db.WithContext(ctx).Save(task).Error
}

// SaveWithLock persists a task using optimistic locking on its version
func (r *GormMaintenanceTaskRepository) SaveWithLock(ctx context.Context, task *maintenance.Task) error {
	result := r.db.WithContext(ctx).
		Model(&maintenance.Task{}).
		Where("id = ? AND version = ?", task.ID, task.Version-1).
		Updates(map[string]interface{}{
			"status":       task.Status,
			"scheduled_at": task.ScheduledAt,
			"completed_at": task.CompletedAt,
			"performed_by": task.PerformedBy,
			"cost":         task.Cost,
			"notes":        task.Notes,
			"version":      task.Version,
			"updated_at":   task.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("CONCURRENCY_CONFLICT", "Maintenance task was modified by another transaction")
	}
	return nil
}

// CountByEquipment returns how many tasks reference an equipment item
func (r *GormMaintenanceTaskRepository) CountByEquipment(ctx context.Context, equipmentID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&maintenance.Task{}).
		Where("equipment_id = ?", equipmentID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteByEquipment removes all tasks belonging to an equipment item
func (r *GormMaintenanceTaskRepository) DeleteByEquipment(ctx context.Context, equipmentID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&maintenance.Task{}, "equipment_id = ?", equipmentID).Error
}

// applyTaskFilters applies the map filters understood by task listings
func (r *GormMaintenanceTaskRepository) applyTaskFilters(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "equipment_id":
			query = query.Where("equipment_id = ?", value)
		case "kind":
			query = query.Where("kind = ?", value)
		}
	}
	return query
}

// Ensure GormMaintenanceTaskRepository implements maintenance.TaskRepository
var _ maintenance.TaskRepository = (*GormMaintenanceTaskRepository)(nil)
