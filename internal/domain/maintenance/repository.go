package maintenance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/shared"
)

// TaskRepository defines the persistence port for maintenance tasks
type TaskRepository interface {
	// FindByID finds a task by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Task, error)

	// FindAll returns tasks matching the filter, soonest due first.
	// Filters understands "status" and "equipment_id" keys.
	FindAll(ctx context.Context, filter shared.Filter) ([]*Task, error)

	// Count returns the number of tasks matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// FindByEquipment returns tasks for one equipment item, newest first
	FindByEquipment(ctx context.Context, equipmentID uuid.UUID, filter shared.Filter) ([]*Task, error)

	// FindByStatus returns tasks in the given status, oldest due first
	FindByStatus(ctx context.Context, status TaskStatus, filter shared.Filter) ([]*Task, error)

	// FindDueBefore returns scheduled tasks whose due time lies before now,
	// oldest due first, holding row locks on them until the surrounding
	// transaction ends. These are the sweep candidates.
	FindDueBefore(ctx context.Context, now time.Time) ([]*Task, error)

	// MarkOverdueByIDs flips the given scheduled tasks to overdue in one
	// bulk update and reports how many rows changed. Scoping the update
	// to explicit IDs keeps the transitioned set equal to the candidate
	// set a caller selected moments earlier. Versions of affected rows
	// are incremented in the same statement.
	MarkOverdueByIDs(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error)

	// FindUpcoming returns scheduled tasks due inside [now, now+horizon],
	// soonest first
	FindUpcoming(ctx context.Context, now time.Time, horizon time.Duration) ([]*Task, error)

	// Save persists a task
	Save(ctx context.Context, task *Task) error

	// SaveWithLock persists a task using optimistic locking on its version
	SaveWithLock(ctx context.Context, task *Task) error

	// CountByEquipment returns how many tasks reference an equipment item
	CountByEquipment(ctx context.Context, equipmentID uuid.UUID) (int64, error)

	// DeleteByEquipment removes all tasks belonging to an equipment item
	DeleteByEquipment(ctx context.Context, equipmentID uuid.UUID) error
}
