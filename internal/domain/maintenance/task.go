package maintenance

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// TaskKind classifies what kind of work a maintenance task covers
type TaskKind string

const (
	KindCalibration TaskKind = "calibration"
	KindRepair      TaskKind = "repair"
	KindPreventive  TaskKind = "preventive"
	KindInspection  TaskKind = "inspection"
)

// IsValid checks if the kind is a known TaskKind
func (k TaskKind) IsValid() bool {
	switch k {
	case KindCalibration, KindRepair, KindPreventive, KindInspection:
		return true
	}
	return false
}

// String returns the string representation of TaskKind
func (k TaskKind) String() string {
	return string(k)
}

// TaskStatus represents the lifecycle state of a maintenance task
type TaskStatus string

const (
	StatusScheduled TaskStatus = "scheduled"
	StatusOverdue   TaskStatus = "overdue"
	StatusCompleted TaskStatus = "completed"
)

// IsValid checks if the status is a known TaskStatus
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusScheduled, StatusOverdue, StatusCompleted:
		return true
	}
	return false
}

// String returns the string representation of TaskStatus
func (s TaskStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can move to the target status.
// Completed is terminal; overdue never reverts to scheduled.
func (s TaskStatus) CanTransitionTo(target TaskStatus) bool {
	switch s {
	case StatusScheduled:
		return target == StatusOverdue || target == StatusCompleted
	case StatusOverdue:
		return target == StatusCompleted
	case StatusCompleted:
		return false
	}
	return false
}

// Task is the aggregate root for one unit of planned equipment care.
// CompletedAt is set exactly when the task reaches completed status,
// never before and never cleared afterwards.
type Task struct {
	shared.BaseAggregateRoot
	EquipmentID uuid.UUID           `gorm:"type:uuid;not null;index:idx_task_equipment"`
	Kind        TaskKind            `gorm:"type:varchar(20);not null"`
	Status      TaskStatus          `gorm:"type:varchar(20);not null;index:idx_task_status"`
	ScheduledAt time.Time           `gorm:"type:timestamptz;not null;index:idx_task_due"`
	CompletedAt *time.Time          `gorm:"type:timestamptz"`
	PerformedBy string              `gorm:"type:varchar(200)"`
	Cost        decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	Notes       string              `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (Task) TableName() string {
	return "maintenance_tasks"
}

// NewTask schedules maintenance work against a piece of equipment.
// Scheduling in the past is allowed; the task simply becomes a sweep
// candidate on the next pass.
func NewTask(equipmentID uuid.UUID, kind TaskKind, scheduledAt time.Time) (*Task, error) {
	if equipmentID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Equipment ID is required")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown maintenance kind %q", kind))
	}
	if scheduledAt.IsZero() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Scheduled time is required")
	}

	task := &Task{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		EquipmentID:       equipmentID,
		Kind:              kind,
		Status:            StatusScheduled,
		ScheduledAt:       scheduledAt,
	}
	task.AddDomainEvent(NewTaskScheduledEvent(task))

	return task, nil
}

// IsDue reports whether a scheduled task has passed its due time and
// qualifies for the overdue sweep.
func (t *Task) IsDue(now time.Time) bool {
	return t.Status == StatusScheduled && t.ScheduledAt.Before(now)
}

// IsTerminal reports whether the task can no longer change state
func (t *Task) IsTerminal() bool {
	return t.Status == StatusCompleted
}

// MarkOverdue transitions a scheduled task whose due time has passed.
// A task already overdue or completed is rejected, as is one whose due
// time is still ahead.
func (t *Task) MarkOverdue(now time.Time) error {
	if !t.Status.CanTransitionTo(StatusOverdue) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot mark %s task overdue", t.Status))
	}
	if !t.ScheduledAt.Before(now) {
		return shared.NewDomainError("INVALID_STATE", "Task is not yet due")
	}

	t.Status = StatusOverdue
	t.Touch()
	t.IncrementVersion()
	t.AddDomainEvent(NewTaskOverdueEvent(t))

	return nil
}

// Complete closes the task with the outcome of the work. Legal from
// scheduled or overdue; completing twice is an invalid-state error.
func (t *Task) Complete(completedAt time.Time, performedBy string, cost decimal.NullDecimal, notes string) error {
	if !t.Status.CanTransitionTo(StatusCompleted) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete %s task", t.Status))
	}
	if completedAt.IsZero() {
		completedAt = time.Now()
	}
	if cost.Valid && cost.Decimal.IsNegative() {
		return shared.NewDomainError("INVALID_INPUT", "Maintenance cost cannot be negative")
	}

	t.Status = StatusCompleted
	t.CompletedAt = &completedAt
	t.PerformedBy = performedBy
	t.Cost = cost
	if notes != "" {
		t.Notes = notes
	}
	t.Touch()
	t.IncrementVersion()
	t.AddDomainEvent(NewTaskCompletedEvent(t))

	return nil
}
