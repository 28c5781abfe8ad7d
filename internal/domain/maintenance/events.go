package maintenance

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeMaintenanceTask = "MaintenanceTask"

// Event type constants
const (
	EventTypeTaskScheduled = "MaintenanceTaskScheduled"
	EventTypeTaskOverdue   = "MaintenanceTaskOverdue"
	EventTypeTaskCompleted = "MaintenanceTaskCompleted"
)

// TaskScheduledEvent is raised when new maintenance work is planned
type TaskScheduledEvent struct {
	shared.BaseDomainEvent
	TaskID      uuid.UUID `json:"task_id"`
	EquipmentID uuid.UUID `json:"equipment_id"`
	Kind        string    `json:"kind"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// NewTaskScheduledEvent creates a new TaskScheduledEvent
func NewTaskScheduledEvent(task *Task) *TaskScheduledEvent {
	return &TaskScheduledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTaskScheduled, AggregateTypeMaintenanceTask, task.ID),
		TaskID:          task.ID,
		EquipmentID:     task.EquipmentID,
		Kind:            task.Kind.String(),
		ScheduledAt:     task.ScheduledAt,
	}
}

// EventType returns the event type name
func (e *TaskScheduledEvent) EventType() string {
	return EventTypeTaskScheduled
}

// TaskOverdueEvent is raised when the sweep finds a task past its due time
type TaskOverdueEvent struct {
	shared.BaseDomainEvent
	TaskID      uuid.UUID `json:"task_id"`
	EquipmentID uuid.UUID `json:"equipment_id"`
	Kind        string    `json:"kind"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// NewTaskOverdueEvent creates a new TaskOverdueEvent
func NewTaskOverdueEvent(task *Task) *TaskOverdueEvent {
	return &TaskOverdueEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTaskOverdue, AggregateTypeMaintenanceTask, task.ID),
		TaskID:          task.ID,
		EquipmentID:     task.EquipmentID,
		Kind:            task.Kind.String(),
		ScheduledAt:     task.ScheduledAt,
	}
}

// EventType returns the event type name
func (e *TaskOverdueEvent) EventType() string {
	return EventTypeTaskOverdue
}

// TaskCompletedEvent is raised when maintenance work is closed out
type TaskCompletedEvent struct {
	shared.BaseDomainEvent
	TaskID      uuid.UUID `json:"task_id"`
	EquipmentID uuid.UUID `json:"equipment_id"`
	Kind        string    `json:"kind"`
	PerformedBy string    `json:"performed_by"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewTaskCompletedEvent creates a new TaskCompletedEvent
func NewTaskCompletedEvent(task *Task) *TaskCompletedEvent {
	completedAt := time.Now()
	if task.CompletedAt != nil {
		completedAt = *task.CompletedAt
	}
	return &TaskCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTaskCompleted, AggregateTypeMaintenanceTask, task.ID),
		TaskID:          task.ID,
		EquipmentID:     task.EquipmentID,
		Kind:            task.Kind.String(),
		PerformedBy:     task.PerformedBy,
		CompletedAt:     completedAt,
	}
}

// EventType returns the event type name
func (e *TaskCompletedEvent) EventType() string {
	return EventTypeTaskCompleted
}
