package maintenance

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/maintenance"
	"github.com/shopspring/decimal"
)

// TaskResponse represents a maintenance task in API responses
type TaskResponse struct {
	ID          uuid.UUID        `json:"id"`
	EquipmentID uuid.UUID        `json:"equipment_id"`
	Kind        string           `json:"kind"`
	Status      string           `json:"status"`
	ScheduledAt time.Time        `json:"scheduled_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	PerformedBy string           `json:"performed_by,omitempty"`
	Cost        *decimal.Decimal `json:"cost,omitempty"`
	Notes       string           `json:"notes,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Version     int              `json:"version"`
}

// ScheduleTaskRequest represents a request to schedule maintenance
type ScheduleTaskRequest struct {
	Kind        string    `json:"kind" binding:"required,oneof=calibration repair preventive inspection"`
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
}

// CompleteTaskRequest represents a request to complete a task.
// CompletedAt defaults to now when absent.
type CompleteTaskRequest struct {
	CompletedAt *time.Time       `json:"completed_at"`
	PerformedBy string           `json:"performed_by" binding:"max=100"`
	Cost        *decimal.Decimal `json:"cost"`
	Notes       string           `json:"notes" binding:"max=1000"`
}

// TaskFilter represents filter options for the task listing
type TaskFilter struct {
	Status      string     `form:"status" binding:"omitempty,oneof=scheduled overdue completed"`
	EquipmentID *uuid.UUID `form:"equipment_id"`
	Page        int        `form:"page" binding:"omitempty,min=1"`
	PageSize    int        `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// SweepResponse reports one overdue sweep pass
type SweepResponse struct {
	Matched      int64     `json:"matched"`
	Transitioned int64     `json:"transitioned"`
	SweptAt      time.Time `json:"swept_at"`
}

// ToTaskResponse converts a domain task to its response form
func ToTaskResponse(task *maintenance.Task) TaskResponse {
	resp := TaskResponse{
		ID:          task.ID,
		EquipmentID: task.EquipmentID,
		Kind:        task.Kind.String(),
		Status:      task.Status.String(),
		ScheduledAt: task.ScheduledAt,
		CompletedAt: task.CompletedAt,
		PerformedBy: task.PerformedBy,
		Notes:       task.Notes,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
		Version:     task.Version,
	}
	if task.Cost.Valid {
		cost := task.Cost.Decimal
		resp.Cost = &cost
	}
	return resp
}

// ToTaskResponses converts a slice of domain tasks
func ToTaskResponses(tasks []*maintenance.Task) []TaskResponse {
	responses := make([]TaskResponse, len(tasks))
	for i, task := range tasks {
		responses[i] = ToTaskResponse(task)
	}
	return responses
}
