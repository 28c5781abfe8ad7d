package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	maintenanceapp "github.com/labstock/backend/internal/application/maintenance"
	"github.com/labstock/backend/internal/infrastructure/scheduler"
)

// SweepStatusProvider reports the background sweeper's view of its
// runs. The HTTP layer only reads the snapshot; it never drives the
// sweeper directly.
type SweepStatusProvider interface {
	Status() scheduler.SweepStatus
}

// MaintenanceHandler handles maintenance lifecycle API endpoints
type MaintenanceHandler struct {
	BaseHandler
	service *maintenanceapp.Service
	sweeper SweepStatusProvider
}

// NewMaintenanceHandler creates a new MaintenanceHandler. The sweeper
// may be nil when the background sweep is disabled.
func NewMaintenanceHandler(service *maintenanceapp.Service, sweeper SweepStatusProvider) *MaintenanceHandler {
	return &MaintenanceHandler{
		service: service,
		sweeper: sweeper,
	}
}

// Schedule books a maintenance task against an equipment item.
// POST /equipment/:id/maintenance
func (h *MaintenanceHandler) Schedule(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Acting identity required")
		return
	}

	equipmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid equipment ID format")
		return
	}

	var req maintenanceapp.ScheduleTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	task, err := h.service.Schedule(c.Request.Context(), equipmentID, req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, task)
}

// Complete marks a scheduled or overdue task as done, recording who
// performed it and at what cost.
// POST /maintenance/tasks/:id/complete
func (h *MaintenanceHandler) Complete(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Acting identity required")
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid task ID format")
		return
	}

	req := maintenanceapp.CompleteTaskRequest{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	task, err := h.service.Complete(c.Request.Context(), taskID, req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, task)
}

// List retrieves maintenance tasks filtered by status or equipment.
// GET /maintenance/tasks
func (h *MaintenanceHandler) List(c *gin.Context) {
	var filter maintenanceapp.TaskFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	tasks, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, tasks, total, filter.Page, filter.PageSize)
}

// Upcoming lists scheduled tasks falling due within the horizon.
// GET /maintenance/upcoming?horizon_days=
func (h *MaintenanceHandler) Upcoming(c *gin.Context) {
	horizonDays, _ := strconv.Atoi(c.DefaultQuery("horizon_days", "0"))

	tasks, err := h.service.Upcoming(c.Request.Context(), horizonDays)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, tasks)
}

// SweepOverdue flips every past-due scheduled task to overdue in one
// pass. The same transition the background sweeper applies, triggered
// on demand.
// POST /maintenance/sweep-overdue
func (h *MaintenanceHandler) SweepOverdue(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Acting identity required")
		return
	}

	result, err := h.service.SweepOverdue(c.Request.Context(), time.Now().UTC(), actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// SweepStatus reports the background sweeper's last pass.
// GET /maintenance/sweep-status
func (h *MaintenanceHandler) SweepStatus(c *gin.Context) {
	if h.sweeper == nil {
		h.Success(c, scheduler.SweepStatus{Enabled: false})
		return
	}

	h.Success(c, h.sweeper.Status())
}
