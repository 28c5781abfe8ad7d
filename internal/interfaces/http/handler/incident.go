package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	incidentapp "github.com/labstock/backend/internal/application/incident"
)

// IncidentHandler handles incident note API endpoints
type IncidentHandler struct {
	BaseHandler
	service *incidentapp.Service
}

// NewIncidentHandler creates a new IncidentHandler
func NewIncidentHandler(service *incidentapp.Service) *IncidentHandler {
	return &IncidentHandler{
		service: service,
	}
}

// Report files an incident note against exactly one equipment item or
// consumable item.
// POST /incidents
func (h *IncidentHandler) Report(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Acting identity required")
		return
	}

	var req incidentapp.ReportNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	note, err := h.service.Report(c.Request.Context(), req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, note)
}

// GetByID retrieves one incident note.
// GET /incidents/:id
func (h *IncidentHandler) GetByID(c *gin.Context) {
	noteID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid incident ID format")
		return
	}

	note, err := h.service.Get(c.Request.Context(), noteID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, note)
}

// List retrieves incident notes, optionally filtered by the equipment
// or consumable they were filed against.
// GET /incidents
func (h *IncidentHandler) List(c *gin.Context) {
	var filter incidentapp.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	notes, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, notes)
}
