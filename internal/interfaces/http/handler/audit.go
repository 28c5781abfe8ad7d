package handler

import (
	"github.com/gin-gonic/gin"

	auditapp "github.com/labstock/backend/internal/application/audit"
)

// AuditHandler handles the read-only audit trail endpoint. There are
// no write routes; entries are appended only by the engine itself.
type AuditHandler struct {
	BaseHandler
	service *auditapp.Service
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(service *auditapp.Service) *AuditHandler {
	return &AuditHandler{
		service: service,
	}
}

// List retrieves audit entries in insertion order, filtered by actor,
// action and time window.
// GET /audit/entries
func (h *AuditHandler) List(c *gin.Context) {
	var filter auditapp.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}

	entries, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, entries, total, filter.Page, filter.PageSize)
}
