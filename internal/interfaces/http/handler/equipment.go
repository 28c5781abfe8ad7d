package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	equipmentapp "github.com/labstock/backend/internal/application/equipment"
)

// EquipmentHandler handles equipment loan ledger API endpoints
type EquipmentHandler struct {
	BaseHandler
	service *equipmentapp.Service
}

// NewEquipmentHandler creates a new EquipmentHandler
func NewEquipmentHandler(service *equipmentapp.Service) *EquipmentHandler {
	return &EquipmentHandler{
		service: service,
	}
}

// Register creates a new equipment item.
// POST /equipment
func (h *EquipmentHandler) Register(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Acting identity required")
		return
	}

	var req equipmentapp.RegisterItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	item, err := h.service.Register(c.Request.Context(), req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, item)
}

// GetByID retrieves an equipment item including its derived
// availability (total minus open loans).
// GET /equipment/:id
func (h *EquipmentHandler) GetByID(c *gin.Context) {
	equipmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid equipment ID format")
		return
	}

	item, err := h.service.Get(c.Request.Context(), equipmentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, item)
}

// List retrieves a paginated listing of equipment items.
// GET /equipment
func (h *EquipmentHandler) List(c *gin.Context) {
	var filter equipmentapp.ListFilter
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

	items, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, items, total, filter.Page, filter.PageSize)
}

// Update changes an equipment item's descriptive metadata. The total
// quantity is fixed at registration; lending moves through borrow and
// return only.
// PUT /equipment/:id
func (h *EquipmentHandler) Update(c *gin.Context) {
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

	var req equipmentapp.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	item, err := h.service.Update(c.Request.Context(), equipmentID, req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, item)
}

// Delete removes an equipment item. Without cascade=true the delete is
// rejected while borrow records still reference the item.
// DELETE /equipment/:id?cascade=
func (h *EquipmentHandler) Delete(c *gin.Context) {
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

	cascade, _ := strconv.ParseBool(c.DefaultQuery("cascade", "false"))

	if err := h.service.Delete(c.Request.Context(), equipmentID, cascade, actor); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// Borrow opens a loan against available equipment stock and issues a
// borrower-facing reference code for it.
// POST /equipment/:id/borrow
func (h *EquipmentHandler) Borrow(c *gin.Context) {
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

	var req equipmentapp.BorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	record, err := h.service.Borrow(c.Request.Context(), equipmentID, req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, record)
}

// BulkBorrow lends several pieces of equipment to one borrower in a
// single submission. Lines succeed or fail independently; the response
// reports every line's outcome.
// POST /equipment/bulk-borrow
func (h *EquipmentHandler) BulkBorrow(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Acting identity required")
		return
	}

	var req equipmentapp.BulkBorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.BulkBorrow(c.Request.Context(), req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Return closes an open loan in full, optionally filing a loss or
// damage incident observed at return time.
// POST /borrow-records/:id/return
func (h *EquipmentHandler) Return(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Acting identity required")
		return
	}

	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid borrow record ID format")
		return
	}

	req := equipmentapp.ReturnRequest{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	record, err := h.service.ReturnFull(c.Request.Context(), recordID, req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, record)
}

// ReturnPartial gives back part of an open loan; the remainder stays
// out under the same reference code.
// POST /borrow-records/:id/return-partial
func (h *EquipmentHandler) ReturnPartial(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Acting identity required")
		return
	}

	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid borrow record ID format")
		return
	}

	var req equipmentapp.ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	record, err := h.service.ReturnPartial(c.Request.Context(), recordID, req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, record)
}

// ListBorrows retrieves the loan history of one equipment item.
// GET /equipment/:id/borrows?active_only=
func (h *EquipmentHandler) ListBorrows(c *gin.Context) {
	equipmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid equipment ID format")
		return
	}

	var filter equipmentapp.BorrowListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	records, err := h.service.ListBorrows(c.Request.Context(), equipmentID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, records)
}

// MostBorrowed ranks equipment by borrow activity.
// GET /equipment/stats/most-borrowed?limit=
func (h *EquipmentHandler) MostBorrowed(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	tallies, err := h.service.MostBorrowed(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, tallies)
}
