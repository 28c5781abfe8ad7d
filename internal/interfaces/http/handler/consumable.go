package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	consumableapp "github.com/labstock/backend/internal/application/consumable"
)

// ConsumableHandler handles consumable stock API endpoints
type ConsumableHandler struct {
	BaseHandler
	service *consumableapp.Service
}

// NewConsumableHandler creates a new ConsumableHandler
func NewConsumableHandler(service *consumableapp.Service) *ConsumableHandler {
	return &ConsumableHandler{
		service: service,
	}
}

// Register creates a new consumable item with its opening ledger position.
// POST /consumables
func (h *ConsumableHandler) Register(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Acting identity required")
		return
	}

	var req consumableapp.RegisterItemRequest
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

// GetByID retrieves a consumable item with its current ledger position.
// GET /consumables/:id
func (h *ConsumableHandler) GetByID(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid consumable ID format")
		return
	}

	item, err := h.service.Get(c.Request.Context(), itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, item)
}

// List retrieves a paginated listing of consumable items.
// GET /consumables
func (h *ConsumableHandler) List(c *gin.Context) {
	var filter consumableapp.ListFilter
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

// Update changes a consumable item's descriptive metadata. Ledger
// quantities are never writable here; they only move through the
// consume/replenish/receive/return operations.
// PUT /consumables/:id
func (h *ConsumableHandler) Update(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Acting identity required")
		return
	}

	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid consumable ID format")
		return
	}

	var req consumableapp.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	item, err := h.service.Update(c.Request.Context(), itemID, req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, item)
}

// Delete removes a consumable item. Without cascade=true the delete is
// rejected while usage records still reference the item.
// DELETE /consumables/:id?cascade=
func (h *ConsumableHandler) Delete(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Acting identity required")
		return
	}

	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid consumable ID format")
		return
	}

	cascade, _ := strconv.ParseBool(c.DefaultQuery("cascade", "false"))

	if err := h.service.Delete(c.Request.Context(), itemID, cascade, actor); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// Consume books a withdrawal against on-hand stock and opens a usage
// record for it.
// POST /consumables/:id/consume
func (h *ConsumableHandler) Consume(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Acting identity required")
		return
	}

	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid consumable ID format")
		return
	}

	var req consumableapp.ConsumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	record, err := h.service.Consume(c.Request.Context(), itemID, req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, record)
}

// BulkConsume books one submission of consumption spanning several
// items. Lines succeed or fail independently; the response reports
// every line's outcome.
// POST /consumables/bulk-consume
func (h *ConsumableHandler) BulkConsume(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Acting identity required")
		return
	}

	var req consumableapp.BulkConsumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.BulkConsume(c.Request.Context(), req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Replenish moves quantity from the storage buffer to on-hand stock.
// POST /consumables/:id/replenish
func (h *ConsumableHandler) Replenish(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Acting identity required")
		return
	}

	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid consumable ID format")
		return
	}

	var req consumableapp.ReplenishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	item, err := h.service.Replenish(c.Request.Context(), itemID, req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, item)
}

// ReceiveStock books an external supply arrival into the storage buffer.
// POST /consumables/:id/receive
func (h *ConsumableHandler) ReceiveStock(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Acting identity required")
		return
	}

	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid consumable ID format")
		return
	}

	var req consumableapp.ReceiveStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	item, err := h.service.ReceiveStock(c.Request.Context(), itemID, req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, item)
}

// ReturnUsage returns an open usage record for a returnable item,
// restoring its quantity to on-hand stock.
// POST /usage-records/:id/return
func (h *ConsumableHandler) ReturnUsage(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Acting identity required")
		return
	}

	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid usage record ID format")
		return
	}

	record, err := h.service.ReturnUsage(c.Request.Context(), recordID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, record)
}

// Rollover closes the current accounting period and opens the next one
// from the closing balance.
// POST /consumables/:id/rollover
func (h *ConsumableHandler) Rollover(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Acting identity required")
		return
	}

	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid consumable ID format")
		return
	}

	result, err := h.service.RolloverPeriod(c.Request.Context(), itemID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Recalc rebuilds the item's period consumption from its usage records
// and normalizes the closing balance.
// POST /consumables/:id/recalc
func (h *ConsumableHandler) Recalc(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "Acting identity required")
		return
	}

	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid consumable ID format")
		return
	}

	item, err := h.service.RecalcAndNormalize(c.Request.Context(), itemID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, item)
}

// ListUsage retrieves the usage records of one consumable item.
// GET /consumables/:id/usage
func (h *ConsumableHandler) ListUsage(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid consumable ID format")
		return
	}

	var filter consumableapp.ListFilter
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

	records, total, err := h.service.ListUsage(c.Request.Context(), itemID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, records, total, filter.Page, filter.PageSize)
}

// LowStock lists items whose on-hand stock has fallen to or below the
// low-stock threshold relative to their opening balance.
// GET /consumables/stats/low-stock
func (h *ConsumableHandler) LowStock(c *gin.Context) {
	items, err := h.service.LowStock(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, items)
}

// Expiring lists items expiring within the requested number of days.
// GET /consumables/stats/expiring?days=
func (h *ConsumableHandler) Expiring(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "0"))

	items, err := h.service.ExpiringSoon(c.Request.Context(), days)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, items)
}

// TopConsumed lists the most consumed items of the current period.
// GET /consumables/stats/top-consumed?limit=
func (h *ConsumableHandler) TopConsumed(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	items, err := h.service.TopConsumed(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, items)
}
