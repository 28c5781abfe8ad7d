package consumable

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/consumable"
)

// ItemResponse represents a consumable item in API responses
type ItemResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	Unit               string     `json:"unit,omitempty"`
	LotNumber          string     `json:"lot_number,omitempty"`
	IsReturnable       bool       `json:"is_returnable"`
	ItemsOnHand        int64      `json:"items_on_hand"`
	ItemsInStorage     int64      `json:"items_in_storage"`
	OpeningBalance     int64      `json:"opening_balance"`
	ConsumedThisPeriod int64      `json:"consumed_this_period"`
	ClosingBalance     int64      `json:"closing_balance"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	ReceivedAt         *time.Time `json:"received_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Version            int        `json:"version"`
}

// UsageRecordResponse represents a usage record in API responses
type UsageRecordResponse struct {
	ID         uuid.UUID  `json:"id"`
	ItemID     uuid.UUID  `json:"item_id"`
	Quantity   int64      `json:"quantity"`
	UsedBy     string     `json:"used_by,omitempty"`
	Purpose    string     `json:"purpose,omitempty"`
	ConsumedAt time.Time  `json:"consumed_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
}

// RolloverResponse reports the ledger position a rollover closed out
type RolloverResponse struct {
	ItemID           uuid.UUID `json:"item_id"`
	PreviousOpening  int64     `json:"previous_opening"`
	PreviousClosing  int64     `json:"previous_closing"`
	ConsumedInPeriod int64     `json:"consumed_in_period"`
	DroppedStorage   int64     `json:"dropped_storage"`
	NewOpening       int64     `json:"new_opening"`
}

// RegisterItemRequest represents a request to register a consumable item
type RegisterItemRequest struct {
	Name           string     `json:"name" binding:"required,max=200"`
	Unit           string     `json:"unit" binding:"max=50"`
	LotNumber      string     `json:"lot_number" binding:"max=100"`
	IsReturnable   bool       `json:"is_returnable"`
	ItemsOnHand    int64      `json:"items_on_hand" binding:"min=0"`
	ItemsInStorage int64      `json:"items_in_storage" binding:"min=0"`
	OpeningBalance int64      `json:"opening_balance" binding:"min=0"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

// UpdateItemRequest represents a metadata update for a consumable item
type UpdateItemRequest struct {
	Name      string     `json:"name" binding:"required,max=200"`
	Unit      string     `json:"unit" binding:"max=50"`
	LotNumber string     `json:"lot_number" binding:"max=100"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// ConsumeRequest represents a consumption of on-hand stock
type ConsumeRequest struct {
	Quantity int64  `json:"quantity" binding:"required,gt=0"`
	UsedBy   string `json:"used_by" binding:"max=100"`
	Purpose  string `json:"purpose" binding:"max=255"`
}

// BulkConsumeLine is one item line inside a bulk consumption
type BulkConsumeLine struct {
	ItemID   uuid.UUID `json:"item_id" binding:"required"`
	Quantity int64     `json:"quantity" binding:"required,gt=0"`
}

// BulkConsumeRequest books one submission of consumption spanning
// several items, all used by the same person for the same purpose
type BulkConsumeRequest struct {
	UsedBy  string            `json:"used_by" binding:"max=100"`
	Purpose string            `json:"purpose" binding:"max=255"`
	Lines   []BulkConsumeLine `json:"lines" binding:"required,min=1,max=50,dive"`
}

// BulkConsumeLineResult reports the outcome of one line. Error carries
// the domain error code when the line failed, and Record the created
// usage record when it succeeded.
type BulkConsumeLineResult struct {
	ItemID uuid.UUID            `json:"item_id"`
	Record *UsageRecordResponse `json:"record,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// BulkConsumeResponse summarizes a bulk consumption, line by line
type BulkConsumeResponse struct {
	Succeeded int                     `json:"succeeded"`
	Failed    int                     `json:"failed"`
	Lines     []BulkConsumeLineResult `json:"lines"`
}

// ReplenishRequest moves quantity from the storage buffer to on-hand
type ReplenishRequest struct {
	Quantity int64 `json:"quantity" binding:"required,gt=0"`
}

// ReceiveStockRequest books an external supply arrival into storage
type ReceiveStockRequest struct {
	Quantity   int64      `json:"quantity" binding:"required,gt=0"`
	ReceivedAt *time.Time `json:"received_at"`
}

// ListFilter represents filter options for the consumable listing
type ListFilter struct {
	Search   string `form:"search"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ToItemResponse converts a domain item to its response form
func ToItemResponse(item *consumable.Item) ItemResponse {
	return ItemResponse{
		ID:                 item.ID,
		Name:               item.Name,
		Unit:               item.Unit,
		LotNumber:          item.LotNumber,
		IsReturnable:       item.IsReturnable,
		ItemsOnHand:        item.ItemsOnHand,
		ItemsInStorage:     item.ItemsInStorage,
		OpeningBalance:     item.OpeningBalance,
		ConsumedThisPeriod: item.ConsumedThisPeriod,
		ClosingBalance:     item.ClosingBalance,
		ExpiresAt:          item.ExpiresAt,
		ReceivedAt:         item.ReceivedAt,
		CreatedAt:          item.CreatedAt,
		UpdatedAt:          item.UpdatedAt,
		Version:            item.Version,
	}
}

// ToItemResponses converts a slice of domain items
func ToItemResponses(items []consumable.Item) []ItemResponse {
	responses := make([]ItemResponse, len(items))
	for i := range items {
		responses[i] = ToItemResponse(&items[i])
	}
	return responses
}

// ToUsageRecordResponse converts a domain usage record to its response form
func ToUsageRecordResponse(record *consumable.UsageRecord) UsageRecordResponse {
	return UsageRecordResponse{
		ID:         record.ID,
		ItemID:     record.ItemID,
		Quantity:   record.Quantity,
		UsedBy:     record.UsedBy,
		Purpose:    record.Purpose,
		ConsumedAt: record.ConsumedAt,
		ReturnedAt: record.ReturnedAt,
	}
}

// ToUsageRecordResponses converts a slice of domain usage records
func ToUsageRecordResponses(records []consumable.UsageRecord) []UsageRecordResponse {
	responses := make([]UsageRecordResponse, len(records))
	for i := range records {
		responses[i] = ToUsageRecordResponse(&records[i])
	}
	return responses
}
