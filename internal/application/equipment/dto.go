package equipment

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/equipment"
)

// ItemResponse represents an equipment item in API responses. Available
// is derived from the active loans at read time, never stored.
type ItemResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Location      string    `json:"location,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	TotalQuantity int64     `json:"total_quantity"`
	Available     int64     `json:"available"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int       `json:"version"`
}

// BorrowRecordResponse represents a borrow record in API responses
type BorrowRecordResponse struct {
	ID               uuid.UUID  `json:"id"`
	EquipmentID      uuid.UUID  `json:"equipment_id"`
	ReferenceCode    string     `json:"reference_code"`
	BorrowerName     string     `json:"borrower_name"`
	BorrowerType     string     `json:"borrower_type"`
	SectionCourse    string     `json:"section_course,omitempty"`
	Purpose          string     `json:"purpose,omitempty"`
	QuantityBorrowed int64      `json:"quantity_borrowed"`
	BorrowedAt       time.Time  `json:"borrowed_at"`
	ReturnedAt       *time.Time `json:"returned_at,omitempty"`
}

// BorrowTallyResponse ranks equipment by borrow activity
type BorrowTallyResponse struct {
	EquipmentID   uuid.UUID `json:"equipment_id"`
	EquipmentName string    `json:"equipment_name"`
	BorrowCount   int64     `json:"borrow_count"`
	TotalQuantity int64     `json:"total_quantity"`
}

// RegisterItemRequest represents a request to register equipment
type RegisterItemRequest struct {
	Name          string `json:"name" binding:"required,max=200"`
	Location      string `json:"location" binding:"max=200"`
	Notes         string `json:"notes"`
	TotalQuantity int64  `json:"total_quantity" binding:"required,gt=0"`
}

// UpdateItemRequest represents a metadata update for equipment
type UpdateItemRequest struct {
	Name     string `json:"name" binding:"required,max=200"`
	Location string `json:"location" binding:"max=200"`
	Notes    string `json:"notes"`
}

// BorrowRequest represents a request to lend out equipment
type BorrowRequest struct {
	BorrowerName  string `json:"borrower_name" binding:"required,max=100"`
	BorrowerType  string `json:"borrower_type" binding:"required,max=50"`
	SectionCourse string `json:"section_course" binding:"max=100"`
	Purpose       string `json:"purpose" binding:"max=255"`
	Quantity      int64  `json:"quantity" binding:"required,gt=0"`
}

// BulkBorrowLine is one equipment line inside a bulk borrow
type BulkBorrowLine struct {
	EquipmentID uuid.UUID `json:"equipment_id" binding:"required"`
	Quantity    int64     `json:"quantity" binding:"required,gt=0"`
}

// BulkBorrowRequest lends out several pieces of equipment to the same
// borrower in one submission
type BulkBorrowRequest struct {
	BorrowerName  string           `json:"borrower_name" binding:"required,max=100"`
	BorrowerType  string           `json:"borrower_type" binding:"required,max=50"`
	SectionCourse string           `json:"section_course" binding:"max=100"`
	Purpose       string           `json:"purpose" binding:"max=255"`
	Lines         []BulkBorrowLine `json:"lines" binding:"required,min=1,max=50,dive"`
}

// BulkBorrowLineResult reports the outcome of one line. Error carries
// the domain error code when the line failed, and Record the created
// loan when it succeeded.
type BulkBorrowLineResult struct {
	EquipmentID uuid.UUID             `json:"equipment_id"`
	Record      *BorrowRecordResponse `json:"record,omitempty"`
	Error       string                `json:"error,omitempty"`
}

// BulkBorrowResponse summarizes a bulk borrow, line by line
type BulkBorrowResponse struct {
	Succeeded int                    `json:"succeeded"`
	Failed    int                    `json:"failed"`
	Lines     []BulkBorrowLineResult `json:"lines"`
}

// ReturnRequest represents a full or partial return of a loan.
// Quantity zero or absent means the whole open loan comes back.
type ReturnRequest struct {
	Quantity int64 `json:"quantity" binding:"omitempty,gt=0"`

	// Optional incident reported together with the return
	Incident *ReturnIncident `json:"incident"`
}

// ReturnIncident reports loss or damage observed at return time
type ReturnIncident struct {
	Category    string `json:"category" binding:"required,oneof=lost damaged other"`
	Description string `json:"description" binding:"required,max=1000"`
	ReportedBy  string `json:"reported_by" binding:"required,max=100"`
}

// ListFilter represents filter options for the equipment listing
type ListFilter struct {
	Search   string `form:"search"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// BorrowListFilter represents filter options for borrow record listings
type BorrowListFilter struct {
	ActiveOnly bool `form:"active_only"`
	Page       int  `form:"page" binding:"omitempty,min=1"`
	PageSize   int  `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ToItemResponse converts a domain item and its active-loan sum to a response
func ToItemResponse(item *equipment.Item, inUse int64) ItemResponse {
	return ItemResponse{
		ID:            item.ID,
		Name:          item.Name,
		Location:      item.Location,
		Notes:         item.Notes,
		TotalQuantity: item.TotalQuantity,
		Available:     item.Available(inUse),
		CreatedAt:     item.CreatedAt,
		UpdatedAt:     item.UpdatedAt,
		Version:       item.Version,
	}
}

// ToBorrowRecordResponse converts a domain borrow record to a response
func ToBorrowRecordResponse(record *equipment.BorrowRecord) BorrowRecordResponse {
	return BorrowRecordResponse{
		ID:               record.ID,
		EquipmentID:      record.EquipmentID,
		ReferenceCode:    record.ReferenceCode,
		BorrowerName:     record.BorrowerName,
		BorrowerType:     record.BorrowerType,
		SectionCourse:    record.SectionCourse,
		Purpose:          record.Purpose,
		QuantityBorrowed: record.QuantityBorrowed,
		BorrowedAt:       record.BorrowedAt,
		ReturnedAt:       record.ReturnedAt,
	}
}

// ToBorrowRecordResponses converts a slice of borrow records
func ToBorrowRecordResponses(records []*equipment.BorrowRecord) []BorrowRecordResponse {
	responses := make([]BorrowRecordResponse, len(records))
	for i, record := range records {
		responses[i] = ToBorrowRecordResponse(record)
	}
	return responses
}

// ToBorrowTallyResponses converts borrow tallies to responses
func ToBorrowTallyResponses(tallies []equipment.BorrowTally) []BorrowTallyResponse {
	responses := make([]BorrowTallyResponse, len(tallies))
	for i, tally := range tallies {
		responses[i] = BorrowTallyResponse{
			EquipmentID:   tally.EquipmentID,
			EquipmentName: tally.EquipmentName,
			BorrowCount:   tally.BorrowCount,
			TotalQuantity: tally.TotalQuantity,
		}
	}
	return responses
}
