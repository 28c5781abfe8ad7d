package incident

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/incident"
)

// NoteResponse represents an incident note in API responses
type NoteResponse struct {
	ID           uuid.UUID  `json:"id"`
	EquipmentID  *uuid.UUID `json:"equipment_id,omitempty"`
	ConsumableID *uuid.UUID `json:"consumable_id,omitempty"`
	Category     string     `json:"category"`
	Description  string     `json:"description"`
	ReportedBy   string     `json:"reported_by"`
	OccurredAt   time.Time  `json:"occurred_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ReportNoteRequest represents a request to file an incident note.
// Exactly one of EquipmentID and ConsumableID must be set.
type ReportNoteRequest struct {
	EquipmentID  *uuid.UUID `json:"equipment_id"`
	ConsumableID *uuid.UUID `json:"consumable_id"`
	Category     string     `json:"category" binding:"required,oneof=lost damaged other"`
	Description  string     `json:"description" binding:"required,max=1000"`
	ReportedBy   string     `json:"reported_by" binding:"required,max=100"`
	OccurredAt   *time.Time `json:"occurred_at"`
}

// ListFilter represents filter options for the incident listing
type ListFilter struct {
	EquipmentID  *uuid.UUID `form:"equipment_id"`
	ConsumableID *uuid.UUID `form:"consumable_id"`
	Page         int        `form:"page" binding:"omitempty,min=1"`
	PageSize     int        `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ToNoteResponse converts a domain note to its response form
func ToNoteResponse(note *incident.Note) NoteResponse {
	return NoteResponse{
		ID:           note.ID,
		EquipmentID:  note.EquipmentID,
		ConsumableID: note.ConsumableID,
		Category:     note.Category.String(),
		Description:  note.Description,
		ReportedBy:   note.ReportedBy,
		OccurredAt:   note.OccurredAt,
		CreatedAt:    note.CreatedAt,
	}
}

// ToNoteResponses converts a slice of domain notes
func ToNoteResponses(notes []*incident.Note) []NoteResponse {
	responses := make([]NoteResponse, len(notes))
	for i, note := range notes {
		responses[i] = ToNoteResponse(note)
	}
	return responses
}
