package audit

import (
	"time"

	"github.com/labstock/backend/internal/domain/audit"
)

// EntryResponse represents an audit entry in API responses
type EntryResponse struct {
	Sequence   int64     `json:"sequence"`
	Actor      string    `json:"actor"`
	ActorRole  string    `json:"actor_role,omitempty"`
	Action     string    `json:"action"`
	Details    string    `json:"details,omitempty"`
	SourceIP   string    `json:"source_ip,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ListFilter represents filter options for the audit trail query
type ListFilter struct {
	Actor    string     `form:"actor"`
	Action   string     `form:"action"`
	From     *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To       *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page     int        `form:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"page_size" binding:"omitempty,min=1,max=200"`
}

// ToEntryResponse converts a domain entry to its response form
func ToEntryResponse(entry *audit.Entry) EntryResponse {
	return EntryResponse{
		Sequence:   entry.Sequence,
		Actor:      entry.Actor,
		ActorRole:  entry.ActorRole,
		Action:     entry.Action.String(),
		Details:    entry.Details,
		SourceIP:   entry.SourceIP,
		OccurredAt: entry.OccurredAt,
	}
}

// ToEntryResponses converts a slice of domain entries
func ToEntryResponses(entries []audit.Entry) []EntryResponse {
	responses := make([]EntryResponse, len(entries))
	for i := range entries {
		responses[i] = ToEntryResponse(&entries[i])
	}
	return responses
}
