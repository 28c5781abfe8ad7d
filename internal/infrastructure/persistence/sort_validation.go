package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// CommonSortFields contains fields common to most entities
var CommonSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// ConsumableSortFields contains allowed sort fields for consumable items
var ConsumableSortFields = map[string]bool{
	"id":                   true,
	"created_at":           true,
	"updated_at":           true,
	"name":                 true,
	"unit":                 true,
	"lot_number":           true,
	"items_on_hand":        true,
	"items_in_storage":     true,
	"opening_balance":      true,
	"consumed_this_period": true,
	"closing_balance":      true,
	"expires_at":           true,
	"received_at":          true,
}

// UsageRecordSortFields contains allowed sort fields for usage records
var UsageRecordSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"item_id":     true,
	"quantity":    true,
	"used_by":     true,
	"consumed_at": true,
	"returned_at": true,
}

// EquipmentSortFields contains allowed sort fields for equipment items
var EquipmentSortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"name":           true,
	"location":       true,
	"total_quantity": true,
}

// BorrowRecordSortFields contains allowed sort fields for borrow records
var BorrowRecordSortFields = map[string]bool{
	"id":                true,
	"created_at":        true,
	"reference_code":    true,
	"equipment_id":      true,
	"quantity_borrowed": true,
	"borrower_name":     true,
	"borrower_type":     true,
	"borrowed_at":       true,
	"returned_at":       true,
}

// MaintenanceTaskSortFields contains allowed sort fields for maintenance tasks
var MaintenanceTaskSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"equipment_id": true,
	"kind":         true,
	"status":       true,
	"scheduled_at": true,
	"completed_at": true,
	"cost":         true,
}

// IncidentNoteSortFields contains allowed sort fields for incident notes
var IncidentNoteSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"category":    true,
	"reported_by": true,
	"occurred_at": true,
}

// AuditEntrySortFields contains allowed sort fields for audit entries
var AuditEntrySortFields = map[string]bool{
	"sequence":    true,
	"occurred_at": true,
	"action":      true,
	"actor":       true,
}
