package incident

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/shared"
)

// Category classifies what happened to the referenced item
type Category string

const (
	CategoryLost    Category = "lost"
	CategoryDamaged Category = "damaged"
	CategoryOther   Category = "other"
)

// IsValid checks if the category is a known Category
func (c Category) IsValid() bool {
	switch c {
	case CategoryLost, CategoryDamaged, CategoryOther:
		return true
	}
	return false
}

// String returns the string representation of Category
func (c Category) String() string {
	return string(c)
}

// Note is an append-only annotation about something that went wrong
// with a piece of equipment or a consumable. Exactly one of the two
// parent references is set. Notes carry no ledger arithmetic and are
// never mutated after creation.
type Note struct {
	shared.BaseEntity
	EquipmentID  *uuid.UUID `gorm:"type:uuid;index:idx_incident_equipment"`
	ConsumableID *uuid.UUID `gorm:"type:uuid;index:idx_incident_consumable"`
	Category     Category   `gorm:"type:varchar(20);not null"`
	Description  string     `gorm:"type:text;not null"`
	ReportedBy   string     `gorm:"type:varchar(200);not null"`
	OccurredAt   time.Time  `gorm:"type:timestamptz;not null;index:idx_incident_occurred"`
}

// TableName returns the table name for GORM
func (Note) TableName() string {
	return "incident_notes"
}

// NewEquipmentNote reports an incident against a piece of equipment
func NewEquipmentNote(equipmentID uuid.UUID, category Category, description, reportedBy string, occurredAt time.Time) (*Note, error) {
	if equipmentID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Equipment ID is required")
	}
	return newNote(&equipmentID, nil, category, description, reportedBy, occurredAt)
}

// NewConsumableNote reports an incident against a consumable item
func NewConsumableNote(consumableID uuid.UUID, category Category, description, reportedBy string, occurredAt time.Time) (*Note, error) {
	if consumableID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Consumable ID is required")
	}
	return newNote(nil, &consumableID, category, description, reportedBy, occurredAt)
}

func newNote(equipmentID, consumableID *uuid.UUID, category Category, description, reportedBy string, occurredAt time.Time) (*Note, error) {
	if !category.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown incident category %q", category))
	}
	if description == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Incident description cannot be empty")
	}
	if reportedBy == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Reporter name cannot be empty")
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	return &Note{
		BaseEntity:   shared.NewBaseEntity(),
		EquipmentID:  equipmentID,
		ConsumableID: consumableID,
		Category:     category,
		Description:  description,
		ReportedBy:   reportedBy,
		OccurredAt:   occurredAt,
	}, nil
}

// Parent returns which entity the note is attached to
func (n *Note) Parent() (kind string, id uuid.UUID) {
	if n.EquipmentID != nil {
		return "equipment", *n.EquipmentID
	}
	if n.ConsumableID != nil {
		return "consumable", *n.ConsumableID
	}
	return "", uuid.Nil
}
