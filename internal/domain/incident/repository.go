package incident

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/shared"
)

// NoteRepository defines the persistence port for incident notes.
// Notes are insert-only; there is no update path.
type NoteRepository interface {
	// FindByID finds a note by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Note, error)

	// FindAll returns notes matching the filter, newest occurrence first
	FindAll(ctx context.Context, filter shared.Filter) ([]*Note, error)

	// FindByEquipment returns notes attached to an equipment item
	FindByEquipment(ctx context.Context, equipmentID uuid.UUID) ([]*Note, error)

	// FindByConsumable returns notes attached to a consumable item
	FindByConsumable(ctx context.Context, consumableID uuid.UUID) ([]*Note, error)

	// Save inserts a new note
	Save(ctx context.Context, note *Note) error

	// CountByEquipment returns how many notes reference an equipment item
	CountByEquipment(ctx context.Context, equipmentID uuid.UUID) (int64, error)

	// CountByConsumable returns how many notes reference a consumable item
	CountByConsumable(ctx context.Context, consumableID uuid.UUID) (int64, error)

	// DeleteByEquipment removes all notes attached to an equipment item
	DeleteByEquipment(ctx context.Context, equipmentID uuid.UUID) error

	// DeleteByConsumable removes all notes attached to a consumable item
	DeleteByConsumable(ctx context.Context, consumableID uuid.UUID) error
}
