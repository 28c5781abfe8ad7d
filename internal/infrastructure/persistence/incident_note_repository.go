package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/incident"
	"github.com/labstock/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormIncidentNoteRepository implements incident.NoteRepository using GORM.
// Notes are insert-only; the only deletes are the cascade paths that
// run when a parent item is removed.
type GormIncidentNoteRepository struct {
	db *gorm.DB
}

// NewGormIncidentNoteRepository creates a new GormIncidentNoteRepository
func NewGormIncidentNoteRepository(db *gorm.DB) *GormIncidentNoteRepository {
	return &GormIncidentNoteRepository{db: db}
}

// FindByID finds a note by ID
func (r *GormIncidentNoteRepository) FindByID(ctx context.Context, id uuid.UUID) (*incident.Note, error) {
	var note incident.Note
	if err := r.db.WithContext(ctx).First(&note, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &note, nil
}

// FindAll returns notes matching the filter, newest occurrence first
func (r *GormIncidentNoteRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*incident.Note, error) {
	var notes []*incident.Note
	query := r.db.WithContext(ctx).Model(&incident.Note{})

	for key, value := range filter.Filters {
		switch key {
		case "category":
			query = query.Where("category = ?", value)
		case "equipment_id":
			query = query.Where("equipment_id = ?", value)
		case "consumable_id":
			query = query.Where("consumable_id = ?", value)
		case "reported_by":
			query = query.Where("reported_by = ?", value)
		}
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if err := query.Order("occurred_at DESC").Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

// FindByEquipment returns notes attached to an equipment item
func (r *GormIncidentNoteRepository) FindByEquipment(ctx context.Context, equipmentID uuid.UUID) ([]*incident.Note, error) {
	var notes []*incident.Note
	if err := r.db.WithContext(ctx).
		Where("equipment_id = ?", equipmentID).
		Order("occurred_at DESC").
		Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

// FindByConsumable returns notes attached to a consumable item
func (r *GormIncidentNoteRepository) FindByConsumable(ctx context.Context, consumableID uuid.UUID) ([]*incident.Note, error) {
	var notes []*incident.Note
	if err := r.db.WithContext(ctx).
		Where("consumable_id = ?", consumableID).
		Order("occurred_at DESC").
		Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

// Save inserts a new note
func (r *GormIncidentNoteRepository) Save(ctx context.Context, note *incident.Note) error {
	return r.db.WithContext(ctx).Create(note).Error
}

// CountByEquipment returns how many notes reference an equipment item
func (r *GormIncidentNoteRepository) CountByEquipment(ctx context.Context, equipmentID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&incident.Note{}).
		Where("equipment_id = ?", equipmentID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountByConsumable returns how many notes reference a consumable item
func (r *GormIncidentNoteRepository) CountByConsumable(ctx context.Context, consumableID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&incident.Note{}).
		Where("consumable_id = ?", consumableID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteByEquipment removes all notes attached to an equipment item
func (r *GormIncidentNoteRepository) DeleteByEquipment(ctx context.Context, equipmentID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&incident.Note{}, "equipment_id = ?", equipmentID).Error
}

// DeleteByConsumable removes all notes attached to a consumable item
func (r *GormIncidentNoteRepository) DeleteByConsumable(ctx context.Context, consumableID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&incident.Note{}, "consumable_id = ?", consumableID).Error
}

// Ensure GormIncidentNoteRepository implements incident.NoteRepository
var _ incident.NoteRepository = (*GormIncidentNoteRepository)(nil)
