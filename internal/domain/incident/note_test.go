package incident

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEquipmentNote(t *testing.T) {
	t.Run("creates note attached to equipment", func(t *testing.T) {
		equipmentID := uuid.New()
		occurredAt := time.Date(2026, 4, 2, 15, 30, 0, 0, time.UTC)

		note, err := NewEquipmentNote(equipmentID, CategoryDamaged, "cracked lens", "Jordan Reyes", occurredAt)

		require.NoError(t, err)
		require.NotNil(t, note.EquipmentID)
		assert.Equal(t, equipmentID, *note.EquipmentID)
		assert.Nil(t, note.ConsumableID)
		assert.Equal(t, CategoryDamaged, note.Category)
		assert.Equal(t, occurredAt, note.OccurredAt)

		kind, id := note.Parent()
		assert.Equal(t, "equipment", kind)
		assert.Equal(t, equipmentID, id)
	})

	t.Run("rejects nil equipment ID", func(t *testing.T) {
		_, err := NewEquipmentNote(uuid.Nil, CategoryLost, "gone", "someone", time.Now())

		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "INVALID_INPUT", domainErr.Code)
	})
}

func TestNewConsumableNote(t *testing.T) {
	t.Run("creates note attached to consumable", func(t *testing.T) {
		consumableID := uuid.New()

		note, err := NewConsumableNote(consumableID, CategoryOther, "spilled batch", "lab-tech", time.Now())

		require.NoError(t, err)
		assert.Nil(t, note.EquipmentID)
		require.NotNil(t, note.ConsumableID)
		assert.Equal(t, consumableID, *note.ConsumableID)

		kind, id := note.Parent()
		assert.Equal(t, "consumable", kind)
		assert.Equal(t, consumableID, id)
	})
}

func TestNewNote_Validation(t *testing.T) {
	equipmentID := uuid.New()

	t.Run("rejects unknown category", func(t *testing.T) {
		_, err := NewEquipmentNote(equipmentID, Category("misplaced"), "desc", "rep", time.Now())
		require.Error(t, err)
	})

	t.Run("rejects empty description", func(t *testing.T) {
		_, err := NewEquipmentNote(equipmentID, CategoryLost, "", "rep", time.Now())
		require.Error(t, err)
	})

	t.Run("rejects empty reporter", func(t *testing.T) {
		_, err := NewEquipmentNote(equipmentID, CategoryLost, "desc", "", time.Now())
		require.Error(t, err)
	})

	t.Run("zero occurrence time defaults to now", func(t *testing.T) {
		note, err := NewEquipmentNote(equipmentID, CategoryLost, "desc", "rep", time.Time{})

		require.NoError(t, err)
		assert.WithinDuration(t, time.Now(), note.OccurredAt, time.Second)
	})
}

func TestCategory_IsValid(t *testing.T) {
	assert.True(t, CategoryLost.IsValid())
	assert.True(t, CategoryDamaged.IsValid())
	assert.True(t, CategoryOther.IsValid())
	assert.False(t, Category("broken").IsValid())
}
