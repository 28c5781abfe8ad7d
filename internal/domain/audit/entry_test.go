package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntry(t *testing.T) {
	t.Run("creates entry with unassigned sequence", func(t *testing.T) {
		actor := Actor{Name: "lab-admin", Role: "admin", SourceIP: "10.0.0.7"}

		entry, err := NewEntry(actor, ActionConsume, "item=gloves qty=3")

		require.NoError(t, err)
		assert.Equal(t, int64(0), entry.Sequence, "sequence is store-assigned")
		assert.Equal(t, "lab-admin", entry.Actor)
		assert.Equal(t, "admin", entry.ActorRole)
		assert.Equal(t, ActionConsume, entry.Action)
		assert.Equal(t, "item=gloves qty=3", entry.Details)
		assert.Equal(t, "10.0.0.7", entry.SourceIP)
		assert.WithinDuration(t, time.Now(), entry.OccurredAt, time.Second)
	})

	t.Run("rejects empty actor", func(t *testing.T) {
		_, err := NewEntry(Actor{}, ActionBorrow, "")
		require.Error(t, err)
	})

	t.Run("rejects empty action", func(t *testing.T) {
		_, err := NewEntry(Actor{Name: "someone"}, Action(""), "")
		require.Error(t, err)
	})

	t.Run("role and source IP are optional", func(t *testing.T) {
		entry, err := NewEntry(Actor{Name: "someone"}, ActionBorrow, "")

		require.NoError(t, err)
		assert.Empty(t, entry.ActorRole)
		assert.Empty(t, entry.SourceIP)
	})
}

func TestSystemActor(t *testing.T) {
	actor := SystemActor()

	assert.True(t, actor.Valid())
	assert.Equal(t, "system", actor.Name)
	assert.Equal(t, "scheduler", actor.Role)
}
