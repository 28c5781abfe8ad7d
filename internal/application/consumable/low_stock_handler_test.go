package consumable

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/labstock/backend/internal/domain/consumable"
	"github.com/labstock/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturingNotifier struct {
	mu     sync.Mutex
	alerts []LowStockAlert
}

func (n *capturingNotifier) SendAlert(_ context.Context, alert LowStockAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return nil
}

type mapDedupeStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMapDedupeStore() *mapDedupeStore {
	return &mapDedupeStore{seen: make(map[string]bool)}
}

func (s *mapDedupeStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

func (s *mapDedupeStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[key], nil
}

func (s *mapDedupeStore) Close() error { return nil }

func lowStockItem(t *testing.T) *consumable.Item {
	t.Helper()
	item, err := consumable.NewItem("Filter Paper", "sheet", false, 100, 0, 100)
	require.NoError(t, err)
	// Drop on-hand to the threshold so the event fires
	_, err = item.Consume(90, "", "")
	require.NoError(t, err)
	return item
}

func TestLowStockHandler(t *testing.T) {
	t.Run("sends alert for low stock event", func(t *testing.T) {
		notifier := &capturingNotifier{}
		handler := NewLowStockHandler(zap.NewNop()).WithNotifier(notifier)
		item := lowStockItem(t)

		err := handler.Handle(context.Background(), consumable.NewStockLowEvent(item))

		require.NoError(t, err)
		require.Len(t, notifier.alerts, 1)
		assert.Equal(t, "low_stock", notifier.alerts[0].AlertType)
		assert.Equal(t, item.ID.String(), notifier.alerts[0].ItemID)
		assert.Equal(t, int64(10), notifier.alerts[0].ItemsOnHand)
	})

	t.Run("flags out of stock when nothing is on hand", func(t *testing.T) {
		notifier := &capturingNotifier{}
		handler := NewLowStockHandler(zap.NewNop()).WithNotifier(notifier)
		item := lowStockItem(t)
		_, err := item.Consume(10, "", "")
		require.NoError(t, err)

		err = handler.Handle(context.Background(), consumable.NewStockLowEvent(item))

		require.NoError(t, err)
		require.Len(t, notifier.alerts, 1)
		assert.Equal(t, "out_of_stock", notifier.alerts[0].AlertType)
	})

	t.Run("suppresses duplicate alerts within a period", func(t *testing.T) {
		notifier := &capturingNotifier{}
		handler := NewLowStockHandler(zap.NewNop()).
			WithNotifier(notifier).
			WithDedupeStore(newMapDedupeStore(), time.Hour)
		item := lowStockItem(t)

		require.NoError(t, handler.Handle(context.Background(), consumable.NewStockLowEvent(item)))
		require.NoError(t, handler.Handle(context.Background(), consumable.NewStockLowEvent(item)))

		assert.Len(t, notifier.alerts, 1)
	})

	t.Run("a new period alerts again", func(t *testing.T) {
		notifier := &capturingNotifier{}
		handler := NewLowStockHandler(zap.NewNop()).
			WithNotifier(notifier).
			WithDedupeStore(newMapDedupeStore(), time.Hour)
		item := lowStockItem(t)

		require.NoError(t, handler.Handle(context.Background(), consumable.NewStockLowEvent(item)))

		item.RolloverPeriod()
		require.NoError(t, handler.Handle(context.Background(), consumable.NewStockLowEvent(item)))

		assert.Len(t, notifier.alerts, 2)
	})

	t.Run("rejects events of the wrong type", func(t *testing.T) {
		handler := NewLowStockHandler(zap.NewNop())
		item := lowStockItem(t)
		record, err := item.Consume(1, "", "")
		require.NoError(t, err)

		err = handler.Handle(context.Background(), consumable.NewConsumedEvent(item, record))

		require.Error(t, err)
	})

	t.Run("registers for the low stock event type", func(t *testing.T) {
		handler := NewLowStockHandler(zap.NewNop())
		assert.Equal(t, []string{consumable.EventTypeStockLow}, handler.EventTypes())
	})
}

var _ shared.IdempotencyStore = (*mapDedupeStore)(nil)
var _ LowStockNotifier = (*capturingNotifier)(nil)
