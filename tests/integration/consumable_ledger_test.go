package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditapp "github.com/labstock/backend/internal/application/audit"
	consumableapp "github.com/labstock/backend/internal/application/consumable"
	"github.com/labstock/backend/internal/domain/shared"
	"github.com/labstock/backend/internal/infrastructure/persistence"
)

// TestConsumableLedger_Integration drives the full consumable ledger
// flow against a real PostgreSQL database: register, consume,
// replenish, receive, return, rollover.
func TestConsumableLedger_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	svc := newConsumableService(testDB.DB)
	ctx := context.Background()
	actor := testActor()

	item, err := svc.Register(ctx, consumableapp.RegisterItemRequest{
		Name:           "Nitrile gloves (M)",
		Unit:           "box",
		IsReturnable:   true,
		ItemsOnHand:    100,
		ItemsInStorage: 40,
		OpeningBalance: 100,
	}, actor)
	require.NoError(t, err)

	t.Run("register derives the closing balance", func(t *testing.T) {
		assert.Equal(t, int64(100), item.ItemsOnHand)
		assert.Equal(t, int64(40), item.ItemsInStorage)
		assert.Equal(t, int64(140), item.ClosingBalance)
		assert.Equal(t, int64(0), item.ConsumedThisPeriod)
	})

	recordID := uuid.Nil
	t.Run("consume reduces on-hand and books the period", func(t *testing.T) {
		record, err := svc.Consume(ctx, item.ID, consumableapp.ConsumeRequest{
			Quantity: 30,
			UsedBy:   "tech-1",
			Purpose:  "sample prep",
		}, actor)
		require.NoError(t, err)
		recordID = record.ID

		assert.Equal(t, int64(30), record.Quantity)
		assert.Nil(t, record.ReturnedAt)

		got, err := svc.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(70), got.ItemsOnHand)
		assert.Equal(t, int64(30), got.ConsumedThisPeriod)
		assert.Equal(t, int64(110), got.ClosingBalance)
	})

	t.Run("consume beyond on-hand fails without touching state", func(t *testing.T) {
		_, err := svc.Consume(ctx, item.ID, consumableapp.ConsumeRequest{Quantity: 1000}, actor)
		require.Error(t, err)
		assert.True(t, shared.IsCode(err, "INSUFFICIENT_STOCK"))

		got, err := svc.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(70), got.ItemsOnHand)
		assert.Equal(t, int64(30), got.ConsumedThisPeriod)
	})

	t.Run("replenish moves storage into on-hand", func(t *testing.T) {
		got, err := svc.Replenish(ctx, item.ID, consumableapp.ReplenishRequest{Quantity: 40}, actor)
		require.NoError(t, err)

		assert.Equal(t, int64(110), got.ItemsOnHand)
		assert.Equal(t, int64(0), got.ItemsInStorage)
		assert.Equal(t, int64(70), got.ClosingBalance)
	})

	t.Run("replenish beyond the storage buffer is rejected", func(t *testing.T) {
		_, err := svc.Replenish(ctx, item.ID, consumableapp.ReplenishRequest{Quantity: 1}, actor)
		require.Error(t, err)
		assert.True(t, shared.IsCode(err, "INSUFFICIENT_STOCK"))
	})

	t.Run("receive stock books into storage", func(t *testing.T) {
		got, err := svc.ReceiveStock(ctx, item.ID, consumableapp.ReceiveStockRequest{Quantity: 50}, actor)
		require.NoError(t, err)

		assert.Equal(t, int64(50), got.ItemsInStorage)
		assert.NotNil(t, got.ReceivedAt)
		assert.Equal(t, int64(120), got.ClosingBalance)
	})

	t.Run("return restores on-hand but not the period figure", func(t *testing.T) {
		record, err := svc.ReturnUsage(ctx, recordID, actor)
		require.NoError(t, err)
		assert.NotNil(t, record.ReturnedAt)

		got, err := svc.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(140), got.ItemsOnHand)
		assert.Equal(t, int64(30), got.ConsumedThisPeriod)
	})

	t.Run("a record returns at most once", func(t *testing.T) {
		_, err := svc.ReturnUsage(ctx, recordID, actor)
		require.Error(t, err)
		assert.True(t, shared.IsCode(err, "INVALID_STATE"))
	})

	t.Run("usage listing includes the returned record", func(t *testing.T) {
		records, total, err := svc.ListUsage(ctx, item.ID, consumableapp.ListFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, records, 1)
		assert.Equal(t, recordID, records[0].ID)
		assert.NotNil(t, records[0].ReturnedAt)
	})

	t.Run("rollover closes the period and drops the storage buffer", func(t *testing.T) {
		summary, err := svc.RolloverPeriod(ctx, item.ID, actor)
		require.NoError(t, err)

		assert.Equal(t, int64(100), summary.PreviousOpening)
		assert.Equal(t, int64(120), summary.PreviousClosing)
		assert.Equal(t, int64(30), summary.ConsumedInPeriod)
		assert.Equal(t, int64(50), summary.DroppedStorage)
		assert.Equal(t, int64(120), summary.NewOpening)

		got, err := svc.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(120), got.OpeningBalance)
		assert.Equal(t, int64(0), got.ConsumedThisPeriod)
		assert.Equal(t, int64(0), got.ItemsInStorage)
		assert.Equal(t, int64(120), got.ClosingBalance)
		// physical stock is period independent
		assert.Equal(t, int64(140), got.ItemsOnHand)
	})

	t.Run("recalc leaves a consistent ledger unchanged", func(t *testing.T) {
		got, err := svc.RecalcAndNormalize(ctx, item.ID, actor)
		require.NoError(t, err)
		assert.Equal(t, int64(120), got.ClosingBalance)
		assert.Equal(t, int64(140), got.ItemsOnHand)
	})

	t.Run("non-returnable items reject returns", func(t *testing.T) {
		plain, err := svc.Register(ctx, consumableapp.RegisterItemRequest{
			Name:           "Agar plates",
			Unit:           "plate",
			IsReturnable:   false,
			ItemsOnHand:    20,
			OpeningBalance: 20,
		}, actor)
		require.NoError(t, err)

		record, err := svc.Consume(ctx, plain.ID, consumableapp.ConsumeRequest{Quantity: 5}, actor)
		require.NoError(t, err)

		_, err = svc.ReturnUsage(ctx, record.ID, actor)
		require.Error(t, err)
		assert.True(t, shared.IsCode(err, "INVALID_STATE"))
	})
}

// TestConsumableOptimisticLocking_Integration verifies against a real
// database that two writers holding the same version cannot both
// commit: the guarded UPDATE of the loser matches zero rows.
func TestConsumableOptimisticLocking_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	svc := newConsumableService(testDB.DB)
	repo := persistence.NewGormConsumableItemRepository(testDB.DB)
	ctx := context.Background()

	item, err := svc.Register(ctx, consumableapp.RegisterItemRequest{
		Name:           "Pipette tips",
		Unit:           "rack",
		ItemsOnHand:    100,
		OpeningBalance: 100,
	}, testActor())
	require.NoError(t, err)

	reader1, err := repo.FindByID(ctx, item.ID)
	require.NoError(t, err)
	reader2, err := repo.FindByID(ctx, item.ID)
	require.NoError(t, err)

	_, err = reader1.Consume(10, "tech-1", "prep")
	require.NoError(t, err)
	_, err = reader2.Consume(20, "tech-2", "prep")
	require.NoError(t, err)

	require.NoError(t, repo.SaveWithLock(ctx, reader1))

	err = repo.SaveWithLock(ctx, reader2)
	require.Error(t, err)
	assert.True(t, shared.IsCode(err, "CONCURRENCY_CONFLICT"))

	// The committed state is the first writer's, untouched by the loser
	final, err := repo.FindByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(90), final.ItemsOnHand)
	assert.Equal(t, int64(10), final.ConsumedThisPeriod)
}

// TestConsumableConcurrentConsume_Integration races two Consume calls
// through the service against stock that can satisfy only one of them.
// The version-guarded save plus the retry loop must let exactly one
// through; the other re-reads fresh state and fails the quantity check.
func TestConsumableConcurrentConsume_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	svc := newConsumableService(testDB.DB)
	auditSvc := newAuditService(testDB.DB)
	ctx := context.Background()
	actor := testActor()

	quantities := []int64{5, 7}

	for round := 0; round < 5; round++ {
		item, err := svc.Register(ctx, consumableapp.RegisterItemRequest{
			Name:           fmt.Sprintf("Filter paper batch %d", round),
			Unit:           "box",
			ItemsOnHand:    10,
			OpeningBalance: 10,
		}, actor)
		require.NoError(t, err)

		errs := make([]error, len(quantities))
		var wg sync.WaitGroup
		for i, qty := range quantities {
			wg.Add(1)
			go func(i int, qty int64) {
				defer wg.Done()
				_, errs[i] = svc.Consume(ctx, item.ID, consumableapp.ConsumeRequest{
					Quantity: qty,
					UsedBy:   fmt.Sprintf("tech-%d", i+1),
				}, actor)
			}(i, qty)
		}
		wg.Wait()

		var winners int
		var consumed int64
		for i, err := range errs {
			if err == nil {
				winners++
				consumed += quantities[i]
				continue
			}
			assert.True(t, shared.IsCode(err, "INSUFFICIENT_STOCK"),
				"loser must fail the quantity check, got: %v", err)
		}
		require.Equal(t, 1, winners, "exactly one of the racing consumes may commit")

		final, err := svc.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 10-consumed, final.ItemsOnHand)
		assert.Equal(t, consumed, final.ConsumedThisPeriod)
		assert.GreaterOrEqual(t, final.ItemsOnHand, int64(0))

		records, total, err := svc.ListUsage(ctx, item.ID, consumableapp.ListFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, records, 1)
		assert.Equal(t, consumed, records[0].Quantity)

		entries, _, err := auditSvc.List(ctx, auditapp.ListFilter{Action: "consumable.consume"})
		require.NoError(t, err)
		assert.Len(t, entries, round+1, "the losing consume must leave no audit entry")
	}
}
