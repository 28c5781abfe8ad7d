package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	equipmentapp "github.com/labstock/backend/internal/application/equipment"
	maintenanceapp "github.com/labstock/backend/internal/application/maintenance"
	"github.com/labstock/backend/internal/domain/audit"
	"github.com/labstock/backend/internal/domain/shared"
)

// TestMaintenanceLifecycle_Integration drives the task state machine
// against a real PostgreSQL database: schedule, the overdue sweep and
// completion.
func TestMaintenanceLifecycle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	equipmentSvc := newEquipmentService(testDB.DB)
	svc := newMaintenanceService(testDB.DB)
	ctx := context.Background()
	actor := testActor()

	device, err := equipmentSvc.Register(ctx, equipmentapp.RegisterItemRequest{
		Name:          "Centrifuge",
		Location:      "Room 310",
		TotalQuantity: 1,
	}, actor)
	require.NoError(t, err)

	t.Run("scheduling against unknown equipment reports not found", func(t *testing.T) {
		_, err := svc.Schedule(ctx, uuid.New(), maintenanceapp.ScheduleTaskRequest{
			Kind:        "calibration",
			ScheduledAt: time.Now().Add(24 * time.Hour),
		}, actor)
		require.Error(t, err)
		assert.True(t, shared.IsCode(err, "NOT_FOUND"))
	})

	var dueTaskID, futureTaskID uuid.UUID
	t.Run("schedule creates tasks in the scheduled state", func(t *testing.T) {
		due, err := svc.Schedule(ctx, device.ID, maintenanceapp.ScheduleTaskRequest{
			Kind:        "calibration",
			ScheduledAt: time.Now().Add(-48 * time.Hour),
		}, actor)
		require.NoError(t, err)
		dueTaskID = due.ID
		assert.Equal(t, "scheduled", due.Status)

		future, err := svc.Schedule(ctx, device.ID, maintenanceapp.ScheduleTaskRequest{
			Kind:        "preventive",
			ScheduledAt: time.Now().Add(7 * 24 * time.Hour),
		}, actor)
		require.NoError(t, err)
		futureTaskID = future.ID
	})

	t.Run("upcoming lists only tasks inside the horizon", func(t *testing.T) {
		tasks, err := svc.Upcoming(ctx, 14)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, futureTaskID, tasks[0].ID)
	})

	t.Run("sweep flips due tasks to overdue", func(t *testing.T) {
		result, err := svc.SweepOverdue(ctx, time.Now(), audit.SystemActor())
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.Matched)
		assert.Equal(t, int64(1), result.Transitioned)

		tasks, _, err := svc.List(ctx, maintenanceapp.TaskFilter{Status: "overdue"})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, dueTaskID, tasks[0].ID)

		// the future task is untouched
		scheduled, _, err := svc.List(ctx, maintenanceapp.TaskFilter{Status: "scheduled"})
		require.NoError(t, err)
		require.Len(t, scheduled, 1)
		assert.Equal(t, futureTaskID, scheduled[0].ID)
	})

	t.Run("a second sweep is a no-op", func(t *testing.T) {
		result, err := svc.SweepOverdue(ctx, time.Now(), audit.SystemActor())
		require.NoError(t, err)
		assert.Equal(t, int64(0), result.Matched)
		assert.Equal(t, int64(0), result.Transitioned)
	})

	t.Run("complete closes an overdue task with cost and notes", func(t *testing.T) {
		cost := decimal.NewFromFloat(125.50)
		task, err := svc.Complete(ctx, dueTaskID, maintenanceapp.CompleteTaskRequest{
			PerformedBy: "vendor-tech",
			Cost:        &cost,
			Notes:       "rotor rebalanced",
		}, actor)
		require.NoError(t, err)

		assert.Equal(t, "completed", task.Status)
		assert.NotNil(t, task.CompletedAt)
		require.NotNil(t, task.Cost)
		assert.True(t, task.Cost.Equal(cost))
		assert.Equal(t, "vendor-tech", task.PerformedBy)
	})

	t.Run("completing twice is an invalid state", func(t *testing.T) {
		_, err := svc.Complete(ctx, dueTaskID, maintenanceapp.CompleteTaskRequest{}, actor)
		require.Error(t, err)
		assert.True(t, shared.IsCode(err, "INVALID_STATE"))
	})

	t.Run("filtering by equipment returns both tasks", func(t *testing.T) {
		tasks, total, err := svc.List(ctx, maintenanceapp.TaskFilter{EquipmentID: &device.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, tasks, 2)
	})
}
