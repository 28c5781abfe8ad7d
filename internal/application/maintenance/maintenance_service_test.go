package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/audit"
	"github.com/labstock/backend/internal/domain/equipment"
	"github.com/labstock/backend/internal/domain/maintenance"
	"github.com/labstock/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockTaskRepository is a mock implementation of maintenance.TaskRepository
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*maintenance.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*maintenance.Task), args.Error(1)
}

func (m *MockTaskRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*maintenance.Task, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*maintenance.Task), args.Error(1)
}

func (m *MockTaskRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTaskRepository) FindByEquipment(ctx context.Context, equipmentID uuid.UUID, filter shared.Filter) ([]*maintenance.Task, error) {
	args := m.Called(ctx, equipmentID, filter)
	return args.Get(0).([]*maintenance.Task), args.Error(1)
}

func (m *MockTaskRepository) FindByStatus(ctx context.Context, status maintenance.TaskStatus, filter shared.Filter) ([]*maintenance.Task, error) {
	args := m.Called(ctx, status, filter)
	return args.Get(0).([]*maintenance.Task), args.Error(1)
}

func (m *MockTaskRepository) FindDueBefore(ctx context.Context, now time.Time) ([]*maintenance.Task, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]*maintenance.Task), args.Error(1)
}

func (m *MockTaskRepository) MarkOverdueByIDs(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error) {
	args := m.Called(ctx, ids, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTaskRepository) FindUpcoming(ctx context.Context, now time.Time, horizon time.Duration) ([]*maintenance.Task, error) {
	args := m.Called(ctx, now, horizon)
	return args.Get(0).([]*maintenance.Task), args.Error(1)
}

func (m *MockTaskRepository) Save(ctx context.Context, task *maintenance.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockTaskRepository) SaveWithLock(ctx context.Context, task *maintenance.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockTaskRepository) CountByEquipment(ctx context.Context, equipmentID uuid.UUID) (int64, error) {
	args := m.Called(ctx, equipmentID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTaskRepository) DeleteByEquipment(ctx context.Context, equipmentID uuid.UUID) error {
	args := m.Called(ctx, equipmentID)
	return args.Error(0)
}

// MockEquipmentRepository is a mock implementation of equipment.ItemRepository
type MockEquipmentRepository struct {
	mock.Mock
}

func (m *MockEquipmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*equipment.Item, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*equipment.Item), args.Error(1)
}

func (m *MockEquipmentRepository) FindByName(ctx context.Context, name string) (*equipment.Item, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*equipment.Item), args.Error(1)
}

func (m *MockEquipmentRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*equipment.Item, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*equipment.Item), args.Error(1)
}

func (m *MockEquipmentRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEquipmentRepository) Save(ctx context.Context, item *equipment.Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockEquipmentRepository) SaveWithLock(ctx context.Context, item *equipment.Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockEquipmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEquipmentRepository) MostBorrowed(ctx context.Context, limit int) ([]equipment.BorrowTally, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]equipment.BorrowTally), args.Error(1)
}

// MockAuditRepository is a mock implementation of audit.Repository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Append(ctx context.Context, entry *audit.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) Find(ctx context.Context, q audit.Query) ([]audit.Entry, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]audit.Entry), args.Error(1)
}

func (m *MockAuditRepository) Count(ctx context.Context, q audit.Query) (int64, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(int64), args.Error(1)
}

type capturingPublisher struct {
	events []shared.DomainEvent
}

func (p *capturingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

type serviceMocks struct {
	tasks   *MockTaskRepository
	devices *MockEquipmentRepository
	trail   *MockAuditRepository
}

func newTestService() (*Service, *serviceMocks, *capturingPublisher) {
	m := &serviceMocks{
		tasks:   new(MockTaskRepository),
		devices: new(MockEquipmentRepository),
		trail:   new(MockAuditRepository),
	}
	scope := NewNoOpTransactionScope(m.tasks, m.devices, m.trail)
	svc := NewService(m.tasks, scope, zap.NewNop())
	publisher := &capturingPublisher{}
	svc.SetEventPublisher(publisher)
	return svc, m, publisher
}

func newDevice(t *testing.T) *equipment.Item {
	t.Helper()
	item, err := equipment.NewItem("Spectrometer", "Room 12", "", 1)
	require.NoError(t, err)
	item.ClearDomainEvents()
	return item
}

func newScheduledTask(t *testing.T, equipmentID uuid.UUID, scheduledAt time.Time) *maintenance.Task {
	t.Helper()
	task, err := maintenance.NewTask(equipmentID, maintenance.KindCalibration, scheduledAt)
	require.NoError(t, err)
	task.ClearDomainEvents()
	return task
}

func testActor() audit.Actor {
	return audit.Actor{Name: "tech.ward", Role: "lab_tech"}
}

func TestServiceSchedule(t *testing.T) {
	t.Run("schedules a task for existing equipment", func(t *testing.T) {
		svc, m, publisher := newTestService()
		device := newDevice(t)
		due := time.Now().Add(30 * 24 * time.Hour)

		m.devices.On("FindByID", mock.Anything, device.ID).Return(device, nil)
		m.tasks.On("Save", mock.Anything, mock.AnythingOfType("*maintenance.Task")).Return(nil)
		m.trail.On("Append", mock.Anything, mock.MatchedBy(func(e *audit.Entry) bool {
			return e.Action == audit.ActionScheduleMaintenance
		})).Return(nil)

		resp, err := svc.Schedule(context.Background(), device.ID, ScheduleTaskRequest{
			Kind:        "calibration",
			ScheduledAt: due,
		}, testActor())

		require.NoError(t, err)
		assert.Equal(t, "scheduled", resp.Status)
		assert.Equal(t, "calibration", resp.Kind)

		require.Len(t, publisher.events, 1)
		assert.Equal(t, maintenance.EventTypeTaskScheduled, publisher.events[0].EventType())
	})

	t.Run("missing equipment fails the schedule", func(t *testing.T) {
		svc, m, _ := newTestService()
		unknown := uuid.New()

		m.devices.On("FindByID", mock.Anything, unknown).Return(nil, shared.ErrNotFound)

		_, err := svc.Schedule(context.Background(), unknown, ScheduleTaskRequest{
			Kind:        "repair",
			ScheduledAt: time.Now(),
		}, testActor())

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, "NOT_FOUND"))
		m.tasks.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("unknown kind is rejected", func(t *testing.T) {
		svc, m, _ := newTestService()
		device := newDevice(t)

		m.devices.On("FindByID", mock.Anything, device.ID).Return(device, nil)

		_, err := svc.Schedule(context.Background(), device.ID, ScheduleTaskRequest{
			Kind:        "tune-up",
			ScheduledAt: time.Now(),
		}, testActor())

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, "INVALID_INPUT"))
	})
}

func TestServiceComplete(t *testing.T) {
	t.Run("completes a scheduled task with cost", func(t *testing.T) {
		svc, m, publisher := newTestService()
		task := newScheduledTask(t, uuid.New(), time.Now().Add(24*time.Hour))
		cost := decimal.NewFromFloat(149.90)

		m.tasks.On("FindByID", mock.Anything, task.ID).Return(task, nil)
		m.tasks.On("SaveWithLock", mock.Anything, task).Return(nil)
		m.trail.On("Append", mock.Anything, mock.MatchedBy(func(e *audit.Entry) bool {
			return e.Action == audit.ActionCompleteMaintenance
		})).Return(nil)

		resp, err := svc.Complete(context.Background(), task.ID, CompleteTaskRequest{
			PerformedBy: "vendor.acme",
			Cost:        &cost,
			Notes:       "annual calibration",
		}, testActor())

		require.NoError(t, err)
		assert.Equal(t, "completed", resp.Status)
		assert.NotNil(t, resp.CompletedAt)
		require.NotNil(t, resp.Cost)
		assert.True(t, resp.Cost.Equal(cost))

		require.Len(t, publisher.events, 1)
		assert.Equal(t, maintenance.EventTypeTaskCompleted, publisher.events[0].EventType())
	})

	t.Run("completing a completed task is rejected", func(t *testing.T) {
		svc, m, _ := newTestService()
		task := newScheduledTask(t, uuid.New(), time.Now().Add(24*time.Hour))
		require.NoError(t, task.Complete(time.Now(), "vendor.acme", decimal.NullDecimal{}, ""))
		task.ClearDomainEvents()

		m.tasks.On("FindByID", mock.Anything, task.ID).Return(task, nil)

		_, err := svc.Complete(context.Background(), task.ID, CompleteTaskRequest{}, testActor())

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, "INVALID_STATE"))
		m.tasks.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
		m.trail.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("version conflict retries with fresh state", func(t *testing.T) {
		svc, m, _ := newTestService()
		first := newScheduledTask(t, uuid.New(), time.Now().Add(24*time.Hour))
		second := newScheduledTask(t, first.EquipmentID, first.ScheduledAt)
		second.ID = first.ID

		m.tasks.On("FindByID", mock.Anything, first.ID).Return(first, nil).Once()
		m.tasks.On("SaveWithLock", mock.Anything, first).Return(shared.ErrConcurrencyConflict).Once()
		m.tasks.On("FindByID", mock.Anything, first.ID).Return(second, nil).Once()
		m.tasks.On("SaveWithLock", mock.Anything, second).Return(nil).Once()
		m.trail.On("Append", mock.Anything, mock.AnythingOfType("*audit.Entry")).Return(nil)

		resp, err := svc.Complete(context.Background(), first.ID, CompleteTaskRequest{}, testActor())

		require.NoError(t, err)
		assert.Equal(t, "completed", resp.Status)
		m.tasks.AssertExpectations(t)
	})
}

func TestServiceSweepOverdue(t *testing.T) {
	t.Run("flips due tasks and audits each one", func(t *testing.T) {
		svc, m, publisher := newTestService()
		now := time.Now()
		dueA := newScheduledTask(t, uuid.New(), now.Add(-48*time.Hour))
		dueB := newScheduledTask(t, uuid.New(), now.Add(-1*time.Hour))

		m.tasks.On("FindDueBefore", mock.Anything, now).Return([]*maintenance.Task{dueA, dueB}, nil)
		m.tasks.On("MarkOverdueByIDs", mock.Anything, []uuid.UUID{dueA.ID, dueB.ID}, now).Return(int64(2), nil)
		m.trail.On("Append", mock.Anything, mock.MatchedBy(func(e *audit.Entry) bool {
			return e.Action == audit.ActionMarkOverdue && e.Actor == "system"
		})).Return(nil)

		result, err := svc.SweepOverdue(context.Background(), now, audit.SystemActor())

		require.NoError(t, err)
		assert.Equal(t, int64(2), result.Matched)
		assert.Equal(t, int64(2), result.Transitioned)
		m.trail.AssertNumberOfCalls(t, "Append", 2)

		require.Len(t, publisher.events, 2)
		assert.Equal(t, maintenance.EventTypeTaskOverdue, publisher.events[0].EventType())
	})

	t.Run("the bulk update is scoped to the selected candidates", func(t *testing.T) {
		svc, m, _ := newTestService()
		now := time.Now()
		due := newScheduledTask(t, uuid.New(), now.Add(-1*time.Hour))

		// A task becoming due after the candidate select must not be
		// swept up by the mark statement: only the candidate's ID may
		// reach the repository, so every transitioned row has its
		// matching audit entry.
		m.tasks.On("FindDueBefore", mock.Anything, now).Return([]*maintenance.Task{due}, nil)
		m.tasks.On("MarkOverdueByIDs", mock.Anything, []uuid.UUID{due.ID}, now).Return(int64(1), nil)
		m.trail.On("Append", mock.Anything, mock.AnythingOfType("*audit.Entry")).Return(nil)

		result, err := svc.SweepOverdue(context.Background(), now, audit.SystemActor())

		require.NoError(t, err)
		assert.Equal(t, result.Matched, result.Transitioned)
		m.tasks.AssertExpectations(t)
		m.trail.AssertNumberOfCalls(t, "Append", 1)
	})

	t.Run("nothing due is a quiet no-op", func(t *testing.T) {
		svc, m, publisher := newTestService()
		now := time.Now()

		m.tasks.On("FindDueBefore", mock.Anything, now).Return([]*maintenance.Task{}, nil)

		result, err := svc.SweepOverdue(context.Background(), now, audit.SystemActor())

		require.NoError(t, err)
		assert.Equal(t, int64(0), result.Matched)
		assert.Equal(t, int64(0), result.Transitioned)
		assert.Empty(t, publisher.events)
		m.tasks.AssertNotCalled(t, "MarkOverdueByIDs", mock.Anything, mock.Anything, mock.Anything)
		m.trail.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})
}

func TestServiceUpcoming(t *testing.T) {
	svc, m, _ := newTestService()
	task := newScheduledTask(t, uuid.New(), time.Now().Add(3*24*time.Hour))

	m.tasks.On("FindUpcoming", mock.Anything, mock.Anything, 14*24*time.Hour).
		Return([]*maintenance.Task{task}, nil)

	tasks, err := svc.Upcoming(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "scheduled", tasks[0].Status)
	m.tasks.AssertExpectations(t)
}

func TestServiceList(t *testing.T) {
	svc, m, _ := newTestService()
	equipmentID := uuid.New()
	task := newScheduledTask(t, equipmentID, time.Now().Add(24*time.Hour))

	m.tasks.On("FindAll", mock.Anything, mock.MatchedBy(func(f shared.Filter) bool {
		return f.Filters["status"] == "scheduled" && f.Filters["equipment_id"] == equipmentID
	})).Return([]*maintenance.Task{task}, nil)
	m.tasks.On("Count", mock.Anything, mock.Anything).Return(int64(1), nil)

	tasks, total, err := svc.List(context.Background(), TaskFilter{
		Status:      "scheduled",
		EquipmentID: &equipmentID,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, tasks, 1)
}
