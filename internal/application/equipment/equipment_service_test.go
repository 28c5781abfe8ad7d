package equipment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/audit"
	"github.com/labstock/backend/internal/domain/equipment"
	"github.com/labstock/backend/internal/domain/incident"
	"github.com/labstock/backend/internal/domain/maintenance"
	"github.com/labstock/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockItemRepository is a mock implementation of equipment.ItemRepository
type MockItemRepository struct {
	mock.Mock
}

func (m *MockItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*equipment.Item, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*equipment.Item), args.Error(1)
}

func (m *MockItemRepository) FindByName(ctx context.Context, name string) (*equipment.Item, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*equipment.Item), args.Error(1)
}

func (m *MockItemRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*equipment.Item, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*equipment.Item), args.Error(1)
}

func (m *MockItemRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockItemRepository) Save(ctx context.Context, item *equipment.Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockItemRepository) SaveWithLock(ctx context.Context, item *equipment.Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockItemRepository) MostBorrowed(ctx context.Context, limit int) ([]equipment.BorrowTally, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]equipment.BorrowTally), args.Error(1)
}

// MockBorrowRecordRepository is a mock implementation of equipment.BorrowRecordRepository
type MockBorrowRecordRepository struct {
	mock.Mock
}

func (m *MockBorrowRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*equipment.BorrowRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*equipment.BorrowRecord), args.Error(1)
}

func (m *MockBorrowRecordRepository) FindByReference(ctx context.Context, referenceCode string) (*equipment.BorrowRecord, error) {
	args := m.Called(ctx, referenceCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*equipment.BorrowRecord), args.Error(1)
}

func (m *MockBorrowRecordRepository) FindByEquipment(ctx context.Context, equipmentID uuid.UUID, filter shared.Filter) ([]*equipment.BorrowRecord, error) {
	args := m.Called(ctx, equipmentID, filter)
	return args.Get(0).([]*equipment.BorrowRecord), args.Error(1)
}

func (m *MockBorrowRecordRepository) FindActive(ctx context.Context, filter shared.Filter) ([]*equipment.BorrowRecord, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*equipment.BorrowRecord), args.Error(1)
}

func (m *MockBorrowRecordRepository) SumActiveQuantity(ctx context.Context, equipmentID uuid.UUID) (int64, error) {
	args := m.Called(ctx, equipmentID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBorrowRecordRepository) CountActiveByEquipment(ctx context.Context, equipmentID uuid.UUID) (int64, error) {
	args := m.Called(ctx, equipmentID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBorrowRecordRepository) CountByEquipment(ctx context.Context, equipmentID uuid.UUID) (int64, error) {
	args := m.Called(ctx, equipmentID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBorrowRecordRepository) Save(ctx context.Context, record *equipment.BorrowRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockBorrowRecordRepository) Update(ctx context.Context, record *equipment.BorrowRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockBorrowRecordRepository) DeleteByEquipment(ctx context.Context, equipmentID uuid.UUID) error {
	args := m.Called(ctx, equipmentID)
	return args.Error(0)
}

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

// MockNoteRepository is a mock implementation of incident.NoteRepository
type MockNoteRepository struct {
	mock.Mock
}

func (m *MockNoteRepository) FindByID(ctx context.Context, id uuid.UUID) (*incident.Note, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*incident.Note), args.Error(1)
}

func (m *MockNoteRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*incident.Note, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*incident.Note), args.Error(1)
}

func (m *MockNoteRepository) FindByEquipment(ctx context.Context, equipmentID uuid.UUID) ([]*incident.Note, error) {
	args := m.Called(ctx, equipmentID)
	return args.Get(0).([]*incident.Note), args.Error(1)
}

func (m *MockNoteRepository) FindByConsumable(ctx context.Context, consumableID uuid.UUID) ([]*incident.Note, error) {
	args := m.Called(ctx, consumableID)
	return args.Get(0).([]*incident.Note), args.Error(1)
}

func (m *MockNoteRepository) Save(ctx context.Context, note *incident.Note) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}

func (m *MockNoteRepository) CountByEquipment(ctx context.Context, equipmentID uuid.UUID) (int64, error) {
	args := m.Called(ctx, equipmentID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNoteRepository) CountByConsumable(ctx context.Context, consumableID uuid.UUID) (int64, error) {
	args := m.Called(ctx, consumableID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNoteRepository) DeleteByEquipment(ctx context.Context, equipmentID uuid.UUID) error {
	args := m.Called(ctx, equipmentID)
	return args.Error(0)
}

func (m *MockNoteRepository) DeleteByConsumable(ctx context.Context, consumableID uuid.UUID) error {
	args := m.Called(ctx, consumableID)
	return args.Error(0)
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
	items   *MockItemRepository
	borrows *MockBorrowRecordRepository
	tasks   *MockTaskRepository
	notes   *MockNoteRepository
	trail   *MockAuditRepository
}

func newTestService() (*Service, *serviceMocks, *capturingPublisher) {
	m := &serviceMocks{
		items:   new(MockItemRepository),
		borrows: new(MockBorrowRecordRepository),
		tasks:   new(MockTaskRepository),
		notes:   new(MockNoteRepository),
		trail:   new(MockAuditRepository),
	}
	scope := NewNoOpTransactionScope(m.items, m.borrows, m.tasks, m.notes, m.trail)
	svc := NewService(m.items, m.borrows, scope, NewULIDReferenceCodeGenerator(), zap.NewNop())
	publisher := &capturingPublisher{}
	svc.SetEventPublisher(publisher)
	return svc, m, publisher
}

func newDevice(t *testing.T) *equipment.Item {
	t.Helper()
	item, err := equipment.NewItem("Oscilloscope", "Cabinet B2", "", 10)
	require.NoError(t, err)
	item.ClearDomainEvents()
	return item
}

func testActor() audit.Actor {
	return audit.Actor{Name: "tech.ward", Role: "lab_tech"}
}

func borrowReq(quantity int64) BorrowRequest {
	return BorrowRequest{
		BorrowerName: "j.smith",
		BorrowerType: "student",
		Quantity:     quantity,
	}
}

func TestServiceRegister(t *testing.T) {
	svc, m, _ := newTestService()
	m.items.On("Save", mock.Anything, mock.AnythingOfType("*equipment.Item")).Return(nil)
	m.trail.On("Append", mock.Anything, mock.MatchedBy(func(e *audit.Entry) bool {
		return e.Action == audit.ActionRegisterEquipment
	})).Return(nil)

	resp, err := svc.Register(context.Background(), RegisterItemRequest{
		Name:          "Centrifuge",
		Location:      "Bench 4",
		TotalQuantity: 2,
	}, testActor())

	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.TotalQuantity)
	assert.Equal(t, int64(2), resp.Available, "nothing is lent out at registration")
	m.trail.AssertExpectations(t)
}

func TestServiceGet(t *testing.T) {
	svc, m, _ := newTestService()
	item := newDevice(t)

	m.items.On("FindByID", mock.Anything, item.ID).Return(item, nil)
	m.borrows.On("SumActiveQuantity", mock.Anything, item.ID).Return(int64(3), nil)

	resp, err := svc.Get(context.Background(), item.ID)

	require.NoError(t, err)
	assert.Equal(t, int64(10), resp.TotalQuantity)
	assert.Equal(t, int64(7), resp.Available)
}

func TestServiceBorrow(t *testing.T) {
	t.Run("borrow creates active record with reference code", func(t *testing.T) {
		svc, m, publisher := newTestService()
		item := newDevice(t)

		m.items.On("FindByID", mock.Anything, item.ID).Return(item, nil)
		m.borrows.On("SumActiveQuantity", mock.Anything, item.ID).Return(int64(0), nil)
		m.items.On("SaveWithLock", mock.Anything, item).Return(nil)
		m.borrows.On("Save", mock.Anything, mock.AnythingOfType("*equipment.BorrowRecord")).Return(nil)
		m.trail.On("Append", mock.Anything, mock.MatchedBy(func(e *audit.Entry) bool {
			return e.Action == audit.ActionBorrow
		})).Return(nil)

		resp, err := svc.Borrow(context.Background(), item.ID, borrowReq(4), testActor())

		require.NoError(t, err)
		assert.Equal(t, int64(4), resp.QuantityBorrowed)
		assert.True(t, strings.HasPrefix(resp.ReferenceCode, "BRW-"))
		assert.Nil(t, resp.ReturnedAt)

		require.Len(t, publisher.events, 1)
		assert.Equal(t, equipment.EventTypeBorrowed, publisher.events[0].EventType())
	})

	t.Run("borrow beyond availability fails without audit", func(t *testing.T) {
		svc, m, _ := newTestService()
		item := newDevice(t)

		m.items.On("FindByID", mock.Anything, item.ID).Return(item, nil)
		m.borrows.On("SumActiveQuantity", mock.Anything, item.ID).Return(int64(8), nil)

		_, err := svc.Borrow(context.Background(), item.ID, borrowReq(3), testActor())

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, "INSUFFICIENT_STOCK"))
		m.items.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
		m.trail.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("version conflict retries with a fresh availability read", func(t *testing.T) {
		svc, m, _ := newTestService()
		first := newDevice(t)
		second := newDevice(t)
		second.ID = first.ID

		m.items.On("FindByID", mock.Anything, first.ID).Return(first, nil).Once()
		m.borrows.On("SumActiveQuantity", mock.Anything, first.ID).Return(int64(0), nil).Once()
		m.items.On("SaveWithLock", mock.Anything, first).Return(shared.ErrConcurrencyConflict).Once()

		m.items.On("FindByID", mock.Anything, first.ID).Return(second, nil).Once()
		m.borrows.On("SumActiveQuantity", mock.Anything, first.ID).Return(int64(6), nil).Once()
		m.items.On("SaveWithLock", mock.Anything, second).Return(nil).Once()
		m.borrows.On("Save", mock.Anything, mock.AnythingOfType("*equipment.BorrowRecord")).Return(nil)
		m.trail.On("Append", mock.Anything, mock.AnythingOfType("*audit.Entry")).Return(nil)

		resp, err := svc.Borrow(context.Background(), first.ID, borrowReq(4), testActor())

		require.NoError(t, err)
		assert.Equal(t, int64(4), resp.QuantityBorrowed)
		m.items.AssertExpectations(t)
		m.borrows.AssertExpectations(t)
	})
}

func TestServiceBulkBorrow(t *testing.T) {
	t.Run("lines succeed and fail independently", func(t *testing.T) {
		svc, m, publisher := newTestService()
		scope := newDevice(t)
		balance := newDevice(t)

		m.items.On("FindByID", mock.Anything, scope.ID).Return(scope, nil)
		m.borrows.On("SumActiveQuantity", mock.Anything, scope.ID).Return(int64(0), nil)
		m.items.On("FindByID", mock.Anything, balance.ID).Return(balance, nil)
		m.borrows.On("SumActiveQuantity", mock.Anything, balance.ID).Return(int64(9), nil)
		m.items.On("SaveWithLock", mock.Anything, scope).Return(nil)
		m.borrows.On("Save", mock.Anything, mock.AnythingOfType("*equipment.BorrowRecord")).Return(nil)
		m.trail.On("Append", mock.Anything, mock.MatchedBy(func(e *audit.Entry) bool {
			return e.Action == audit.ActionBorrow
		})).Return(nil)

		resp, err := svc.BulkBorrow(context.Background(), BulkBorrowRequest{
			BorrowerName:  "j.smith",
			BorrowerType:  "student",
			SectionCourse: "PHYS-210",
			Lines: []BulkBorrowLine{
				{EquipmentID: scope.ID, Quantity: 2},
				{EquipmentID: balance.ID, Quantity: 5},
			},
		}, testActor())

		require.NoError(t, err)
		assert.Equal(t, 1, resp.Succeeded)
		assert.Equal(t, 1, resp.Failed)
		require.Len(t, resp.Lines, 2)

		require.NotNil(t, resp.Lines[0].Record)
		assert.Equal(t, "j.smith", resp.Lines[0].Record.BorrowerName)
		assert.Equal(t, "PHYS-210", resp.Lines[0].Record.SectionCourse)
		assert.True(t, strings.HasPrefix(resp.Lines[0].Record.ReferenceCode, "BRW-"))

		assert.Nil(t, resp.Lines[1].Record)
		assert.Equal(t, "INSUFFICIENT_STOCK", resp.Lines[1].Error)

		// Only the granted loan leaves traces
		m.trail.AssertNumberOfCalls(t, "Append", 1)
		m.borrows.AssertNumberOfCalls(t, "Save", 1)
		require.Len(t, publisher.events, 1)
	})

	t.Run("each granted line gets its own reference code", func(t *testing.T) {
		svc, m, _ := newTestService()
		scope := newDevice(t)
		balance := newDevice(t)

		m.items.On("FindByID", mock.Anything, scope.ID).Return(scope, nil)
		m.borrows.On("SumActiveQuantity", mock.Anything, scope.ID).Return(int64(0), nil)
		m.items.On("FindByID", mock.Anything, balance.ID).Return(balance, nil)
		m.borrows.On("SumActiveQuantity", mock.Anything, balance.ID).Return(int64(0), nil)
		m.items.On("SaveWithLock", mock.Anything, mock.AnythingOfType("*equipment.Item")).Return(nil)
		m.borrows.On("Save", mock.Anything, mock.AnythingOfType("*equipment.BorrowRecord")).Return(nil)
		m.trail.On("Append", mock.Anything, mock.AnythingOfType("*audit.Entry")).Return(nil)

		resp, err := svc.BulkBorrow(context.Background(), BulkBorrowRequest{
			BorrowerName: "j.smith",
			BorrowerType: "student",
			Lines: []BulkBorrowLine{
				{EquipmentID: scope.ID, Quantity: 1},
				{EquipmentID: balance.ID, Quantity: 1},
			},
		}, testActor())

		require.NoError(t, err)
		assert.Equal(t, 2, resp.Succeeded)
		require.NotNil(t, resp.Lines[0].Record)
		require.NotNil(t, resp.Lines[1].Record)
		assert.NotEqual(t, resp.Lines[0].Record.ReferenceCode, resp.Lines[1].Record.ReferenceCode)
	})
}

func TestServiceReturnFull(t *testing.T) {
	t.Run("closes the loan and restores availability", func(t *testing.T) {
		svc, m, publisher := newTestService()
		item := newDevice(t)
		record, err := item.Borrow(0, "BRW-TEST", equipment.Borrower{Name: "j.smith", Type: "student"}, 4)
		require.NoError(t, err)
		item.ClearDomainEvents()

		m.borrows.On("FindByID", mock.Anything, record.ID).Return(record, nil)
		m.items.On("FindByID", mock.Anything, item.ID).Return(item, nil)
		m.items.On("SaveWithLock", mock.Anything, item).Return(nil)
		m.borrows.On("Update", mock.Anything, record).Return(nil)
		m.trail.On("Append", mock.Anything, mock.MatchedBy(func(e *audit.Entry) bool {
			return e.Action == audit.ActionReturnFull
		})).Return(nil)

		resp, err := svc.ReturnFull(context.Background(), record.ID, ReturnRequest{}, testActor())

		require.NoError(t, err)
		assert.NotNil(t, resp.ReturnedAt)

		require.Len(t, publisher.events, 1)
		assert.Equal(t, equipment.EventTypeReturned, publisher.events[0].EventType())
	})

	t.Run("double return is rejected", func(t *testing.T) {
		svc, m, _ := newTestService()
		item := newDevice(t)
		record, err := item.Borrow(0, "BRW-TEST", equipment.Borrower{Name: "j.smith", Type: "student"}, 4)
		require.NoError(t, err)
		require.NoError(t, item.ReturnFull(record, time.Now()))
		item.ClearDomainEvents()

		m.borrows.On("FindByID", mock.Anything, record.ID).Return(record, nil)
		m.items.On("FindByID", mock.Anything, item.ID).Return(item, nil)

		_, err = svc.ReturnFull(context.Background(), record.ID, ReturnRequest{}, testActor())

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, "INVALID_STATE"))
		m.trail.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("files an incident note reported at return time", func(t *testing.T) {
		svc, m, _ := newTestService()
		item := newDevice(t)
		record, err := item.Borrow(0, "BRW-TEST", equipment.Borrower{Name: "j.smith", Type: "student"}, 1)
		require.NoError(t, err)
		item.ClearDomainEvents()

		m.borrows.On("FindByID", mock.Anything, record.ID).Return(record, nil)
		m.items.On("FindByID", mock.Anything, item.ID).Return(item, nil)
		m.items.On("SaveWithLock", mock.Anything, item).Return(nil)
		m.borrows.On("Update", mock.Anything, record).Return(nil)
		m.notes.On("Save", mock.Anything, mock.MatchedBy(func(n *incident.Note) bool {
			return n.Category == incident.CategoryDamaged && *n.EquipmentID == item.ID
		})).Return(nil)
		m.trail.On("Append", mock.Anything, mock.AnythingOfType("*audit.Entry")).Return(nil)

		_, err = svc.ReturnFull(context.Background(), record.ID, ReturnRequest{
			Incident: &ReturnIncident{
				Category:    "damaged",
				Description: "probe tip bent",
				ReportedBy:  "tech.ward",
			},
		}, testActor())

		require.NoError(t, err)
		m.notes.AssertExpectations(t)
		m.trail.AssertNumberOfCalls(t, "Append", 2)
	})
}

func TestServiceReturnPartial(t *testing.T) {
	t.Run("splits the loan into open remainder and returned portion", func(t *testing.T) {
		svc, m, _ := newTestService()
		item := newDevice(t)
		record, err := item.Borrow(0, "BRW-TEST", equipment.Borrower{Name: "j.smith", Type: "student"}, 5)
		require.NoError(t, err)
		item.ClearDomainEvents()

		m.borrows.On("FindByID", mock.Anything, record.ID).Return(record, nil)
		m.items.On("FindByID", mock.Anything, item.ID).Return(item, nil)
		m.items.On("SaveWithLock", mock.Anything, item).Return(nil)
		m.borrows.On("Update", mock.Anything, record).Return(nil)
		m.borrows.On("Save", mock.Anything, mock.AnythingOfType("*equipment.BorrowRecord")).Return(nil)
		m.trail.On("Append", mock.Anything, mock.MatchedBy(func(e *audit.Entry) bool {
			return e.Action == audit.ActionReturnPartial
		})).Return(nil)

		resp, err := svc.ReturnPartial(context.Background(), record.ID, ReturnRequest{Quantity: 2}, testActor())

		require.NoError(t, err)
		assert.Equal(t, int64(2), resp.QuantityBorrowed)
		assert.NotNil(t, resp.ReturnedAt)
		assert.NotEqual(t, record.ReferenceCode, resp.ReferenceCode)
		assert.Equal(t, int64(3), record.QuantityBorrowed, "open remainder keeps the original record")
	})

	t.Run("quantity equal to the open loan directs to full return", func(t *testing.T) {
		svc, m, _ := newTestService()
		item := newDevice(t)
		record, err := item.Borrow(0, "BRW-TEST", equipment.Borrower{Name: "j.smith", Type: "student"}, 5)
		require.NoError(t, err)
		item.ClearDomainEvents()

		m.borrows.On("FindByID", mock.Anything, record.ID).Return(record, nil)
		m.items.On("FindByID", mock.Anything, item.ID).Return(item, nil)

		_, err = svc.ReturnPartial(context.Background(), record.ID, ReturnRequest{Quantity: 5}, testActor())

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, "INVALID_INPUT"))
	})

	t.Run("zero quantity is rejected before any read", func(t *testing.T) {
		svc, m, _ := newTestService()

		_, err := svc.ReturnPartial(context.Background(), uuid.New(), ReturnRequest{}, testActor())

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, "INVALID_INPUT"))
		m.borrows.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})
}

func TestServiceDelete(t *testing.T) {
	t.Run("active loans block delete even with cascade", func(t *testing.T) {
		svc, m, _ := newTestService()
		item := newDevice(t)

		m.items.On("FindByID", mock.Anything, item.ID).Return(item, nil)
		m.borrows.On("CountActiveByEquipment", mock.Anything, item.ID).Return(int64(2), nil)

		err := svc.Delete(context.Background(), item.ID, true, testActor())

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, "INVALID_STATE"))
		m.items.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("closed history rejects delete without cascade", func(t *testing.T) {
		svc, m, _ := newTestService()
		item := newDevice(t)

		m.items.On("FindByID", mock.Anything, item.ID).Return(item, nil)
		m.borrows.On("CountActiveByEquipment", mock.Anything, item.ID).Return(int64(0), nil)
		m.borrows.On("CountByEquipment", mock.Anything, item.ID).Return(int64(7), nil)
		m.tasks.On("CountByEquipment", mock.Anything, item.ID).Return(int64(1), nil)
		m.notes.On("CountByEquipment", mock.Anything, item.ID).Return(int64(0), nil)

		err := svc.Delete(context.Background(), item.ID, false, testActor())

		require.Error(t, err)
		assert.True(t, shared.IsCode(err, "DEPENDENT_RECORDS_EXIST"))
	})

	t.Run("cascade settles loans, tasks and notes before the item", func(t *testing.T) {
		svc, m, _ := newTestService()
		item := newDevice(t)

		m.items.On("FindByID", mock.Anything, item.ID).Return(item, nil)
		m.borrows.On("CountActiveByEquipment", mock.Anything, item.ID).Return(int64(0), nil)
		m.borrows.On("CountByEquipment", mock.Anything, item.ID).Return(int64(7), nil)
		m.tasks.On("CountByEquipment", mock.Anything, item.ID).Return(int64(1), nil)
		m.notes.On("CountByEquipment", mock.Anything, item.ID).Return(int64(2), nil)
		m.borrows.On("DeleteByEquipment", mock.Anything, item.ID).Return(nil)
		m.tasks.On("DeleteByEquipment", mock.Anything, item.ID).Return(nil)
		m.notes.On("DeleteByEquipment", mock.Anything, item.ID).Return(nil)
		m.items.On("Delete", mock.Anything, item.ID).Return(nil)
		m.trail.On("Append", mock.Anything, mock.AnythingOfType("*audit.Entry")).Return(nil)

		err := svc.Delete(context.Background(), item.ID, true, testActor())

		require.NoError(t, err)
		m.borrows.AssertExpectations(t)
		m.tasks.AssertExpectations(t)
		m.notes.AssertExpectations(t)
	})
}

func TestServiceListBorrows(t *testing.T) {
	svc, m, _ := newTestService()
	item := newDevice(t)
	record, err := item.Borrow(0, "BRW-TEST", equipment.Borrower{Name: "j.smith", Type: "student"}, 2)
	require.NoError(t, err)

	m.items.On("FindByID", mock.Anything, item.ID).Return(item, nil)
	m.borrows.On("FindByEquipment", mock.Anything, item.ID, mock.MatchedBy(func(f shared.Filter) bool {
		active, ok := f.Filters["active"].(bool)
		return ok && active
	})).Return([]*equipment.BorrowRecord{record}, nil)

	records, err := svc.ListBorrows(context.Background(), item.ID, BorrowListFilter{ActiveOnly: true})

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "BRW-TEST", records[0].ReferenceCode)
}

func TestServiceMostBorrowed(t *testing.T) {
	svc, m, _ := newTestService()
	m.items.On("MostBorrowed", mock.Anything, 10).Return([]equipment.BorrowTally{
		{EquipmentID: uuid.New(), EquipmentName: "Oscilloscope", BorrowCount: 12, TotalQuantity: 30},
	}, nil)

	tallies, err := svc.MostBorrowed(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, tallies, 1)
	assert.Equal(t, int64(12), tallies[0].BorrowCount)
}

func TestReferenceCodeGenerator(t *testing.T) {
	gen := NewULIDReferenceCodeGenerator()

	first, err := gen.New()
	require.NoError(t, err)
	second, err := gen.New()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(first, "BRW-"))
	assert.Len(t, first, 30, "BRW- prefix plus 26 ULID characters")
	assert.NotEqual(t, first, second)
}
