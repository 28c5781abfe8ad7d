package equipment

import (
	"context"

	"github.com/labstock/backend/internal/domain/audit"
	"github.com/labstock/backend/internal/domain/equipment"
	"github.com/labstock/backend/internal/domain/incident"
	"github.com/labstock/backend/internal/domain/maintenance"
)

// TransactionScope provides transactional access to the equipment
// repositories. Borrow and return read the active-loan sum and write
// the item inside the same transaction, which together with the item's
// version check serializes availability decisions.
type TransactionScope interface {
	// Execute runs the given function within a storage transaction.
	// A returned error rolls the transaction back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the repositories bound
// to the current transaction. Maintenance tasks and incident notes are
// included because deleting an equipment item settles those children
// in the same transaction.
type TransactionalRepositories interface {
	// Items returns the equipment item repository scoped to the transaction
	Items() equipment.ItemRepository
	// BorrowRecords returns the borrow record repository scoped to the transaction
	BorrowRecords() equipment.BorrowRecordRepository
	// MaintenanceTasks returns the maintenance task repository scoped to the transaction
	MaintenanceTasks() maintenance.TaskRepository
	// Incidents returns the incident note repository scoped to the transaction
	Incidents() incident.NoteRepository
	// AuditLog returns the audit repository scoped to the transaction
	AuditLog() audit.Repository
}

// NoOpTransactionScope runs the callback without a real transaction.
// Useful in tests where the repositories are fakes.
type NoOpTransactionScope struct {
	items         equipment.ItemRepository
	borrowRecords equipment.BorrowRecordRepository
	tasks         maintenance.TaskRepository
	incidents     incident.NoteRepository
	auditLog      audit.Repository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over the given repositories
func NewNoOpTransactionScope(
	items equipment.ItemRepository,
	borrowRecords equipment.BorrowRecordRepository,
	tasks maintenance.TaskRepository,
	incidents incident.NoteRepository,
	auditLog audit.Repository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		items:         items,
		borrowRecords: borrowRecords,
		tasks:         tasks,
		incidents:     incidents,
		auditLog:      auditLog,
	}
}

// Execute runs the function directly, without transaction semantics
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Items returns the equipment item repository
func (s *NoOpTransactionScope) Items() equipment.ItemRepository {
	return s.items
}

// BorrowRecords returns the borrow record repository
func (s *NoOpTransactionScope) BorrowRecords() equipment.BorrowRecordRepository {
	return s.borrowRecords
}

// MaintenanceTasks returns the maintenance task repository
func (s *NoOpTransactionScope) MaintenanceTasks() maintenance.TaskRepository {
	return s.tasks
}

// Incidents returns the incident note repository
func (s *NoOpTransactionScope) Incidents() incident.NoteRepository {
	return s.incidents
}

// AuditLog returns the audit repository
func (s *NoOpTransactionScope) AuditLog() audit.Repository {
	return s.auditLog
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
