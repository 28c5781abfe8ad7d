package maintenance

import (
	"context"

	"github.com/labstock/backend/internal/domain/audit"
	"github.com/labstock/backend/internal/domain/equipment"
	"github.com/labstock/backend/internal/domain/maintenance"
)

// TransactionScope provides transactional access to the maintenance
// repositories. The overdue sweep selects its candidates and flips
// them inside one transaction so the per-task audit entries match the
// rows the bulk update touched.
type TransactionScope interface {
	// Execute runs the given function within a storage transaction.
	// A returned error rolls the transaction back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the repositories bound
// to the current transaction. Equipment is read-only here; scheduling
// validates that the referenced device exists.
type TransactionalRepositories interface {
	// Tasks returns the maintenance task repository scoped to the transaction
	Tasks() maintenance.TaskRepository
	// Equipment returns the equipment item repository scoped to the transaction
	Equipment() equipment.ItemRepository
	// AuditLog returns the audit repository scoped to the transaction
	AuditLog() audit.Repository
}

// NoOpTransactionScope runs the callback without a real transaction.
// Useful in tests where the repositories are fakes.
type NoOpTransactionScope struct {
	tasks     maintenance.TaskRepository
	equipment equipment.ItemRepository
	auditLog  audit.Repository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over the given repositories
func NewNoOpTransactionScope(
	tasks maintenance.TaskRepository,
	equipmentItems equipment.ItemRepository,
	auditLog audit.Repository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		tasks:     tasks,
		equipment: equipmentItems,
		auditLog:  auditLog,
	}
}

// Execute runs the function directly, without transaction semantics
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Tasks returns the maintenance task repository
func (s *NoOpTransactionScope) Tasks() maintenance.TaskRepository {
	return s.tasks
}

// Equipment returns the equipment item repository
func (s *NoOpTransactionScope) Equipment() equipment.ItemRepository {
	return s.equipment
}

// AuditLog returns the audit repository
func (s *NoOpTransactionScope) AuditLog() audit.Repository {
	return s.auditLog
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
