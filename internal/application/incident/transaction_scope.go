package incident

import (
	"context"

	"github.com/labstock/backend/internal/domain/audit"
	"github.com/labstock/backend/internal/domain/consumable"
	"github.com/labstock/backend/internal/domain/equipment"
	"github.com/labstock/backend/internal/domain/incident"
)

// TransactionScope provides transactional access to the incident
// repositories. Filing a note verifies its parent and appends the
// audit entry in the same transaction.
type TransactionScope interface {
	// Execute runs the given function within a storage transaction.
	// A returned error rolls the transaction back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the repositories bound
// to the current transaction. The parent repositories are read-only
// here; reporting validates the referenced item exists.
type TransactionalRepositories interface {
	// Notes returns the incident note repository scoped to the transaction
	Notes() incident.NoteRepository
	// Equipment returns the equipment item repository scoped to the transaction
	Equipment() equipment.ItemRepository
	// Consumables returns the consumable item repository scoped to the transaction
	Consumables() consumable.ItemRepository
	// AuditLog returns the audit repository scoped to the transaction
	AuditLog() audit.Repository
}

// NoOpTransactionScope runs the callback without a real transaction.
// Useful in tests where the repositories are fakes.
type NoOpTransactionScope struct {
	notes       incident.NoteRepository
	equipment   equipment.ItemRepository
	consumables consumable.ItemRepository
	auditLog    audit.Repository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over the given repositories
func NewNoOpTransactionScope(
	notes incident.NoteRepository,
	equipmentItems equipment.ItemRepository,
	consumables consumable.ItemRepository,
	auditLog audit.Repository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		notes:       notes,
		equipment:   equipmentItems,
		consumables: consumables,
		auditLog:    auditLog,
	}
}

// Execute runs the function directly, without transaction semantics
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Notes returns the incident note repository
func (s *NoOpTransactionScope) Notes() incident.NoteRepository {
	return s.notes
}

// Equipment returns the equipment item repository
func (s *NoOpTransactionScope) Equipment() equipment.ItemRepository {
	return s.equipment
}

// Consumables returns the consumable item repository
func (s *NoOpTransactionScope) Consumables() consumable.ItemRepository {
	return s.consumables
}

// AuditLog returns the audit repository
func (s *NoOpTransactionScope) AuditLog() audit.Repository {
	return s.auditLog
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
