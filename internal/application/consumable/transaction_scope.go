package consumable

import (
	"context"

	"github.com/labstock/backend/internal/domain/audit"
	"github.com/labstock/backend/internal/domain/consumable"
	"github.com/labstock/backend/internal/domain/incident"
)

// TransactionScope provides transactional access to the consumable
// ledger repositories. Everything the callback does against the
// repositories it receives commits or rolls back as one unit; in
// particular the audit append shares the transaction with the stock
// mutation it records.
type TransactionScope interface {
	// Execute runs the given function within a storage transaction.
	// A returned error rolls the transaction back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the repositories bound
// to the current transaction. UsageRecords are child entities of the
// Item aggregate but keep separate storage access for query
// performance and for the return transition, which flips a single
// record in place.
type TransactionalRepositories interface {
	// Items returns the consumable item repository scoped to the transaction
	Items() consumable.ItemRepository
	// UsageRecords returns the usage record repository scoped to the transaction
	UsageRecords() consumable.UsageRecordRepository
	// Incidents returns the incident note repository scoped to the transaction
	Incidents() incident.NoteRepository
	// AuditLog returns the audit repository scoped to the transaction
	AuditLog() audit.Repository
}

// NoOpTransactionScope runs the callback without a real transaction.
// Useful in tests where the repositories are fakes.
type NoOpTransactionScope struct {
	items        consumable.ItemRepository
	usageRecords consumable.UsageRecordRepository
	incidents    incident.NoteRepository
	auditLog     audit.Repository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over the given repositories
func NewNoOpTransactionScope(
	items consumable.ItemRepository,
	usageRecords consumable.UsageRecordRepository,
	incidents incident.NoteRepository,
	auditLog audit.Repository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		items:        items,
		usageRecords: usageRecords,
		incidents:    incidents,
		auditLog:     auditLog,
	}
}

// Execute runs the function directly, without transaction semantics
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Items returns the consumable item repository
func (s *NoOpTransactionScope) Items() consumable.ItemRepository {
	return s.items
}

// UsageRecords returns the usage record repository
func (s *NoOpTransactionScope) UsageRecords() consumable.UsageRecordRepository {
	return s.usageRecords
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
