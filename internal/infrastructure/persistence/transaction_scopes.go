package persistence

import (
	"context"

	appconsumable "github.com/labstock/backend/internal/application/consumable"
	appequipment "github.com/labstock/backend/internal/application/equipment"
	appincident "github.com/labstock/backend/internal/application/incident"
	appmaintenance "github.com/labstock/backend/internal/application/maintenance"
	"github.com/labstock/backend/internal/domain/audit"
	"github.com/labstock/backend/internal/domain/consumable"
	"github.com/labstock/backend/internal/domain/equipment"
	"github.com/labstock/backend/internal/domain/incident"
	"github.com/labstock/backend/internal/domain/maintenance"
	"gorm.io/gorm"
)

// The transaction scopes below run application callbacks inside a GORM
// transaction and hand them repositories bound to it. The audit append
// always shares the transaction with the entity mutation it records;
// a rollback takes both away together.

// GormConsumableTransactionScope implements the consumable transaction scope
type GormConsumableTransactionScope struct {
	db *gorm.DB
}

// NewGormConsumableTransactionScope creates a new GormConsumableTransactionScope
func NewGormConsumableTransactionScope(db *gorm.DB) *GormConsumableTransactionScope {
	return &GormConsumableTransactionScope{db: db}
}

// Execute runs the given function within a database transaction
func (s *GormConsumableTransactionScope) Execute(ctx context.Context, fn func(repos appconsumable.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&consumableTxRepositories{tx: tx})
	})
}

type consumableTxRepositories struct {
	tx *gorm.DB
}

// Items returns the consumable item repository scoped to the transaction
func (r *consumableTxRepositories) Items() consumable.ItemRepository {
	return NewGormConsumableItemRepository(r.tx)
}

// UsageRecords returns the usage record repository scoped to the transaction
func (r *consumableTxRepositories) UsageRecords() consumable.UsageRecordRepository {
	return NewGormUsageRecordRepository(r.tx)
}

// Incidents returns the incident note repository scoped to the transaction
func (r *consumableTxRepositories) Incidents() incident.NoteRepository {
	return NewGormIncidentNoteRepository(r.tx)
}

// AuditLog returns the audit repository scoped to the transaction
func (r *consumableTxRepositories) AuditLog() audit.Repository {
	return NewGormAuditEntryRepository(r.tx)
}

// GormEquipmentTransactionScope implements the equipment transaction scope
type GormEquipmentTransactionScope struct {
	db *gorm.DB
}

// NewGormEquipmentTransactionScope creates a new GormEquipmentTransactionScope
func NewGormEquipmentTransactionScope(db *gorm.DB) *GormEquipmentTransactionScope {
	return &GormEquipmentTransactionScope{db: db}
}

// Execute runs the given function within a database transaction
func (s *GormEquipmentTransactionScope) Execute(ctx context.Context, fn func(repos appequipment.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&equipmentTxRepositories{tx: tx})
	})
}

type equipmentTxRepositories struct {
	tx *gorm.DB
}

// Items returns the equipment item repository scoped to the transaction
func (r *equipmentTxRepositories) Items() equipment.ItemRepository {
	return NewGormEquipmentItemRepository(r.tx)
}

// BorrowRecords returns the borrow record repository scoped to the transaction
func (r *equipmentTxRepositories) BorrowRecords() equipment.BorrowRecordRepository {
	return NewGormBorrowRecordRepository(r.tx)
}

// MaintenanceTasks returns the maintenance task repository scoped to the transaction
func (r *equipmentTxRepositories) MaintenanceTasks() maintenance.TaskRepository {
	return NewGormMaintenanceTaskRepository(r.tx)
}

// Incidents returns the incident note repository scoped to the transaction
func (r *equipmentTxRepositories) Incidents() incident.NoteRepository {
	return NewGormIncidentNoteRepository(r.tx)
}

// AuditLog returns the audit repository scoped to the transaction
func (r *equipmentTxRepositories) AuditLog() audit.Repository {
	return NewGormAuditEntryRepository(r.tx)
}

// GormMaintenanceTransactionScope implements the maintenance transaction scope
type GormMaintenanceTransactionScope struct {
	db *gorm.DB
}

// NewGormMaintenanceTransactionScope creates a new GormMaintenanceTransactionScope
func NewGormMaintenanceTransactionScope(db *gorm.DB) *GormMaintenanceTransactionScope {
	return &GormMaintenanceTransactionScope{db: db}
}

// Execute runs the given function within a database transaction
func (s *GormMaintenanceTransactionScope) Execute(ctx context.Context, fn func(repos appmaintenance.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&maintenanceTxRepositories{tx: tx})
	})
}

type maintenanceTxRepositories struct {
	tx *gorm.DB
}

// Tasks returns the maintenance task repository scoped to the transaction
func (r *maintenanceTxRepositories) Tasks() maintenance.TaskRepository {
	return NewGormMaintenanceTaskRepository(r.tx)
}

// Equipment returns the equipment item repository scoped to the transaction
func (r *maintenanceTxRepositories) Equipment() equipment.ItemRepository {
	return NewGormEquipmentItemRepository(r.tx)
}

// AuditLog returns the audit repository scoped to the transaction
func (r *maintenanceTxRepositories) AuditLog() audit.Repository {
	return NewGormAuditEntryRepository(r.tx)
}

// GormIncidentTransactionScope implements the incident transaction scope
type GormIncidentTransactionScope struct {
	db *gorm.DB
}

// NewGormIncidentTransactionScope creates a new GormIncidentTransactionScope
func NewGormIncidentTransactionScope(db *gorm.DB) *GormIncidentTransactionScope {
	return &GormIncidentTransactionScope{db: db}
}

// Execute runs the given function within a database transaction
func (s *GormIncidentTransactionScope) Execute(ctx context.Context, fn func(repos appincident.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&incidentTxRepositories{tx: tx})
	})
}

type incidentTxRepositories struct {
	tx *gorm.DB
}

// Notes returns the incident note repository scoped to the transaction
func (r *incidentTxRepositories) Notes() incident.NoteRepository {
	return NewGormIncidentNoteRepository(r.tx)
}

// Equipment returns the equipment item repository scoped to the transaction
func (r *incidentTxRepositories) Equipment() equipment.ItemRepository {
	return NewGormEquipmentItemRepository(r.tx)
}

// Consumables returns the consumable item repository scoped to the transaction
func (r *incidentTxRepositories) Consumables() consumable.ItemRepository {
	return NewGormConsumableItemRepository(r.tx)
}

// AuditLog returns the audit repository scoped to the transaction
func (r *incidentTxRepositories) AuditLog() audit.Repository {
	return NewGormAuditEntryRepository(r.tx)
}

// Interface checks
var _ appconsumable.TransactionScope = (*GormConsumableTransactionScope)(nil)
var _ appconsumable.TransactionalRepositories = (*consumableTxRepositories)(nil)
var _ appequipment.TransactionScope = (*GormEquipmentTransactionScope)(nil)
var _ appequipment.TransactionalRepositories = (*equipmentTxRepositories)(nil)
var _ appmaintenance.TransactionScope = (*GormMaintenanceTransactionScope)(nil)
var _ appmaintenance.TransactionalRepositories = (*maintenanceTxRepositories)(nil)
var _ appincident.TransactionScope = (*GormIncidentTransactionScope)(nil)
var _ appincident.TransactionalRepositories = (*incidentTxRepositories)(nil)
