package integration

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditapp "github.com/labstock/backend/internal/application/audit"
	consumableapp "github.com/labstock/backend/internal/application/consumable"
	equipmentapp "github.com/labstock/backend/internal/application/equipment"
	maintenanceapp "github.com/labstock/backend/internal/application/maintenance"
	"github.com/labstock/backend/internal/domain/audit"
	"github.com/labstock/backend/internal/infrastructure/persistence"
)

// Service constructors shared by the integration suites. Each wires the
// real GORM repositories and transaction scopes against the test
// database, with logging discarded.

func newConsumableService(db *gorm.DB) *consumableapp.Service {
	return consumableapp.NewService(
		persistence.NewGormConsumableItemRepository(db),
		persistence.NewGormUsageRecordRepository(db),
		persistence.NewGormConsumableTransactionScope(db),
		zap.NewNop(),
	)
}

func newEquipmentService(db *gorm.DB) *equipmentapp.Service {
	return equipmentapp.NewService(
		persistence.NewGormEquipmentItemRepository(db),
		persistence.NewGormBorrowRecordRepository(db),
		persistence.NewGormEquipmentTransactionScope(db),
		equipmentapp.NewULIDReferenceCodeGenerator(),
		zap.NewNop(),
	)
}

func newMaintenanceService(db *gorm.DB) *maintenanceapp.Service {
	return maintenanceapp.NewService(
		persistence.NewGormMaintenanceTaskRepository(db),
		persistence.NewGormMaintenanceTransactionScope(db),
		zap.NewNop(),
	)
}

func newAuditService(db *gorm.DB) *auditapp.Service {
	return auditapp.NewService(persistence.NewGormAuditEntryRepository(db))
}

func testActor() audit.Actor {
	return audit.Actor{Name: "dr.lee", Role: "lab_manager", SourceIP: "10.0.0.5"}
}
