package audit

import (
	"time"

	"github.com/labstock/backend/internal/domain/shared"
)

// Action labels the mutating operation an audit entry records.
type Action string

const (
	ActionRegisterConsumable Action = "consumable.register"
	ActionUpdateConsumable   Action = "consumable.update"
	ActionDeleteConsumable   Action = "consumable.delete"
	ActionConsume            Action = "consumable.consume"
	ActionReplenish          Action = "consumable.replenish"
	ActionReceiveStock       Action = "consumable.receive_stock"
	ActionReturnUsage        Action = "consumable.return_usage"
	ActionRolloverPeriod     Action = "consumable.rollover_period"
	ActionRecalcStock        Action = "consumable.recalc"

	ActionRegisterEquipment Action = "equipment.register"
	ActionUpdateEquipment   Action = "equipment.update"
	ActionDeleteEquipment   Action = "equipment.delete"
	ActionBorrow            Action = "equipment.borrow"
	ActionReturnFull        Action = "equipment.return_full"
	ActionReturnPartial     Action = "equipment.return_partial"

	ActionScheduleMaintenance Action = "maintenance.schedule"
	ActionMarkOverdue         Action = "maintenance.mark_overdue"
	ActionCompleteMaintenance Action = "maintenance.complete"

	ActionReportIncident Action = "incident.report"
)

// String returns the string representation of Action
func (a Action) String() string {
	return string(a)
}

// Actor identifies who performed an operation. The engine never
// authenticates; it records whatever identity the caller supplies.
type Actor struct {
	Name     string
	Role     string
	SourceIP string
}

// Valid reports whether the actor carries a usable identity
func (a Actor) Valid() bool {
	return a.Name != ""
}

// SystemActor is used for operations triggered by the scheduler
// rather than a request on behalf of a person.
func SystemActor() Actor {
	return Actor{Name: "system", Role: "scheduler"}
}

// Entry is one immutable record of a mutating operation.
// The Sequence is assigned by the store as a monotonically increasing
// identity; entries are never updated or deleted after insertion.
type Entry struct {
	Sequence   int64     `gorm:"primaryKey;autoIncrement"`
	Actor      string    `gorm:"type:varchar(100);not null;index:idx_audit_actor"`
	ActorRole  string    `gorm:"type:varchar(50)"`
	Action     Action    `gorm:"type:varchar(50);not null;index:idx_audit_action"`
	Details    string    `gorm:"type:text"`
	SourceIP   string    `gorm:"type:varchar(45)"`
	OccurredAt time.Time `gorm:"type:timestamptz;not null;index:idx_audit_occurred"`
}

// TableName returns the table name for GORM
func (Entry) TableName() string {
	return "audit_entries"
}

// NewEntry creates a new audit entry. The sequence stays zero until
// the store assigns it on insert.
func NewEntry(actor Actor, action Action, details string) (*Entry, error) {
	if !actor.Valid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Audit actor cannot be empty")
	}
	if action == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Audit action cannot be empty")
	}
	return &Entry{
		Actor:      actor.Name,
		ActorRole:  actor.Role,
		Action:     action,
		Details:    details,
		SourceIP:   actor.SourceIP,
		OccurredAt: time.Now(),
	}, nil
}
