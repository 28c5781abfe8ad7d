package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/audit"
	"github.com/labstock/backend/internal/domain/maintenance"
	"github.com/labstock/backend/internal/domain/shared"
	"github.com/labstock/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// conflictRetryAttempts bounds how often a mutation is re-run after an
// optimistic-lock conflict before the conflict surfaces to the caller.
const conflictRetryAttempts = 3

// defaultUpcomingHorizonDays is the lookahead window for the upcoming
// tasks query when the caller does not give one.
const defaultUpcomingHorizonDays = 14

// Service drives the maintenance task lifecycle: scheduling, the
// overdue sweep and completion. The sweep is the only bulk path; it
// flips every due task in a single predicate update instead of a
// per-row loop.
type Service struct {
	tasks          maintenance.TaskRepository
	txScope        TransactionScope
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewService creates a new maintenance Service
func NewService(tasks maintenance.TaskRepository, txScope TransactionScope, logger *zap.Logger) *Service {
	return &Service{
		tasks:   tasks,
		txScope: txScope,
		logger:  logger,
	}
}

// SetEventPublisher sets the publisher used for domain events collected
// during mutations. Events go out only after the transaction commits.
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *Service) retryOnConflict(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= conflictRetryAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if !shared.IsCode(err, "CONCURRENCY_CONFLICT") {
			return err
		}
		if attempt < conflictRetryAttempts {
			s.logger.Debug("Retrying maintenance mutation after version conflict",
				zap.Int("attempt", attempt),
			)
		}
	}
	return err
}

func (s *Service) publishEvents(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
}

func appendAudit(ctx context.Context, log audit.Repository, actor audit.Actor, action audit.Action, details string) error {
	entry, err := audit.NewEntry(actor, action, details)
	if err != nil {
		return err
	}
	return log.Append(ctx, entry)
}

// Schedule creates a maintenance task for an existing equipment item
func (s *Service) Schedule(ctx context.Context, equipmentID uuid.UUID, req ScheduleTaskRequest, actor audit.Actor) (*TaskResponse, error) {
	var task *maintenance.Task

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		device, err := repos.Equipment().FindByID(ctx, equipmentID)
		if err != nil {
			return err
		}
		task, err = maintenance.NewTask(equipmentID, maintenance.TaskKind(req.Kind), req.ScheduledAt)
		if err != nil {
			return err
		}
		if err := repos.Tasks().Save(ctx, task); err != nil {
			return err
		}
		details := fmt.Sprintf("task=%s equipment=%s name=%q kind=%s scheduled_at=%s",
			task.ID, device.ID, device.Name, task.Kind, task.ScheduledAt.Format(time.RFC3339))
		return appendAudit(ctx, repos.AuditLog(), actor, audit.ActionScheduleMaintenance, details)
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, task.GetDomainEvents()...)
	task.ClearDomainEvents()

	response := ToTaskResponse(task)
	return &response, nil
}

// Complete finishes a task from the scheduled or overdue state
func (s *Service) Complete(ctx context.Context, taskID uuid.UUID, req CompleteTaskRequest, actor audit.Actor) (*TaskResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "maintenance", "complete")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTaskID, taskID.String(),
		telemetry.SpanAttrActor, actor.Name,
	)

	completedAt := time.Time{}
	if req.CompletedAt != nil {
		completedAt = *req.CompletedAt
	}
	cost := decimal.NullDecimal{}
	if req.Cost != nil {
		cost = decimal.NullDecimal{Decimal: *req.Cost, Valid: true}
	}

	var task *maintenance.Task
	var operationErr error

	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OperationCompleteTask, ""), func(c context.Context) {
		operationErr = s.retryOnConflict(c, func() error {
			return s.txScope.Execute(c, func(repos TransactionalRepositories) error {
				var err error
				task, err = repos.Tasks().FindByID(c, taskID)
				if err != nil {
					return err
				}
				if err := task.Complete(completedAt, req.PerformedBy, cost, req.Notes); err != nil {
					return err
				}
				if err := repos.Tasks().SaveWithLock(c, task); err != nil {
					return err
				}
				details := fmt.Sprintf("task=%s equipment=%s kind=%s performed_by=%q",
					task.ID, task.EquipmentID, task.Kind, task.PerformedBy)
				return appendAudit(c, repos.AuditLog(), actor, audit.ActionCompleteMaintenance, details)
			})
		})
	})
	if operationErr != nil {
		telemetry.RecordError(span, operationErr)
		return nil, operationErr
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrTaskKind, string(task.Kind))

	s.publishEvents(ctx, task.GetDomainEvents()...)
	task.ClearDomainEvents()

	response := ToTaskResponse(task)
	return &response, nil
}

// SweepOverdue flips every scheduled task whose due time has passed to
// overdue. Candidates are selected under row locks and flipped inside
// one transaction by an ID-scoped bulk update, so the audited set and
// the transitioned set are the same rows. One audit entry per task
// records who or what triggered the sweep. Running it again
// immediately is a no-op.
func (s *Service) SweepOverdue(ctx context.Context, now time.Time, actor audit.Actor) (*SweepResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "maintenance", "sweep_overdue")
	defer span.End()

	if now.IsZero() {
		now = time.Now()
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrActor, actor.Name)

	result := &SweepResponse{SweptAt: now}
	var overdueEvents []shared.DomainEvent
	var operationErr error

	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OperationSweepOverdue, ""), func(c context.Context) {
		operationErr = s.txScope.Execute(c, func(repos TransactionalRepositories) error {
			candidates, err := repos.Tasks().FindDueBefore(c, now)
			if err != nil {
				return err
			}
			if len(candidates) == 0 {
				return nil
			}

			ids := make([]uuid.UUID, len(candidates))
			for i, task := range candidates {
				ids[i] = task.ID
			}
			transitioned, err := repos.Tasks().MarkOverdueByIDs(c, ids, now)
			if err != nil {
				return err
			}

			result.Matched = int64(len(candidates))
			result.Transitioned = transitioned

			overdueEvents = make([]shared.DomainEvent, 0, len(candidates))
			for _, task := range candidates {
				details := fmt.Sprintf("task=%s equipment=%s kind=%s scheduled_at=%s",
					task.ID, task.EquipmentID, task.Kind, task.ScheduledAt.Format(time.RFC3339))
				if err := appendAudit(c, repos.AuditLog(), actor, audit.ActionMarkOverdue, details); err != nil {
					return err
				}
				overdueEvents = append(overdueEvents, maintenance.NewTaskOverdueEvent(task))
			}
			return nil
		})
	})
	if operationErr != nil {
		telemetry.RecordError(span, operationErr)
		return nil, operationErr
	}

	telemetry.SetAttributes(span,
		"matched", result.Matched,
		"transitioned", result.Transitioned,
	)

	if result.Transitioned > 0 {
		s.logger.Info("Overdue sweep transitioned tasks",
			zap.Int64("transitioned", result.Transitioned),
			zap.Time("swept_at", now),
		)
	}
	s.publishEvents(ctx, overdueEvents...)

	return result, nil
}

// Upcoming returns scheduled tasks due within the horizon, soonest first
func (s *Service) Upcoming(ctx context.Context, horizonDays int) ([]TaskResponse, error) {
	if horizonDays <= 0 {
		horizonDays = defaultUpcomingHorizonDays
	}
	horizon := time.Duration(horizonDays) * 24 * time.Hour
	tasks, err := s.tasks.FindUpcoming(ctx, time.Now(), horizon)
	if err != nil {
		return nil, err
	}
	return ToTaskResponses(tasks), nil
}

// List retrieves tasks filtered by status and equipment
func (s *Service) List(ctx context.Context, filter TaskFilter) ([]TaskResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	domainFilter := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		Filters:  map[string]interface{}{},
	}
	if filter.Status != "" {
		domainFilter.Filters["status"] = filter.Status
	}
	if filter.EquipmentID != nil {
		domainFilter.Filters["equipment_id"] = *filter.EquipmentID
	}

	tasks, err := s.tasks.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.tasks.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	return ToTaskResponses(tasks), total, nil
}
