package equipment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/audit"
	"github.com/labstock/backend/internal/domain/equipment"
	"github.com/labstock/backend/internal/domain/incident"
	"github.com/labstock/backend/internal/domain/shared"
	"github.com/labstock/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// conflictRetryAttempts bounds how often a mutation is re-run after an
// optimistic-lock conflict before the conflict surfaces to the caller.
const conflictRetryAttempts = 3

// Service handles equipment loan operations. Availability is derived
// from the active-loan sum inside the same transaction that writes the
// item, so two borrows can never jointly oversubscribe a device.
type Service struct {
	items          equipment.ItemRepository
	borrowRecords  equipment.BorrowRecordRepository
	txScope        TransactionScope
	refCodes       ReferenceCodeGenerator
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewService creates a new equipment Service
func NewService(
	items equipment.ItemRepository,
	borrowRecords equipment.BorrowRecordRepository,
	txScope TransactionScope,
	refCodes ReferenceCodeGenerator,
	logger *zap.Logger,
) *Service {
	return &Service{
		items:         items,
		borrowRecords: borrowRecords,
		txScope:       txScope,
		refCodes:      refCodes,
		logger:        logger,
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
			s.logger.Debug("Retrying equipment mutation after version conflict",
				zap.Int("attempt", attempt),
			)
		}
	}
	return err
}

func (s *Service) publishDomainEvents(ctx context.Context, item *equipment.Item) {
	if s.eventPublisher == nil || item == nil {
		return
	}
	events := item.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
	item.ClearDomainEvents()
}

func appendAudit(ctx context.Context, log audit.Repository, actor audit.Actor, action audit.Action, details string) error {
	entry, err := audit.NewEntry(actor, action, details)
	if err != nil {
		return err
	}
	return log.Append(ctx, entry)
}

// Register creates a new equipment item
func (s *Service) Register(ctx context.Context, req RegisterItemRequest, actor audit.Actor) (*ItemResponse, error) {
	item, err := equipment.NewItem(req.Name, req.Location, req.Notes, req.TotalQuantity)
	if err != nil {
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.Items().Save(ctx, item); err != nil {
			return err
		}
		details := fmt.Sprintf("equipment=%s name=%q total_quantity=%d", item.ID, item.Name, item.TotalQuantity)
		return appendAudit(ctx, repos.AuditLog(), actor, audit.ActionRegisterEquipment, details)
	})
	if err != nil {
		return nil, err
	}

	response := ToItemResponse(item, 0)
	return &response, nil
}

// Get retrieves an equipment item with its derived availability
func (s *Service) Get(ctx context.Context, equipmentID uuid.UUID) (*ItemResponse, error) {
	item, err := s.items.FindByID(ctx, equipmentID)
	if err != nil {
		return nil, err
	}
	inUse, err := s.borrowRecords.SumActiveQuantity(ctx, equipmentID)
	if err != nil {
		return nil, err
	}
	response := ToItemResponse(item, inUse)
	return &response, nil
}

// List retrieves equipment items with their derived availability
func (s *Service) List(ctx context.Context, filter ListFilter) ([]ItemResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "name"
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "asc"
	}

	domainFilter := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
	}

	items, err := s.items.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.items.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]ItemResponse, len(items))
	for i, item := range items {
		inUse, err := s.borrowRecords.SumActiveQuantity(ctx, item.ID)
		if err != nil {
			return nil, 0, err
		}
		responses[i] = ToItemResponse(item, inUse)
	}

	return responses, total, nil
}

// Update changes an item's descriptive metadata
func (s *Service) Update(ctx context.Context, equipmentID uuid.UUID, req UpdateItemRequest, actor audit.Actor) (*ItemResponse, error) {
	var item *equipment.Item
	var inUse int64

	err := s.retryOnConflict(ctx, func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			item, err = repos.Items().FindByID(ctx, equipmentID)
			if err != nil {
				return err
			}
			if err := item.UpdateMetadata(req.Name, req.Location, req.Notes); err != nil {
				return err
			}
			if err := repos.Items().SaveWithLock(ctx, item); err != nil {
				return err
			}
			inUse, err = repos.BorrowRecords().SumActiveQuantity(ctx, equipmentID)
			if err != nil {
				return err
			}
			details := fmt.Sprintf("equipment=%s name=%q", item.ID, item.Name)
			return appendAudit(ctx, repos.AuditLog(), actor, audit.ActionUpdateEquipment, details)
		})
	})
	if err != nil {
		return nil, err
	}

	response := ToItemResponse(item, inUse)
	return &response, nil
}

// Delete removes an equipment item. Active loans always block the
// delete; closed loans, maintenance tasks and incident notes either
// cascade or reject it.
func (s *Service) Delete(ctx context.Context, equipmentID uuid.UUID, cascade bool, actor audit.Actor) error {
	return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		item, err := repos.Items().FindByID(ctx, equipmentID)
		if err != nil {
			return err
		}

		activeLoans, err := repos.BorrowRecords().CountActiveByEquipment(ctx, equipmentID)
		if err != nil {
			return err
		}
		if activeLoans > 0 {
			return shared.NewDomainError("INVALID_STATE", "Equipment has active loans; settle them before deleting")
		}

		borrowCount, err := repos.BorrowRecords().CountByEquipment(ctx, equipmentID)
		if err != nil {
			return err
		}
		taskCount, err := repos.MaintenanceTasks().CountByEquipment(ctx, equipmentID)
		if err != nil {
			return err
		}
		incidentCount, err := repos.Incidents().CountByEquipment(ctx, equipmentID)
		if err != nil {
			return err
		}

		if borrowCount+taskCount+incidentCount > 0 {
			if !cascade {
				return shared.ErrDependentRecords
			}
			if err := repos.BorrowRecords().DeleteByEquipment(ctx, equipmentID); err != nil {
				return err
			}
			if err := repos.MaintenanceTasks().DeleteByEquipment(ctx, equipmentID); err != nil {
				return err
			}
			if err := repos.Incidents().DeleteByEquipment(ctx, equipmentID); err != nil {
				return err
			}
		}

		if err := repos.Items().Delete(ctx, equipmentID); err != nil {
			return err
		}

		details := fmt.Sprintf("equipment=%s name=%q cascade=%t borrow_records=%d maintenance_tasks=%d incidents=%d",
			item.ID, item.Name, cascade, borrowCount, taskCount, incidentCount)
		return appendAudit(ctx, repos.AuditLog(), actor, audit.ActionDeleteEquipment, details)
	})
}

// Borrow lends out a quantity of equipment. Availability is computed
// from the active-loan sum in the same transaction; the item's version
// bump serializes competing borrows even though the stored fields do
// not change.
func (s *Service) Borrow(ctx context.Context, equipmentID uuid.UUID, req BorrowRequest, actor audit.Actor) (*BorrowRecordResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "equipment", "borrow")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrEquipmentID, equipmentID.String(),
		telemetry.SpanAttrQuantity, req.Quantity,
		telemetry.SpanAttrBorrowerType, req.BorrowerType,
		telemetry.SpanAttrActor, actor.Name,
	)

	var item *equipment.Item
	var record *equipment.BorrowRecord
	var operationErr error

	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OperationBorrow, req.BorrowerType), func(c context.Context) {
		operationErr = s.retryOnConflict(c, func() error {
			return s.txScope.Execute(c, func(repos TransactionalRepositories) error {
				var err error
				item, err = repos.Items().FindByID(c, equipmentID)
				if err != nil {
					return err
				}
				inUse, err := repos.BorrowRecords().SumActiveQuantity(c, equipmentID)
				if err != nil {
					return err
				}
				referenceCode, err := s.refCodes.New()
				if err != nil {
					return err
				}
				borrower := equipment.Borrower{
					Name:          req.BorrowerName,
					Type:          req.BorrowerType,
					SectionCourse: req.SectionCourse,
					Purpose:       req.Purpose,
				}
				record, err = item.Borrow(inUse, referenceCode, borrower, req.Quantity)
				if err != nil {
					return err
				}
				if err := repos.Items().SaveWithLock(c, item); err != nil {
					return err
				}
				if err := repos.BorrowRecords().Save(c, record); err != nil {
					return err
				}
				details := fmt.Sprintf("equipment=%s name=%q reference=%s borrower=%q quantity=%d available_after=%d",
					item.ID, item.Name, record.ReferenceCode, record.BorrowerName,
					record.QuantityBorrowed, item.Available(inUse+record.QuantityBorrowed))
				return appendAudit(c, repos.AuditLog(), actor, audit.ActionBorrow, details)
			})
		})
	})
	if operationErr != nil {
		telemetry.RecordError(span, operationErr)
		return nil, operationErr
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrReferenceCode, record.ReferenceCode)

	s.publishDomainEvents(ctx, item)

	response := ToBorrowRecordResponse(record)
	return &response, nil
}

// BulkBorrow lends several pieces of equipment to the same borrower in
// one submission. Every line runs through the single-item borrow path
// with its own transaction, reference code and audit entry, so a line
// the availability check rejects does not undo the lines before it.
func (s *Service) BulkBorrow(ctx context.Context, req BulkBorrowRequest, actor audit.Actor) (*BulkBorrowResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "equipment", "bulk_borrow")
	defer span.End()

	telemetry.SetAttributes(span,
		"line_count", len(req.Lines),
		telemetry.SpanAttrBorrowerType, req.BorrowerType,
		telemetry.SpanAttrActor, actor.Name,
	)

	resp := &BulkBorrowResponse{Lines: make([]BulkBorrowLineResult, 0, len(req.Lines))}
	for _, line := range req.Lines {
		result := BulkBorrowLineResult{EquipmentID: line.EquipmentID}
		record, err := s.Borrow(ctx, line.EquipmentID, BorrowRequest{
			BorrowerName:  req.BorrowerName,
			BorrowerType:  req.BorrowerType,
			SectionCourse: req.SectionCourse,
			Purpose:       req.Purpose,
			Quantity:      line.Quantity,
		}, actor)
		if err != nil {
			result.Error = shared.CodeOf(err)
			resp.Failed++
		} else {
			result.Record = record
			resp.Succeeded++
		}
		resp.Lines = append(resp.Lines, result)
	}

	telemetry.SetAttributes(span,
		"succeeded", resp.Succeeded,
		"failed", resp.Failed,
	)
	if resp.Failed > 0 {
		s.logger.Warn("Bulk borrow finished with failed lines",
			zap.Int("succeeded", resp.Succeeded),
			zap.Int("failed", resp.Failed),
		)
	}
	return resp, nil
}

// ReturnFull closes an active loan in one step. An incident observed at
// return time (damage, loss) can be filed in the same transaction.
func (s *Service) ReturnFull(ctx context.Context, recordID uuid.UUID, req ReturnRequest, actor audit.Actor) (*BorrowRecordResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "equipment", "return_full")
	defer span.End()

	telemetry.SetAttributes(span,
		"record_id", recordID.String(),
		telemetry.SpanAttrActor, actor.Name,
	)

	var item *equipment.Item
	var record *equipment.BorrowRecord
	var operationErr error

	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OperationReturnLoan, "full"), func(c context.Context) {
		operationErr = s.retryOnConflict(c, func() error {
			return s.txScope.Execute(c, func(repos TransactionalRepositories) error {
				var err error
				record, err = repos.BorrowRecords().FindByID(c, recordID)
				if err != nil {
					return err
				}
				item, err = repos.Items().FindByID(c, record.EquipmentID)
				if err != nil {
					return err
				}
				if err := item.ReturnFull(record, time.Now()); err != nil {
					return err
				}
				if err := repos.Items().SaveWithLock(c, item); err != nil {
					return err
				}
				if err := repos.BorrowRecords().Update(c, record); err != nil {
					return err
				}
				details := fmt.Sprintf("equipment=%s reference=%s quantity=%d",
					item.ID, record.ReferenceCode, record.QuantityBorrowed)
				if err := appendAudit(c, repos.AuditLog(), actor, audit.ActionReturnFull, details); err != nil {
					return err
				}
				return s.fileReturnIncident(c, repos, item, req.Incident, actor)
			})
		})
	})
	if operationErr != nil {
		telemetry.RecordError(span, operationErr)
		return nil, operationErr
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrReferenceCode, record.ReferenceCode)

	s.publishDomainEvents(ctx, item)

	response := ToBorrowRecordResponse(record)
	return &response, nil
}

// ReturnPartial takes back part of an active loan. The returned portion
// becomes its own closed record with a fresh reference code.
func (s *Service) ReturnPartial(ctx context.Context, recordID uuid.UUID, req ReturnRequest, actor audit.Actor) (*BorrowRecordResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "equipment", "return_partial")
	defer span.End()

	telemetry.SetAttributes(span,
		"record_id", recordID.String(),
		telemetry.SpanAttrQuantity, req.Quantity,
		telemetry.SpanAttrActor, actor.Name,
	)

	if req.Quantity <= 0 {
		err := shared.NewDomainError("INVALID_INPUT", "Partial return requires a positive quantity")
		telemetry.RecordError(span, err)
		return nil, err
	}

	var item *equipment.Item
	var returned *equipment.BorrowRecord
	var operationErr error

	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OperationReturnLoan, "partial"), func(c context.Context) {
		operationErr = s.retryOnConflict(c, func() error {
			return s.txScope.Execute(c, func(repos TransactionalRepositories) error {
				record, err := repos.BorrowRecords().FindByID(c, recordID)
				if err != nil {
					return err
				}
				item, err = repos.Items().FindByID(c, record.EquipmentID)
				if err != nil {
					return err
				}
				referenceCode, err := s.refCodes.New()
				if err != nil {
					return err
				}
				returned, err = item.ReturnPartial(record, req.Quantity, referenceCode, time.Now())
				if err != nil {
					return err
				}
				if err := repos.Items().SaveWithLock(c, item); err != nil {
					return err
				}
				if err := repos.BorrowRecords().Update(c, record); err != nil {
					return err
				}
				if err := repos.BorrowRecords().Save(c, returned); err != nil {
					return err
				}
				details := fmt.Sprintf("equipment=%s reference=%s returned_reference=%s quantity=%d remaining=%d",
					item.ID, record.ReferenceCode, returned.ReferenceCode,
					returned.QuantityBorrowed, record.QuantityBorrowed)
				if err := appendAudit(c, repos.AuditLog(), actor, audit.ActionReturnPartial, details); err != nil {
					return err
				}
				return s.fileReturnIncident(c, repos, item, req.Incident, actor)
			})
		})
	})
	if operationErr != nil {
		telemetry.RecordError(span, operationErr)
		return nil, operationErr
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrReferenceCode, returned.ReferenceCode)

	s.publishDomainEvents(ctx, item)

	response := ToBorrowRecordResponse(returned)
	return &response, nil
}

// fileReturnIncident records loss or damage reported while returning
// equipment, inside the return's transaction.
func (s *Service) fileReturnIncident(ctx context.Context, repos TransactionalRepositories, item *equipment.Item, report *ReturnIncident, actor audit.Actor) error {
	if report == nil {
		return nil
	}
	note, err := incident.NewEquipmentNote(
		item.ID,
		incident.Category(report.Category),
		report.Description,
		report.ReportedBy,
		time.Now(),
	)
	if err != nil {
		return err
	}
	if err := repos.Incidents().Save(ctx, note); err != nil {
		return err
	}
	details := fmt.Sprintf("incident=%s equipment=%s category=%s", note.ID, item.ID, note.Category)
	return appendAudit(ctx, repos.AuditLog(), actor, audit.ActionReportIncident, details)
}

// ListBorrows retrieves the loan history of an equipment item
func (s *Service) ListBorrows(ctx context.Context, equipmentID uuid.UUID, filter BorrowListFilter) ([]BorrowRecordResponse, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	// Listing against a missing item should 404, not return empty
	if _, err := s.items.FindByID(ctx, equipmentID); err != nil {
		return nil, err
	}

	domainFilter := shared.Filter{Page: filter.Page, PageSize: filter.PageSize}
	if filter.ActiveOnly {
		domainFilter.Filters = map[string]interface{}{"active": true}
	}

	records, err := s.borrowRecords.FindByEquipment(ctx, equipmentID, domainFilter)
	if err != nil {
		return nil, err
	}
	return ToBorrowRecordResponses(records), nil
}

// MostBorrowed returns equipment ranked by borrow activity
func (s *Service) MostBorrowed(ctx context.Context, limit int) ([]BorrowTallyResponse, error) {
	if limit <= 0 {
		limit = 10
	}
	tallies, err := s.items.MostBorrowed(ctx, limit)
	if err != nil {
		return nil, err
	}
	return ToBorrowTallyResponses(tallies), nil
}
