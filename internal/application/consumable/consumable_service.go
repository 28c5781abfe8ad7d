package consumable

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/audit"
	"github.com/labstock/backend/internal/domain/consumable"
	"github.com/labstock/backend/internal/domain/shared"
	"github.com/labstock/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// conflictRetryAttempts bounds how often a mutation is re-run after an
// optimistic-lock conflict before the conflict surfaces to the caller.
const conflictRetryAttempts = 3

// Service handles consumable ledger operations. Every mutation runs
// inside one storage transaction together with its audit entry, and is
// retried on version conflicts with freshly read state.
type Service struct {
	items          consumable.ItemRepository
	usageRecords   consumable.UsageRecordRepository
	txScope        TransactionScope
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewService creates a new consumable Service
func NewService(
	items consumable.ItemRepository,
	usageRecords consumable.UsageRecordRepository,
	txScope TransactionScope,
	logger *zap.Logger,
) *Service {
	return &Service{
		items:        items,
		usageRecords: usageRecords,
		txScope:      txScope,
		logger:       logger,
	}
}

// SetEventPublisher sets the publisher used for domain events collected
// during mutations. Events go out only after the transaction commits.
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// retryOnConflict re-runs op while it fails with a concurrency
// conflict, up to the bounded attempt count. op re-reads fresh state on
// every run, so a retry observes the winning writer's result.
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
			s.logger.Debug("Retrying consumable mutation after version conflict",
				zap.Int("attempt", attempt),
			)
		}
	}
	return err
}

// publishDomainEvents publishes collected events after commit. Delivery
// is best-effort observability; failures are logged by the bus, never
// propagated into the already committed operation.
func (s *Service) publishDomainEvents(ctx context.Context, item *consumable.Item) {
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

// Register creates a new consumable item with its initial stock position
func (s *Service) Register(ctx context.Context, req RegisterItemRequest, actor audit.Actor) (*ItemResponse, error) {
	item, err := consumable.NewItem(req.Name, req.Unit, req.IsReturnable, req.ItemsOnHand, req.ItemsInStorage, req.OpeningBalance)
	if err != nil {
		return nil, err
	}
	item.LotNumber = req.LotNumber
	item.ExpiresAt = req.ExpiresAt

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.Items().Save(ctx, item); err != nil {
			return err
		}
		details := fmt.Sprintf("item=%s name=%q on_hand=%d in_storage=%d opening=%d",
			item.ID, item.Name, item.ItemsOnHand, item.ItemsInStorage, item.OpeningBalance)
		return appendAudit(ctx, repos.AuditLog(), actor, audit.ActionRegisterConsumable, details)
	})
	if err != nil {
		return nil, err
	}

	response := ToItemResponse(item)
	return &response, nil
}

// Get retrieves a consumable item by ID
func (s *Service) Get(ctx context.Context, itemID uuid.UUID) (*ItemResponse, error) {
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	response := ToItemResponse(item)
	return &response, nil
}

// List retrieves consumable items with filtering and pagination
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
	total, err := s.items.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	return ToItemResponses(items), total, nil
}

// Update changes an item's descriptive metadata
func (s *Service) Update(ctx context.Context, itemID uuid.UUID, req UpdateItemRequest, actor audit.Actor) (*ItemResponse, error) {
	var item *consumable.Item

	err := s.retryOnConflict(ctx, func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			item, err = repos.Items().FindByID(ctx, itemID)
			if err != nil {
				return err
			}
			if err := item.UpdateMetadata(req.Name, req.Unit, req.LotNumber, req.ExpiresAt); err != nil {
				return err
			}
			if err := repos.Items().SaveWithLock(ctx, item); err != nil {
				return err
			}
			details := fmt.Sprintf("item=%s name=%q", item.ID, item.Name)
			return appendAudit(ctx, repos.AuditLog(), actor, audit.ActionUpdateConsumable, details)
		})
	})
	if err != nil {
		return nil, err
	}

	response := ToItemResponse(item)
	return &response, nil
}

// Delete removes an item. With cascade the item's usage records and
// incident notes go with it; without it the presence of either rejects
// the delete.
func (s *Service) Delete(ctx context.Context, itemID uuid.UUID, cascade bool, actor audit.Actor) error {
	return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		item, err := repos.Items().FindByID(ctx, itemID)
		if err != nil {
			return err
		}

		usageCount, err := repos.UsageRecords().CountByItem(ctx, itemID)
		if err != nil {
			return err
		}
		incidentCount, err := repos.Incidents().CountByConsumable(ctx, itemID)
		if err != nil {
			return err
		}

		if usageCount+incidentCount > 0 {
			if !cascade {
				return shared.ErrDependentRecords
			}
			if err := repos.UsageRecords().DeleteByItem(ctx, itemID); err != nil {
				return err
			}
			if err := repos.Incidents().DeleteByConsumable(ctx, itemID); err != nil {
				return err
			}
		}

		if err := repos.Items().Delete(ctx, itemID); err != nil {
			return err
		}

		details := fmt.Sprintf("item=%s name=%q cascade=%t usage_records=%d incidents=%d",
			item.ID, item.Name, cascade, usageCount, incidentCount)
		return appendAudit(ctx, repos.AuditLog(), actor, audit.ActionDeleteConsumable, details)
	})
}

// Consume removes quantity from on-hand stock, books it against the
// period and creates the usage record, all in one transaction.
func (s *Service) Consume(ctx context.Context, itemID uuid.UUID, req ConsumeRequest, actor audit.Actor) (*UsageRecordResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "consumable", "consume")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrItemID, itemID.String(),
		telemetry.SpanAttrQuantity, req.Quantity,
		telemetry.SpanAttrActor, actor.Name,
	)

	var item *consumable.Item
	var record *consumable.UsageRecord
	var operationErr error

	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OperationConsume, ""), func(c context.Context) {
		operationErr = s.retryOnConflict(c, func() error {
			return s.txScope.Execute(c, func(repos TransactionalRepositories) error {
				var err error
				item, err = repos.Items().FindByID(c, itemID)
				if err != nil {
					return err
				}
				record, err = item.Consume(req.Quantity, req.UsedBy, req.Purpose)
				if err != nil {
					return err
				}
				if err := repos.Items().SaveWithLock(c, item); err != nil {
					return err
				}
				if err := repos.UsageRecords().Save(c, record); err != nil {
					return err
				}
				details := fmt.Sprintf("item=%s name=%q quantity=%d on_hand_after=%d used_by=%q",
					item.ID, item.Name, req.Quantity, item.ItemsOnHand, req.UsedBy)
				return appendAudit(c, repos.AuditLog(), actor, audit.ActionConsume, details)
			})
		})
	})
	if operationErr != nil {
		telemetry.RecordError(span, operationErr)
		return nil, operationErr
	}

	telemetry.SetAttribute(span, "on_hand_after", item.ItemsOnHand)

	s.publishDomainEvents(ctx, item)

	response := ToUsageRecordResponse(record)
	return &response, nil
}

// BulkConsume processes one submission spanning several items. Every
// line runs through the single-item consume path with its own
// transaction, audit entry and usage record, so a line that fails its
// quantity check does not undo the lines before it.
func (s *Service) BulkConsume(ctx context.Context, req BulkConsumeRequest, actor audit.Actor) (*BulkConsumeResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "consumable", "bulk_consume")
	defer span.End()

	telemetry.SetAttributes(span,
		"line_count", len(req.Lines),
		telemetry.SpanAttrActor, actor.Name,
	)

	resp := &BulkConsumeResponse{Lines: make([]BulkConsumeLineResult, 0, len(req.Lines))}
	for _, line := range req.Lines {
		result := BulkConsumeLineResult{ItemID: line.ItemID}
		record, err := s.Consume(ctx, line.ItemID, ConsumeRequest{
			Quantity: line.Quantity,
			UsedBy:   req.UsedBy,
			Purpose:  req.Purpose,
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
		s.logger.Warn("Bulk consume finished with failed lines",
			zap.Int("succeeded", resp.Succeeded),
			zap.Int("failed", resp.Failed),
		)
	}
	return resp, nil
}

// Replenish releases quantity from the storage buffer into on-hand stock
func (s *Service) Replenish(ctx context.Context, itemID uuid.UUID, req ReplenishRequest, actor audit.Actor) (*ItemResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "consumable", "replenish")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrItemID, itemID.String(),
		telemetry.SpanAttrQuantity, req.Quantity,
		telemetry.SpanAttrActor, actor.Name,
	)

	var item *consumable.Item
	var operationErr error

	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OperationReplenish, ""), func(c context.Context) {
		operationErr = s.retryOnConflict(c, func() error {
			return s.txScope.Execute(c, func(repos TransactionalRepositories) error {
				var err error
				item, err = repos.Items().FindByID(c, itemID)
				if err != nil {
					return err
				}
				if err := item.Replenish(req.Quantity); err != nil {
					return err
				}
				if err := repos.Items().SaveWithLock(c, item); err != nil {
					return err
				}
				details := fmt.Sprintf("item=%s name=%q quantity=%d on_hand_after=%d in_storage_after=%d",
					item.ID, item.Name, req.Quantity, item.ItemsOnHand, item.ItemsInStorage)
				return appendAudit(c, repos.AuditLog(), actor, audit.ActionReplenish, details)
			})
		})
	})
	if operationErr != nil {
		telemetry.RecordError(span, operationErr)
		return nil, operationErr
	}

	s.publishDomainEvents(ctx, item)

	response := ToItemResponse(item)
	return &response, nil
}

// ReceiveStock books an external supply arrival into the storage buffer
func (s *Service) ReceiveStock(ctx context.Context, itemID uuid.UUID, req ReceiveStockRequest, actor audit.Actor) (*ItemResponse, error) {
	receivedAt := time.Now()
	if req.ReceivedAt != nil {
		receivedAt = *req.ReceivedAt
	}

	var item *consumable.Item

	err := s.retryOnConflict(ctx, func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			item, err = repos.Items().FindByID(ctx, itemID)
			if err != nil {
				return err
			}
			if err := item.ReceiveStock(req.Quantity, receivedAt); err != nil {
				return err
			}
			if err := repos.Items().SaveWithLock(ctx, item); err != nil {
				return err
			}
			details := fmt.Sprintf("item=%s name=%q quantity=%d in_storage_after=%d",
				item.ID, item.Name, req.Quantity, item.ItemsInStorage)
			return appendAudit(ctx, repos.AuditLog(), actor, audit.ActionReceiveStock, details)
		})
	})
	if err != nil {
		return nil, err
	}

	s.publishDomainEvents(ctx, item)

	response := ToItemResponse(item)
	return &response, nil
}

// ReturnUsage puts a previously consumed quantity back on hand. The
// record flips to returned exactly once; the item's period consumption
// stays as booked.
func (s *Service) ReturnUsage(ctx context.Context, recordID uuid.UUID, actor audit.Actor) (*UsageRecordResponse, error) {
	var item *consumable.Item
	var record *consumable.UsageRecord

	err := s.retryOnConflict(ctx, func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			record, err = repos.UsageRecords().FindByID(ctx, recordID)
			if err != nil {
				return err
			}
			item, err = repos.Items().FindByID(ctx, record.ItemID)
			if err != nil {
				return err
			}
			if err := item.AcceptReturn(record, time.Now()); err != nil {
				return err
			}
			if err := repos.Items().SaveWithLock(ctx, item); err != nil {
				return err
			}
			if err := repos.UsageRecords().Update(ctx, record); err != nil {
				return err
			}
			details := fmt.Sprintf("item=%s record=%s quantity=%d on_hand_after=%d",
				item.ID, record.ID, record.Quantity, item.ItemsOnHand)
			return appendAudit(ctx, repos.AuditLog(), actor, audit.ActionReturnUsage, details)
		})
	})
	if err != nil {
		return nil, err
	}

	s.publishDomainEvents(ctx, item)

	response := ToUsageRecordResponse(record)
	return &response, nil
}

// RolloverPeriod closes the item's accounting period. Calling it twice
// in one period is accepted and simply books a second rollover.
func (s *Service) RolloverPeriod(ctx context.Context, itemID uuid.UUID, actor audit.Actor) (*RolloverResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "consumable", "rollover_period")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrItemID, itemID.String(),
		telemetry.SpanAttrActor, actor.Name,
	)

	var item *consumable.Item
	var summary consumable.RolloverSummary
	var operationErr error

	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OperationRollover, ""), func(c context.Context) {
		operationErr = s.retryOnConflict(c, func() error {
			return s.txScope.Execute(c, func(repos TransactionalRepositories) error {
				var err error
				item, err = repos.Items().FindByID(c, itemID)
				if err != nil {
					return err
				}
				summary = item.RolloverPeriod()
				if err := repos.Items().SaveWithLock(c, item); err != nil {
					return err
				}
				details := fmt.Sprintf("item=%s name=%q previous_opening=%d previous_closing=%d consumed=%d dropped_storage=%d",
					item.ID, item.Name, summary.PreviousOpening, summary.PreviousClosing,
					summary.ConsumedInPeriod, summary.DroppedStorage)
				return appendAudit(c, repos.AuditLog(), actor, audit.ActionRolloverPeriod, details)
			})
		})
	})
	if operationErr != nil {
		telemetry.RecordError(span, operationErr)
		return nil, operationErr
	}

	telemetry.SetAttribute(span, "consumed_in_period", summary.ConsumedInPeriod)

	return &RolloverResponse{
		ItemID:           item.ID,
		PreviousOpening:  summary.PreviousOpening,
		PreviousClosing:  summary.PreviousClosing,
		ConsumedInPeriod: summary.ConsumedInPeriod,
		DroppedStorage:   summary.DroppedStorage,
		NewOpening:       item.OpeningBalance,
	}, nil
}

// RecalcAndNormalize recomputes the derived closing balance and clamps
// drifted fields. Exposed for reconciliation after manual data repair.
func (s *Service) RecalcAndNormalize(ctx context.Context, itemID uuid.UUID, actor audit.Actor) (*ItemResponse, error) {
	var item *consumable.Item

	err := s.retryOnConflict(ctx, func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			item, err = repos.Items().FindByID(ctx, itemID)
			if err != nil {
				return err
			}
			item.RecalcAndNormalize()
			if err := repos.Items().SaveWithLock(ctx, item); err != nil {
				return err
			}
			details := fmt.Sprintf("item=%s name=%q closing=%d", item.ID, item.Name, item.ClosingBalance)
			return appendAudit(ctx, repos.AuditLog(), actor, audit.ActionRecalcStock, details)
		})
	})
	if err != nil {
		return nil, err
	}

	response := ToItemResponse(item)
	return &response, nil
}

// ListUsage retrieves the usage records of an item, newest first
func (s *Service) ListUsage(ctx context.Context, itemID uuid.UUID, filter ListFilter) ([]UsageRecordResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	// Listing against a missing item should 404, not return empty
	if _, err := s.items.FindByID(ctx, itemID); err != nil {
		return nil, 0, err
	}

	domainFilter := shared.Filter{Page: filter.Page, PageSize: filter.PageSize}
	records, err := s.usageRecords.FindByItem(ctx, itemID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.usageRecords.CountByItem(ctx, itemID)
	if err != nil {
		return nil, 0, err
	}

	return ToUsageRecordResponses(records), total, nil
}

// LowStock returns items at or below the low-stock threshold
func (s *Service) LowStock(ctx context.Context) ([]ItemResponse, error) {
	items, err := s.items.FindLowStock(ctx, consumable.DefaultLowStockDenominator)
	if err != nil {
		return nil, err
	}
	return ToItemResponses(items), nil
}

// ExpiringSoon returns items whose expiry falls within the horizon
func (s *Service) ExpiringSoon(ctx context.Context, days int) ([]ItemResponse, error) {
	if days <= 0 {
		days = 30
	}
	items, err := s.items.FindExpiringWithin(ctx, time.Now(), days)
	if err != nil {
		return nil, err
	}
	return ToItemResponses(items), nil
}

// TopConsumed returns items ranked by period consumption
func (s *Service) TopConsumed(ctx context.Context, limit int) ([]ItemResponse, error) {
	if limit <= 0 {
		limit = 10
	}
	items, err := s.items.TopConsumed(ctx, limit)
	if err != nil {
		return nil, err
	}
	return ToItemResponses(items), nil
}
