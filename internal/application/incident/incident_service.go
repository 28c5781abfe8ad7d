package incident

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/labstock/backend/internal/domain/audit"
	"github.com/labstock/backend/internal/domain/incident"
	"github.com/labstock/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Service files and lists incident notes. Notes are insert-only
// observations; they never mutate the stock or loan ledgers.
type Service struct {
	notes   incident.NoteRepository
	txScope TransactionScope
	logger  *zap.Logger
}

// NewService creates a new incident Service
func NewService(notes incident.NoteRepository, txScope TransactionScope, logger *zap.Logger) *Service {
	return &Service{
		notes:   notes,
		txScope: txScope,
		logger:  logger,
	}
}

// Report files an incident note against exactly one parent item
func (s *Service) Report(ctx context.Context, req ReportNoteRequest, actor audit.Actor) (*NoteResponse, error) {
	if (req.EquipmentID == nil) == (req.ConsumableID == nil) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Exactly one of equipment_id and consumable_id must be set")
	}

	occurredAt := time.Time{}
	if req.OccurredAt != nil {
		occurredAt = *req.OccurredAt
	}

	var note *incident.Note

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		if req.EquipmentID != nil {
			if _, err = repos.Equipment().FindByID(ctx, *req.EquipmentID); err != nil {
				return err
			}
			note, err = incident.NewEquipmentNote(*req.EquipmentID, incident.Category(req.Category), req.Description, req.ReportedBy, occurredAt)
		} else {
			if _, err = repos.Consumables().FindByID(ctx, *req.ConsumableID); err != nil {
				return err
			}
			note, err = incident.NewConsumableNote(*req.ConsumableID, incident.Category(req.Category), req.Description, req.ReportedBy, occurredAt)
		}
		if err != nil {
			return err
		}
		if err := repos.Notes().Save(ctx, note); err != nil {
			return err
		}
		parentKind, parentID := note.Parent()
		details := fmt.Sprintf("incident=%s %s=%s category=%s reported_by=%q",
			note.ID, parentKind, parentID, note.Category, note.ReportedBy)
		return appendAudit(ctx, repos.AuditLog(), actor, audit.ActionReportIncident, details)
	})
	if err != nil {
		return nil, err
	}

	response := ToNoteResponse(note)
	return &response, nil
}

// Get retrieves a single incident note
func (s *Service) Get(ctx context.Context, noteID uuid.UUID) (*NoteResponse, error) {
	note, err := s.notes.FindByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	response := ToNoteResponse(note)
	return &response, nil
}

// List retrieves incident notes, optionally scoped to one parent item
func (s *Service) List(ctx context.Context, filter ListFilter) ([]NoteResponse, error) {
	if filter.EquipmentID != nil {
		notes, err := s.notes.FindByEquipment(ctx, *filter.EquipmentID)
		if err != nil {
			return nil, err
		}
		return ToNoteResponses(notes), nil
	}
	if filter.ConsumableID != nil {
		notes, err := s.notes.FindByConsumable(ctx, *filter.ConsumableID)
		if err != nil {
			return nil, err
		}
		return ToNoteResponses(notes), nil
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	notes, err := s.notes.FindAll(ctx, shared.Filter{Page: filter.Page, PageSize: filter.PageSize})
	if err != nil {
		return nil, err
	}
	return ToNoteResponses(notes), nil
}

func appendAudit(ctx context.Context, log audit.Repository, actor audit.Actor, action audit.Action, details string) error {
	entry, err := audit.NewEntry(actor, action, details)
	if err != nil {
		return err
	}
	return log.Append(ctx, entry)
}
