package audit

import (
	"context"

	"github.com/labstock/backend/internal/domain/audit"
)

// Service exposes the read side of the audit trail. Writes never go
// through here: every mutating operation appends its own entry inside
// its own storage transaction.
type Service struct {
	repo audit.Repository
}

// NewService creates a new audit Service
func NewService(repo audit.Repository) *Service {
	return &Service{repo: repo}
}

// List returns audit entries matching the filter, oldest first,
// together with the total match count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]EntryResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}

	q := audit.Query{
		Actor:    filter.Actor,
		Action:   audit.Action(filter.Action),
		From:     filter.From,
		To:       filter.To,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}

	entries, err := s.repo.Find(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.repo.Count(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	return ToEntryResponses(entries), total, nil
}
