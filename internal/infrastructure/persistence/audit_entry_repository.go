package persistence

import (
	"context"

	"github.com/labstock/backend/internal/domain/audit"
	"gorm.io/gorm"
)

// GormAuditEntryRepository implements audit.Repository using GORM.
// The table is append-only: the repository exposes no update or delete
// path, and the sequence is assigned by the database on insert.
type GormAuditEntryRepository struct {
	db *gorm.DB
}

// NewGormAuditEntryRepository creates a new GormAuditEntryRepository
func NewGormAuditEntryRepository(db *gorm.DB) *GormAuditEntryRepository {
	return &GormAuditEntryRepository{db: db}
}

// Append durably inserts an entry. GORM writes the database-assigned
// sequence back into entry.Sequence.
func (r *GormAuditEntryRepository) Append(ctx context.Context, entry *audit.Entry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// Find returns entries matching the query, ordered by sequence ascending
func (r *GormAuditEntryRepository) Find(ctx context.Context, q audit.Query) ([]audit.Entry, error) {
	var entries []audit.Entry
	query := r.applyQuery(r.db.WithContext(ctx).Model(&audit.Entry{}), q)

	if q.Page > 0 && q.PageSize > 0 {
		offset := (q.Page - 1) * q.PageSize
		query = query.Offset(offset).Limit(q.PageSize)
	}

	if err := query.Order("sequence ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Count returns the number of entries matching the query
func (r *GormAuditEntryRepository) Count(ctx context.Context, q audit.Query) (int64, error) {
	var count int64
	query := r.applyQuery(r.db.WithContext(ctx).Model(&audit.Entry{}), q)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyQuery applies the audit query filters without pagination
func (r *GormAuditEntryRepository) applyQuery(query *gorm.DB, q audit.Query) *gorm.DB {
	if q.Actor != "" {
		query = query.Where("actor = ?", q.Actor)
	}
	if q.Action != "" {
		query = query.Where("action = ?", q.Action)
	}
	if q.From != nil {
		query = query.Where("occurred_at >= ?", *q.From)
	}
	if q.To != nil {
		query = query.Where("occurred_at <= ?", *q.To)
	}
	return query
}

// Ensure GormAuditEntryRepository implements audit.Repository
var _ audit.Repository = (*GormAuditEntryRepository)(nil)
