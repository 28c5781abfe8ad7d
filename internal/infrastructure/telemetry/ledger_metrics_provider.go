// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormLedgerMetricsProvider implements LedgerMetricsProvider by
// querying the ledger tables directly for aggregated counts.
type GormLedgerMetricsProvider struct {
	db *gorm.DB
	// lowStockDenominator mirrors the low-stock line used by the
	// consumable repository: on-hand <= opening / denominator.
	lowStockDenominator int64
}

// NewGormLedgerMetricsProvider creates a new GormLedgerMetricsProvider.
// A non-positive denominator falls back to 5 (20% of opening balance).
func NewGormLedgerMetricsProvider(db *gorm.DB, lowStockDenominator int64) *GormLedgerMetricsProvider {
	if lowStockDenominator <= 0 {
		lowStockDenominator = 5
	}
	return &GormLedgerMetricsProvider{
		db:                  db,
		lowStockDenominator: lowStockDenominator,
	}
}

// GetLowStockCount returns how many consumables sit at or below the
// low-stock line. Items without an opening balance never qualify.
func (p *GormLedgerMetricsProvider) GetLowStockCount(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("consumable_items").
		Where("opening_balance > 0 AND items_on_hand * ? <= opening_balance", p.lowStockDenominator).
		Count(&count).Error

	return count, err
}

// GetOverdueTaskCount returns how many maintenance tasks are overdue.
func (p *GormLedgerMetricsProvider) GetOverdueTaskCount(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("maintenance_tasks").
		Where("status = ?", "overdue").
		Count(&count).Error

	return count, err
}

// GetActiveBorrowCount returns how many borrow records are open.
func (p *GormLedgerMetricsProvider) GetActiveBorrowCount(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("borrow_records").
		Where("returned_at IS NULL").
		Count(&count).Error

	return count, err
}
