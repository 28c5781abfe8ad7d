// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LedgerMetrics tracks inventory ledger activity. Counters are fed by
// the event bus as operations happen; gauges are refreshed periodically
// from a LedgerMetricsProvider.
type LedgerMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	consumeOperationsTotal *Counter
	consumedQuantityTotal  *Counter
	usageReturnsTotal      *Counter
	borrowOperationsTotal  *Counter
	borrowedQuantityTotal  *Counter
	equipmentReturnsTotal  *Counter
	tasksMarkedOverdue     *Counter

	// Gauge metrics (point-in-time values)
	lowStockItems *Gauge
	overdueTasks  *Gauge
	activeBorrows *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	provider LedgerMetricsProvider
}

// LedgerMetricsProvider supplies point-in-time ledger counts for the
// periodic gauge collection. The interface keeps the telemetry layer
// from depending on the ledger domains directly.
type LedgerMetricsProvider interface {
	// GetLowStockCount returns how many consumables sit at or below the
	// low-stock line
	GetLowStockCount(ctx context.Context) (int64, error)

	// GetOverdueTaskCount returns how many maintenance tasks are overdue
	GetOverdueTaskCount(ctx context.Context) (int64, error)

	// GetActiveBorrowCount returns how many borrow records are open
	GetActiveBorrowCount(ctx context.Context) (int64, error)
}

// LedgerMetricsConfig holds configuration for ledger metrics.
type LedgerMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	Provider        LedgerMetricsProvider
}

// NewLedgerMetrics creates a new LedgerMetrics instance.
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lm := &LedgerMetrics{
		meter:    cfg.Meter,
		logger:   logger,
		stopChan: make(chan struct{}),
		provider: cfg.Provider,
	}

	var err error

	lm.consumeOperationsTotal, err = NewCounter(
		cfg.Meter,
		"labstock_consume_operations_total",
		"Total number of consumable consumption operations",
		"{operations}",
	)
	if err != nil {
		return nil, err
	}

	lm.consumedQuantityTotal, err = NewCounter(
		cfg.Meter,
		"labstock_consumed_quantity_total",
		"Total quantity consumed across all consumables",
		"{units}",
	)
	if err != nil {
		return nil, err
	}

	lm.usageReturnsTotal, err = NewCounter(
		cfg.Meter,
		"labstock_usage_returns_total",
		"Total number of returnable usages accepted back on hand",
		"{operations}",
	)
	if err != nil {
		return nil, err
	}

	lm.borrowOperationsTotal, err = NewCounter(
		cfg.Meter,
		"labstock_borrow_operations_total",
		"Total number of equipment borrow operations",
		"{operations}",
	)
	if err != nil {
		return nil, err
	}

	lm.borrowedQuantityTotal, err = NewCounter(
		cfg.Meter,
		"labstock_borrowed_quantity_total",
		"Total equipment quantity lent out",
		"{units}",
	)
	if err != nil {
		return nil, err
	}

	lm.equipmentReturnsTotal, err = NewCounter(
		cfg.Meter,
		"labstock_equipment_returns_total",
		"Total number of equipment return operations",
		"{operations}",
	)
	if err != nil {
		return nil, err
	}

	lm.tasksMarkedOverdue, err = NewCounter(
		cfg.Meter,
		"labstock_tasks_marked_overdue_total",
		"Total number of maintenance tasks transitioned to overdue",
		"{tasks}",
	)
	if err != nil {
		return nil, err
	}

	lm.lowStockItems, err = NewGauge(
		cfg.Meter,
		"labstock_low_stock_items",
		"Number of consumables at or below the low-stock line",
		"{items}",
	)
	if err != nil {
		return nil, err
	}

	lm.overdueTasks, err = NewGauge(
		cfg.Meter,
		"labstock_overdue_tasks",
		"Number of maintenance tasks currently overdue",
		"{tasks}",
	)
	if err != nil {
		return nil, err
	}

	lm.activeBorrows, err = NewGauge(
		cfg.Meter,
		"labstock_active_borrows",
		"Number of borrow records currently open",
		"{records}",
	)
	if err != nil {
		return nil, err
	}

	return lm, nil
}

// =============================================================================
// Ledger Counters
// =============================================================================

// RecordConsume records one consumption operation and its quantity.
func (lm *LedgerMetrics) RecordConsume(ctx context.Context, quantity int64) {
	lm.consumeOperationsTotal.Inc(ctx)
	lm.consumedQuantityTotal.Add(ctx, quantity)
}

// RecordUsageReturn records a returnable usage coming back on hand.
func (lm *LedgerMetrics) RecordUsageReturn(ctx context.Context) {
	lm.usageReturnsTotal.Inc(ctx)
}

// RecordBorrow records one equipment borrow operation and its quantity.
func (lm *LedgerMetrics) RecordBorrow(ctx context.Context, borrowerType string, quantity int64) {
	lm.borrowOperationsTotal.Inc(ctx,
		AttrBorrowerType.String(borrowerType),
	)
	lm.borrowedQuantityTotal.Add(ctx, quantity,
		AttrBorrowerType.String(borrowerType),
	)
}

// RecordEquipmentReturn records one equipment return operation.
func (lm *LedgerMetrics) RecordEquipmentReturn(ctx context.Context, partial bool) {
	kind := "full"
	if partial {
		kind = "partial"
	}
	lm.equipmentReturnsTotal.Inc(ctx,
		AttrReturnKind.String(kind),
	)
}

// RecordTasksMarkedOverdue records maintenance tasks flipped to overdue.
func (lm *LedgerMetrics) RecordTasksMarkedOverdue(ctx context.Context, count int64) {
	lm.tasksMarkedOverdue.Add(ctx, count)
}

// =============================================================================
// Ledger Gauges
// =============================================================================

// RecordLowStockItems records the current low-stock item count.
func (lm *LedgerMetrics) RecordLowStockItems(ctx context.Context, count int64) {
	lm.lowStockItems.Record(ctx, count)
}

// RecordOverdueTasks records the current overdue task count.
func (lm *LedgerMetrics) RecordOverdueTasks(ctx context.Context, count int64) {
	lm.overdueTasks.Record(ctx, count)
}

// RecordActiveBorrows records the current open borrow record count.
func (lm *LedgerMetrics) RecordActiveBorrows(ctx context.Context, count int64) {
	lm.activeBorrows.Record(ctx, count)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of gauge metrics.
// This is non-blocking - use Stop() to stop collection.
func (lm *LedgerMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	lm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go lm.runPeriodicCollection(ctx, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (lm *LedgerMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	lm.collectGauges(ctx)

	for {
		select {
		case <-lm.stopChan:
			lm.logger.Info("Stopping periodic ledger metrics collection")
			return
		case <-ctx.Done():
			lm.logger.Info("Context cancelled, stopping periodic ledger metrics collection")
			return
		case <-ticker.C:
			lm.collectGauges(ctx)
		}
	}
}

// collectGauges refreshes every gauge from the provider. A failing
// query skips that gauge and leaves the previous reading in place.
func (lm *LedgerMetrics) collectGauges(ctx context.Context) {
	if lm.provider == nil {
		lm.logger.Debug("No ledger metrics provider configured, skipping gauge collection")
		return
	}

	if count, err := lm.provider.GetLowStockCount(ctx); err != nil {
		lm.logger.Warn("Failed to collect low-stock count", zap.Error(err))
	} else {
		lm.RecordLowStockItems(ctx, count)
	}

	if count, err := lm.provider.GetOverdueTaskCount(ctx); err != nil {
		lm.logger.Warn("Failed to collect overdue task count", zap.Error(err))
	} else {
		lm.RecordOverdueTasks(ctx, count)
	}

	if count, err := lm.provider.GetActiveBorrowCount(ctx); err != nil {
		lm.logger.Warn("Failed to collect active borrow count", zap.Error(err))
	} else {
		lm.RecordActiveBorrows(ctx, count)
	}
}

// Stop stops the periodic collection.
func (lm *LedgerMetrics) Stop() {
	lm.stopOnce.Do(func() {
		close(lm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
