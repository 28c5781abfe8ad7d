package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/labstock/backend/internal/application/maintenance"
	"github.com/labstock/backend/internal/domain/audit"
	"github.com/labstock/backend/internal/domain/shared"
	"github.com/labstock/backend/internal/infrastructure/config"
)

// sweepLeaseKey is the shared lease key. Whichever instance marks it
// first within the TTL window runs that sweep pass.
const sweepLeaseKey = "maintenance:sweep:lease"

// OverdueSweepService is the slice of the maintenance service the
// sweeper invokes on each pass.
type OverdueSweepService interface {
	SweepOverdue(ctx context.Context, now time.Time, actor audit.Actor) (*maintenance.SweepResponse, error)
}

// SweepStatus reports the sweeper's last observed pass. Served by
// GET /api/v1/maintenance/sweep-status.
type SweepStatus struct {
	Enabled      bool       `json:"enabled"`
	Running      bool       `json:"running"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	Matched      int64      `json:"matched"`
	Transitioned int64      `json:"transitioned"`
	TotalRuns    int64      `json:"total_runs"`
	LeaseSkips   int64      `json:"lease_skips"`
	NextRunAt    *time.Time `json:"next_run_at,omitempty"`
}

// OverdueSweeper periodically flips past-due scheduled maintenance
// tasks to overdue. The lease store keeps multi-instance deployments
// from sweeping concurrently; passing a nil lease disables that guard.
type OverdueSweeper struct {
	config  config.SchedulerConfig
	service OverdueSweepService
	lease   shared.IdempotencyStore
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	status    SweepStatus
}

// NewOverdueSweeper creates a new overdue sweeper.
func NewOverdueSweeper(
	cfg config.SchedulerConfig,
	service OverdueSweepService,
	lease shared.IdempotencyStore,
	logger *zap.Logger,
) *OverdueSweeper {
	return &OverdueSweeper{
		config:  cfg,
		service: service,
		lease:   lease,
		logger:  logger,
		status:  SweepStatus{Enabled: cfg.SweepEnabled},
	}
}

// Start starts the periodic sweep loop. A disabled sweeper starts as a
// no-op so callers can wire it unconditionally.
func (s *OverdueSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.SweepEnabled {
		s.mu.Unlock()
		s.logger.Info("Overdue sweeper is disabled")
		return nil
	}
	if s.config.SweepInterval <= 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: sweep interval must be positive, got %s", ErrInvalidSweepConfig, s.config.SweepInterval)
	}
	s.isRunning = true
	s.status.Running = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Overdue sweeper started",
		zap.Duration("interval", s.config.SweepInterval),
		zap.Duration("timeout", s.config.SweepTimeout),
		zap.Bool("lease_guard", s.lease != nil),
	)

	return nil
}

// Stop gracefully stops the sweeper.
func (s *OverdueSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.status.Running = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Overdue sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Overdue sweeper stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the sweep loop is active.
func (s *OverdueSweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Status returns a snapshot of the last pass.
func (s *OverdueSweeper) Status() SweepStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// runLoop sweeps once at startup, then on every interval tick. The
// startup pass catches tasks that went past due while the process was
// down.
func (s *OverdueSweeper) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	s.executeSweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Sweep loop stopping")
			return
		case <-ticker.C:
			s.executeSweep(ctx)
		}
	}
}

// executeSweep runs a single guarded pass and records its outcome.
func (s *OverdueSweeper) executeSweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Overdue sweep panicked",
				zap.Any("panic", r),
			)
			s.recordFailure(fmt.Sprintf("panic: %v", r))
		}
	}()

	next := time.Now().Add(s.config.SweepInterval)
	s.mu.Lock()
	s.status.NextRunAt = &next
	s.mu.Unlock()

	if !s.acquireLease(ctx) {
		s.mu.Lock()
		s.status.LeaseSkips++
		s.mu.Unlock()
		s.logger.Debug("Sweep lease held by another instance, skipping pass")
		return
	}

	sweepCtx := ctx
	if s.config.SweepTimeout > 0 {
		var cancel context.CancelFunc
		sweepCtx, cancel = context.WithTimeout(ctx, s.config.SweepTimeout)
		defer cancel()
	}

	startTime := time.Now()
	result, err := s.service.SweepOverdue(sweepCtx, startTime, audit.SystemActor())
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Overdue sweep failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		s.recordFailure(err.Error())
		return
	}

	s.mu.Lock()
	s.status.LastRunAt = &startTime
	s.status.LastError = ""
	s.status.Matched = result.Matched
	s.status.Transitioned = result.Transitioned
	s.status.TotalRuns++
	s.mu.Unlock()

	if result.Transitioned > 0 {
		s.logger.Info("Overdue sweep completed",
			zap.Duration("duration", duration),
			zap.Int64("matched", result.Matched),
			zap.Int64("transitioned", result.Transitioned),
		)
	} else {
		s.logger.Debug("Overdue sweep found nothing to transition",
			zap.Duration("duration", duration),
		)
	}
}

// acquireLease claims the shared sweep lease. A nil lease store means
// single-instance operation where every pass proceeds. Lease store
// failures also let the pass proceed: the sweep itself is idempotent,
// so a duplicate pass is safe while a skipped one leaves overdue tasks
// undetected.
func (s *OverdueSweeper) acquireLease(ctx context.Context) bool {
	if s.lease == nil {
		return true
	}

	acquired, err := s.lease.MarkProcessed(ctx, sweepLeaseKey, s.config.LeaseTTL)
	if err != nil {
		s.logger.Warn("Sweep lease check failed, proceeding without lease",
			zap.Error(err),
		)
		return true
	}
	return acquired
}

func (s *OverdueSweeper) recordFailure(msg string) {
	now := time.Now()
	s.mu.Lock()
	s.status.LastRunAt = &now
	s.status.LastError = msg
	s.status.TotalRuns++
	s.mu.Unlock()
}
