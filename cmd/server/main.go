package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	auditapp "github.com/labstock/backend/internal/application/audit"
	consumableapp "github.com/labstock/backend/internal/application/consumable"
	equipmentapp "github.com/labstock/backend/internal/application/equipment"
	appevent "github.com/labstock/backend/internal/application/event"
	incidentapp "github.com/labstock/backend/internal/application/incident"
	maintenanceapp "github.com/labstock/backend/internal/application/maintenance"
	"github.com/labstock/backend/internal/infrastructure/cache"
	"github.com/labstock/backend/internal/infrastructure/config"
	"github.com/labstock/backend/internal/infrastructure/event"
	"github.com/labstock/backend/internal/infrastructure/logger"
	"github.com/labstock/backend/internal/infrastructure/persistence"
	"github.com/labstock/backend/internal/infrastructure/scheduler"
	"github.com/labstock/backend/internal/infrastructure/telemetry"
	"github.com/labstock/backend/internal/interfaces/http/handler"
	"github.com/labstock/backend/internal/interfaces/http/middleware"
	"github.com/labstock/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx := context.Background()

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting LabStock backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Telemetry providers. Each degrades to a no-op when disabled, so
	// the wiring below stays unconditional.
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	logsProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logs provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := logsProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down logs provider", zap.Error(err))
		}
	}()

	// When the OTLP logs pipeline is up, swap in a logger that writes
	// both to the configured output and the collector.
	if logsProvider.IsEnabled() {
		bridged, err := telemetry.CreateBridgedLoggerFromConfig(&telemetry.BaseLoggerConfig{
			Level:      cfg.Log.Level,
			Format:     cfg.Log.Format,
			Output:     cfg.Log.Output,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		}, logsProvider, cfg.Telemetry.ServiceName)
		if err != nil {
			log.Warn("Failed to bridge logger to collector, keeping local logger", zap.Error(err))
		} else {
			log = bridged
		}
	}

	// Continuous profiling
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:             cfg.Telemetry.ProfilingEnabled,
		ServerAddress:       cfg.Telemetry.ProfilingEndpoint,
		ApplicationName:     cfg.Telemetry.ServiceName,
		ProfileCPU:          true,
		ProfileAllocObjects: true,
		ProfileAllocSpace:   true,
		ProfileInuseObjects: true,
		ProfileInuseSpace:   true,
		ProfileGoroutines:   true,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() && tracerProvider.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to enable span profiles", zap.Error(err))
		}
	}

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		if err := db.EnableTracing(cfg.Database.DBName); err != nil {
			log.Warn("Failed to enable database tracing", zap.Error(err))
		}
	}
	log.Info("Database connected successfully")

	// Query and connection pool metrics (no-op when metrics are off)
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DefaultDBMetricsConfig(), log)
	if err != nil {
		log.Fatal("Failed to register database metrics", zap.Error(err))
	}
	if dbMetrics != nil {
		dbMetrics.StartPoolStatsCollection(ctx)
		defer dbMetrics.Stop()
	}

	// Initialize repositories
	auditRepo := persistence.NewGormAuditEntryRepository(db.DB)
	consumableRepo := persistence.NewGormConsumableItemRepository(db.DB)
	usageRecordRepo := persistence.NewGormUsageRecordRepository(db.DB)
	equipmentRepo := persistence.NewGormEquipmentItemRepository(db.DB)
	borrowRecordRepo := persistence.NewGormBorrowRecordRepository(db.DB)
	maintenanceTaskRepo := persistence.NewGormMaintenanceTaskRepository(db.DB)
	incidentNoteRepo := persistence.NewGormIncidentNoteRepository(db.DB)

	// Transaction scopes: each ledger operation commits its state change
	// and its audit entry as one unit
	consumableTxScope := persistence.NewGormConsumableTransactionScope(db.DB)
	equipmentTxScope := persistence.NewGormEquipmentTransactionScope(db.DB)
	maintenanceTxScope := persistence.NewGormMaintenanceTransactionScope(db.DB)
	incidentTxScope := persistence.NewGormIncidentTransactionScope(db.DB)

	// Shared idempotency store backs alert dedupe and the sweep lease
	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	idempotencyStore, err := storeFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	// Initialize application services
	auditService := auditapp.NewService(auditRepo)
	consumableService := consumableapp.NewService(consumableRepo, usageRecordRepo, consumableTxScope, log)
	equipmentService := equipmentapp.NewService(
		equipmentRepo,
		borrowRecordRepo,
		equipmentTxScope,
		equipmentapp.NewULIDReferenceCodeGenerator(),
		log,
	)
	maintenanceService := maintenanceapp.NewService(maintenanceTaskRepo, maintenanceTxScope, log)
	incidentService := incidentapp.NewService(incidentNoteRepo, incidentTxScope, log)

	// Initialize event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)

	// Low-stock alerts, deduplicated per item and accounting period
	lowStockHandler := consumableapp.NewLowStockHandler(log).
		WithNotifier(consumableapp.NewLoggingLowStockNotifier(log)).
		WithDedupeStore(idempotencyStore, cfg.Alerts.DedupeTTL)
	eventBus.Subscribe(lowStockHandler)

	// Ledger metrics fed by domain events plus periodic gauge readings
	ledgerMetrics, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter:           meterProvider.Meter("labstock.ledger"),
		Logger:          log,
		CollectInterval: cfg.Telemetry.MetricsInterval,
		Provider:        telemetry.NewGormLedgerMetricsProvider(db.DB, 10),
	})
	if err != nil {
		log.Fatal("Failed to initialize ledger metrics", zap.Error(err))
	}
	defer ledgerMetrics.Stop()
	if meterProvider.IsEnabled() {
		ledgerMetrics.StartPeriodicCollection(ctx, cfg.Telemetry.MetricsInterval)
	}
	eventBus.Subscribe(appevent.NewMetricsRelay(ledgerMetrics, log))

	// Optional broker relay: low-stock and overdue alerts go onto
	// RabbitMQ so external notifiers can react without polling.
	if cfg.AMQP.Enabled {
		amqpRelay, err := event.NewAMQPAlertRelay(&cfg.AMQP, idempotencyStore, cfg.Alerts.DedupeTTL, log)
		if err != nil {
			log.Fatal("Failed to connect alert relay to broker", zap.Error(err))
		}
		defer func() {
			if err := amqpRelay.Close(); err != nil {
				log.Error("Error closing alert relay", zap.Error(err))
			}
		}()
		eventBus.Subscribe(amqpRelay)
		log.Info("AMQP alert relay connected", zap.String("exchange", cfg.AMQP.Exchange))
	}

	// Start event bus
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Inject event bus into services that publish events
	consumableService.SetEventPublisher(eventBus)
	equipmentService.SetEventPublisher(eventBus)
	maintenanceService.SetEventPublisher(eventBus)

	// Periodic overdue sweep. A disabled sweeper starts as a no-op and
	// manual sweeps stay available through the API either way.
	sweeper := scheduler.NewOverdueSweeper(cfg.Scheduler, maintenanceService, idempotencyStore, log)
	if err := sweeper.Start(ctx); err != nil {
		log.Fatal("Failed to start overdue sweeper", zap.Error(err))
	}
	defer func() {
		if err := sweeper.Stop(context.Background()); err != nil {
			log.Error("Error stopping overdue sweeper", zap.Error(err))
		}
	}()

	// Initialize HTTP handlers
	auditHandler := handler.NewAuditHandler(auditService)
	consumableHandler := handler.NewConsumableHandler(consumableService)
	equipmentHandler := handler.NewEquipmentHandler(equipmentService)
	maintenanceHandler := handler.NewMaintenanceHandler(maintenanceService, sweeper)
	incidentHandler := handler.NewIncidentHandler(incidentService)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack, outermost first
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.SpanErrorMarker())
		engine.Use(middleware.HTTPMetricsWithMeter(meterProvider.Meter("labstock.http"), true))
	}
	if profiler.IsEnabled() {
		engine.Use(middleware.Profiling())
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Resolve the actor identity for every API call; the audit trail
	// records whoever the auth layer vouched for.
	r.Use(middleware.ActorMiddleware(middleware.ActorMiddlewareFromConfig(cfg.Auth, log)))

	// Consumable stock ledger
	consumableRoutes := router.NewDomainGroup("consumable", "/consumables")
	consumableRoutes.POST("", consumableHandler.Register)
	consumableRoutes.POST("/bulk-consume", consumableHandler.BulkConsume)
	consumableRoutes.GET("", consumableHandler.List)
	consumableRoutes.GET("/stats/low-stock", consumableHandler.LowStock)
	consumableRoutes.GET("/stats/expiring", consumableHandler.Expiring)
	consumableRoutes.GET("/stats/top-consumed", consumableHandler.TopConsumed)
	consumableRoutes.GET("/:id", consumableHandler.GetByID)
	consumableRoutes.PUT("/:id", consumableHandler.Update)
	consumableRoutes.DELETE("/:id", consumableHandler.Delete)
	consumableRoutes.POST("/:id/consume", consumableHandler.Consume)
	consumableRoutes.POST("/:id/replenish", consumableHandler.Replenish)
	consumableRoutes.POST("/:id/receive", consumableHandler.ReceiveStock)
	consumableRoutes.POST("/:id/rollover", consumableHandler.Rollover)
	consumableRoutes.POST("/:id/recalc", consumableHandler.Recalc)
	consumableRoutes.GET("/:id/usage", consumableHandler.ListUsage)

	// Usage returns are addressed by the usage record, not the item
	usageRoutes := router.NewDomainGroup("usage", "/usage-records")
	usageRoutes.POST("/:id/return", consumableHandler.ReturnUsage)

	// Equipment loan ledger
	equipmentRoutes := router.NewDomainGroup("equipment", "/equipment")
	equipmentRoutes.POST("", equipmentHandler.Register)
	equipmentRoutes.POST("/bulk-borrow", equipmentHandler.BulkBorrow)
	equipmentRoutes.GET("", equipmentHandler.List)
	equipmentRoutes.GET("/stats/most-borrowed", equipmentHandler.MostBorrowed)
	equipmentRoutes.GET("/:id", equipmentHandler.GetByID)
	equipmentRoutes.PUT("/:id", equipmentHandler.Update)
	equipmentRoutes.DELETE("/:id", equipmentHandler.Delete)
	equipmentRoutes.POST("/:id/borrow", equipmentHandler.Borrow)
	equipmentRoutes.GET("/:id/borrows", equipmentHandler.ListBorrows)
	equipmentRoutes.POST("/:id/maintenance", maintenanceHandler.Schedule)

	borrowRoutes := router.NewDomainGroup("borrow", "/borrow-records")
	borrowRoutes.POST("/:id/return", equipmentHandler.Return)
	borrowRoutes.POST("/:id/return-partial", equipmentHandler.ReturnPartial)

	// Maintenance lifecycle
	maintenanceRoutes := router.NewDomainGroup("maintenance", "/maintenance")
	maintenanceRoutes.GET("/tasks", maintenanceHandler.List)
	maintenanceRoutes.POST("/tasks/:id/complete", maintenanceHandler.Complete)
	maintenanceRoutes.GET("/upcoming", maintenanceHandler.Upcoming)
	maintenanceRoutes.POST("/sweep-overdue", maintenanceHandler.SweepOverdue)
	maintenanceRoutes.GET("/sweep-status", maintenanceHandler.SweepStatus)

	// Incident notes
	incidentRoutes := router.NewDomainGroup("incident", "/incidents")
	incidentRoutes.POST("", incidentHandler.Report)
	incidentRoutes.GET("", incidentHandler.List)
	incidentRoutes.GET("/:id", incidentHandler.GetByID)

	// Audit trail, read-only
	auditRoutes := router.NewDomainGroup("audit", "/audit")
	auditRoutes.GET("/entries", auditHandler.List)

	// System routes
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	r.Register(consumableRoutes).
		Register(usageRoutes).
		Register(equipmentRoutes).
		Register(borrowRoutes).
		Register(maintenanceRoutes).
		Register(incidentRoutes).
		Register(auditRoutes).
		Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for the health check endpoint
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			logger.GetGinLogger(c).Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
