package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/labstock/backend/internal/infrastructure/config"
	"github.com/labstock/backend/internal/infrastructure/logger"
	"github.com/labstock/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

func main() {
	var logLevel string
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	logCfg := logger.DefaultConfig()
	logCfg.Level = logLevel
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	switch command {
	case "sync":
		log.Info("Synchronizing ledger schema",
			zap.String("database", cfg.Database.DBName),
		)
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Schema sync failed", zap.Error(err))
		}
		log.Info("Schema sync completed")

	case "check":
		if err := db.Ping(); err != nil {
			log.Fatal("Database unreachable", zap.Error(err))
		}
		stats, err := db.Stats()
		if err != nil {
			log.Fatal("Failed to read connection stats", zap.Error(err))
		}
		log.Info("Database reachable",
			zap.String("database", cfg.Database.DBName),
			zap.Int("open_connections", stats.OpenConnections),
		)

	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`LabStock Schema Tool

Usage:
  migrate [flags] <command>

Commands:
  sync     Create or update tables for all ledger aggregates
  check    Verify database connectivity

Flags:
  -log-level string   Log level: debug, info, warn, error (default: info)

Configuration is read from config.toml and LABSTOCK_* environment
variables, the same sources the server uses.

Examples:
  # Bring the schema up to date
  migrate sync

  # Verify the configured database is reachable
  migrate check`)
}
