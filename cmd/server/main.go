// File: cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log" // Standard log for critical startup/shutdown messages before/after zap is active
	"os"
	"os/signal"
	"syscall"

	"civicconnect_backend/internal/app"
	"civicconnect_backend/internal/config"
	"civicconnect_backend/internal/issue"
	"civicconnect_backend/internal/platform/database"
	platformes "civicconnect_backend/internal/platform/elasticsearch"
	"civicconnect_backend/internal/platform/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cmd := "server"
	args := os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "server":
		startServer()
	case "migrate":
		runMigrate()
	case "sync-issues":
		runSyncIssues(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected server, migrate or sync-issues)\n", cmd)
		os.Exit(2)
	}
}

// bootstrap loads configuration, the logger and the database for one-shot commands.
func bootstrap(command string) (*config.Config, *zap.Logger, *gorm.DB, func()) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration for %s: %v", command, err)
	}
	appLogger, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger for %s: %v", command, err)
	}
	db, cleanup, err := database.NewGORM(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", zap.String("command", command), zap.Error(err))
	}
	return cfg, appLogger, db, func() {
		cleanup()
		_ = appLogger.Sync()
	}
}

func runMigrate() {
	_, appLogger, db, cleanup := bootstrap("migrate")
	defer cleanup()

	if err := database.Migrate(db, app.Models()...); err != nil {
		appLogger.Fatal("Migration failed", zap.Error(err))
	}
	appLogger.Info("Database schema is up to date.")
}

func runSyncIssues(args []string) {
	syncCmd := flag.NewFlagSet("sync-issues", flag.ExitOnError)
	batchSize := syncCmd.Int("batch-size", 100, "Batch size for syncing issues")
	esRefresh := syncCmd.String("es-refresh", "false", "Elasticsearch refresh policy (true, false, wait_for)")
	_ = syncCmd.Parse(args)

	cfg, appLogger, db, cleanup := bootstrap("sync-issues")
	defer cleanup()

	esClient, err := platformes.NewClient(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize Elasticsearch client for sync", zap.Error(err))
	}
	index, ok := issue.NewSearchIndex(esClient, appLogger).(*issue.ESSearchIndex)
	if !ok {
		appLogger.Fatal("Elasticsearch is not configured; set ELASTICSEARCH_URL to sync issues")
	}

	ctx := context.Background()
	if err := index.EnsureIndex(ctx); err != nil {
		appLogger.Fatal("Failed to create/verify Elasticsearch index before sync", zap.Error(err))
	}

	result, err := runIssueSync(ctx, issue.NewGORMRepository(db), index, appLogger, *batchSize, *esRefresh)
	if err != nil {
		appLogger.Fatal("Issue synchronization failed", zap.Error(err))
	}
	appLogger.Info("Issue synchronization completed successfully.", zap.Int("synced", result.Synced))
}

func startServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	server, cleanup, err := initializeServer(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize server: %v", err)
	}
	defer cleanup()

	if cfg.DBAutoMigrate {
		if err := database.Migrate(server.DB, app.Models()...); err != nil {
			server.AppLogger.Fatal("Failed to migrate database schema", zap.Error(err))
		}
	}

	if ix, ok := server.SearchIndex.(*issue.ESSearchIndex); ok {
		if err := ix.EnsureIndex(context.Background()); err != nil {
			// Search falls back to SQL, so a missing index is not fatal.
			server.AppLogger.Error("Failed to create Elasticsearch issues index", zap.Error(err))
		}
	} else {
		server.AppLogger.Info("Elasticsearch not configured, issue search uses the database.")
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("FATAL: Server failed to start or crashed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("INFO: Received signal '%s'. Shutting down server...", sig)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ServerTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: Server forced to shutdown due to error: %v", err)
	} else {
		log.Println("INFO: Server shutdown complete.")
	}
	log.Println("INFO: Application exiting.")
}
