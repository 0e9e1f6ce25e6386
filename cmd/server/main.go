/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Nest Egg savings server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (flags over env over defaults)
  2. Initialize SQLite store
  3. Load the goal ledger and the achievement engine
  4. Start watching the ledger and the re-evaluation scheduler
  5. Configure HTTP router and start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (shutdown timeout)
  3. Stop the scheduler and detach the engine from the ledger
  4. Flush pending achievement writes
  5. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/nestegg.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on different port with synchronous unlock writes
  NESTEGG_ASYNC_PERSIST=false ./server -port=3000

SEE ALSO:
  - config/config.go: Flags and environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nestegg/savings-engine/achievements"
	"github.com/nestegg/savings-engine/api"
	"github.com/nestegg/savings-engine/config"
	"github.com/nestegg/savings-engine/goals"
	"github.com/nestegg/savings-engine/logging"
	"github.com/nestegg/savings-engine/store/sqlite"
)

const serviceName = "nestegg"

func main() {
	cfg, err := config.Load(os.Args[1:], os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger := logging.NewLogger(os.Stdout, serviceName, cfg.SlogLevel())
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	ledger, err := goals.NewLedger(ctx, store, goals.WithLogger(logger))
	if err != nil {
		return err
	}

	// Unlock record, optionally written in the background
	var (
		unlocks   achievements.UnlockStore = achievements.NewRecordUnlockStore(store, logger)
		persister *achievements.AsyncPersister
		flusher   api.Flusher
	)
	if cfg.AsyncPersist {
		persister = achievements.NewAsyncPersister(unlocks, logger)
		unlocks = persister
		flusher = persister
	}

	engine := achievements.NewEngine(ctx, achievements.DefaultCatalog(), unlocks, achievements.WithLogger(logger))
	stopWatching := engine.Watch(ctx, ledger)

	scheduler := api.NewReevaluationScheduler(ledger, engine, flusher, logger)
	scheduler.CheckInterval = cfg.ReevaluateEvery
	scheduler.Start()

	handler := api.NewHandler(ledger, engine, logger)
	handler.DB = store
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("addr", cfg.Addr()),
			slog.String("db", cfg.DBPath),
			slog.Int("goals", len(ledger.Goals())),
			slog.Int("unlocked", len(engine.Unlocked())))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	case err := <-serverErr:
		runErr = fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("error", err))
	}

	scheduler.Stop()
	stopWatching()

	if persister != nil {
		if err := persister.Close(shutdownCtx); err != nil {
			logger.Error("final flush of unlocked achievements failed", slog.Any("error", err))
		}
	}

	logger.Info("server stopped", slog.Int("total_points", engine.TotalPoints()))
	return runErr
}
