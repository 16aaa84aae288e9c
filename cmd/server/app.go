package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/storyloom/storyboard-api/internal/checkpoint"
	"github.com/storyloom/storyboard-api/internal/config"
	"github.com/storyloom/storyboard-api/internal/dedup"
	"github.com/storyloom/storyboard-api/internal/events"
	"github.com/storyloom/storyboard-api/internal/generation"
	"github.com/storyloom/storyboard-api/internal/platform/gemini"
	"github.com/storyloom/storyboard-api/internal/platform/logger"
	"github.com/storyloom/storyboard-api/internal/platform/postgres"
	"github.com/storyloom/storyboard-api/internal/ratelimit"
	"github.com/storyloom/storyboard-api/internal/resultcache"
	"github.com/storyloom/storyboard-api/internal/service"
	"github.com/storyloom/storyboard-api/internal/store"
	"github.com/storyloom/storyboard-api/internal/task"
)

// application holds the wired dependencies of a running server instance.
type application struct {
	config *config.Config
	logger *slog.Logger

	// db is nil when the in-memory stores are selected.
	db *sql.DB

	jobStore    store.JobStore
	kv          store.KV
	checkpoints *checkpoint.Store
	results     *resultcache.Cache
	engine      *dedup.Engine
	limiter     *ratelimit.Limiter
	tiers       *ratelimit.TierCache
	generator   generation.Generator
	runner      *task.TaskRunner
	emitter     *events.InMemoryEventEmitter
	jobService  service.JobService

	sweeperCancel context.CancelFunc
}

// initializeApp loads configuration and wires every application component.
func initializeApp() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"persistent_storage", cfg.Database.URL != "")

	app := &application{
		config: cfg,
		logger: appLogger,
	}

	if err := app.setupStores(); err != nil {
		return nil, err
	}

	app.checkpoints = checkpoint.NewStore(app.kv, appLogger)
	app.results = resultcache.New(
		app.kv,
		cfg.Cache.MaxEntries,
		time.Duration(cfg.Cache.TTLHours)*time.Hour,
		time.Now,
		appLogger,
	)
	app.engine = dedup.New()

	app.limiter = ratelimit.NewLimiter(ratelimit.NewMemoryWindowStore(), time.Now, appLogger)
	app.tiers = ratelimit.NewTierCache(
		time.Duration(cfg.RateLimit.TierTTLHours)*time.Hour,
		time.Now,
		appLogger,
	)

	generator, err := gemini.NewGeminiGenerator(context.Background(), appLogger, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}
	app.generator = generator

	admission := ratelimit.NewAdmission(app.limiter, app.tiers, cfg.LLM.GeminiAPIKey, "", appLogger)

	factory := task.NewStoryboardGenerationTaskFactory(
		app.jobStore,
		app.generator,
		app.checkpoints,
		app.results,
		app.engine,
		admission,
		task.GenerationSettings{
			BatchSize:      cfg.Task.BatchSize,
			DedupThreshold: cfg.Dedup.Threshold,
		},
		appLogger,
	)

	app.runner = task.NewTaskRunner(app.jobStore, factory, task.TaskRunnerConfig{
		WorkerCount:           cfg.Task.WorkerCount,
		QueueSize:             cfg.Task.QueueSize,
		StuckJobAge:           time.Duration(cfg.Task.StuckJobAgeMinutes) * time.Minute,
		StuckJobCheckInterval: time.Duration(cfg.Task.StuckJobCheckIntervalMins) * time.Minute,
	}, appLogger)

	app.emitter = events.NewInMemoryEventEmitter(appLogger)
	app.emitter.RegisterHandler(
		task.NewTaskFactoryEventHandler(app.jobStore, factory, app.runner, appLogger),
	)

	jobService, err := service.NewJobService(app.jobStore, app.emitter, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create job service: %w", err)
	}
	app.jobService = jobService

	return app, nil
}

// setupStores selects the storage backend. A configured database URL gets
// PostgreSQL with migrations applied on startup; otherwise everything runs
// on the in-memory stores. Checkpoint and result keys carry distinct
// prefixes, so both components share one key-value store.
func (app *application) setupStores() error {
	if app.config.Database.URL == "" {
		app.logger.Info("No database URL configured, using in-memory stores")
		app.jobStore = store.NewMemoryJobStore()
		app.kv = store.NewMemoryKV()
		return nil
	}

	db, err := sql.Open("pgx", app.config.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err := postgres.MigrateUp(db, app.logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	app.logger.Info("Database connection established")
	app.db = db
	app.jobStore = postgres.NewPostgresJobStore(db, app.logger)
	app.kv = postgres.NewPostgresKVStore(db, app.logger)
	return nil
}

// run starts the background machinery and serves HTTP until a shutdown
// signal arrives.
func (app *application) run(ctx context.Context) error {
	if err := app.runner.Start(); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}

	sweeperCtx, cancel := context.WithCancel(ctx)
	app.sweeperCancel = cancel
	go ratelimit.StartSweeper(
		sweeperCtx,
		time.Duration(app.config.RateLimit.SweepIntervalSeconds)*time.Second,
		app.limiter,
		app.tiers,
		app.logger,
	)

	return app.startHTTPServer(ctx, app.setupRouter())
}

// cleanup releases resources on shutdown. It is safe to call after a
// partial initialization failure.
func (app *application) cleanup() {
	if app.sweeperCancel != nil {
		app.sweeperCancel()
	}
	if app.runner != nil {
		app.runner.Stop()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Failed to close database connection", "error", err)
		}
	}
}
