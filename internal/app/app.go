// Package app wires the application together: storage, crypto,
// platform clients, services, background loops and HTTP handlers.
package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sentio/internal/common"
	"github.com/ternarybob/sentio/internal/crypto"
	"github.com/ternarybob/sentio/internal/handlers"
	"github.com/ternarybob/sentio/internal/interfaces"
	"github.com/ternarybob/sentio/internal/platforms"
	"github.com/ternarybob/sentio/internal/services/analysis"
	"github.com/ternarybob/sentio/internal/services/cache"
	"github.com/ternarybob/sentio/internal/services/events"
	"github.com/ternarybob/sentio/internal/services/maintenance"
	"github.com/ternarybob/sentio/internal/services/preprocess"
	"github.com/ternarybob/sentio/internal/services/scheduler"
	"github.com/ternarybob/sentio/internal/services/tokens"
	badgerstore "github.com/ternarybob/sentio/internal/storage/badger"
)

// App holds all application components and dependencies.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	Encryptor      interfaces.Encryptor
	Platforms      interfaces.PlatformRegistry

	EventService      interfaces.EventService
	TokenService      interfaces.TokenService
	PreprocessService interfaces.PreprocessService
	CacheService      *cache.Service
	SchedulerService  interfaces.SchedulerService
	AnalysisEngine    interfaces.AnalysisEngine
	Maintenance       *maintenance.Service

	APIHandler   *handlers.APIHandler
	JobHandler   *handlers.JobHandler
	TokenHandler *handlers.TokenHandler
	CacheHandler *handlers.CacheHandler
	WSHandler    *handlers.WebSocketHandler
}

// New initializes the application with all dependencies. Construction
// order follows the dependency graph: storage and crypto first, then
// services, then handlers, then background loops.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := badgerstore.NewManager(logger, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	encryptor, err := crypto.NewAESGCM(cfg.Tokens.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}
	app.Encryptor = encryptor

	app.Platforms = platforms.NewRegistry(&cfg.Platforms, logger)
	app.EventService = events.NewService(logger)

	app.TokenService = tokens.NewService(&cfg.Tokens, storageManager.TokenStorage(), encryptor, app.Platforms, logger)

	preprocessService, err := preprocess.NewService(&cfg.Preprocess, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize preprocessor: %w", err)
	}
	app.PreprocessService = preprocessService

	app.CacheService = cache.NewService(&cfg.Cache, storageManager.ResultStorage(), logger)

	schedulerService := scheduler.NewService(&cfg.Scheduler, storageManager.JobStorage(), app.EventService, logger)
	app.SchedulerService = schedulerService
	app.CacheService.AttachScheduler(schedulerService)

	engine, err := analysis.NewEngine(&cfg.Analysis, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize analysis engine: %w", err)
	}
	app.AnalysisEngine = engine

	app.SchedulerService.RegisterProcessor(app.analysisProcessor())

	app.Maintenance = maintenance.NewService(app.TokenService, app.CacheService, app.EventService, app.StorageManager, logger)

	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, logger)
	app.APIHandler = handlers.NewAPIHandler(logger)
	app.JobHandler = handlers.NewJobHandler(app.SchedulerService, app.CacheService, logger)
	app.TokenHandler = handlers.NewTokenHandler(app.TokenService, logger)
	app.CacheHandler = handlers.NewCacheHandler(app.CacheService, logger)

	app.SchedulerService.Start()
	if err := app.Maintenance.Start(cfg.Tokens.CleanupSchedule); err != nil {
		return nil, fmt.Errorf("failed to start maintenance service: %w", err)
	}

	logger.Info().
		Str("analysis_provider", engine.Provider()).
		Msg("Application initialization complete")

	return app, nil
}

// Close shuts components down in reverse construction order.
func (a *App) Close() error {
	if a.Maintenance != nil {
		a.Maintenance.Stop()
	}
	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}
	if a.WSHandler != nil {
		a.WSHandler.Close()
	}
	if a.EventService != nil {
		a.EventService.Close()
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}

	a.Logger.Info().Msg("Application shut down")
	return nil
}
