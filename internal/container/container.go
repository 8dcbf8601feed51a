package container

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/decorcrm/approval-engine/internal/application/bridge"
	"github.com/decorcrm/approval-engine/internal/application/port"
	"github.com/decorcrm/approval-engine/internal/application/service"
	"github.com/decorcrm/approval-engine/internal/config"
	"github.com/decorcrm/approval-engine/internal/infrastructure/keystore"
	"github.com/decorcrm/approval-engine/internal/infrastructure/notify"
	"github.com/decorcrm/approval-engine/internal/infrastructure/persistence/repository"
	"github.com/decorcrm/approval-engine/internal/infrastructure/persistence/sqlite"
	"github.com/decorcrm/approval-engine/internal/infrastructure/worker"
	httpserver "github.com/decorcrm/approval-engine/internal/interfaces/http"
	"github.com/decorcrm/approval-engine/pkg/database"
)

// Container wires all application dependencies. Initialization happens in
// New; Start/Stop manage the background lifecycle (workers, database).
type Container struct {
	config *config.Config
	logger *zap.Logger

	db        *database.DB
	txManager *sqlite.DB

	Repositories *RepositoryBundle
	Services     *ServiceBundle
	Bridges      *bridge.Registry
	Server       *httpserver.Server

	workers *worker.Manager

	mu      sync.Mutex
	started bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Flow      port.FlowRepository
	Instance  port.InstanceRepository
	Task      port.TaskRepository
	Event     port.EventRepository
	Directory port.Directory
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Flow     service.FlowService
	Gate     service.GateService
	Decision service.DecisionService
	Tasks    service.TaskQueryService
	Resolver service.ApproverResolver
}

// New builds the full dependency graph: database, repositories, keystores,
// notifier, services, sweeper and HTTP server.
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.Database.MigrationsDir != "" {
		if err := database.NewMigrator(db, logger).RunMigrations(cfg.Database.MigrationsDir); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	txManager := sqlite.NewDB(db.DB, logger)

	repos := &RepositoryBundle{
		Flow:      repository.NewFlowRepository(db.DB, logger),
		Instance:  repository.NewInstanceRepository(db.DB, logger),
		Task:      repository.NewTaskRepository(db.DB, logger),
		Event:     repository.NewEventRepository(db.DB, logger),
		Directory: repository.NewDirectoryRepository(db.DB, logger),
	}

	var notifier port.Notifier
	if cfg.Lark.AppID != "" {
		notifier = notify.NewLarkNotifier(notify.Config{
			AppID:     cfg.Lark.AppID,
			AppSecret: cfg.Lark.AppSecret,
		}, logger)
	} else {
		notifier = notify.NewNoopNotifier(logger)
	}

	idempotency := keystore.NewIdempotencyStore(cfg.Engine.IdempotencyTTL)
	limiter := keystore.NewRateLimiter()
	bridges := bridge.NewRegistry()

	serviceLogger := newServiceLogger(logger)
	resolver := service.NewApproverResolver(repos.Directory, serviceLogger)

	services := &ServiceBundle{
		Resolver: resolver,
		Flow:     service.NewFlowService(repos.Flow, txManager, serviceLogger),
		Gate: service.NewGateService(
			repos.Flow, repos.Instance, repos.Task, repos.Event,
			txManager, resolver, idempotency, limiter, notifier,
			service.GateConfig{
				RateLimitCapacity: cfg.Engine.RateLimitCapacity,
				RateLimitWindow:   cfg.Engine.RateLimitWindow,
			},
			serviceLogger,
		),
		Decision: service.NewDecisionService(
			repos.Flow, repos.Instance, repos.Task, repos.Event,
			txManager, resolver, bridges, repos.Directory, limiter, notifier,
			service.DecisionConfig{
				OverrideRole:      cfg.Engine.OverrideRole,
				RateLimitCapacity: cfg.Engine.RateLimitCapacity,
				RateLimitWindow:   cfg.Engine.RateLimitWindow,
			},
			serviceLogger,
		),
		Tasks: service.NewTaskQueryService(repos.Instance, repos.Task, repos.Event, serviceLogger),
	}

	workers := worker.NewManager(logger)
	workers.Register(worker.NewTimeoutSweeper(
		repos.Task, repos.Event, services.Decision, resolver, notifier, logger,
		cfg.Engine.SweepInterval, cfg.Engine.SweepBatchSize,
	))

	server := httpserver.NewServer(
		httpserver.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		services.Flow, services.Gate, services.Decision, services.Tasks,
		serviceLogger,
	)

	return &Container{
		config:       cfg,
		logger:       logger,
		db:           db,
		txManager:    txManager,
		Repositories: repos,
		Services:     services,
		Bridges:      bridges,
		Server:       server,
		workers:      workers,
	}, nil
}

// Start launches the background workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return fmt.Errorf("container already started")
	}

	if err := c.workers.StartAll(ctx); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}

	c.started = true
	c.logger.Info("Container started", zap.Int("workers", c.workers.Count()))
	return nil
}

// Stop shuts down workers and closes the database
func (c *Container) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		if c.db != nil {
			_ = c.db.Close()
		}
		return
	}

	c.workers.StopAll()
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close database", zap.Error(err))
	}

	c.started = false
	c.logger.Info("Container stopped")
}
