package container

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/application/dispatcher"
	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/application/workflow"
	"github.com/garyjia/expense-approval/internal/domain/event"
	"github.com/garyjia/expense-approval/internal/infrastructure/external/currency"
	infraLark "github.com/garyjia/expense-approval/internal/infrastructure/external/lark"
	"github.com/garyjia/expense-approval/internal/infrastructure/lock"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-approval/internal/infrastructure/worker"
	httpserver "github.com/garyjia/expense-approval/internal/interfaces/http"
	"github.com/garyjia/expense-approval/migrations"
	"github.com/garyjia/expense-approval/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the SQLite database and wraps it in a transaction manager.
// Embedded migrations run first when AutoMigrate is set.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	conn, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		applied, err := database.NewMigrator(conn, logger).Run(ctx, migrations.FS)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("Migrations checked", zap.Int("applied", applied))
	}

	return &DatabaseBundle{
		Conn:           conn,
		SqlDB:          conn.DB,
		TransactionMgr: sqlite.NewDB(conn.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Expenses:  repository.NewExpenseRepository(sqlDB, logger),
		Requests:  repository.NewApprovalRequestRepository(sqlDB, logger),
		History:   repository.NewHistoryRepository(sqlDB, logger),
		Rules:     repository.NewRuleRepository(sqlDB, logger),
		Companies: repository.NewCompanyRepository(sqlDB, logger),
		Users:     repository.NewUserRepository(sqlDB, logger),
	}, nil
}

// ProvideOrgChart returns the manager hierarchy the resolver walks.
// The database provider reads the users table; the lark provider asks the Lark contact API.
func ProvideOrgChart(cfg *Config, repos *RepositoryBundle, logger *zap.Logger) (port.OrgChart, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	switch cfg.OrgChart.Provider {
	case "", OrgChartDatabase:
		if repos == nil || repos.Users == nil {
			return nil, fmt.Errorf("user repository is required")
		}
		return repos.Users, nil
	case OrgChartLark:
		client := infraLark.NewSDKClient(infraLark.Config{
			AppID:             cfg.Lark.AppID,
			AppSecret:         cfg.Lark.AppSecret,
			TerminalApprovers: cfg.OrgChart.TerminalApprovers,
		}, logger)
		contacts := infraLark.NewContactAPI(client, logger)
		return infraLark.NewOrgChart(contacts, cfg.OrgChart.TerminalApprovers, logger), nil
	default:
		return nil, fmt.Errorf("unknown org chart provider %q", cfg.OrgChart.Provider)
	}
}

// ProvideCurrencyConverter builds the static rate table.
func ProvideCurrencyConverter(cfg *CurrencyConfig, logger *zap.Logger) (port.CurrencyConverter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("currency config is required")
	}
	converter, err := currency.NewStaticRateConverter(currency.Config{
		Base:  cfg.Base,
		Rates: cfg.Rates,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load currency rates: %w", err)
	}
	return converter, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(cfg *WorkflowConfig, logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []dispatcher.Option{
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger}),
	}
	if cfg != nil && cfg.EventMaxInFlight > 0 {
		opts = append(opts, dispatcher.WithMaxInFlight(cfg.EventMaxInFlight))
	}
	return dispatcher.NewDispatcher(opts...), nil
}

// WorkflowDeps holds dependencies required for creating the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	OrgChart   port.OrgChart
	Converter  port.CurrencyConverter
	Locks      *lock.Manager
	Dispatcher dispatcher.Dispatcher
	Workflow   *WorkflowConfig
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the workflow engine and registers event handlers.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.WorkflowEngine, error) {
	if deps == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []workflow.EngineOption{
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithLogger(&zapLoggerAdapter{logger: deps.Logger}),
	}
	if deps.Workflow != nil && deps.Workflow.MaxChainDepth > 0 {
		opts = append(opts, workflow.WithMaxChainDepth(deps.Workflow.MaxChainDepth))
	}

	engine, err := workflow.NewEngine(workflow.Dependencies{
		Expenses:  deps.Repos.Expenses,
		Requests:  deps.Repos.Requests,
		History:   deps.Repos.History,
		Rules:     deps.Repos.Rules,
		Companies: deps.Repos.Companies,
		Converter: deps.Converter,
		OrgChart:  deps.OrgChart,
		Locker:    deps.Locks,
		TxManager: deps.TxManager,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow engine: %w", err)
	}

	audit := createEventLogHandler(deps.Logger)
	for _, t := range []event.Type{
		event.TypeExpenseSubmitted,
		event.TypeDecisionRecorded,
		event.TypeExpenseFinalized,
		event.TypeExpenseOverridden,
	} {
		deps.Dispatcher.SubscribeNamed(t, "event_log", audit)
	}

	return engine, nil
}

// ProvideWorkers creates and registers all background workers.
// Returns *worker.WorkerManager with all workers registered but not started.
func ProvideWorkers(cfg *WorkflowConfig, locks *lock.Manager, logger *zap.Logger) (*worker.WorkerManager, error) {
	if locks == nil {
		return nil, fmt.Errorf("lock manager is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	janitorCfg := worker.DefaultLockJanitorConfig()
	if cfg != nil {
		if cfg.JanitorInterval > 0 {
			janitorCfg.Interval = cfg.JanitorInterval
		}
		if cfg.LockIdleTTL > 0 {
			janitorCfg.IdleTTL = cfg.LockIdleTTL
		}
	}

	manager := worker.NewWorkerManager(logger)
	manager.Register(worker.NewLockJanitor(janitorCfg, locks, logger))
	return manager, nil
}

// ProvideHTTPServer creates the HTTP API around the engine.
func ProvideHTTPServer(cfg *ServerConfig, engine workflow.WorkflowEngine, db httpserver.Pinger, logger *zap.Logger) (*httpserver.Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server config is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("workflow engine is required")
	}

	serverCfg := httpserver.DefaultServerConfig()
	if cfg.Host != "" {
		serverCfg.Host = cfg.Host
	}
	if cfg.Port > 0 {
		serverCfg.Port = cfg.Port
	}
	if cfg.ReadTimeout > 0 {
		serverCfg.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		serverCfg.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.ShutdownTimeout > 0 {
		serverCfg.ShutdownTimeout = cfg.ShutdownTimeout
	}
	if cfg.Mode != "" {
		serverCfg.Mode = cfg.Mode
	}

	return httpserver.NewServer(serverCfg, engine, db, &zapLoggerAdapter{logger: logger}), nil
}

// createEventLogHandler writes every committed workflow event to the log
func createEventLogHandler(logger *zap.Logger) dispatcher.Handler {
	return func(_ context.Context, evt *event.Event) error {
		if evt == nil {
			return fmt.Errorf("event cannot be nil")
		}
		logger.Info("Workflow event",
			zap.String("event_id", evt.ID),
			zap.String("type", evt.Type.String()),
			zap.Int64("expense_id", evt.ExpenseID),
			zap.Int64("company_id", evt.CompanyID),
			zap.String("correlation_id", evt.CorrelationID),
			zap.Any("payload", evt.Payload))
		return nil
	}
}
