// Package container wires the application's dependencies: database, repos,
// services, storage, and the optional Lark notifier, built from one Config.
package container

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/yuchialin/vat-filing/internal/application/port"
	"github.com/yuchialin/vat-filing/internal/application/service"
	"github.com/yuchialin/vat-filing/internal/config"
	"github.com/yuchialin/vat-filing/internal/domain/entity"
	"github.com/yuchialin/vat-filing/internal/infrastructure/external/lark"
	"github.com/yuchialin/vat-filing/internal/infrastructure/persistence/postgres"
	"github.com/yuchialin/vat-filing/internal/infrastructure/persistence/sqlite"
	"github.com/yuchialin/vat-filing/internal/infrastructure/storage"
	"github.com/yuchialin/vat-filing/internal/reconcile"
	"github.com/yuchialin/vat-filing/internal/report"
	"github.com/yuchialin/vat-filing/pkg/database"
)

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Invoices   port.InvoiceRepository
	Allowances port.AllowanceRepository
	Periods    port.FilingPeriodRepository
	Ranges     port.InvoiceRangeRepository
	Clients    port.ClientRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Imports   service.ImportService
	Documents service.DocumentService
	Reports   service.ReportService
	Periods   service.PeriodService
}

// Container holds the wired application graph. Build it with New; Close
// releases the database resources.
type Container struct {
	cfg    *config.Config
	logger *zap.Logger

	sqlDB  *sql.DB
	pgPool *pgxpool.Pool

	txManager port.TransactionManager
	repos     *RepositoryBundle
	services  *ServiceBundle

	feedStorage   port.FileStorage
	outputStorage port.FileStorage
	notifier      port.Notifier
}

// New builds the full dependency graph for the configured database driver
// and runs pending migrations.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	c := &Container{cfg: cfg, logger: logger}

	if err := c.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	c.initStorage()
	c.initNotifier()
	c.initServices()

	logger.Info("Container initialized",
		zap.String("driver", cfg.Database.Driver),
		zap.Bool("lark_enabled", cfg.Lark.Enabled))
	return c, nil
}

// Close releases database resources.
func (c *Container) Close() error {
	if c.pgPool != nil {
		c.pgPool.Close()
	}
	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
	}
	return nil
}

func (c *Container) initDatabase(ctx context.Context) error {
	switch c.cfg.Database.Driver {
	case "sqlite":
		sqlDB, err := database.Open(database.Config{
			Path:            c.cfg.Database.Path,
			MaxOpenConns:    c.cfg.Database.MaxOpenConns,
			MaxIdleConns:    c.cfg.Database.MaxIdleConns,
			ConnMaxLifetime: c.cfg.Database.ConnMaxLifetime,
		}, c.logger)
		if err != nil {
			return err
		}
		c.sqlDB = sqlDB

		migrator := database.NewMigrator(sqlDB, c.logger)
		if err := migrator.RunMigrations(c.cfg.Database.MigrationsDir); err != nil {
			sqlDB.Close()
			return err
		}

		db := sqlite.NewDB(sqlDB, c.logger)
		c.txManager = db
		c.repos = &RepositoryBundle{
			Invoices:   sqlite.NewInvoiceRepository(db, c.logger),
			Allowances: sqlite.NewAllowanceRepository(db, c.logger),
			Periods:    sqlite.NewFilingPeriodRepository(db, c.logger),
			Ranges:     sqlite.NewInvoiceRangeRepository(db, c.logger),
			Clients:    sqlite.NewClientRepository(db, c.logger),
		}

	case "postgres":
		pool, err := pgxpool.New(ctx, c.cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}
		c.pgPool = pool

		migrator := postgres.NewMigrator(pool, c.logger)
		if err := migrator.RunMigrations(ctx, c.cfg.Database.MigrationsDir); err != nil {
			pool.Close()
			return err
		}

		db := postgres.NewDB(pool, c.logger)
		c.txManager = db
		c.repos = &RepositoryBundle{
			Invoices:   postgres.NewInvoiceRepository(db, c.logger),
			Allowances: postgres.NewAllowanceRepository(db, c.logger),
			Periods:    postgres.NewFilingPeriodRepository(db, c.logger),
			Ranges:     postgres.NewInvoiceRangeRepository(db, c.logger),
			Clients:    postgres.NewClientRepository(db, c.logger),
		}

	default:
		return fmt.Errorf("unknown database driver: %s", c.cfg.Database.Driver)
	}
	return nil
}

func (c *Container) initStorage() {
	c.feedStorage = storage.NewLocalFileStorage(c.cfg.Storage.BaseDir, c.logger)
	c.outputStorage = storage.NewLocalFileStorage(c.cfg.Storage.OutputDir, c.logger)
}

func (c *Container) initNotifier() {
	if !c.cfg.Lark.Enabled {
		return
	}
	sdk := lark.NewSDKClient(lark.Config{
		AppID:     c.cfg.Lark.AppID,
		AppSecret: c.cfg.Lark.AppSecret,
		ChatID:    c.cfg.Lark.ChatID,
	}, c.logger)
	c.notifier = lark.NewNotifier(sdk, c.logger)
}

func (c *Container) initServices() {
	guard := service.NewPeriodLockGuard(c.repos.Periods)

	importer := reconcile.NewImporter(
		c.repos.Invoices,
		c.repos.Allowances,
		c.feedStorage,
		guard,
		c.logger,
	)

	txtGen := report.NewTxtGenerator(c.repos.Clients, c.repos.Invoices, c.repos.Allowances, c.repos.Ranges, c.logger)
	tetuGen := report.NewTetUGenerator(c.repos.Clients, c.repos.Invoices, c.repos.Allowances, c.repos.Ranges, c.logger)

	c.services = &ServiceBundle{
		Imports: service.NewImportService(
			c.repos.Clients,
			importer,
			c.txManager,
			c.notifier,
			c.logger,
			entity.Direction(c.cfg.Import.DefaultDirection),
			c.cfg.Import.MaxBatchConcurrency,
		),
		Documents: service.NewDocumentService(c.repos.Invoices, c.repos.Allowances, guard, c.txManager, c.logger),
		Reports:   service.NewReportService(txtGen, tetuGen, c.outputStorage, c.logger),
		Periods:   service.NewPeriodService(c.repos.Periods, c.repos.Clients, c.notifier, c.logger),
	}
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repos
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() port.TransactionManager {
	return c.txManager
}

// FeedStorage returns the storage holding uploaded reconciliation feeds.
func (c *Container) FeedStorage() port.FileStorage {
	return c.feedStorage
}

// OutputStorage returns the storage holding generated declaration files.
func (c *Container) OutputStorage() port.FileStorage {
	return c.outputStorage
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// ZapLoggerAdapter adapts zap.Logger to interfaces that expect
// key-value pair logging.
type ZapLoggerAdapter struct {
	Logger *zap.Logger
}

func (a *ZapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.Logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *ZapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.Logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
