package api

import (
	"fmt"
	"log/slog"
	"time"

	budgethandler "github.com/FACorreiaa/federal-budget-tracker/internal/domain/budget/handler"
	budgetrepo "github.com/FACorreiaa/federal-budget-tracker/internal/domain/budget/repository"
	ingestrepo "github.com/FACorreiaa/federal-budget-tracker/internal/domain/ingest/repository"
	ingestservice "github.com/FACorreiaa/federal-budget-tracker/internal/domain/ingest/service"

	"github.com/FACorreiaa/federal-budget-tracker/pkg/config"
	"github.com/FACorreiaa/federal-budget-tracker/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	ImportRepo ingestrepo.ImportRepository
	BudgetRepo budgetrepo.BudgetRepository

	// Services
	ImportService *ingestservice.ImportService

	// Handlers
	BudgetHandler *budgethandler.BudgetHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	deps.initRepositories()
	deps.initServices()
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

func (d *Dependencies) initRepositories() {
	d.ImportRepo = ingestrepo.NewPostgresImportRepository(d.DB.Pool)
	d.BudgetRepo = budgetrepo.NewPostgresBudgetRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initServices() {
	d.ImportService = ingestservice.NewImportService(d.ImportRepo, d.Logger, ingestservice.Options{
		DataSource:        d.Config.Import.DataSource,
		DefaultFiscalYear: d.Config.Import.DefaultFiscalYear,
		FlushEvery:        d.Config.Import.FlushEvery,
	})

	d.Logger.Info("services initialized")
}

func (d *Dependencies) initHandlers() {
	d.BudgetHandler = budgethandler.NewBudgetHandler(d.BudgetRepo, d.Logger)

	d.Logger.Info("handlers initialized")
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
