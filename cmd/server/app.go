package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/arcana/internal/catalog"
	"github.com/phrazzld/arcana/internal/config"
	"github.com/phrazzld/arcana/internal/platform/logger"
	"github.com/phrazzld/arcana/internal/platform/postgres"
	"github.com/phrazzld/arcana/internal/service/account"
)

// application holds the server's shared dependencies so they can be closed
// together on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	accountService account.Service
}

// newApplication loads configuration, connects to the database and builds
// the service layer.
func newApplication(ctx context.Context) (*application, error) {
	cfg, err := config.LoadServer()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	db, err := postgres.Open(ctx, cfg.Database.URL, log)
	if err != nil {
		return nil, err
	}

	app := &application{config: cfg, logger: log, db: db}
	if err := app.initServices(); err != nil {
		app.cleanup()
		return nil, err
	}
	return app, nil
}

func (app *application) initServices() error {
	cat, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	stores := account.Stores{
		Users:        postgres.NewPostgresUserStore(app.db, app.logger),
		Transactions: postgres.NewPostgresTransactionStore(app.db, app.logger),
		Revenue:      postgres.NewPostgresRevenueStore(app.db),
		Readings:     postgres.NewPostgresReadingStore(app.db),
	}
	app.accountService, err = account.NewService(stores, cat, app.db, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create account service: %w", err)
	}
	return nil
}

func (app *application) migrate(ctx context.Context) error {
	migrator, err := postgres.NewMigrator(app.db, app.logger)
	if err != nil {
		return err
	}
	return migrator.Up(ctx)
}

// cleanup releases the application's resources.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", "error", err)
		}
	}
}
