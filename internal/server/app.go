// Package server wires the identity core together: it opens PostgreSQL,
// applies migrations, connects the avatar store, builds the services and
// keeps the pending-deletion reconciler running until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/chatauth/internal/cryptox"
	"github.com/dmitrijs2005/chatauth/internal/logging"
	"github.com/dmitrijs2005/chatauth/internal/server/assets"
	"github.com/dmitrijs2005/chatauth/internal/server/config"
	"github.com/dmitrijs2005/chatauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/chatauth/internal/server/services"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Seams for tests.
var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}

	newRepositoryManager = func() repomanager.RepositoryManager {
		return repomanager.NewPostgresRepositoryManager()
	}

	newAssetStore = func(ctx context.Context, cfg *config.Config) (assets.Store, error) {
		return assets.NewS3Store(ctx, cfg)
	}
)

// App holds the services exposed to the transport layer.
type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	reconciler *services.AssetReconciler

	Credentials *services.CredentialStore
	Sessions    *services.SessionTokenManager
	Profiles    *services.ProfileManager
	Directory   *services.UserDirectory
}

func NewApp(cfg *config.Config) (*App, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	return newApp(context.Background(), cfg, logging.NewJSONLogger(os.Stdout, level))
}

func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	hasher, err := cryptox.NewBcryptHasher(cfg.HashCost)
	if err != nil {
		return nil, fmt.Errorf("hasher init error: %w", err)
	}

	db, err := openDB(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, err := newAssetStore(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("asset store init error: %w", err)
	}

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		reconciler:  services.NewAssetReconciler(db, rm, store, logger, cfg),
		Credentials: services.NewCredentialStore(db, rm, hasher, logger),
		Sessions:    services.NewSessionTokenManager(db, rm, hasher, logger),
		Profiles:    services.NewProfileManager(db, rm, store, logger),
		Directory:   services.NewUserDirectory(db, rm, logger),
	}, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// Run blocks until ctx is cancelled or a termination signal arrives, then
// closes the database.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.reconciler.Run(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
