package main

import (
	"fmt"
	"log/slog"
	"time"

	authhandler "github.com/donorflow/donorflow/internal/domain/auth/handler"
	authrepo "github.com/donorflow/donorflow/internal/domain/auth/repository"
	authservice "github.com/donorflow/donorflow/internal/domain/auth/service"
	"github.com/donorflow/donorflow/internal/domain/crm"
	crmhandler "github.com/donorflow/donorflow/internal/domain/crm/handler"
	crmrepo "github.com/donorflow/donorflow/internal/domain/crm/repository"
	ingesthandler "github.com/donorflow/donorflow/internal/domain/ingest/handler"
	ingestservice "github.com/donorflow/donorflow/internal/domain/ingest/service"
	"github.com/donorflow/donorflow/pkg/config"
	"github.com/donorflow/donorflow/pkg/db"
	"github.com/donorflow/donorflow/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Stores
	EntryStore crm.EntryStore
	UserRepo   *authrepo.UserRepository

	// Services
	TokenManager  *authservice.TokenManager
	AuthService   *authservice.AuthService
	CRMService    *crm.Service
	IngestService *ingestservice.Service

	// Handlers
	AuthHandler   *authhandler.Handler
	CRMHandler    *crmhandler.Handler
	IngestHandler *ingesthandler.Handler
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
	deps.initStores()
	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}
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

func (d *Dependencies) initStores() {
	d.EntryStore = crmrepo.NewPostgresStore(d.DB.Pool)
	d.UserRepo = authrepo.NewUserRepository(d.DB.Pool)
	d.Logger.Info("stores initialized")
}

func (d *Dependencies) initServices() error {
	ttl := time.Duration(d.Config.Auth.AccessTokenTTL) * time.Minute
	d.TokenManager = authservice.NewTokenManager(d.Config.Auth.JWTSecret, ttl)
	d.AuthService = authservice.NewAuthService(d.UserRepo, d.TokenManager, d.Logger)

	d.CRMService = crm.NewService(d.EntryStore, d.Logger)
	d.IngestService = ingestservice.NewService(d.EntryStore, d.Logger)
	if path := d.Config.Upload.ArchivePath; path != "" {
		archive, err := storage.NewLocalArchive(path)
		if err != nil {
			return fmt.Errorf("failed to init upload archive: %w", err)
		}
		d.IngestService = d.IngestService.WithArchive(archive)
		d.Logger.Info("upload archive enabled", slog.String("path", path))
	}
	d.Logger.Info("services initialized")
	return nil
}

func (d *Dependencies) initHandlers() {
	d.AuthHandler = authhandler.NewHandler(d.AuthService, d.Logger)
	d.CRMHandler = crmhandler.NewHandler(d.CRMService, d.Logger)
	d.IngestHandler = ingesthandler.NewHandler(d.IngestService, d.Config.Upload.MaxUploadBytes, d.Logger)
	d.Logger.Info("handlers initialized")
}

// Close releases the shared resources.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
