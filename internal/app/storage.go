package app

import (
	"strconv"

	"api-gateway/internal/common/errors"
	"api-gateway/internal/common/logging"
	"api-gateway/internal/storage"
	"api-gateway/internal/storage/memory"
	"api-gateway/internal/storage/postgres"
	"api-gateway/internal/storage/sqlite"
)

func (app *App) storageConfig() (storage.StorageConfig, error) {
	cfg := app.Config
	switch cfg.StorageType {
	case "memory":
		app.Logger.Warn("Storage: in-memory, data is lost on restart")
		return &memory.Config{}, nil
	case "postgres", "postgresql":
		port, err := strconv.Atoi(cfg.PostgresPort)
		if err != nil {
			return nil, errors.ConfigurationError("POSTGRES_PORT must be a number")
		}
		app.Logger.Info("Storage: PostgreSQL",
			logging.Field{Key: "host", Value: cfg.PostgresHost},
			logging.Field{Key: "port", Value: port},
			logging.Field{Key: "database", Value: cfg.PostgresDB},
		)
		return &postgres.Config{
			Host:     cfg.PostgresHost,
			Port:     port,
			Database: cfg.PostgresDB,
			Username: cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			SSLMode:  cfg.PostgresSSLMode,
		}, nil
	default:
		app.Logger.Info("Storage: SQLite", logging.Field{Key: "path", Value: cfg.DatabasePath})
		return &sqlite.Config{DatabasePath: cfg.DatabasePath}, nil
	}
}

func (app *App) initializeStorage() error {
	storageConfig, err := app.storageConfig()
	if err != nil {
		return err
	}

	store, err := storage.Create(storageConfig)
	if err != nil {
		return errors.ConnectionError("failed to initialize storage", err)
	}
	app.Storage = store
	return nil
}
