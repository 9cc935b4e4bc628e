// Package postgres is the PostgreSQL storage backend, driven by pgx through
// database/sql.
package postgres

import (
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"api-gateway/internal/common/errors"
	"api-gateway/internal/storage"
	"api-gateway/internal/storage/sqlstore"
)

var pool = sqlstore.Pool{MaxOpen: 25, MaxIdle: 5, MaxLifetime: 30 * time.Minute}

type Adapter struct {
	*sqlstore.Store
	config *Config
}

func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := sqlstore.Open("pgx", config.GetConnectionString(), sqlstore.Postgres, pool, 10*time.Second)
	if err != nil {
		return nil, errors.ConnectionError("failed to open PostgreSQL storage", err).
			WithContext("host", config.Host).
			WithContext("database", config.Database)
	}
	return &Adapter{Store: store, config: config}, nil
}

type factory struct{}

func (factory) Create(config storage.StorageConfig) (storage.Storage, error) {
	c, ok := config.(*Config)
	if !ok {
		return nil, errors.ConfigurationError("postgres storage needs a *postgres.Config")
	}
	return NewAdapter(c)
}

func init() {
	storage.Register(storageType, factory{})
}
