// Package sqlite is the SQLite storage backend.
package sqlite

import (
	"time"

	_ "github.com/mattn/go-sqlite3"

	"api-gateway/internal/common/errors"
	"api-gateway/internal/storage"
	"api-gateway/internal/storage/sqlstore"
)

type Adapter struct {
	*sqlstore.Store
	config *Config
}

func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// SQLite allows one writer; a single connection also keeps :memory:
	// databases alive for the life of the pool.
	store, err := sqlstore.Open("sqlite3", config.dsn(), sqlstore.SQLite, sqlstore.Pool{MaxOpen: 1}, 5*time.Second)
	if err != nil {
		return nil, errors.ConnectionError("failed to open SQLite storage", err)
	}
	return &Adapter{Store: store, config: config}, nil
}

type factory struct{}

func (factory) Create(config storage.StorageConfig) (storage.Storage, error) {
	c, ok := config.(*Config)
	if !ok {
		return nil, errors.ConfigurationError("sqlite storage needs a *sqlite.Config")
	}
	return NewAdapter(c)
}

func init() {
	storage.Register(storageType, factory{})
}
