package storage

import (
	"sort"
	"sync"

	"api-gateway/internal/common/errors"
)

// Registry maps STORAGE_TYPE values to factories. Backends register
// themselves from init functions, so a binary only offers the backends it
// imports.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]StorageFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]StorageFactory)}
}

func (r *Registry) Register(storageType string, factory StorageFactory) {
	r.mu.Lock()
	r.factories[storageType] = factory
	r.mu.Unlock()
}

// Create validates config and builds the backend registered for its type.
func (r *Registry) Create(config StorageConfig) (Storage, error) {
	r.mu.RLock()
	factory, ok := r.factories[config.GetType()]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.ConfigurationError("storage type is not available").
			WithContext("type", config.GetType()).
			WithContext("available", r.Types())
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return factory.Create(config)
}

// Types lists the registered storage types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (r *Registry) IsRegistered(storageType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[storageType]
	return ok
}

var DefaultRegistry = NewRegistry()

func Register(storageType string, factory StorageFactory) {
	DefaultRegistry.Register(storageType, factory)
}

func Create(config StorageConfig) (Storage, error) {
	return DefaultRegistry.Create(config)
}
