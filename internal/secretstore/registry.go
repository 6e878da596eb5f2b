package secretstore

import (
	"fmt"

	"github.com/systmms/keyrotor/internal/logging"
	"github.com/systmms/keyrotor/internal/secretstore/vault"
)

// Factory creates a store instance from raw configuration.
type Factory func(name string, config map[string]interface{}, logger *logging.Logger) (Store, error)

// Registry manages store creation by backend type.
type Registry struct {
	factories map[string]Factory
	logger    *logging.Logger
}

// NewRegistry creates a registry with the built-in backends registered.
func NewRegistry(logger *logging.Logger) *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		logger:    logger,
	}

	r.RegisterFactory("vault", func(name string, config map[string]interface{}, logger *logging.Logger) (Store, error) {
		return vault.New(name, config, logger)
	})
	r.RegisterFactory("aws-secretsmanager", func(name string, config map[string]interface{}, logger *logging.Logger) (Store, error) {
		return NewAWSSecretsManagerStore(name, config, logger)
	})

	return r
}

// RegisterFactory registers a store factory for a backend type.
func (r *Registry) RegisterFactory(storeType string, factory Factory) {
	r.factories[storeType] = factory
}

// Create builds a store instance for the given type and raw config.
func (r *Registry) Create(name, storeType string, config map[string]interface{}) (Store, error) {
	factory, exists := r.factories[storeType]
	if !exists {
		return nil, fmt.Errorf("unknown secret store type: %s (known: %v)", storeType, r.Types())
	}
	return factory(name, config, r.logger)
}

// Types returns the registered backend type names.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	return types
}
