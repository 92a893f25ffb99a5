// Package remotes implements the providers behind remote value locators:
// SSM parameters, CloudFormation exports, and GCP Secret Manager secrets.
package remotes

import (
	"fmt"
	"sync"

	"github.com/systmms/envars/internal/logging"
	"github.com/systmms/envars/pkg/remotevalue"
)

// Registry dispatches locator kinds to lazily constructed providers.
// Construction is deferred until a kind is first used so resolving a
// document with no remote values never touches cloud credentials.
type Registry struct {
	logger *logging.Logger

	mu        sync.Mutex
	providers map[remotevalue.Kind]remotevalue.Provider
	builders  map[remotevalue.Kind]func() (remotevalue.Provider, error)
}

// NewRegistry creates a registry covering every recognized kind.
func NewRegistry(logger *logging.Logger) *Registry {
	r := &Registry{
		logger:    logger,
		providers: make(map[remotevalue.Kind]remotevalue.Provider),
	}
	r.builders = map[remotevalue.Kind]func() (remotevalue.Provider, error){
		remotevalue.ParameterStore: func() (remotevalue.Provider, error) { return NewSSMProvider(logger) },
		remotevalue.StackExport:    func() (remotevalue.Provider, error) { return NewCloudFormationProvider(logger) },
		remotevalue.SecretManager:  func() (remotevalue.Provider, error) { return NewGCPSecretManagerProvider(logger) },
	}
	return r
}

// Register overrides the provider for a kind (for testing).
func (r *Registry) Register(p remotevalue.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Kind()] = p
}

// Provider returns the provider for a kind, constructing it on first use.
func (r *Registry) Provider(kind remotevalue.Kind) (remotevalue.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[kind]; ok {
		return p, nil
	}
	build, ok := r.builders[kind]
	if !ok {
		return nil, fmt.Errorf("unrecognized remote value kind %q", kind)
	}
	p, err := build()
	if err != nil {
		return nil, err
	}
	r.providers[kind] = p
	return p, nil
}
