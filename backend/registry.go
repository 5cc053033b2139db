package backend

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/framepipe"
)

// Factory opens a device of one backend.
type Factory func(opts Options) (Device, error)

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// Priority order for backend selection (first that opens wins).
	// Hardware first, the simulator is the fallback.
	backendPriority = []string{BackendHAL, BackendSim}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the sorted names of registered backends.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return sortedNames()
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Open opens the named backend. An empty name selects Default.
func Open(name string, opts Options) (Device, error) {
	if name == "" {
		return Default(opts)
	}
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	return factory(opts)
}

// Default opens the best available backend based on priority, then any
// other registered backend.
func Default(opts Options) (Device, error) {
	registryMu.RLock()
	order := make([]string, 0, len(backends))
	for _, name := range backendPriority {
		if _, ok := backends[name]; ok {
			order = append(order, name)
		}
	}
	for _, name := range sortedNames() {
		if !slices.Contains(order, name) {
			order = append(order, name)
		}
	}
	factories := make([]Factory, len(order))
	for i, name := range order {
		factories[i] = backends[name]
	}
	registryMu.RUnlock()

	var errs []error
	for i, factory := range factories {
		d, err := factory(opts)
		if err == nil {
			framepipe.Logger().Info("backend: selected", "backend", order[i])
			return d, nil
		}
		framepipe.Logger().Debug("backend: unavailable", "backend", order[i], "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", order[i], err))
	}
	if len(errs) == 0 {
		return nil, ErrBackendNotAvailable
	}
	return nil, fmt.Errorf("%w: %w", ErrBackendNotAvailable, errors.Join(errs...))
}

// sortedNames must be called with registryMu held.
func sortedNames() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
