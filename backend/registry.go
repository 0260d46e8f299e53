package backend

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates a ready to use Backend
type Factory func() (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available by name. Backend packages call it from
// an init function; registering the same name twice panics
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("backend %q registered twice", name))
	}

	registry[name] = factory
}

// Lookup creates the backend registered under `name`
func Lookup(name string) (Backend, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown backend %q (available: %v)", name, Names())
	}

	b, err := factory()
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", name, err)
	}

	return b, nil
}

// Names lists the registered backends in alphabetical order
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}
