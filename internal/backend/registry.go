package backend

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*Backend)
)

// Register adds a backend to the registry.
// Called by backend definitions in their init() functions.
func Register(b *Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[b.Name] = b
}

// Get retrieves a backend by name, case-insensitively.
func Get(name string) (*Backend, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := registry[strings.ToLower(name)]
	return b, ok
}

// Lookup is Get with a descriptive error.
func Lookup(name string) (*Backend, error) {
	if name == "" {
		return nil, fmt.Errorf("backend type not specified")
	}
	b, ok := Get(name)
	if !ok {
		return nil, &UnknownBackendError{Type: name, Available: List()}
	}
	return b, nil
}

// List returns all registered backend names (sorted).
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownBackendError is returned when an unknown backend type is requested.
type UnknownBackendError struct {
	Type      string
	Available []string
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown backend type %q\nAvailable backends: %v\nHint: Check target.type in hermitage.yaml", e.Type, e.Available)
}
