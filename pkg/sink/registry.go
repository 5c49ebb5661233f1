package sink

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Factory builds a sink. A nil logger means discard.
type Factory func(*slog.Logger) Sink

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a sink factory to the registry.
// Called by sink implementations in their init() functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves a sink factory by name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// New creates a sink for cfg.Type.
func New(cfg Config, logger *slog.Logger) (Sink, error) {
	if cfg.Type == "" {
		return nil, errors.New("sink type not specified")
	}
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownSinkError{Type: cfg.Type, Available: List()}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return factory(logger), nil
}

// List returns all registered sink names (sorted).
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

// IsRegistered checks if a sink type is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// UnknownSinkError is returned when an unknown sink type is requested.
type UnknownSinkError struct {
	Type      string
	Available []string
}

func (e *UnknownSinkError) Error() string {
	return fmt.Sprintf("unknown output type %q\nAvailable output types: %v\nHint: Check output_type in apstab.yaml", e.Type, e.Available)
}
