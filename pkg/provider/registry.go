package provider

import (
	"sort"
	"sync"

	"github.com/famulus-ai/famulus/pkg/chat"
)

// Factory builds a Provider from resolved client configuration.
type Factory func(cfg ClientConfig) (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes an adapter constructible through New under the given
// backend kind. Adapters call this from init; importing an adapter
// package is what wires its kind in. Register panics on a duplicate
// kind, which indicates two adapters claiming the same backend.
func Register(kind string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[kind]; exists {
		panic("provider: duplicate registration for backend kind " + kind)
	}
	registry[kind] = factory
}

// New constructs the adapter registered for kind.
func New(kind string, cfg ClientConfig) (Provider, error) {
	registryMu.RLock()
	factory, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, chat.NewConfigError("no provider registered for backend %q (registered: %v)", kind, Kinds())
	}
	return factory(cfg)
}

// Kinds returns the registered backend kinds in sorted order.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
