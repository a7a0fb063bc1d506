package config

import (
	"sort"

	"github.com/famulus-ai/famulus/pkg/chat"
)

// Registry is an immutable snapshot of the loaded profiles. Profile
// switches take effect only when a new Registry is built from a reloaded
// Config; an in-flight turn keeps the Profile value it started with.
type Registry struct {
	profiles    map[string]Profile
	defaultName string
}

// NewRegistry builds a Registry from a validated Config. The profiles are
// copied so later mutation of the Config cannot leak into the snapshot.
func NewRegistry(cfg *Config) *Registry {
	profiles := make(map[string]Profile, len(cfg.Profiles))
	for name, p := range cfg.Profiles {
		profiles[name] = *p
	}
	return &Registry{
		profiles:    profiles,
		defaultName: cfg.Default,
	}
}

// Get returns the named profile, or a config error if it does not exist.
func (r *Registry) Get(name string) (Profile, error) {
	p, ok := r.profiles[name]
	if !ok {
		return Profile{}, chat.NewConfigError("profile %q not found", name)
	}
	return p, nil
}

// Default returns the profile named by the config's default field.
func (r *Registry) Default() Profile {
	return r.profiles[r.defaultName]
}

// List returns the profile names in sorted order.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
