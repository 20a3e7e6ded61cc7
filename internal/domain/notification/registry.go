package notification

import (
	"fmt"
	"sort"

	"routecast/internal/common"
)

// Registry indexes (configuration, resolver) pairs by route name. It is
// populated once at startup and read-only afterwards, so lookups need no
// locking.
type Registry struct {
	entries map[string]Registration
}

// NewRegistry validates and indexes the given registrations. Startup fails
// fast: a duplicate route name, a missing resolver, or a resolver whose
// route does not match its configuration is an error, never a silently
// dropped route.
func NewRegistry(registrations []Registration) (*Registry, error) {
	entries := make(map[string]Registration, len(registrations))

	for _, reg := range registrations {
		name := reg.Config.Name
		if name == "" {
			return nil, fmt.Errorf("route registration with empty name")
		}
		if reg.Resolver == nil {
			return nil, fmt.Errorf("route %q has no resolver", name)
		}
		if got := reg.Resolver.Route(); got != name {
			return nil, fmt.Errorf("route %q paired with resolver for %q", name, got)
		}
		if reg.Config.TemplateName == "" {
			return nil, fmt.Errorf("route %q has no template name", name)
		}
		if _, dup := entries[name]; dup {
			return nil, fmt.Errorf("duplicate route registration: %q", name)
		}
		entries[name] = reg
	}

	return &Registry{entries: entries}, nil
}

// Lookup returns the configuration and resolver for a route name.
func (r *Registry) Lookup(route string) (RouteConfig, Resolver, error) {
	reg, ok := r.entries[route]
	if !ok {
		return RouteConfig{}, nil, common.NewRouteNotFoundError(route)
	}
	return reg.Config, reg.Resolver, nil
}

// Configs returns all registered route configurations, sorted by name.
func (r *Registry) Configs() []RouteConfig {
	configs := make([]RouteConfig, 0, len(r.entries))
	for _, reg := range r.entries {
		configs = append(configs, reg.Config)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })
	return configs
}

// Len returns the number of registered routes.
func (r *Registry) Len() int {
	return len(r.entries)
}
