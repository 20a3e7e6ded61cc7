package notification

import (
	"errors"
	"testing"

	"routecast/internal/common"
)

func registration(route string) Registration {
	return Registration{
		Config: RouteConfig{
			Name:         route,
			ObjectKind:   "task",
			TemplateName: "tmpl_" + route,
		},
		Resolver: &fakeResolver{route: route},
	}
}

func TestRegistryLookup(t *testing.T) {
	reg, err := NewRegistry([]Registration{registration("TaskCreated"), registration("TaskReturned")})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	// Registry consistency: every lookup returns a resolver matching its route.
	for _, route := range []string{"TaskCreated", "TaskReturned"} {
		cfg, resolver, err := reg.Lookup(route)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", route, err)
		}
		if cfg.Name != route {
			t.Fatalf("config name %q, want %q", cfg.Name, route)
		}
		if resolver.Route() != route {
			t.Fatalf("resolver route %q, want %q", resolver.Route(), route)
		}
	}
}

func TestRegistryUnknownRoute(t *testing.T) {
	reg, err := NewRegistry([]Registration{registration("TaskCreated")})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	_, _, err = reg.Lookup("NoSuchRoute")
	var notFound *common.RouteNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected RouteNotFoundError, got %v", err)
	}
	if notFound.Route != "NoSuchRoute" {
		t.Fatalf("error names route %q", notFound.Route)
	}
}

func TestRegistryDuplicateRoute(t *testing.T) {
	_, err := NewRegistry([]Registration{registration("TaskCreated"), registration("TaskCreated")})
	if err == nil {
		t.Fatal("expected error for duplicate route")
	}
}

func TestRegistryResolverMismatch(t *testing.T) {
	reg := registration("TaskCreated")
	reg.Resolver = &fakeResolver{route: "SomethingElse"}

	if _, err := NewRegistry([]Registration{reg}); err == nil {
		t.Fatal("expected error for resolver/config mismatch")
	}
}

func TestRegistryMissingResolver(t *testing.T) {
	reg := registration("TaskCreated")
	reg.Resolver = nil

	if _, err := NewRegistry([]Registration{reg}); err == nil {
		t.Fatal("expected error for missing resolver")
	}
}

func TestRegistryConfigsSorted(t *testing.T) {
	reg, err := NewRegistry([]Registration{registration("Zebra"), registration("Alpha")})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	configs := reg.Configs()
	if len(configs) != 2 || configs[0].Name != "Alpha" || configs[1].Name != "Zebra" {
		t.Fatalf("unexpected configs order: %+v", configs)
	}
}

func TestParseChannels(t *testing.T) {
	channels, err := ParseChannels("")
	if err != nil {
		t.Fatalf("ParseChannels empty: %v", err)
	}
	if len(channels) != len(DefaultChannels) {
		t.Fatalf("expected default channels, got %v", channels)
	}

	channels, err = ParseChannels("email, PUSH")
	if err != nil {
		t.Fatalf("ParseChannels: %v", err)
	}
	if len(channels) != 2 || channels[0] != ChannelEmail || channels[1] != ChannelPush {
		t.Fatalf("unexpected channels: %v", channels)
	}

	if _, err := ParseChannels("carrier-pigeon"); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}
