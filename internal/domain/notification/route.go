package notification

import "context"

// RouteConfig is the static, per-route metadata loaded at startup and
// read-only thereafter.
type RouteConfig struct {
	// Name is the unique route key, e.g. "TaskCreated".
	Name string `json:"name"`
	// ObjectKind is the kind of object the route concerns, e.g. "task".
	ObjectKind string `json:"object_kind"`
	// TemplateName references a NotificationTemplate by name.
	TemplateName string `json:"template_name"`
	DisplayName  string `json:"display_name"`
	Description  string `json:"description"`
	Tags         []string `json:"tags,omitempty"`
	// IncludeDeputies controls whether resolvers expand the audience to the
	// recipients' active deputies. Fan-out policy lives here, not in
	// divergent resolver bodies.
	IncludeDeputies bool `json:"include_deputies"`
}

// Resolver derives the addressee set and the render data for one route from
// a raw request. Each resolver owns the strongly-typed decode of its own
// route's parameters; the blob stays opaque everywhere else.
type Resolver interface {
	// Route returns the route name this resolver handles. Must match the
	// paired configuration's Name exactly.
	Route() string

	// ResolveRecipients derives the addressee set from request parameters.
	// Fails with MissingParameterError if a required field is absent and
	// with UpstreamLookupError if a referenced entity cannot be found.
	ResolveRecipients(ctx context.Context, req *DispatchRequest) ([]User, error)

	// ResolveTemplateData derives the structured object used for rendering,
	// under the same error rules.
	ResolveTemplateData(ctx context.Context, req *DispatchRequest) (map[string]any, error)
}

// Registration pairs a route configuration with its resolver. Route modules
// export registrations as an explicit table consumed by the registry
// constructor; there is no runtime discovery.
type Registration struct {
	Config   RouteConfig
	Resolver Resolver
}

// RenderedContent is the per-channel output of template rendering, produced
// once per dispatch and shared across recipients.
type RenderedContent struct {
	Title     string
	PushBody  string
	EmailHTML string
	EmailText string
}

// TemplateRenderer renders a template against resolver-produced data.
// Rendering is a pure function of its inputs and is strict: an undefined
// template variable is a RenderError, not a silent blank.
type TemplateRenderer interface {
	Render(tmpl *NotificationTemplate, data map[string]any) (*RenderedContent, error)
}
