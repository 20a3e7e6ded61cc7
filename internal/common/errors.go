package common

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id '%s' not found", e.Resource, e.ID)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError indicates invalid input data.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// UnauthorizedError indicates missing or invalid authentication.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	if e.Message == "" {
		return "unauthorized"
	}
	return e.Message
}

// NewUnauthorizedError creates a new UnauthorizedError.
func NewUnauthorizedError(message string) *UnauthorizedError {
	return &UnauthorizedError{Message: message}
}

// RouteNotFoundError indicates a dispatch request named a route that is not
// registered. The request is rejected before any side effects.
type RouteNotFoundError struct {
	Route string
}

func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("route '%s' is not registered", e.Route)
}

// NewRouteNotFoundError creates a new RouteNotFoundError.
func NewRouteNotFoundError(route string) *RouteNotFoundError {
	return &RouteNotFoundError{Route: route}
}

// MissingParameterError indicates a resolver-required field was absent from
// the request parameters.
type MissingParameterError struct {
	Route     string
	Parameter string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("route '%s' requires parameter '%s'", e.Route, e.Parameter)
}

// NewMissingParameterError creates a new MissingParameterError.
func NewMissingParameterError(route, parameter string) *MissingParameterError {
	return &MissingParameterError{Route: route, Parameter: parameter}
}

// UpstreamLookupError indicates a referenced entity could not be found via an
// upstream collaborator. Surfaced as a client error since it stems from bad
// input ids.
type UpstreamLookupError struct {
	Entity string
	ID     string
}

func (e *UpstreamLookupError) Error() string {
	return fmt.Sprintf("%s '%s' not found upstream", e.Entity, e.ID)
}

// NewUpstreamLookupError creates a new UpstreamLookupError.
func NewUpstreamLookupError(entity, id string) *UpstreamLookupError {
	return &UpstreamLookupError{Entity: entity, ID: id}
}

// InvalidAddressError indicates a resolved user lacks mandatory contact info.
// The user is excluded from the recipient set rather than aborting dispatch.
type InvalidAddressError struct {
	UserID string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("user '%s' has no email address", e.UserID)
}

// NewInvalidAddressError creates a new InvalidAddressError.
func NewInvalidAddressError(userID string) *InvalidAddressError {
	return &InvalidAddressError{UserID: userID}
}

// TemplateNotFoundError indicates the template named by a route configuration
// is absent. A deployment/config bug, not user error.
type TemplateNotFoundError struct {
	Template string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("template '%s' not found", e.Template)
}

// NewTemplateNotFoundError creates a new TemplateNotFoundError.
func NewTemplateNotFoundError(template string) *TemplateNotFoundError {
	return &TemplateNotFoundError{Template: template}
}

// RenderError indicates a template failed to render, typically because of an
// unresolved variable. Rendering is strict: an undefined variable is an
// error, never a silent blank.
type RenderError struct {
	Template string
	Message  string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering template '%s': %s", e.Template, e.Message)
}

// NewRenderError creates a new RenderError.
func NewRenderError(template, message string) *RenderError {
	return &RenderError{Template: template, Message: message}
}

// ProviderError indicates an external delivery provider failure.
type ProviderError struct {
	Provider string
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error: %s", e.Provider, e.Message)
}

// NewProviderError creates a new ProviderError.
func NewProviderError(provider, message string) *ProviderError {
	return &ProviderError{Provider: provider, Message: message}
}
