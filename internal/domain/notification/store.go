package notification

import (
	"context"
	"time"
)

// NotificationStore defines the contract for persisting notification records.
// Implementations live in infra/store/ (e.g., Supabase).
type NotificationStore interface {
	// CreateBatch inserts all records in a single statement. Either every
	// row commits or none do; partial persistence of a dispatch is not
	// acceptable.
	CreateBatch(ctx context.Context, notifications []*Notification) error

	// GetByID retrieves a notification by its ID. Returns nil, nil if no
	// record is found.
	GetByID(ctx context.Context, id string) (*Notification, error)

	// UpdateStatus updates the status of a notification after a delivery
	// attempt.
	UpdateStatus(ctx context.Context, id string, status Status, providerID string, errMsg string) error

	// UpdateWebhookStatus updates the status of a notification based on the
	// provider's message ID (for delivery webhooks).
	UpdateWebhookStatus(ctx context.Context, providerID string, status Status) error

	// List retrieves notifications with pagination and filtering.
	List(ctx context.Context, filter ListFilter) ([]*Notification, int, error)

	// ListExpiredIDs returns ids of notifications created before the cutoff,
	// up to limit. Used by the retention cleaner in batches.
	ListExpiredIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error)

	// DeleteByIDs removes the given notifications.
	DeleteByIDs(ctx context.Context, ids []string) error
}

// UserStore defines the contract for the mirrored user records that
// notifications reference by id.
type UserStore interface {
	// UpsertUsers inserts or refreshes directory-resolved users.
	UpsertUsers(ctx context.Context, users []User) error

	// GetUser retrieves a user by id. Returns nil, nil if absent.
	GetUser(ctx context.Context, id string) (*User, error)
}

// TemplateStore defines the contract for notification templates.
type TemplateStore interface {
	// GetTemplate retrieves a template by name. Returns nil, nil if absent.
	GetTemplate(ctx context.Context, name string) (*NotificationTemplate, error)

	// UpsertTemplate inserts or replaces a template by name.
	UpsertTemplate(ctx context.Context, tmpl *NotificationTemplate) error
}

// PreferenceStore defines the contract for per-user route preferences.
// The dispatcher treats this collaborator as optional: when it is absent or
// failing, recipients are notified (fail open).
type PreferenceStore interface {
	// ListDisabled returns the subset of userIDs that disabled the route.
	ListDisabled(ctx context.Context, route string, userIDs []string) ([]string, error)
}
