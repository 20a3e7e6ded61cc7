package notification

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Channel represents a notification delivery channel.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
)

// DefaultChannels is used when a dispatch request does not name channels.
var DefaultChannels = []Channel{ChannelPush, ChannelEmail}

// ParseChannels parses a comma-separated channel list from the query string.
// An empty input yields the default channel set.
func ParseChannels(raw string) ([]Channel, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultChannels, nil
	}

	var channels []Channel
	for _, part := range strings.Split(raw, ",") {
		switch c := Channel(strings.ToLower(strings.TrimSpace(part))); c {
		case ChannelPush, ChannelEmail:
			channels = append(channels, c)
		default:
			return nil, fmt.Errorf("unknown channel: %s", part)
		}
	}
	return channels, nil
}

// Status represents the delivery status of a notification.
type Status string

const (
	// StatusPending is the initial state, set at persistence time before any
	// channel attempt.
	StatusPending Status = "pending"
	// StatusSent means a channel attempt was made but delivery confirmation
	// is channel-dependent (e.g. email accepted by the provider).
	StatusSent Status = "sent"
	// StatusDelivered means at least one channel confirmed delivery.
	StatusDelivered Status = "delivered"
	// StatusFailed means all attempted channels failed.
	StatusFailed Status = "failed"
	// StatusBounced is reported by the email provider webhook.
	StatusBounced Status = "bounced"
)

// User is the identity a notification is addressed to. Users originate in
// the employee directory and are mirrored into the store on dispatch.
type User struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	DeviceToken string    `json:"device_token,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// DispatchRequest is an inbound request to notify about a business event.
// Parameters is an opaque blob interpreted only by the matching resolver.
type DispatchRequest struct {
	Route      string          `json:"route"`
	ObjectKind string          `json:"object_kind,omitempty"`
	Title      string          `json:"title,omitempty"`
	Message    string          `json:"message,omitempty"`
	Channels   []Channel       `json:"channels,omitempty"`
	Parameters json.RawMessage `json:"parameters"`
}

// DispatchResponse reports what a dispatch created.
type DispatchResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Message         string    `json:"message"`
	Route           string    `json:"route"`
	CreatedAt       time.Time `json:"created_at"`
	Recipients      []User    `json:"recipients"`
	NotificationIDs []string  `json:"created_notification_ids"`
}

// Notification is the durable record of one (request, recipient) pair.
// Immutable except for status fields, which only delivery outcome recording
// mutates.
type Notification struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Message      string         `json:"message"`
	EmailHTML    string         `json:"email_html,omitempty"`
	EmailText    string         `json:"email_text,omitempty"`
	Route        string         `json:"route"`
	RecipientID  string         `json:"recipient_id"`
	Recipient    *User          `json:"recipient,omitempty"`
	TemplateID   string         `json:"template_id,omitempty"`
	TemplateData map[string]any `json:"template_data,omitempty"`
	Channels     []Channel      `json:"channels"`
	Status       Status         `json:"status"`
	ProviderID   string         `json:"provider_id,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	SentAt       *time.Time     `json:"sent_at,omitempty"`
	DeliveredAt  *time.Time     `json:"delivered_at,omitempty"`
}

// NotificationTemplate holds the per-channel content for one template name.
// Seeded at startup and referenced by name from route configuration.
type NotificationTemplate struct {
	Name      string     `json:"name"`
	Subject   string     `json:"subject"`
	PushBody  string     `json:"push_body"`
	EmailBody string     `json:"email_body"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// UserRoutePreference gates whether a user receives a given route's
// notifications. Unique on (user id, route).
type UserRoutePreference struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Route   string `json:"route"`
	Enabled bool   `json:"enabled"`
}

// ListFilter defines pagination and filtering options for listing notifications.
type ListFilter struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Status   string `form:"status"`
	UserID   string `form:"user_id"`
	Route    string `form:"route"`
	Channel  string `form:"channel"`
}

// ListResponse wraps a paginated list of notifications.
type ListResponse struct {
	Notifications []*Notification `json:"notifications"`
	Total         int             `json:"total"`
	Page          int             `json:"page"`
	PageSize      int             `json:"page_size"`
}
