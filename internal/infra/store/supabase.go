package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"routecast/internal/domain/notification"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

const (
	notificationsTable = "notifications"
	usersTable         = "users"
	templatesTable     = "notification_templates"
	preferencesTable   = "user_route_preferences"
)

var (
	_ notification.NotificationStore = (*SupabaseStore)(nil)
	_ notification.UserStore         = (*SupabaseStore)(nil)
	_ notification.TemplateStore     = (*SupabaseStore)(nil)
	_ notification.PreferenceStore   = (*SupabaseStore)(nil)
)

// SupabaseStore implements the persistence contracts using the Supabase Go
// SDK. A batch insert is a single PostgREST statement, which makes it the
// all-or-nothing commit unit for one dispatch.
type SupabaseStore struct {
	client *supa.Client
}

// NewSupabaseStore creates a new Supabase-backed store.
func NewSupabaseStore(supabaseURL, serviceKey string) (*SupabaseStore, error) {
	client, err := supa.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

// notificationRow is the internal representation for PostgREST insert/update.
type notificationRow struct {
	ID           string         `json:"id,omitempty"`
	Title        string         `json:"title"`
	Message      string         `json:"message"`
	EmailHTML    *string        `json:"email_html,omitempty"`
	EmailText    *string        `json:"email_text,omitempty"`
	Route        string         `json:"route"`
	RecipientID  string         `json:"recipient_id"`
	TemplateID   *string        `json:"template_id,omitempty"`
	TemplateData map[string]any `json:"template_data,omitempty"`
	Channels     []string       `json:"channels"`
	Status       string         `json:"status"`
	ProviderID   *string        `json:"provider_id,omitempty"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	CreatedAt    string         `json:"created_at,omitempty"`
	UpdatedAt    string         `json:"updated_at,omitempty"`
	SentAt       *string        `json:"sent_at,omitempty"`
	DeliveredAt  *string        `json:"delivered_at,omitempty"`
}

// CreateBatch inserts all records in a single statement. PostgREST executes
// an array insert as one statement, so either every row commits or none do.
func (s *SupabaseStore) CreateBatch(ctx context.Context, notifications []*notification.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	rows := make([]notificationRow, len(notifications))
	for i, n := range notifications {
		rows[i] = notificationToRow(n)
	}

	data, _, err := s.client.From(notificationsTable).Insert(rows, false, "", "representation", "").Execute()
	if err != nil {
		return fmt.Errorf("inserting notifications: %w", err)
	}

	var created []notificationRow
	if err := json.Unmarshal(data, &created); err != nil {
		return fmt.Errorf("parsing insert response: %w", err)
	}
	if len(created) != len(notifications) {
		return fmt.Errorf("insert returned %d rows, expected %d", len(created), len(notifications))
	}

	for i := range created {
		notifications[i].ID = created[i].ID
		if created[i].CreatedAt != "" {
			if t, err := time.Parse(time.RFC3339Nano, created[i].CreatedAt); err == nil {
				notifications[i].CreatedAt = t
			}
		}
	}

	return nil
}

// GetByID retrieves a notification by its ID. Returns nil, nil if absent.
func (s *SupabaseStore) GetByID(ctx context.Context, id string) (*notification.Notification, error) {
	data, _, err := s.client.From(notificationsTable).Select("*", "exact", false).Eq("id", id).Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching notification: %w", err)
	}

	var rows []notificationRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing notification: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	return rowToNotification(&rows[0]), nil
}

// UpdateStatus updates the status of a notification after delivery.
func (s *SupabaseStore) UpdateStatus(ctx context.Context, id string, status notification.Status, providerID string, errMsg string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	update := map[string]any{
		"status":     string(status),
		"updated_at": now,
	}

	if providerID != "" {
		update["provider_id"] = providerID
	}
	if errMsg != "" {
		update["error_message"] = errMsg
	}

	switch status {
	case notification.StatusSent:
		update["sent_at"] = now
	case notification.StatusDelivered:
		update["sent_at"] = now
		update["delivered_at"] = now
	}

	_, _, err := s.client.From(notificationsTable).Update(update, "", "").Eq("id", id).Execute()
	if err != nil {
		return fmt.Errorf("updating notification status: %w", err)
	}

	return nil
}

// UpdateWebhookStatus updates the status of a notification based on the
// provider message id.
func (s *SupabaseStore) UpdateWebhookStatus(ctx context.Context, providerID string, status notification.Status) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	update := map[string]any{
		"status":     string(status),
		"updated_at": now,
	}

	if status == notification.StatusDelivered {
		update["delivered_at"] = now
	}

	_, _, err := s.client.From(notificationsTable).Update(update, "", "").Eq("provider_id", providerID).Execute()
	if err != nil {
		return fmt.Errorf("updating webhook status: %w", err)
	}

	return nil
}

// List retrieves notifications with pagination and filtering.
func (s *SupabaseStore) List(ctx context.Context, filter notification.ListFilter) ([]*notification.Notification, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	offset := (filter.Page - 1) * filter.PageSize

	query := s.client.From(notificationsTable).Select("*", "exact", false)

	if filter.Status != "" {
		query = query.Eq("status", filter.Status)
	}
	if filter.UserID != "" {
		query = query.Eq("recipient_id", filter.UserID)
	}
	if filter.Route != "" {
		query = query.Eq("route", filter.Route)
	}
	if filter.Channel != "" {
		query = query.Contains("channels", []string{filter.Channel})
	}

	query = query.Order("created_at", &postgrest.OrderOpts{Ascending: false})
	query = query.Range(offset, offset+filter.PageSize-1, "")

	data, count, err := query.Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("listing notifications: %w", err)
	}

	var rows []notificationRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, 0, fmt.Errorf("parsing notification list: %w", err)
	}

	notifications := make([]*notification.Notification, len(rows))
	for i, row := range rows {
		notifications[i] = rowToNotification(&row)
	}

	return notifications, int(count), nil
}

// ListExpiredIDs returns ids of notifications created before the cutoff, up
// to limit.
func (s *SupabaseStore) ListExpiredIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 500
	}

	threshold := cutoff.UTC().Format(time.RFC3339Nano)

	query := s.client.From(notificationsTable).
		Select("id", "exact", false).
		Lt("created_at", threshold).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		Range(0, limit-1, "")

	data, _, err := query.Execute()
	if err != nil {
		return nil, fmt.Errorf("listing expired notifications: %w", err)
	}

	var rows []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing expired notifications: %w", err)
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	return ids, nil
}

// DeleteByIDs removes the given notifications.
func (s *SupabaseStore) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, _, err := s.client.From(notificationsTable).Delete("", "").In("id", ids).Execute()
	if err != nil {
		return fmt.Errorf("deleting notifications: %w", err)
	}
	return nil
}

// userRow is the internal representation of a mirrored directory user.
type userRow struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	DeviceToken *string `json:"device_token,omitempty"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

// UpsertUsers inserts or refreshes directory-resolved users by id.
func (s *SupabaseStore) UpsertUsers(ctx context.Context, users []notification.User) error {
	if len(users) == 0 {
		return nil
	}

	rows := make([]userRow, len(users))
	for i, u := range users {
		rows[i] = userRow{
			ID:    u.ID,
			Name:  u.Name,
			Email: u.Email,
		}
		if u.PhoneNumber != "" {
			rows[i].PhoneNumber = &u.PhoneNumber
		}
		if u.DeviceToken != "" {
			rows[i].DeviceToken = &u.DeviceToken
		}
	}

	_, _, err := s.client.From(usersTable).Upsert(rows, "id", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("upserting users: %w", err)
	}
	return nil
}

// GetUser retrieves a user by id. Returns nil, nil if absent.
func (s *SupabaseStore) GetUser(ctx context.Context, id string) (*notification.User, error) {
	data, _, err := s.client.From(usersTable).Select("*", "exact", false).Eq("id", id).Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching user: %w", err)
	}

	var rows []userRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing user: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	user := &notification.User{
		ID:    row.ID,
		Name:  row.Name,
		Email: row.Email,
	}
	if row.PhoneNumber != nil {
		user.PhoneNumber = *row.PhoneNumber
	}
	if row.DeviceToken != nil {
		user.DeviceToken = *row.DeviceToken
	}
	if row.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, row.CreatedAt); err == nil {
			user.CreatedAt = t
		}
	}
	return user, nil
}

// templateRow is the internal representation of a notification template.
type templateRow struct {
	Name      string  `json:"name"`
	Subject   string  `json:"subject"`
	PushBody  string  `json:"push_body"`
	EmailBody string  `json:"email_body"`
	CreatedAt string  `json:"created_at,omitempty"`
	UpdatedAt *string `json:"updated_at,omitempty"`
}

// GetTemplate retrieves a template by name. Returns nil, nil if absent.
func (s *SupabaseStore) GetTemplate(ctx context.Context, name string) (*notification.NotificationTemplate, error) {
	data, _, err := s.client.From(templatesTable).Select("*", "exact", false).Eq("name", name).Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching template: %w", err)
	}

	var rows []templateRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	tmpl := &notification.NotificationTemplate{
		Name:      row.Name,
		Subject:   row.Subject,
		PushBody:  row.PushBody,
		EmailBody: row.EmailBody,
	}
	if row.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, row.CreatedAt); err == nil {
			tmpl.CreatedAt = t
		}
	}
	if row.UpdatedAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *row.UpdatedAt); err == nil {
			tmpl.UpdatedAt = &t
		}
	}
	return tmpl, nil
}

// UpsertTemplate inserts or replaces a template by name.
func (s *SupabaseStore) UpsertTemplate(ctx context.Context, tmpl *notification.NotificationTemplate) error {
	row := templateRow{
		Name:      tmpl.Name,
		Subject:   tmpl.Subject,
		PushBody:  tmpl.PushBody,
		EmailBody: tmpl.EmailBody,
	}

	_, _, err := s.client.From(templatesTable).Upsert(row, "name", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("upserting template: %w", err)
	}
	return nil
}

// ListDisabled returns the subset of userIDs that disabled the route.
// Preferences are unique on (user_id, route).
func (s *SupabaseStore) ListDisabled(ctx context.Context, route string, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	data, _, err := s.client.From(preferencesTable).
		Select("user_id", "exact", false).
		Eq("route", route).
		Eq("enabled", "false").
		In("user_id", userIDs).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("listing disabled preferences: %w", err)
	}

	var rows []struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing preferences: %w", err)
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.UserID
	}
	return ids, nil
}

// notificationToRow converts a Notification to its insert representation.
func notificationToRow(n *notification.Notification) notificationRow {
	row := notificationRow{
		Title:       n.Title,
		Message:     n.Message,
		Route:       n.Route,
		RecipientID: n.RecipientID,
		Status:      string(n.Status),
		Channels:    make([]string, len(n.Channels)),
	}
	for i, c := range n.Channels {
		row.Channels[i] = string(c)
	}

	if n.EmailHTML != "" {
		row.EmailHTML = &n.EmailHTML
	}
	if n.EmailText != "" {
		row.EmailText = &n.EmailText
	}
	if n.TemplateID != "" {
		row.TemplateID = &n.TemplateID
	}
	if n.TemplateData != nil {
		row.TemplateData = n.TemplateData
	}

	return row
}

// rowToNotification converts a notificationRow to a Notification.
func rowToNotification(row *notificationRow) *notification.Notification {
	n := &notification.Notification{
		ID:          row.ID,
		Title:       row.Title,
		Message:     row.Message,
		Route:       row.Route,
		RecipientID: row.RecipientID,
		Status:      notification.Status(row.Status),
	}

	n.Channels = make([]notification.Channel, len(row.Channels))
	for i, c := range row.Channels {
		n.Channels[i] = notification.Channel(c)
	}

	if row.EmailHTML != nil {
		n.EmailHTML = *row.EmailHTML
	}
	if row.EmailText != nil {
		n.EmailText = *row.EmailText
	}
	if row.TemplateID != nil {
		n.TemplateID = *row.TemplateID
	}
	if row.TemplateData != nil {
		n.TemplateData = row.TemplateData
	}
	if row.ProviderID != nil {
		n.ProviderID = *row.ProviderID
	}
	if row.ErrorMessage != nil {
		n.ErrorMessage = *row.ErrorMessage
	}

	if row.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, row.CreatedAt); err == nil {
			n.CreatedAt = t
		}
	}
	if row.UpdatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, row.UpdatedAt); err == nil {
			n.UpdatedAt = t
		}
	}
	if row.SentAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *row.SentAt); err == nil {
			n.SentAt = &t
		}
	}
	if row.DeliveredAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *row.DeliveredAt); err == nil {
			n.DeliveredAt = &t
		}
	}

	return n
}
