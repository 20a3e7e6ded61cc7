package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"routecast/internal/common"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Enqueuer defines the contract for enqueuing delivery tasks.
// This allows the dispatcher to be decoupled from the specific queue
// implementation.
type Enqueuer interface {
	EnqueueDeliverNotification(notificationID string) error
}

// DispatchLimiter guards against producer event storms on a single route.
type DispatchLimiter interface {
	// Allow reports whether another dispatch for the route may proceed.
	Allow(ctx context.Context, route string) (bool, error)
}

// Dispatcher orchestrates a dispatch: registry lookup → concurrent
// recipient/data resolution → preference filtering → rendering → batch
// persistence → delivery enqueue. Persistence always completes before any
// channel attempt; channel failures never roll it back.
type Dispatcher struct {
	registry      *Registry
	renderer      TemplateRenderer
	templates     TemplateStore
	notifications NotificationStore
	users         UserStore
	prefs         PreferenceStore // optional; nil means notify everyone
	enqueuer      Enqueuer
	limiter       DispatchLimiter // optional
}

// NewDispatcher creates a new dispatcher. prefs and limiter may be nil.
func NewDispatcher(
	registry *Registry,
	renderer TemplateRenderer,
	templates TemplateStore,
	notifications NotificationStore,
	users UserStore,
	prefs PreferenceStore,
	enqueuer Enqueuer,
	limiter DispatchLimiter,
) *Dispatcher {
	return &Dispatcher{
		registry:      registry,
		renderer:      renderer,
		templates:     templates,
		notifications: notifications,
		users:         users,
		prefs:         prefs,
		enqueuer:      enqueuer,
		limiter:       limiter,
	}
}

// Dispatch processes one notification request end to end and returns the
// created notification ids plus the resolved recipient list.
func (d *Dispatcher) Dispatch(ctx context.Context, req *DispatchRequest) (*DispatchResponse, error) {
	cfg, resolver, err := d.registry.Lookup(req.Route)
	if err != nil {
		return nil, err
	}

	if req.ObjectKind != "" && !strings.EqualFold(req.ObjectKind, cfg.ObjectKind) {
		return nil, common.NewValidationError(fmt.Sprintf(
			"route %s targets object kind %s, not %s", cfg.Name, cfg.ObjectKind, req.ObjectKind))
	}

	// Route-level dispatch limit. Fail open: a limiter outage must not block
	// notifications.
	if d.limiter != nil {
		allowed, err := d.limiter.Allow(ctx, cfg.Name)
		if err != nil {
			slog.Error("dispatch limit check failed, proceeding without limit", "route", cfg.Name, "error", err)
		} else if !allowed {
			return nil, common.NewValidationError(fmt.Sprintf("dispatch limit exceeded for route: %s", cfg.Name))
		}
	}

	// Recipients and template data have no dependency on each other, so the
	// two resolutions run concurrently.
	var (
		recipients []User
		data       map[string]any
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recipients, err = resolver.ResolveRecipients(gctx, req)
		if err != nil {
			return fmt.Errorf("resolving recipients: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		data, err = resolver.ResolveTemplateData(gctx, req)
		if err != nil {
			return fmt.Errorf("resolving template data: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	recipients = d.filterByPreference(ctx, cfg.Name, recipients)

	content, err := d.renderContent(ctx, req, cfg, data)
	if err != nil {
		return nil, err
	}

	channels := req.Channels
	if len(channels) == 0 {
		channels = DefaultChannels
	}

	resp := &DispatchResponse{
		ID:         uuid.New().String(),
		Title:      content.Title,
		Message:    content.PushBody,
		Route:      cfg.Name,
		CreatedAt:  time.Now().UTC(),
		Recipients: recipients,
	}

	if len(recipients) == 0 {
		slog.Warn("dispatch resolved no recipients", "route", cfg.Name)
		return resp, nil
	}

	// Mirror resolved users so notification queries can join recipients.
	if err := d.users.UpsertUsers(ctx, recipients); err != nil {
		return nil, fmt.Errorf("upserting recipients: %w", err)
	}

	notifications := make([]*Notification, len(recipients))
	for i, user := range recipients {
		notifications[i] = &Notification{
			Title:        content.Title,
			Message:      content.PushBody,
			EmailHTML:    content.EmailHTML,
			EmailText:    content.EmailText,
			Route:        cfg.Name,
			RecipientID:  user.ID,
			TemplateID:   cfg.TemplateName,
			TemplateData: data,
			Channels:     channels,
			Status:       StatusPending,
		}
	}

	// One statement, all rows or none.
	if err := d.notifications.CreateBatch(ctx, notifications); err != nil {
		return nil, fmt.Errorf("persisting notifications: %w", err)
	}

	// Rows are committed; from here on delivery failures are recorded on the
	// notification, never surfaced as a dispatch failure.
	ids := make([]string, 0, len(notifications))
	for _, n := range notifications {
		ids = append(ids, n.ID)
		if err := d.enqueuer.EnqueueDeliverNotification(n.ID); err != nil {
			_ = d.notifications.UpdateStatus(ctx, n.ID, StatusFailed, "", "failed to enqueue: "+err.Error())
			slog.Error("enqueue delivery failed", "notification_id", n.ID, "route", cfg.Name, "error", err)
		}
	}
	resp.NotificationIDs = ids

	slog.Info("dispatch completed",
		"route", cfg.Name,
		"recipients", len(recipients),
		"notifications", len(ids),
		"channels", channels,
	)

	return resp, nil
}

// GetNotification retrieves a notification by ID with its recipient joined.
func (d *Dispatcher) GetNotification(ctx context.Context, id string) (*Notification, error) {
	n, err := d.notifications.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching notification: %w", err)
	}
	if n == nil {
		return nil, common.NewNotFoundError("notification", id)
	}

	if user, err := d.users.GetUser(ctx, n.RecipientID); err == nil && user != nil {
		n.Recipient = user
	}
	return n, nil
}

// ListNotifications retrieves notifications with pagination and filtering.
func (d *Dispatcher) ListNotifications(ctx context.Context, filter ListFilter) (*ListResponse, error) {
	notifications, total, err := d.notifications.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	return &ListResponse{
		Notifications: notifications,
		Total:         total,
		Page:          filter.Page,
		PageSize:      filter.PageSize,
	}, nil
}

// HandleWebhookEvent records a delivery status update from a provider
// webhook against the notification carrying that provider message id.
func (d *Dispatcher) HandleWebhookEvent(ctx context.Context, providerID string, status Status) error {
	if providerID == "" {
		return common.NewValidationError("provider_id is required")
	}

	if err := d.notifications.UpdateWebhookStatus(ctx, providerID, status); err != nil {
		return fmt.Errorf("updating webhook status: %w", err)
	}

	slog.Info("webhook status updated", "provider_id", providerID, "status", status)
	return nil
}

// Routes returns all registered route configurations.
func (d *Dispatcher) Routes() []RouteConfig {
	return d.registry.Configs()
}

// filterByPreference drops recipients who disabled the route. A missing or
// failing preference store fails open: recipients stay notified.
func (d *Dispatcher) filterByPreference(ctx context.Context, route string, recipients []User) []User {
	if d.prefs == nil || len(recipients) == 0 {
		return recipients
	}

	ids := make([]string, len(recipients))
	for i, u := range recipients {
		ids[i] = u.ID
	}

	disabled, err := d.prefs.ListDisabled(ctx, route, ids)
	if err != nil {
		slog.Error("preference lookup failed, notifying all recipients", "route", route, "error", err)
		return recipients
	}
	if len(disabled) == 0 {
		return recipients
	}

	disabledSet := make(map[string]bool, len(disabled))
	for _, id := range disabled {
		disabledSet[id] = true
	}

	kept := recipients[:0]
	for _, u := range recipients {
		if disabledSet[u.ID] {
			slog.Info("recipient disabled route, skipping", "route", route, "user_id", u.ID)
			continue
		}
		kept = append(kept, u)
	}
	return kept
}

// renderContent renders the route's template once, shared across all
// recipients. Request title/message override the rendered values.
func (d *Dispatcher) renderContent(ctx context.Context, req *DispatchRequest, cfg RouteConfig, data map[string]any) (*RenderedContent, error) {
	tmpl, err := d.templates.GetTemplate(ctx, cfg.TemplateName)
	if err != nil {
		return nil, fmt.Errorf("loading template %s: %w", cfg.TemplateName, err)
	}
	if tmpl == nil {
		return nil, common.NewTemplateNotFoundError(cfg.TemplateName)
	}

	content, err := d.renderer.Render(tmpl, data)
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		content.Title = req.Title
	}
	if req.Message != "" {
		content.PushBody = req.Message
	}
	return content, nil
}
