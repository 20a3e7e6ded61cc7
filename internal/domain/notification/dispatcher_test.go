package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"routecast/internal/common"
)

type dispatcherFixture struct {
	dispatcher *Dispatcher
	store      *memNotificationStore
	users      *memUserStore
	enqueuer   *fakeEnqueuer
	prefs      *fakePreferenceStore
}

func newDispatcherFixture(t *testing.T, resolver Resolver) *dispatcherFixture {
	t.Helper()

	registry, err := NewRegistry([]Registration{{
		Config: RouteConfig{
			Name:         resolver.Route(),
			ObjectKind:   "task",
			TemplateName: "task_tmpl",
		},
		Resolver: resolver,
	}})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	f := &dispatcherFixture{
		store:    newMemNotificationStore(),
		users:    newMemUserStore(),
		enqueuer: &fakeEnqueuer{},
		prefs:    &fakePreferenceStore{},
	}
	templates := newMemTemplateStore(&NotificationTemplate{
		Name:     "task_tmpl",
		Subject:  "New task",
		PushBody: "You have a new task",
	})

	f.dispatcher = NewDispatcher(registry, &stubRenderer{}, templates, f.store, f.users, f.prefs, f.enqueuer, nil)
	return f
}

func user(id string) User {
	return User{ID: id, Name: "User " + id, Email: id + "@example.com"}
}

func TestDispatchSingleRecipient(t *testing.T) {
	resolver := &fakeResolver{
		route:      "TaskCreated",
		recipients: []User{user("p1")},
		data:       map[string]any{"TaskName": "Review"},
	}
	f := newDispatcherFixture(t, resolver)

	resp, err := f.dispatcher.Dispatch(context.Background(), &DispatchRequest{
		Route:      "TaskCreated",
		Parameters: json.RawMessage(`{"taskId":"t1"}`),
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(resp.NotificationIDs) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(resp.NotificationIDs))
	}
	if len(resp.Recipients) != 1 || resp.Recipients[0].ID != "p1" {
		t.Fatalf("unexpected recipients: %+v", resp.Recipients)
	}

	n, err := f.store.GetByID(context.Background(), resp.NotificationIDs[0])
	if err != nil || n == nil {
		t.Fatalf("notification not persisted: %v", err)
	}
	if n.Status != StatusPending {
		t.Fatalf("status %q, want pending", n.Status)
	}
	if n.RecipientID != "p1" {
		t.Fatalf("recipient %q, want p1", n.RecipientID)
	}
	if len(f.enqueuer.ids) != 1 {
		t.Fatalf("expected 1 enqueued task, got %d", len(f.enqueuer.ids))
	}
}

func TestDispatchFanOutSharesContent(t *testing.T) {
	// Performer plus two deputies: one row each, identical rendered content.
	resolver := &fakeResolver{
		route:      "TaskCreated",
		recipients: []User{user("p1"), user("d1"), user("d2")},
		data:       map[string]any{"TaskName": "Review"},
	}
	f := newDispatcherFixture(t, resolver)

	resp, err := f.dispatcher.Dispatch(context.Background(), &DispatchRequest{Route: "TaskCreated"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(resp.NotificationIDs) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(resp.NotificationIDs))
	}

	var titles, bodies []string
	for _, id := range resp.NotificationIDs {
		n, _ := f.store.GetByID(context.Background(), id)
		titles = append(titles, n.Title)
		bodies = append(bodies, n.Message)
	}
	for i := 1; i < len(titles); i++ {
		if titles[i] != titles[0] || bodies[i] != bodies[0] {
			t.Fatalf("content differs across recipients: %v / %v", titles, bodies)
		}
	}
}

func TestDispatchUnknownRoute(t *testing.T) {
	f := newDispatcherFixture(t, &fakeResolver{route: "TaskCreated"})

	_, err := f.dispatcher.Dispatch(context.Background(), &DispatchRequest{Route: "NoSuchRoute"})
	var notFound *common.RouteNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected RouteNotFoundError, got %v", err)
	}
	if f.store.count() != 0 {
		t.Fatal("no notifications should be persisted for an unknown route")
	}
}

func TestDispatchMissingParameter(t *testing.T) {
	resolver := &fakeResolver{
		route:         "TaskCreated",
		recipientsErr: common.NewMissingParameterError("TaskCreated", "taskId"),
		dataErr:       common.NewMissingParameterError("TaskCreated", "taskId"),
	}
	f := newDispatcherFixture(t, resolver)

	_, err := f.dispatcher.Dispatch(context.Background(), &DispatchRequest{Route: "TaskCreated"})
	var missing *common.MissingParameterError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingParameterError, got %v", err)
	}
	if f.store.count() != 0 {
		t.Fatal("no notifications should be persisted when a parameter is missing")
	}
}

func TestDispatchObjectKindMismatch(t *testing.T) {
	f := newDispatcherFixture(t, &fakeResolver{route: "TaskCreated", recipients: []User{user("p1")}})

	_, err := f.dispatcher.Dispatch(context.Background(), &DispatchRequest{
		Route:      "TaskCreated",
		ObjectKind: "document",
	})
	var validation *common.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestDispatchPreferenceFiltering(t *testing.T) {
	resolver := &fakeResolver{
		route:      "TaskCreated",
		recipients: []User{user("p1"), user("d1")},
	}
	f := newDispatcherFixture(t, resolver)
	f.prefs.disabled = map[string][]string{"TaskCreated": {"d1"}}

	resp, err := f.dispatcher.Dispatch(context.Background(), &DispatchRequest{Route: "TaskCreated"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	// One row per preference-passing recipient.
	if len(resp.NotificationIDs) != 1 {
		t.Fatalf("expected 1 notification after filtering, got %d", len(resp.NotificationIDs))
	}
	if resp.Recipients[0].ID != "p1" {
		t.Fatalf("expected p1 to remain, got %+v", resp.Recipients)
	}
}

func TestDispatchPreferenceStoreFailsOpen(t *testing.T) {
	resolver := &fakeResolver{
		route:      "TaskCreated",
		recipients: []User{user("p1"), user("d1")},
	}
	f := newDispatcherFixture(t, resolver)
	f.prefs.err = errors.New("preference store down")

	resp, err := f.dispatcher.Dispatch(context.Background(), &DispatchRequest{Route: "TaskCreated"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(resp.NotificationIDs) != 2 {
		t.Fatalf("preference outage must not drop recipients, got %d rows", len(resp.NotificationIDs))
	}
}

func TestDispatchTitleMessageOverride(t *testing.T) {
	resolver := &fakeResolver{route: "TaskCreated", recipients: []User{user("p1")}}
	f := newDispatcherFixture(t, resolver)

	resp, err := f.dispatcher.Dispatch(context.Background(), &DispatchRequest{
		Route:   "TaskCreated",
		Title:   "Custom title",
		Message: "Custom body",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	n, _ := f.store.GetByID(context.Background(), resp.NotificationIDs[0])
	if n.Title != "Custom title" || n.Message != "Custom body" {
		t.Fatalf("override not applied: %q / %q", n.Title, n.Message)
	}
}

func TestDispatchTemplateMissing(t *testing.T) {
	resolver := &fakeResolver{route: "TaskCreated", recipients: []User{user("p1")}}

	registry, err := NewRegistry([]Registration{{
		Config:   RouteConfig{Name: "TaskCreated", ObjectKind: "task", TemplateName: "absent"},
		Resolver: resolver,
	}})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	store := newMemNotificationStore()
	d := NewDispatcher(registry, &stubRenderer{}, newMemTemplateStore(), store, newMemUserStore(), nil, &fakeEnqueuer{}, nil)

	_, err = d.Dispatch(context.Background(), &DispatchRequest{Route: "TaskCreated"})
	var tmplErr *common.TemplateNotFoundError
	if !errors.As(err, &tmplErr) {
		t.Fatalf("expected TemplateNotFoundError, got %v", err)
	}
	if store.count() != 0 {
		t.Fatal("no notifications should be persisted on a template error")
	}
}

func TestDispatchEnqueueFailureMarksRow(t *testing.T) {
	resolver := &fakeResolver{route: "TaskCreated", recipients: []User{user("p1")}}
	f := newDispatcherFixture(t, resolver)
	f.enqueuer.err = errors.New("redis down")

	resp, err := f.dispatcher.Dispatch(context.Background(), &DispatchRequest{Route: "TaskCreated"})
	if err != nil {
		t.Fatalf("Dispatch must not fail after rows commit: %v", err)
	}

	// Row exists regardless of delivery; enqueue failure is recorded on it.
	n, _ := f.store.GetByID(context.Background(), resp.NotificationIDs[0])
	if n == nil {
		t.Fatal("notification must persist despite enqueue failure")
	}
	if n.Status != StatusFailed {
		t.Fatalf("status %q, want failed", n.Status)
	}
}

func TestDispatchNoRecipients(t *testing.T) {
	resolver := &fakeResolver{route: "TaskCreated"}
	f := newDispatcherFixture(t, resolver)

	resp, err := f.dispatcher.Dispatch(context.Background(), &DispatchRequest{Route: "TaskCreated"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(resp.NotificationIDs) != 0 || f.store.count() != 0 {
		t.Fatal("no rows expected for an empty recipient set")
	}
}

func TestWebhookStatusUpdate(t *testing.T) {
	resolver := &fakeResolver{route: "TaskCreated", recipients: []User{user("p1")}}
	f := newDispatcherFixture(t, resolver)

	resp, err := f.dispatcher.Dispatch(context.Background(), &DispatchRequest{Route: "TaskCreated"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	id := resp.NotificationIDs[0]
	if err := f.store.UpdateStatus(context.Background(), id, StatusSent, "msg-1", ""); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	if err := f.dispatcher.HandleWebhookEvent(context.Background(), "msg-1", StatusDelivered); err != nil {
		t.Fatalf("HandleWebhookEvent: %v", err)
	}

	n, _ := f.store.GetByID(context.Background(), id)
	if n.Status != StatusDelivered {
		t.Fatalf("status %q, want delivered", n.Status)
	}
}
