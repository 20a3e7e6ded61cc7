package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"routecast/internal/common"
	"routecast/internal/domain/directory"
	"routecast/internal/domain/notification"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})))
	m.Run()
}

// fakeUpstream serves canned employees, deputies, and tasks.
type fakeUpstream struct {
	employees map[string]directory.Employee
	deputies  map[string][]directory.Employee
	tasks     map[string]*directory.Task
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		employees: make(map[string]directory.Employee),
		deputies:  make(map[string][]directory.Employee),
		tasks:     make(map[string]*directory.Task),
	}
}

func (f *fakeUpstream) addEmployee(id, name string, deputies ...directory.Employee) {
	f.employees[id] = directory.Employee{ID: id, Name: name, Email: id + "@example.com"}
	f.deputies[id] = deputies
}

func (f *fakeUpstream) EmployeesByID(ctx context.Context, ids []string) ([]directory.Employee, error) {
	var out []directory.Employee
	for _, id := range ids {
		if e, ok := f.employees[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeUpstream) DeputiesFor(ctx context.Context, ids []string) ([]directory.DeputyRelation, error) {
	var out []directory.DeputyRelation
	for _, id := range ids {
		for _, dep := range f.deputies[id] {
			out = append(out, directory.DeputyRelation{PrincipalID: id, Deputy: dep})
		}
	}
	return out, nil
}

func (f *fakeUpstream) TaskByID(ctx context.Context, id string) (*directory.Task, error) {
	return f.tasks[id], nil
}

func taskRequest(route, taskID string) *notification.DispatchRequest {
	req := &notification.DispatchRequest{Route: route}
	if taskID != "" {
		req.Parameters = json.RawMessage(`{"taskId":"` + taskID + `"}`)
	}
	return req
}

func TestTaskCreatedRecipients(t *testing.T) {
	up := newFakeUpstream()
	up.addEmployee("performer", "Pat Performer",
		directory.Employee{ID: "deputy", Name: "Dee Deputy", Email: "deputy@example.com"},
	)
	up.addEmployee("author", "Alex Author")
	up.tasks["t1"] = &directory.Task{ID: "t1", Name: "Review contract", PerformerID: "performer", AuthorID: "author"}

	r := NewTaskCreatedResolver(up, up, true)
	users, err := r.ResolveRecipients(context.Background(), taskRequest("TaskCreated", "t1"))
	if err != nil {
		t.Fatalf("ResolveRecipients: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected performer + deputy, got %d users", len(users))
	}
	if users[0].ID != "performer" || users[1].ID != "deputy" {
		t.Fatalf("unexpected recipients: %+v", users)
	}
}

func TestTaskCreatedTemplateData(t *testing.T) {
	deadline := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	up := newFakeUpstream()
	up.addEmployee("performer", "Pat Performer")
	up.addEmployee("author", "Alex Author")
	up.tasks["t1"] = &directory.Task{
		ID: "t1", Name: "Review contract", DocumentName: "Contract 42",
		PerformerID: "performer", AuthorID: "author", Deadline: &deadline,
	}

	r := NewTaskCreatedResolver(up, up, true)
	data, err := r.ResolveTemplateData(context.Background(), taskRequest("TaskCreated", "t1"))
	if err != nil {
		t.Fatalf("ResolveTemplateData: %v", err)
	}
	if data["TaskName"] != "Review contract" || data["DocumentName"] != "Contract 42" {
		t.Fatalf("unexpected task fields: %+v", data)
	}
	if data["AuthorName"] != "Alex Author" {
		t.Fatalf("author name %v, want Alex Author", data["AuthorName"])
	}
	if data["Deadline"] != "15.09.2026" {
		t.Fatalf("deadline %v, want 15.09.2026", data["Deadline"])
	}
}

func TestTaskCreatedMissingTaskID(t *testing.T) {
	r := NewTaskCreatedResolver(newFakeUpstream(), newFakeUpstream(), true)

	_, err := r.ResolveRecipients(context.Background(), taskRequest("TaskCreated", ""))
	var missing *common.MissingParameterError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingParameterError, got %v", err)
	}
	if missing.Parameter != "taskId" {
		t.Fatalf("error names parameter %q, want taskId", missing.Parameter)
	}
}

func TestTaskCreatedUnknownTask(t *testing.T) {
	r := NewTaskCreatedResolver(newFakeUpstream(), newFakeUpstream(), true)

	_, err := r.ResolveRecipients(context.Background(), taskRequest("TaskCreated", "ghost"))
	var lookup *common.UpstreamLookupError
	if !errors.As(err, &lookup) {
		t.Fatalf("expected UpstreamLookupError, got %v", err)
	}
	if lookup.Entity != "task" || lookup.ID != "ghost" {
		t.Fatalf("error names %s/%s", lookup.Entity, lookup.ID)
	}
}

func TestTaskCreatedMalformedParameters(t *testing.T) {
	r := NewTaskCreatedResolver(newFakeUpstream(), newFakeUpstream(), true)

	req := &notification.DispatchRequest{Route: "TaskCreated", Parameters: json.RawMessage(`{broken`)}
	_, err := r.ResolveRecipients(context.Background(), req)
	var validation *common.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestTaskReturnedTargetsAuthorOnly(t *testing.T) {
	up := newFakeUpstream()
	up.addEmployee("performer", "Pat Performer")
	up.addEmployee("author", "Alex Author",
		directory.Employee{ID: "deputy", Name: "Dee Deputy", Email: "deputy@example.com"},
	)
	up.tasks["t1"] = &directory.Task{ID: "t1", Name: "Review contract", PerformerID: "performer", AuthorID: "author"}

	// Deputies are off for this route: the author has one configured but the
	// notified set stays at one.
	r := NewTaskReturnedResolver(up, up, false)
	users, err := r.ResolveRecipients(context.Background(), taskRequest("TaskReturned", "t1"))
	if err != nil {
		t.Fatalf("ResolveRecipients: %v", err)
	}
	if len(users) != 1 || users[0].ID != "author" {
		t.Fatalf("expected author only, got %+v", users)
	}
}

func TestTaskReturnedTemplateData(t *testing.T) {
	up := newFakeUpstream()
	up.addEmployee("performer", "Pat Performer")
	up.addEmployee("author", "Alex Author")
	up.tasks["t1"] = &directory.Task{ID: "t1", Name: "Review contract", PerformerID: "performer", AuthorID: "author"}

	r := NewTaskReturnedResolver(up, up, false)
	data, err := r.ResolveTemplateData(context.Background(), taskRequest("TaskReturned", "t1"))
	if err != nil {
		t.Fatalf("ResolveTemplateData: %v", err)
	}
	if data["PerformerName"] != "Pat Performer" {
		t.Fatalf("performer name %v, want Pat Performer", data["PerformerName"])
	}
}

func TestDocumentApprovedRecipients(t *testing.T) {
	up := newFakeUpstream()
	up.addEmployee("author", "Alex Author",
		directory.Employee{ID: "deputy", Name: "Dee Deputy", Email: "deputy@example.com"},
	)

	r := NewDocumentApprovedResolver(up, true)
	req := &notification.DispatchRequest{
		Route:      "DocumentApproved",
		Parameters: json.RawMessage(`{"documentId":"doc1","documentName":"Policy","authorId":"author"}`),
	}
	users, err := r.ResolveRecipients(context.Background(), req)
	if err != nil {
		t.Fatalf("ResolveRecipients: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected author + deputy, got %+v", users)
	}

	data, err := r.ResolveTemplateData(context.Background(), req)
	if err != nil {
		t.Fatalf("ResolveTemplateData: %v", err)
	}
	if data["DocumentName"] != "Policy" {
		t.Fatalf("document name %v, want Policy", data["DocumentName"])
	}
}

func TestDocumentApprovedRequiredParameters(t *testing.T) {
	r := NewDocumentApprovedResolver(newFakeUpstream(), true)

	cases := []struct {
		params string
		want   string
	}{
		{`{"authorId":"author"}`, "documentId"},
		{`{"documentId":"doc1"}`, "authorId"},
	}
	for _, tc := range cases {
		req := &notification.DispatchRequest{Route: "DocumentApproved", Parameters: json.RawMessage(tc.params)}
		_, err := r.ResolveRecipients(context.Background(), req)
		var missing *common.MissingParameterError
		if !errors.As(err, &missing) {
			t.Fatalf("params %s: expected MissingParameterError, got %v", tc.params, err)
		}
		if missing.Parameter != tc.want {
			t.Fatalf("params %s: error names %q, want %q", tc.params, missing.Parameter, tc.want)
		}
	}
}

func TestRegistrationsBuildValidRegistry(t *testing.T) {
	up := newFakeUpstream()

	registry, err := notification.NewRegistry(Registrations(up, up))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	for _, route := range []string{"TaskCreated", "TaskReturned", "DocumentApproved"} {
		if _, _, err := registry.Lookup(route); err != nil {
			t.Fatalf("Lookup(%s): %v", route, err)
		}
	}
}
