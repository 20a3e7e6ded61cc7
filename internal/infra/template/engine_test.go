package template

import (
	"context"
	"errors"
	"strings"
	"testing"

	"routecast/internal/common"
	"routecast/internal/domain/notification"
)

func sampleTemplate() *notification.NotificationTemplate {
	return &notification.NotificationTemplate{
		Name:      "task_created",
		Subject:   "New task: {{.TaskName}}",
		PushBody:  "{{.AuthorName}} assigned you \"{{.TaskName}}\".",
		EmailBody: `<p>{{.AuthorName}} assigned you <strong>{{.TaskName}}</strong>.</p>`,
	}
}

func sampleData() map[string]any {
	return map[string]any{
		"TaskName":   "Review contract",
		"AuthorName": "Alex Author",
	}
}

func TestRender(t *testing.T) {
	engine := NewEngine()

	content, err := engine.Render(sampleTemplate(), sampleData())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if content.Title != "New task: Review contract" {
		t.Fatalf("title %q", content.Title)
	}
	if content.PushBody != `Alex Author assigned you "Review contract".` {
		t.Fatalf("push body %q", content.PushBody)
	}
	if !strings.Contains(content.EmailHTML, "<strong>Review contract</strong>") {
		t.Fatalf("email html %q", content.EmailHTML)
	}
	if content.EmailText != "Alex Author assigned you Review contract." {
		t.Fatalf("email text %q", content.EmailText)
	}
}

func TestRenderDeterministic(t *testing.T) {
	engine := NewEngine()

	first, err := engine.Render(sampleTemplate(), sampleData())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	second, err := engine.Render(sampleTemplate(), sampleData())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if *first != *second {
		t.Fatalf("identical inputs rendered differently: %+v vs %+v", first, second)
	}
}

func TestRenderUndefinedVariable(t *testing.T) {
	engine := NewEngine()

	data := sampleData()
	delete(data, "AuthorName")

	_, err := engine.Render(sampleTemplate(), data)
	var render *common.RenderError
	if !errors.As(err, &render) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if render.Template != "task_created" {
		t.Fatalf("error names template %q", render.Template)
	}
}

func TestRenderParseFailure(t *testing.T) {
	engine := NewEngine()

	tmpl := sampleTemplate()
	tmpl.Subject = "Broken {{.TaskName"

	_, err := engine.Render(tmpl, sampleData())
	var render *common.RenderError
	if !errors.As(err, &render) {
		t.Fatalf("expected RenderError, got %v", err)
	}
}

func TestRenderEscapesEmailHTML(t *testing.T) {
	engine := NewEngine()

	data := sampleData()
	data["TaskName"] = `<script>alert("x")</script>`

	content, err := engine.Render(sampleTemplate(), data)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(content.EmailHTML, "<script>") {
		t.Fatalf("email html must escape injected markup: %q", content.EmailHTML)
	}
}

func TestStripHTML(t *testing.T) {
	got := stripHTML("<h2>Title</h2>\n<p>Tom &amp; Jerry&nbsp;said &quot;hi&quot; to <strong>bold</strong></p>")
	want := `Title Tom & Jerry said "hi" to bold`
	if got != want {
		t.Fatalf("stripHTML = %q, want %q", got, want)
	}
}

func TestDefaultsRender(t *testing.T) {
	engine := NewEngine()
	data := map[string]any{
		"TaskName":      "Review contract",
		"DocumentName":  "Contract 42",
		"AuthorName":    "Alex Author",
		"PerformerName": "Pat Performer",
	}

	// Every shipped template must render with the fields its route resolves.
	for _, tmpl := range defaults {
		content, err := engine.Render(&tmpl, data)
		if err != nil {
			t.Fatalf("rendering %s: %v", tmpl.Name, err)
		}
		if content.Title == "" || content.PushBody == "" || content.EmailHTML == "" {
			t.Fatalf("template %s rendered empty content: %+v", tmpl.Name, content)
		}
	}
}

// memTemplateStore is a minimal in-memory TemplateStore for seeding tests.
type memTemplateStore struct {
	templates map[string]*notification.NotificationTemplate
	upserts   int
}

func (s *memTemplateStore) GetTemplate(ctx context.Context, name string) (*notification.NotificationTemplate, error) {
	return s.templates[name], nil
}

func (s *memTemplateStore) UpsertTemplate(ctx context.Context, tmpl *notification.NotificationTemplate) error {
	s.templates[tmpl.Name] = tmpl
	s.upserts++
	return nil
}

func TestSeedPreservesExistingTemplates(t *testing.T) {
	edited := &notification.NotificationTemplate{
		Name:     "task_created",
		Subject:  "Edited subject: {{.TaskName}}",
		PushBody: "Edited body",
	}
	store := &memTemplateStore{templates: map[string]*notification.NotificationTemplate{
		"task_created": edited,
	}}

	if err := Seed(context.Background(), store); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if store.upserts != len(defaults)-1 {
		t.Fatalf("expected %d upserts, got %d", len(defaults)-1, store.upserts)
	}
	if store.templates["task_created"].Subject != edited.Subject {
		t.Fatal("seeding must not overwrite an operator-edited template")
	}
}
