package template

import (
	"context"
	"fmt"
	"log/slog"

	"routecast/internal/domain/notification"
)

// defaults are the built-in templates for the shipped routes. Operators can
// edit the stored rows afterwards; seeding never overwrites an existing
// template.
var defaults = []notification.NotificationTemplate{
	{
		Name:     "task_created",
		Subject:  "New task: {{.TaskName}}",
		PushBody: "{{.AuthorName}} assigned you the task \"{{.TaskName}}\" on document \"{{.DocumentName}}\".",
		EmailBody: `<h2>New task assigned</h2>
<p>{{.AuthorName}} assigned you the task <strong>{{.TaskName}}</strong> on document <strong>{{.DocumentName}}</strong>.</p>`,
	},
	{
		Name:     "task_returned",
		Subject:  "Task returned: {{.TaskName}}",
		PushBody: "{{.PerformerName}} returned the task \"{{.TaskName}}\" on document \"{{.DocumentName}}\" for rework.",
		EmailBody: `<h2>Task returned</h2>
<p>{{.PerformerName}} returned the task <strong>{{.TaskName}}</strong> on document <strong>{{.DocumentName}}</strong> for rework.</p>`,
	},
	{
		Name:     "document_approved",
		Subject:  "Document approved: {{.DocumentName}}",
		PushBody: "Your document \"{{.DocumentName}}\" passed approval.",
		EmailBody: `<h2>Document approved</h2>
<p>Your document <strong>{{.DocumentName}}</strong> passed approval.</p>`,
	},
}

// Seed upserts the built-in templates that are missing from the store.
// Called once at startup; routes referencing an unseeded template would
// otherwise fail every dispatch with TemplateNotFoundError.
func Seed(ctx context.Context, store notification.TemplateStore) error {
	for _, tmpl := range defaults {
		existing, err := store.GetTemplate(ctx, tmpl.Name)
		if err != nil {
			return fmt.Errorf("checking template %s: %w", tmpl.Name, err)
		}
		if existing != nil {
			continue
		}

		if err := store.UpsertTemplate(ctx, &tmpl); err != nil {
			return fmt.Errorf("seeding template %s: %w", tmpl.Name, err)
		}
		slog.Info("seeded template", "name", tmpl.Name)
	}
	return nil
}
