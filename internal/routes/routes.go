package routes

import (
	"routecast/internal/domain/directory"
	"routecast/internal/domain/notification"
)

// Registrations returns the static route table. Adding a route means adding
// one entry here; the registry validates the table at startup and the
// process refuses to boot on a duplicate name or a mismatched pair.
func Registrations(dir directory.Directory, tasks directory.Tasks) []notification.Registration {
	return []notification.Registration{
		{
			Config: notification.RouteConfig{
				Name:            "TaskCreated",
				ObjectKind:      "task",
				TemplateName:    "task_created",
				DisplayName:     "Task assigned",
				Description:     "A new task was assigned to a performer",
				Tags:            []string{"task"},
				IncludeDeputies: true,
			},
			Resolver: NewTaskCreatedResolver(dir, tasks, true),
		},
		{
			Config: notification.RouteConfig{
				Name:            "TaskReturned",
				ObjectKind:      "task",
				TemplateName:    "task_returned",
				DisplayName:     "Task returned",
				Description:     "A task was returned to its author for rework",
				Tags:            []string{"task"},
				IncludeDeputies: false,
			},
			Resolver: NewTaskReturnedResolver(dir, tasks, false),
		},
		{
			Config: notification.RouteConfig{
				Name:            "DocumentApproved",
				ObjectKind:      "document",
				TemplateName:    "document_approved",
				DisplayName:     "Document approved",
				Description:     "A document passed its approval flow",
				Tags:            []string{"document"},
				IncludeDeputies: true,
			},
			Resolver: NewDocumentApprovedResolver(dir, true),
		},
	}
}
