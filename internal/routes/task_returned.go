package routes

import (
	"context"
	"fmt"

	"routecast/internal/domain/directory"
	"routecast/internal/domain/notification"
)

// TaskReturnedResolver notifies a task's author that the performer returned
// the task for rework. Deliberately a performer-to-author route: deputies
// are excluded by configuration, not by a divergent resolver body.
type TaskReturnedResolver struct {
	dir             directory.Directory
	tasks           directory.Tasks
	includeDeputies bool
}

// NewTaskReturnedResolver creates the TaskReturned resolver.
func NewTaskReturnedResolver(dir directory.Directory, tasks directory.Tasks, includeDeputies bool) *TaskReturnedResolver {
	return &TaskReturnedResolver{dir: dir, tasks: tasks, includeDeputies: includeDeputies}
}

// Route returns the handled route name.
func (r *TaskReturnedResolver) Route() string { return "TaskReturned" }

// ResolveRecipients addresses the task's author.
func (r *TaskReturnedResolver) ResolveRecipients(ctx context.Context, req *notification.DispatchRequest) ([]notification.User, error) {
	params, err := decodeTaskParams(req)
	if err != nil {
		return nil, err
	}

	task, err := lookupTask(ctx, r.tasks, params.TaskID)
	if err != nil {
		return nil, err
	}

	return directory.ExpandWithDeputies(ctx, r.dir, []string{task.AuthorID}, r.includeDeputies)
}

// ResolveTemplateData builds the render fields for the task return template,
// including the performer's display name.
func (r *TaskReturnedResolver) ResolveTemplateData(ctx context.Context, req *notification.DispatchRequest) (map[string]any, error) {
	params, err := decodeTaskParams(req)
	if err != nil {
		return nil, err
	}

	task, err := lookupTask(ctx, r.tasks, params.TaskID)
	if err != nil {
		return nil, err
	}

	performerName, err := employeeName(ctx, r.dir, task.PerformerID)
	if err != nil {
		return nil, fmt.Errorf("resolving task performer: %w", err)
	}

	fields := taskFields(task)
	fields["PerformerName"] = performerName
	return fields, nil
}
