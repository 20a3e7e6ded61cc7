package routes

import (
	"context"
	"fmt"

	"routecast/internal/domain/directory"
	"routecast/internal/domain/notification"
)

// TaskCreatedResolver notifies a task's performer (and their deputies) that
// a new task was assigned to them.
type TaskCreatedResolver struct {
	dir             directory.Directory
	tasks           directory.Tasks
	includeDeputies bool
}

// NewTaskCreatedResolver creates the TaskCreated resolver.
func NewTaskCreatedResolver(dir directory.Directory, tasks directory.Tasks, includeDeputies bool) *TaskCreatedResolver {
	return &TaskCreatedResolver{dir: dir, tasks: tasks, includeDeputies: includeDeputies}
}

// Route returns the handled route name.
func (r *TaskCreatedResolver) Route() string { return "TaskCreated" }

// ResolveRecipients expands the task's performer to the effective notified
// set.
func (r *TaskCreatedResolver) ResolveRecipients(ctx context.Context, req *notification.DispatchRequest) ([]notification.User, error) {
	params, err := decodeTaskParams(req)
	if err != nil {
		return nil, err
	}

	task, err := lookupTask(ctx, r.tasks, params.TaskID)
	if err != nil {
		return nil, err
	}

	return directory.ExpandWithDeputies(ctx, r.dir, []string{task.PerformerID}, r.includeDeputies)
}

// ResolveTemplateData builds the render fields for the task creation
// template, including the author's display name.
func (r *TaskCreatedResolver) ResolveTemplateData(ctx context.Context, req *notification.DispatchRequest) (map[string]any, error) {
	params, err := decodeTaskParams(req)
	if err != nil {
		return nil, err
	}

	task, err := lookupTask(ctx, r.tasks, params.TaskID)
	if err != nil {
		return nil, err
	}

	authorName, err := employeeName(ctx, r.dir, task.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("resolving task author: %w", err)
	}

	fields := taskFields(task)
	fields["AuthorName"] = authorName
	return fields, nil
}
