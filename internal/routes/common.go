// Package routes holds the built-in route registrations: one
// (configuration, resolver) pair per business event, assembled into an
// explicit table consumed by the registry at startup.
package routes

import (
	"context"
	"encoding/json"

	"routecast/internal/common"
	"routecast/internal/domain/directory"
	"routecast/internal/domain/notification"
)

// taskParams is the decoded parameter shape shared by task-scoped routes.
type taskParams struct {
	TaskID string `json:"taskId"`
}

// decodeTaskParams decodes and validates task-scoped parameters. Every
// task route requires taskId; a missing field is rejected, never defaulted
// to an empty recipient set.
func decodeTaskParams(req *notification.DispatchRequest) (taskParams, error) {
	var p taskParams
	if len(req.Parameters) > 0 {
		if err := json.Unmarshal(req.Parameters, &p); err != nil {
			return p, common.NewValidationError("malformed parameters: " + err.Error())
		}
	}
	if p.TaskID == "" {
		return p, common.NewMissingParameterError(req.Route, "taskId")
	}
	return p, nil
}

// lookupTask fetches a task, translating absence into an upstream lookup
// failure.
func lookupTask(ctx context.Context, tasks directory.Tasks, id string) (*directory.Task, error) {
	task, err := tasks.TaskByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, common.NewUpstreamLookupError("task", id)
	}
	return task, nil
}

// taskFields builds the render fields every task template shares.
func taskFields(task *directory.Task) map[string]any {
	fields := map[string]any{
		"TaskName":     task.Name,
		"DocumentName": task.DocumentName,
	}
	if task.Deadline != nil {
		fields["Deadline"] = task.Deadline.Format("02.01.2006")
	}
	return fields
}

// employeeName resolves an employee's display name, failing upstream if the
// id is unknown to the directory.
func employeeName(ctx context.Context, dir directory.Directory, id string) (string, error) {
	employees, err := dir.EmployeesByID(ctx, []string{id})
	if err != nil {
		return "", err
	}
	if len(employees) == 0 {
		return "", common.NewUpstreamLookupError("employee", id)
	}
	return employees[0].Name, nil
}
