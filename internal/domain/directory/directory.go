// Package directory models the employee/deputy directory collaborator and
// the recipient expansion built on top of it: resolve a person, expand to
// their stand-ins while they are on leave.
package directory

import (
	"context"
	"time"

	"routecast/internal/common"
	"routecast/internal/domain/notification"
)

// Employee is a directory entity.
type Employee struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number,omitempty"`
	DeviceToken string `json:"device_token,omitempty"`
}

// DeputyRelation links a principal to one active deputy.
type DeputyRelation struct {
	PrincipalID string   `json:"principal_id"`
	Deputy      Employee `json:"deputy"`
}

// EmployeeWithDeputies is the transient aggregate produced during recipient
// expansion. It lives only for the duration of one resolution call.
type EmployeeWithDeputies struct {
	Employee Employee
	Deputies []Employee
}

// Task is a work item in the document management system.
type Task struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	DocumentName string     `json:"document_name"`
	PerformerID  string     `json:"performer_id"`
	AuthorID     string     `json:"author_id"`
	Deadline     *time.Time `json:"deadline,omitempty"`
}

// Directory is the consumed employee/deputy lookup contract. Batch lookups
// are allowed to be partial: an unknown id is simply absent from the result,
// never an error.
type Directory interface {
	// EmployeesByID fetches all employees for the given ids in one call.
	EmployeesByID(ctx context.Context, ids []string) ([]Employee, error)

	// DeputiesFor fetches the active deputy relations for the given
	// principal ids.
	DeputiesFor(ctx context.Context, ids []string) ([]DeputyRelation, error)
}

// Tasks is the consumed task lookup contract. Returns nil, nil for an
// unknown id.
type Tasks interface {
	TaskByID(ctx context.Context, id string) (*Task, error)
}

// UserFromEmployee maps a directory entity to a notification user. Email is
// the mandatory addressing field for this directory; an entity without one
// fails with InvalidAddressError.
func UserFromEmployee(e Employee) (notification.User, error) {
	if e.Email == "" {
		return notification.User{}, common.NewInvalidAddressError(e.ID)
	}
	return notification.User{
		ID:          e.ID,
		Name:        e.Name,
		Email:       e.Email,
		PhoneNumber: e.PhoneNumber,
		DeviceToken: e.DeviceToken,
	}, nil
}
