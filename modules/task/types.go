package task

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	domain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/domain/user"
)

// UserRef is a user reference that encodes as a bare id string, or as a
// summary object once expanded.
type UserRef struct {
	ID      string
	Summary *user.Summary
}

// MarshalJSON implements json.Marshaler.
func (r UserRef) MarshalJSON() ([]byte, error) {
	if r.Summary != nil {
		return json.Marshal(r.Summary)
	}
	return json.Marshal(r.ID)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var s user.Summary
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		r.ID = s.ID
		r.Summary = &s
		return nil
	}
	r.Summary = nil
	return json.Unmarshal(data, &r.ID)
}

func expanded(s user.Summary) UserRef {
	return UserRef{ID: s.ID, Summary: &s}
}

// TaskView is the response form of a task.
type TaskView struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	DueDate     time.Time       `json:"dueDate"`
	Priority    domain.Priority `json:"priority"`
	Status      domain.Status   `json:"status"`
	CreatedBy   UserRef         `json:"createdBy"`
	AssignedTo  UserRef         `json:"assignedTo"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func newTaskView(t *domain.Task) TaskView {
	return TaskView{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Priority:    t.Priority,
		Status:      t.Status,
		CreatedBy:   UserRef{ID: t.CreatedBy},
		AssignedTo:  UserRef{ID: t.AssignedTo},
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// Page is one page of a task listing.
type Page struct {
	Tasks       []TaskView `json:"tasks"`
	CurrentPage int        `json:"currentPage"`
	TotalPages  int        `json:"totalPages"`
	TotalTasks  int64      `json:"totalTasks"`
}

// CreateInput carries the fields of a new task.
type CreateInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
	Priority    string `json:"priority"`
	AssignedTo  string `json:"assignedTo,omitempty"`
}

// UpdateInput carries replacement fields. Empty fields keep their value.
type UpdateInput struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	DueDate     string `json:"dueDate,omitempty"`
	Priority    string `json:"priority,omitempty"`
	AssignedTo  string `json:"assignedTo,omitempty"`
}

// Error codes carried by ServiceError.
const (
	CodeValidation = "validation_error"
	CodeNotFound   = "not_found"
	CodeForbidden  = "forbidden"
)

// ServiceError carries a domain failure across the service boundary.
type ServiceError struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

// toServiceError maps a domain error to a ServiceError. Unknown errors return nil.
func toServiceError(err error) *ServiceError {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return &ServiceError{Code: CodeValidation, Message: "Validation failed", Fields: verr.Fields}
	case errors.Is(err, domain.ErrTaskNotFound):
		return &ServiceError{Code: CodeNotFound, Message: "Task not found"}
	case errors.Is(err, domain.ErrForbidden):
		return &ServiceError{Code: CodeForbidden, Message: "Access denied"}
	}
	return nil
}

// Err rebuilds the domain error.
func (e *ServiceError) Err() error {
	if e == nil {
		return nil
	}
	switch e.Code {
	case CodeNotFound:
		return domain.ErrTaskNotFound
	case CodeForbidden:
		return domain.ErrForbidden
	}
	return &domain.ValidationError{Fields: e.Fields}
}

// CreateTaskRequest is the create-task service request.
type CreateTaskRequest struct {
	Principal user.Principal `json:"principal"`
	Input     CreateInput    `json:"input"`
}

// GetTaskRequest is the get-task and delete-task service request.
type GetTaskRequest struct {
	Principal user.Principal `json:"principal"`
	TaskID    string         `json:"task_id"`
}

// ListTasksRequest is the list-tasks service request. Paging values are
// raw so that an explicit zero can be told apart from an absent value.
type ListTasksRequest struct {
	Principal user.Principal `json:"principal"`
	Page      string         `json:"page,omitempty"`
	Limit     string         `json:"limit,omitempty"`
	Status    string         `json:"status,omitempty"`
	Priority  string         `json:"priority,omitempty"`
}

// UpdateTaskRequest is the update-task service request.
type UpdateTaskRequest struct {
	Principal user.Principal `json:"principal"`
	TaskID    string         `json:"task_id"`
	Input     UpdateInput    `json:"input"`
}

// SetStatusRequest is the update-task-status service request.
type SetStatusRequest struct {
	Principal user.Principal `json:"principal"`
	TaskID    string         `json:"task_id"`
	Status    string         `json:"status"`
}

// SetPriorityRequest is the update-task-priority service request.
type SetPriorityRequest struct {
	Principal user.Principal `json:"principal"`
	TaskID    string         `json:"task_id"`
	Priority  string         `json:"priority"`
}

// TaskResponse carries a single task or a domain failure.
type TaskResponse struct {
	Task  *TaskView     `json:"task,omitempty"`
	Error *ServiceError `json:"error,omitempty"`
}

// ListTasksResponse carries a page of tasks or a domain failure.
type ListTasksResponse struct {
	Page  *Page         `json:"page,omitempty"`
	Error *ServiceError `json:"error,omitempty"`
}

// DeleteTaskResponse reports a deletion or a domain failure.
type DeleteTaskResponse struct {
	Deleted bool          `json:"deleted"`
	Error   *ServiceError `json:"error,omitempty"`
}
