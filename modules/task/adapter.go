package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/task-tracker/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// TaskPort is the driving port used by the HTTP layer.
type TaskPort interface {
	Create(ctx context.Context, p user.Principal, in CreateInput) (*TaskView, error)
	Get(ctx context.Context, p user.Principal, id string) (*TaskView, error)
	List(ctx context.Context, req ListTasksRequest) (*Page, error)
	Update(ctx context.Context, p user.Principal, id string, in UpdateInput) (*TaskView, error)
	Delete(ctx context.Context, p user.Principal, id string) error
	SetStatus(ctx context.Context, p user.Principal, id, status string) (*TaskView, error)
	SetPriority(ctx context.Context, p user.Principal, id, priority string) (*TaskView, error)
}

// TaskAdapter implements TaskPort over the service container and turns
// response failures back into domain errors.
type TaskAdapter struct {
	container mono.ServiceContainer
}

var _ TaskPort = (*TaskAdapter)(nil)

// NewTaskAdapter creates a new TaskAdapter.
func NewTaskAdapter(container mono.ServiceContainer) *TaskAdapter {
	return &TaskAdapter{container: container}
}

func (a *TaskAdapter) Create(ctx context.Context, p user.Principal, in CreateInput) (*TaskView, error) {
	req := CreateTaskRequest{Principal: p, Input: in}
	return callTask(ctx, a.container, "create-task", &req)
}

func (a *TaskAdapter) Get(ctx context.Context, p user.Principal, id string) (*TaskView, error) {
	req := GetTaskRequest{Principal: p, TaskID: id}
	return callTask(ctx, a.container, "get-task", &req)
}

func (a *TaskAdapter) List(ctx context.Context, req ListTasksRequest) (*Page, error) {
	var resp ListTasksResponse
	if err := call(ctx, a.container, "list-tasks", &req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error.Err()
	}
	return resp.Page, nil
}

func (a *TaskAdapter) Update(ctx context.Context, p user.Principal, id string, in UpdateInput) (*TaskView, error) {
	req := UpdateTaskRequest{Principal: p, TaskID: id, Input: in}
	return callTask(ctx, a.container, "update-task", &req)
}

func (a *TaskAdapter) Delete(ctx context.Context, p user.Principal, id string) error {
	req := GetTaskRequest{Principal: p, TaskID: id}
	var resp DeleteTaskResponse
	if err := call(ctx, a.container, "delete-task", &req, &resp); err != nil {
		return err
	}
	return resp.Error.Err()
}

func (a *TaskAdapter) SetStatus(ctx context.Context, p user.Principal, id, status string) (*TaskView, error) {
	req := SetStatusRequest{Principal: p, TaskID: id, Status: status}
	return callTask(ctx, a.container, "update-task-status", &req)
}

func (a *TaskAdapter) SetPriority(ctx context.Context, p user.Principal, id, priority string) (*TaskView, error) {
	req := SetPriorityRequest{Principal: p, TaskID: id, Priority: priority}
	return callTask(ctx, a.container, "update-task-priority", &req)
}

func callTask[Req any](ctx context.Context, container mono.ServiceContainer, service string, req *Req) (*TaskView, error) {
	var resp TaskResponse
	if err := call(ctx, container, service, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error.Err()
	}
	return resp.Task, nil
}

func call[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	return nil
}
