package task

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/task-tracker/database"
	domain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/events"
	"github.com/example/task-tracker/modules/auth"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/gorm"
)

// TaskModule provides task services (core domain).
type TaskModule struct {
	dbPath   string
	dbDebug  bool
	db       *gorm.DB
	service  *Service
	users    UserDirectory
	cache    SummaryCache
	eventBus mono.EventBus
	logger   types.Logger
}

var (
	_ mono.Module                = (*TaskModule)(nil)
	_ mono.ServiceProviderModule = (*TaskModule)(nil)
	_ mono.DependentModule       = (*TaskModule)(nil)
	_ mono.EventEmitterModule    = (*TaskModule)(nil)
	_ mono.HealthCheckableModule = (*TaskModule)(nil)
)

// NewModule creates a task module storing tasks at dbPath. cache may be nil.
func NewModule(dbPath string, dbDebug bool, cache SummaryCache, logger types.Logger) *TaskModule {
	if dbPath == "" {
		dbPath = "task_tracker.db"
	}
	return &TaskModule{
		dbPath:  dbPath,
		dbDebug: dbDebug,
		cache:   cache,
		logger:  logger.WithModule("task"),
	}
}

func (m *TaskModule) Name() string {
	return "task"
}

func (m *TaskModule) Dependencies() []string {
	return []string{"auth"}
}

func (m *TaskModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "auth" {
		m.users = auth.NewAuthAdapter(container)
	}
}

func (m *TaskModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

func (m *TaskModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.TaskCreatedV1.ToBase(),
		events.TaskUpdatedV1.ToBase(),
		events.TaskStatusChangedV1.ToBase(),
		events.TaskPriorityChangedV1.ToBase(),
		events.TaskDeletedV1.ToBase(),
	}
}

func (m *TaskModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "create-task", json.Unmarshal, json.Marshal, m.createTask,
	); err != nil {
		return fmt.Errorf("failed to register create-task service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "get-task", json.Unmarshal, json.Marshal, m.getTask,
	); err != nil {
		return fmt.Errorf("failed to register get-task service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "list-tasks", json.Unmarshal, json.Marshal, m.listTasks,
	); err != nil {
		return fmt.Errorf("failed to register list-tasks service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "update-task", json.Unmarshal, json.Marshal, m.updateTask,
	); err != nil {
		return fmt.Errorf("failed to register update-task service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "delete-task", json.Unmarshal, json.Marshal, m.deleteTask,
	); err != nil {
		return fmt.Errorf("failed to register delete-task service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "update-task-status", json.Unmarshal, json.Marshal, m.setStatus,
	); err != nil {
		return fmt.Errorf("failed to register update-task-status service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "update-task-priority", json.Unmarshal, json.Marshal, m.setPriority,
	); err != nil {
		return fmt.Errorf("failed to register update-task-priority service: %w", err)
	}

	m.logger.Info("Registered services", "services", []string{
		"create-task", "get-task", "list-tasks", "update-task",
		"delete-task", "update-task-status", "update-task-priority",
	})
	return nil
}

func (m *TaskModule) Start(_ context.Context) error {
	if m.users == nil {
		return fmt.Errorf("auth dependency not set")
	}
	if m.eventBus == nil {
		m.logger.Warn("eventBus not set, events will not be published")
	}

	db, err := database.Open(m.dbPath, m.dbDebug, &domain.Task{})
	if err != nil {
		return err
	}
	m.db = db

	resolver := NewUserResolver(m.users, m.cache, m.logger)
	m.service = NewService(NewRepository(db), resolver, m.eventBus, m.logger)

	m.logger.Info("Module started", "database", m.dbPath, "summary_cache", m.cache != nil)
	return nil
}

func (m *TaskModule) Stop(_ context.Context) error {
	if err := database.Close(m.db); err != nil {
		m.logger.Error("Failed to close database", "error", err)
		return err
	}
	m.logger.Info("Module stopped")
	return nil
}

func (m *TaskModule) Health(ctx context.Context) mono.HealthStatus {
	if err := database.Ping(ctx, m.db); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database":      m.dbPath,
			"summary_cache": m.cache != nil,
		},
	}
}

// fail converts a service error into a response failure. Infrastructure
// errors are logged and returned as transport errors.
func (m *TaskModule) fail(op string, err error) (*ServiceError, error) {
	if se := toServiceError(err); se != nil {
		return se, nil
	}
	m.logger.Error("Task operation failed", "operation", op, "error", err)
	return nil, err
}

func (m *TaskModule) createTask(ctx context.Context, req CreateTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	v, err := m.service.Create(ctx, req.Principal, req.Input)
	if err != nil {
		se, err := m.fail("create-task", err)
		return TaskResponse{Error: se}, err
	}
	return TaskResponse{Task: v}, nil
}

func (m *TaskModule) getTask(ctx context.Context, req GetTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	v, err := m.service.Get(ctx, req.Principal, req.TaskID)
	if err != nil {
		se, err := m.fail("get-task", err)
		return TaskResponse{Error: se}, err
	}
	return TaskResponse{Task: v}, nil
}

func (m *TaskModule) listTasks(ctx context.Context, req ListTasksRequest, _ *mono.Msg) (ListTasksResponse, error) {
	q, err := ParseListQuery(req.Page, req.Limit, req.Status, req.Priority)
	if err != nil {
		se, err := m.fail("list-tasks", err)
		return ListTasksResponse{Error: se}, err
	}
	page, err := m.service.List(ctx, req.Principal, q)
	if err != nil {
		se, err := m.fail("list-tasks", err)
		return ListTasksResponse{Error: se}, err
	}
	return ListTasksResponse{Page: page}, nil
}

func (m *TaskModule) updateTask(ctx context.Context, req UpdateTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	v, err := m.service.Update(ctx, req.Principal, req.TaskID, req.Input)
	if err != nil {
		se, err := m.fail("update-task", err)
		return TaskResponse{Error: se}, err
	}
	return TaskResponse{Task: v}, nil
}

func (m *TaskModule) deleteTask(ctx context.Context, req GetTaskRequest, _ *mono.Msg) (DeleteTaskResponse, error) {
	if err := m.service.Delete(ctx, req.Principal, req.TaskID); err != nil {
		se, err := m.fail("delete-task", err)
		return DeleteTaskResponse{Error: se}, err
	}
	return DeleteTaskResponse{Deleted: true}, nil
}

func (m *TaskModule) setStatus(ctx context.Context, req SetStatusRequest, _ *mono.Msg) (TaskResponse, error) {
	v, err := m.service.SetStatus(ctx, req.Principal, req.TaskID, req.Status)
	if err != nil {
		se, err := m.fail("update-task-status", err)
		return TaskResponse{Error: se}, err
	}
	return TaskResponse{Task: v}, nil
}

func (m *TaskModule) setPriority(ctx context.Context, req SetPriorityRequest, _ *mono.Msg) (TaskResponse, error) {
	v, err := m.service.SetPriority(ctx, req.Principal, req.TaskID, req.Priority)
	if err != nil {
		se, err := m.fail("update-task-priority", err)
		return TaskResponse{Error: se}, err
	}
	return TaskResponse{Task: v}, nil
}
