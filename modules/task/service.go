package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/domain/user"
	"github.com/example/task-tracker/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// Service implements task queries and mutations for an authenticated principal.
type Service struct {
	store    Store
	users    *UserResolver
	eventBus mono.EventBus
	logger   types.Logger
	now      func() time.Time
	newID    func() string
}

// NewService creates a task service. eventBus may be nil.
func NewService(store Store, users *UserResolver, eventBus mono.EventBus, logger types.Logger) *Service {
	return &Service{
		store:    store,
		users:    users,
		eventBus: eventBus,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
}

// Create validates the input and stores a new pending task owned by p.
func (s *Service) Create(ctx context.Context, p user.Principal, in CreateInput) (*TaskView, error) {
	verr := &domain.ValidationError{}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		verr.Add("title", "Title is required")
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		verr.Add("description", "Description is required")
	}
	dueDate, err := domain.ParseDueDate(strings.TrimSpace(in.DueDate))
	if err != nil {
		verr.Add("dueDate", "Valid due date is required")
	}
	priority := domain.Priority(in.Priority)
	if !priority.Valid() {
		verr.Add("priority", "Invalid priority")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	assignee := p.ID
	if in.AssignedTo != "" {
		if err := s.checkAssignee(ctx, in.AssignedTo); err != nil {
			return nil, err
		}
		assignee = in.AssignedTo
	}

	now := s.now()
	t := &domain.Task{
		ID:          s.newID(),
		Title:       title,
		Description: description,
		DueDate:     dueDate,
		Priority:    priority,
		Status:      domain.StatusPending,
		CreatedBy:   p.ID,
		AssignedTo:  assignee,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	s.publish("TaskCreated", t.ID, func(bus mono.EventBus) error {
		return events.TaskCreatedV1.Publish(bus, events.TaskCreatedEvent{
			TaskID:     t.ID,
			Title:      t.Title,
			Priority:   string(t.Priority),
			DueDate:    t.DueDate,
			CreatedBy:  t.CreatedBy,
			AssignedTo: t.AssignedTo,
			CreatedAt:  t.CreatedAt,
		}, nil)
	})

	return s.view(ctx, t, false), nil
}

// Get returns one task with both user references expanded.
func (s *Service) Get(ctx context.Context, p user.Principal, id string) (*TaskView, error) {
	t, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, t, true), nil
}

// List returns one page of the principal's own tasks, newest first.
// Admins see only their own tasks here too.
func (s *Service) List(ctx context.Context, p user.Principal, q ListQuery) (*Page, error) {
	filter := q.Filter(p.ID)

	total, err := s.store.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	tasks, err := s.store.Find(ctx, filter, q.Offset(), q.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	ids := make([]string, 0, len(tasks))
	for i := range tasks {
		ids = append(ids, tasks[i].AssignedTo)
	}
	summaries := s.users.ExpandMany(ctx, ids)

	views := make([]TaskView, 0, len(tasks))
	for i := range tasks {
		v := newTaskView(&tasks[i])
		v.AssignedTo = expanded(summaries[tasks[i].AssignedTo])
		views = append(views, v)
	}

	return &Page{
		Tasks:       views,
		CurrentPage: q.Page,
		TotalPages:  TotalPages(total, q.Limit),
		TotalTasks:  total,
	}, nil
}

// Update replaces the non-empty fields of in. CreatedBy is never touched.
func (s *Service) Update(ctx context.Context, p user.Principal, id string, in UpdateInput) (*TaskView, error) {
	verr := &domain.ValidationError{}
	var dueDate time.Time
	if in.DueDate != "" {
		d, err := domain.ParseDueDate(strings.TrimSpace(in.DueDate))
		if err != nil {
			verr.Add("dueDate", "Valid due date is required")
		}
		dueDate = d
	}
	if in.Priority != "" && !domain.Priority(in.Priority).Valid() {
		verr.Add("priority", "Invalid priority")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	t, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}

	if in.AssignedTo != "" && in.AssignedTo != t.AssignedTo {
		if err := s.checkAssignee(ctx, in.AssignedTo); err != nil {
			return nil, err
		}
	}

	var changed []string
	if v := strings.TrimSpace(in.Title); v != "" {
		t.Title = v
		changed = append(changed, "title")
	}
	if v := strings.TrimSpace(in.Description); v != "" {
		t.Description = v
		changed = append(changed, "description")
	}
	if in.DueDate != "" {
		t.DueDate = dueDate
		changed = append(changed, "dueDate")
	}
	if in.Priority != "" {
		t.Priority = domain.Priority(in.Priority)
		changed = append(changed, "priority")
	}
	if in.AssignedTo != "" {
		t.AssignedTo = in.AssignedTo
		changed = append(changed, "assignedTo")
	}

	if err := s.save(ctx, t); err != nil {
		return nil, err
	}

	s.publish("TaskUpdated", t.ID, func(bus mono.EventBus) error {
		return events.TaskUpdatedV1.Publish(bus, events.TaskUpdatedEvent{
			TaskID:    t.ID,
			ActorID:   p.ID,
			Fields:    changed,
			UpdatedAt: t.UpdatedAt,
		}, nil)
	})

	return s.view(ctx, t, false), nil
}

// Delete permanently removes a task.
func (s *Service) Delete(ctx context.Context, p user.Principal, id string) error {
	t, err := s.load(ctx, p, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, t.ID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.publish("TaskDeleted", t.ID, func(bus mono.EventBus) error {
		return events.TaskDeletedV1.Publish(bus, events.TaskDeletedEvent{
			TaskID:    t.ID,
			ActorID:   p.ID,
			CreatedBy: t.CreatedBy,
			DeletedAt: s.now(),
		}, nil)
	})

	return nil
}

// SetStatus overwrites only the status of a task.
func (s *Service) SetStatus(ctx context.Context, p user.Principal, id, status string) (*TaskView, error) {
	next := domain.Status(status)
	if !next.Valid() {
		return nil, domain.NewValidationError("status", "Invalid status")
	}

	t, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}

	prev := t.Status
	t.Status = next
	if err := s.save(ctx, t); err != nil {
		return nil, err
	}

	s.publish("TaskStatusChanged", t.ID, func(bus mono.EventBus) error {
		return events.TaskStatusChangedV1.Publish(bus, events.TaskStatusChangedEvent{
			TaskID:    t.ID,
			ActorID:   p.ID,
			From:      string(prev),
			To:        string(next),
			ChangedAt: t.UpdatedAt,
		}, nil)
	})

	return s.view(ctx, t, false), nil
}

// SetPriority overwrites only the priority of a task.
func (s *Service) SetPriority(ctx context.Context, p user.Principal, id, priority string) (*TaskView, error) {
	next := domain.Priority(priority)
	if !next.Valid() {
		return nil, domain.NewValidationError("priority", "Invalid priority")
	}

	t, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}

	prev := t.Priority
	t.Priority = next
	if err := s.save(ctx, t); err != nil {
		return nil, err
	}

	s.publish("TaskPriorityChanged", t.ID, func(bus mono.EventBus) error {
		return events.TaskPriorityChangedV1.Publish(bus, events.TaskPriorityChangedEvent{
			TaskID:    t.ID,
			ActorID:   p.ID,
			From:      string(prev),
			To:        string(next),
			ChangedAt: t.UpdatedAt,
		}, nil)
	})

	return s.view(ctx, t, false), nil
}

// load fetches a task and applies the access policy: not found before forbidden.
func (s *Service) load(ctx context.Context, p user.Principal, id string) (*domain.Task, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrTaskNotFound
	}
	t, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(t, p); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) save(ctx context.Context, t *domain.Task) error {
	t.UpdatedAt = s.now()
	if err := s.store.Save(ctx, t); err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return err
		}
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

func (s *Service) checkAssignee(ctx context.Context, id string) error {
	ok, err := s.users.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to validate assignee: %w", err)
	}
	if !ok {
		return domain.NewValidationError("assignedTo", "Assigned user does not exist")
	}
	return nil
}

// view expands assignedTo, and createdBy as well when withCreator is set.
func (s *Service) view(ctx context.Context, t *domain.Task, withCreator bool) *TaskView {
	v := newTaskView(t)
	v.AssignedTo = expanded(s.users.Expand(ctx, t.AssignedTo))
	if withCreator {
		v.CreatedBy = expanded(s.users.Expand(ctx, t.CreatedBy))
	}
	return &v
}

// publish emits an event best-effort; failures are logged and never fail the mutation.
func (s *Service) publish(name, taskID string, fn func(mono.EventBus) error) {
	if s.eventBus == nil {
		return
	}
	if err := fn(s.eventBus); err != nil {
		s.logger.Warn("Failed to publish event", "event", name, "task_id", taskID, "error", err)
	}
}
