package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// TaskCreatedEvent is emitted when a new task is created.
type TaskCreatedEvent struct {
	TaskID     string    `json:"task_id"`
	Title      string    `json:"title"`
	Priority   string    `json:"priority"`
	DueDate    time.Time `json:"due_date"`
	CreatedBy  string    `json:"created_by"`
	AssignedTo string    `json:"assigned_to"`
	CreatedAt  time.Time `json:"created_at"`
}

// TaskCreatedV1 is the typed event definition for task creation.
// Subject: events.task.v1.task-created
var TaskCreatedV1 = helper.EventDefinition[TaskCreatedEvent](
	"task", "TaskCreated", "v1",
)

// TaskUpdatedEvent is emitted when task fields are replaced.
type TaskUpdatedEvent struct {
	TaskID    string    `json:"task_id"`
	ActorID   string    `json:"actor_id"`
	Fields    []string  `json:"fields"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskUpdatedV1 is the typed event definition for task updates.
// Subject: events.task.v1.task-updated
var TaskUpdatedV1 = helper.EventDefinition[TaskUpdatedEvent](
	"task", "TaskUpdated", "v1",
)

// TaskStatusChangedEvent is emitted when a task's status is set.
type TaskStatusChangedEvent struct {
	TaskID    string    `json:"task_id"`
	ActorID   string    `json:"actor_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}

// TaskStatusChangedV1 is the typed event definition for status transitions.
// Subject: events.task.v1.task-status-changed
var TaskStatusChangedV1 = helper.EventDefinition[TaskStatusChangedEvent](
	"task", "TaskStatusChanged", "v1",
)

// TaskPriorityChangedEvent is emitted when a task's priority is set.
type TaskPriorityChangedEvent struct {
	TaskID    string    `json:"task_id"`
	ActorID   string    `json:"actor_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}

// TaskPriorityChangedV1 is the typed event definition for priority transitions.
// Subject: events.task.v1.task-priority-changed
var TaskPriorityChangedV1 = helper.EventDefinition[TaskPriorityChangedEvent](
	"task", "TaskPriorityChanged", "v1",
)

// TaskDeletedEvent is emitted when a task is permanently removed.
type TaskDeletedEvent struct {
	TaskID    string    `json:"task_id"`
	ActorID   string    `json:"actor_id"`
	CreatedBy string    `json:"created_by"`
	DeletedAt time.Time `json:"deleted_at"`
}

// TaskDeletedV1 is the typed event definition for task deletion.
// Subject: events.task.v1.task-deleted
var TaskDeletedV1 = helper.EventDefinition[TaskDeletedEvent](
	"task", "TaskDeleted", "v1",
)
