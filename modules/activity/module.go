// Package activity records task events into an in-memory activity log.
package activity

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/task-tracker/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Module consumes task events.
type Module struct {
	log    *Log
	logger types.Logger
}

var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates an activity module retaining capacity entries.
func NewModule(capacity int, logger types.Logger) *Module {
	return &Module{
		log:    NewLog(capacity),
		logger: logger.WithModule("activity"),
	}
}

func (m *Module) Name() string {
	return "activity"
}

func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskCreatedV1, m.handleTaskCreated, m); err != nil {
		return fmt.Errorf("failed to register TaskCreated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskUpdatedV1, m.handleTaskUpdated, m); err != nil {
		return fmt.Errorf("failed to register TaskUpdated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskStatusChangedV1, m.handleStatusChanged, m); err != nil {
		return fmt.Errorf("failed to register TaskStatusChanged consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskPriorityChangedV1, m.handlePriorityChanged, m); err != nil {
		return fmt.Errorf("failed to register TaskPriorityChanged consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskDeletedV1, m.handleTaskDeleted, m); err != nil {
		return fmt.Errorf("failed to register TaskDeleted consumer: %w", err)
	}

	m.logger.Info("Registered event consumers", "events", []string{
		"TaskCreated.v1", "TaskUpdated.v1", "TaskStatusChanged.v1",
		"TaskPriorityChanged.v1", "TaskDeleted.v1",
	})
	return nil
}

func (m *Module) handleTaskCreated(_ context.Context, event events.TaskCreatedEvent, _ *mono.Msg) error {
	m.record(Entry{
		Event:     "TaskCreated",
		TaskID:    event.TaskID,
		ActorID:   event.CreatedBy,
		Detail:    fmt.Sprintf("created %q assigned to %s", event.Title, event.AssignedTo),
		Timestamp: event.CreatedAt,
	})
	return nil
}

func (m *Module) handleTaskUpdated(_ context.Context, event events.TaskUpdatedEvent, _ *mono.Msg) error {
	detail := "no fields changed"
	if len(event.Fields) > 0 {
		detail = "changed " + strings.Join(event.Fields, ", ")
	}
	m.record(Entry{
		Event:     "TaskUpdated",
		TaskID:    event.TaskID,
		ActorID:   event.ActorID,
		Detail:    detail,
		Timestamp: event.UpdatedAt,
	})
	return nil
}

func (m *Module) handleStatusChanged(_ context.Context, event events.TaskStatusChangedEvent, _ *mono.Msg) error {
	m.record(Entry{
		Event:     "TaskStatusChanged",
		TaskID:    event.TaskID,
		ActorID:   event.ActorID,
		Detail:    fmt.Sprintf("status %s -> %s", event.From, event.To),
		Timestamp: event.ChangedAt,
	})
	return nil
}

func (m *Module) handlePriorityChanged(_ context.Context, event events.TaskPriorityChangedEvent, _ *mono.Msg) error {
	m.record(Entry{
		Event:     "TaskPriorityChanged",
		TaskID:    event.TaskID,
		ActorID:   event.ActorID,
		Detail:    fmt.Sprintf("priority %s -> %s", event.From, event.To),
		Timestamp: event.ChangedAt,
	})
	return nil
}

func (m *Module) handleTaskDeleted(_ context.Context, event events.TaskDeletedEvent, _ *mono.Msg) error {
	m.record(Entry{
		Event:     "TaskDeleted",
		TaskID:    event.TaskID,
		ActorID:   event.ActorID,
		Detail:    "deleted task created by " + event.CreatedBy,
		Timestamp: event.DeletedAt,
	})
	return nil
}

func (m *Module) record(e Entry) {
	m.log.Append(e)
	m.logger.Info("Task activity", "event", e.Event, "task_id", e.TaskID, "actor_id", e.ActorID, "detail", e.Detail)
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Module started - listening for task events")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Module stopped", "recorded", m.log.Total())
	return nil
}

// healthRecentEntries is how many entries Health reports.
const healthRecentEntries = 10

func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"retained": m.log.Len(),
			"recorded": m.log.Total(),
			"recent":   m.log.Recent(healthRecentEntries),
		},
	}
}

// Log returns the activity log.
func (m *Module) Log() *Log {
	return m.log
}
