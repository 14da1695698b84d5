package task

import "time"

// Status represents the state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

// Priority represents how urgent a task is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is the core domain entity. CreatedBy is written once at creation.
type Task struct {
	ID          string    `gorm:"primaryKey;type:text"`
	Title       string    `gorm:"not null;type:text"`
	Description string    `gorm:"not null;type:text"`
	DueDate     time.Time `gorm:"not null"`
	Priority    Priority  `gorm:"not null;type:text;index"`
	Status      Status    `gorm:"not null;type:text;default:pending;index"`
	CreatedBy   string    `gorm:"not null;type:text;index:idx_tasks_owner_created,priority:1"`
	AssignedTo  string    `gorm:"not null;type:text;index"`
	CreatedAt   time.Time `gorm:"index:idx_tasks_owner_created,priority:2"`
	UpdatedAt   time.Time
}

// TableName returns the table name for the Task entity.
func (Task) TableName() string {
	return "tasks"
}

// Filter narrows a task listing. Owner is always applied.
type Filter struct {
	Owner    string
	Status   Status
	Priority Priority
}

// dueDateLayouts are the ISO-8601 forms accepted for due dates, tried in
// order. Layouts without an offset parse as UTC.
var dueDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	time.DateOnly,
}

// ParseDueDate parses an ISO-8601 date-time or calendar date.
func ParseDueDate(s string) (time.Time, error) {
	var err error
	for _, layout := range dueDateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}
