package task

import (
	domain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/domain/user"
)

// Allow reports whether the principal may act on the task: its creator
// or any admin.
func Allow(t *domain.Task, p user.Principal) bool {
	return t.CreatedBy == p.ID || p.IsAdmin()
}

// Authorize is the single access check used by every single-task operation.
// The task must already be loaded so a missing task reports not found first.
func Authorize(t *domain.Task, p user.Principal) error {
	if !Allow(t, p) {
		return domain.ErrForbidden
	}
	return nil
}
