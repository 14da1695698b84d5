package task

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/task-tracker/database"
	domain "github.com/example/task-tracker/domain/task"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(":memory:", false, &domain.Task{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

var baseTime = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func newTestTask(id, owner string, createdAt time.Time) *domain.Task {
	return &domain.Task{
		ID:          id,
		Title:       "Task " + id,
		Description: "Description " + id,
		DueDate:     baseTime.Add(72 * time.Hour),
		Priority:    domain.PriorityMedium,
		Status:      domain.StatusPending,
		CreatedBy:   owner,
		AssignedTo:  owner,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func TestRepository_CreateAndFind(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	task := newTestTask("t1", "alice", baseTime)
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.FindByID(ctx, "t1")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Title != task.Title || got.CreatedBy != "alice" {
		t.Errorf("FindByID() = %+v, want %+v", got, task)
	}
	if !got.DueDate.Equal(task.DueDate) {
		t.Errorf("DueDate = %v, want %v", got.DueDate, task.DueDate)
	}

	if _, err := repo.FindByID(ctx, "missing"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("FindByID(missing) error = %v, want %v", err, domain.ErrTaskNotFound)
	}
}

func TestRepository_SaveNeverWritesCreator(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, newTestTask("t1", "alice", baseTime)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	task, err := repo.FindByID(ctx, "t1")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	task.Title = "Renamed"
	task.Status = domain.StatusCompleted
	task.CreatedBy = "mallory"
	if err := repo.Save(ctx, task); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.FindByID(ctx, "t1")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Title != "Renamed" || got.Status != domain.StatusCompleted {
		t.Errorf("Save() did not persist fields: %+v", got)
	}
	if got.CreatedBy != "alice" {
		t.Errorf("CreatedBy = %q, want %q", got.CreatedBy, "alice")
	}

	if err := repo.Save(ctx, newTestTask("ghost", "alice", baseTime)); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("Save(missing) error = %v, want %v", err, domain.ErrTaskNotFound)
	}
}

func TestRepository_Delete(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, newTestTask("t1", "alice", baseTime)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Delete(ctx, "t1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.FindByID(ctx, "t1"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("FindByID after Delete error = %v, want %v", err, domain.ErrTaskNotFound)
	}
	if err := repo.Delete(ctx, "t1"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("second Delete() error = %v, want %v", err, domain.ErrTaskNotFound)
	}
}

func TestRepository_CountAndFind(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		task := newTestTask(fmt.Sprintf("a%d", i), "alice", baseTime.Add(time.Duration(i)*time.Minute))
		if i%2 == 0 {
			task.Status = domain.StatusCompleted
		}
		if i == 4 {
			task.Priority = domain.PriorityHigh
		}
		if err := repo.Create(ctx, task); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if err := repo.Create(ctx, newTestTask("b0", "bob", baseTime)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name    string
		filter  domain.Filter
		offset  int
		limit   int
		total   int64
		wantIDs []string
	}{
		{
			name:    "owner only newest first",
			filter:  domain.Filter{Owner: "alice"},
			limit:   10,
			total:   5,
			wantIDs: []string{"a4", "a3", "a2", "a1", "a0"},
		},
		{
			name:    "second page",
			filter:  domain.Filter{Owner: "alice"},
			offset:  2,
			limit:   2,
			total:   5,
			wantIDs: []string{"a2", "a1"},
		},
		{
			name:    "beyond the end",
			filter:  domain.Filter{Owner: "alice"},
			offset:  10,
			limit:   2,
			total:   5,
			wantIDs: []string{},
		},
		{
			name:    "status filter",
			filter:  domain.Filter{Owner: "alice", Status: domain.StatusCompleted},
			limit:   10,
			total:   3,
			wantIDs: []string{"a4", "a2", "a0"},
		},
		{
			name:    "status and priority",
			filter:  domain.Filter{Owner: "alice", Status: domain.StatusCompleted, Priority: domain.PriorityHigh},
			limit:   10,
			total:   1,
			wantIDs: []string{"a4"},
		},
		{
			name:    "other owner",
			filter:  domain.Filter{Owner: "bob"},
			limit:   10,
			total:   1,
			wantIDs: []string{"b0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, err := repo.Count(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Count() error = %v", err)
			}
			if total != tt.total {
				t.Errorf("Count() = %d, want %d", total, tt.total)
			}

			tasks, err := repo.Find(ctx, tt.filter, tt.offset, tt.limit)
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			if tasks == nil {
				t.Fatal("Find() returned nil slice")
			}
			if len(tasks) != len(tt.wantIDs) {
				t.Fatalf("len(Find()) = %d, want %d", len(tasks), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if tasks[i].ID != id {
					t.Errorf("Find()[%d].ID = %q, want %q", i, tasks[i].ID, id)
				}
			}
		})
	}
}

func TestRepository_FindBreaksTiesByID(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	for _, id := range []string{"x1", "x3", "x2"} {
		if err := repo.Create(ctx, newTestTask(id, "alice", baseTime)); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tasks, err := repo.Find(ctx, domain.Filter{Owner: "alice"}, 0, 10)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	want := []string{"x3", "x2", "x1"}
	for i, id := range want {
		if tasks[i].ID != id {
			t.Errorf("Find()[%d].ID = %q, want %q", i, tasks[i].ID, id)
		}
	}
}
