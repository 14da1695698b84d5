package task

import (
	"context"
	"errors"

	domain "github.com/example/task-tracker/domain/task"
	"gorm.io/gorm"
)

// Store is the persistence port of the task module.
type Store interface {
	Create(ctx context.Context, t *domain.Task) error
	FindByID(ctx context.Context, id string) (*domain.Task, error)
	Save(ctx context.Context, t *domain.Task) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, f domain.Filter) (int64, error)
	Find(ctx context.Context, f domain.Filter, offset, limit int) ([]domain.Task, error)
}

// Repository implements Store using GORM.
type Repository struct {
	db *gorm.DB
}

var _ Store = (*Repository)(nil)

// NewRepository creates a new task repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new task.
func (r *Repository) Create(ctx context.Context, t *domain.Task) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// FindByID retrieves a task by its ID.
func (r *Repository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	var t domain.Task
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Save writes every mutable column of an existing task. CreatedBy and
// CreatedAt are never written.
func (r *Repository) Save(ctx context.Context, t *domain.Task) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Task{}).
		Where("id = ?", t.ID).
		Select("Title", "Description", "DueDate", "Priority", "Status", "AssignedTo", "UpdatedAt").
		Updates(t)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// Delete permanently removes a task.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&domain.Task{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// Count returns the number of tasks matching the filter.
func (r *Repository) Count(ctx context.Context, f domain.Filter) (int64, error) {
	var total int64
	if err := r.scope(ctx, f).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// Find returns one page of matching tasks, newest first.
func (r *Repository) Find(ctx context.Context, f domain.Filter, offset, limit int) ([]domain.Task, error) {
	tasks := []domain.Task{}
	err := r.scope(ctx, f).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *Repository) scope(ctx context.Context, f domain.Filter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&domain.Task{}).Where("created_by = ?", f.Owner)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	return q
}
