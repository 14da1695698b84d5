package task

import (
	"strconv"
	"strings"

	domain "github.com/example/task-tracker/domain/task"
)

const (
	// DefaultPage is used when no page is requested.
	DefaultPage = 1
	// DefaultLimit is used when no page size is requested.
	DefaultLimit = 10
)

// ListQuery is a validated listing request.
type ListQuery struct {
	Page     int
	Limit    int
	Status   domain.Status
	Priority domain.Priority
}

// ParseListQuery validates raw listing parameters. Empty values take their
// defaults; anything else must be a positive integer or a known enum value.
func ParseListQuery(page, limit, status, priority string) (ListQuery, error) {
	q := ListQuery{Page: DefaultPage, Limit: DefaultLimit}
	verr := &domain.ValidationError{}

	if page = strings.TrimSpace(page); page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 {
			verr.Add("page", "page must be a positive integer")
		} else {
			q.Page = n
		}
	}

	if limit = strings.TrimSpace(limit); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			verr.Add("limit", "limit must be a positive integer")
		} else {
			q.Limit = n
		}
	}

	if status != "" {
		q.Status = domain.Status(status)
		if !q.Status.Valid() {
			verr.Add("status", "status must be one of pending, completed")
		}
	}

	if priority != "" {
		q.Priority = domain.Priority(priority)
		if !q.Priority.Valid() {
			verr.Add("priority", "priority must be one of low, medium, high")
		}
	}

	if err := verr.OrNil(); err != nil {
		return ListQuery{}, err
	}
	return q, nil
}

// Offset returns the number of rows skipped before the requested page.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Filter returns the store filter for the owner's tasks.
func (q ListQuery) Filter(owner string) domain.Filter {
	return domain.Filter{
		Owner:    owner,
		Status:   q.Status,
		Priority: q.Priority,
	}
}

// TotalPages returns ceil(total/limit).
func TotalPages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	l := int64(limit)
	return int((total + l - 1) / l)
}
