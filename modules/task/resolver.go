package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/task-tracker/domain/user"
	"github.com/example/task-tracker/modules/auth"
	"github.com/go-monolith/mono/pkg/types"
	"golang.org/x/sync/singleflight"
)

// UserDirectory looks up users by id.
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (*user.User, error)
}

// SummaryCache stores user summaries between lookups.
type SummaryCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

// UserResolver expands user ids into summaries through the directory,
// consulting the cache first when one is configured.
type UserResolver struct {
	dir    UserDirectory
	cache  SummaryCache
	group  singleflight.Group
	logger types.Logger
}

// NewUserResolver creates a resolver. cache may be nil.
func NewUserResolver(dir UserDirectory, cache SummaryCache, logger types.Logger) *UserResolver {
	return &UserResolver{
		dir:    dir,
		cache:  cache,
		logger: logger,
	}
}

func summaryKey(id string) string {
	return "user-summary:" + id
}

// Lookup returns the summary for id, or auth.ErrUserNotFound.
func (r *UserResolver) Lookup(ctx context.Context, id string) (user.Summary, error) {
	if r.cache != nil {
		var cached user.Summary
		found, err := r.cache.Get(ctx, summaryKey(id), &cached)
		if err != nil {
			r.logger.Warn("Summary cache read failed", "user_id", id, "error", err)
		}
		if found {
			return cached, nil
		}
	}

	val, err, _ := r.group.Do(id, func() (any, error) {
		u, err := r.dir.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		return u.Summary(), nil
	})
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return user.Summary{}, err
		}
		return user.Summary{}, fmt.Errorf("failed to look up user %s: %w", id, err)
	}
	summary := val.(user.Summary)

	if r.cache != nil {
		if err := r.cache.Set(ctx, summaryKey(id), summary); err != nil {
			r.logger.Warn("Summary cache write failed", "user_id", id, "error", err)
		}
	}
	return summary, nil
}

// Exists reports whether a user with id exists.
func (r *UserResolver) Exists(ctx context.Context, id string) (bool, error) {
	_, err := r.Lookup(ctx, id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, auth.ErrUserNotFound) {
		return false, nil
	}
	return false, err
}

// Expand returns the summary for id. A failed lookup degrades to an
// id-only summary so a response is never lost to a directory outage.
func (r *UserResolver) Expand(ctx context.Context, id string) user.Summary {
	s, err := r.Lookup(ctx, id)
	if err != nil {
		r.logger.Warn("Falling back to id-only user reference", "user_id", id, "error", err)
		return user.Summary{ID: id}
	}
	return s
}

// ExpandMany expands each distinct id once.
func (r *UserResolver) ExpandMany(ctx context.Context, ids []string) map[string]user.Summary {
	out := make(map[string]user.Summary, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		out[id] = r.Expand(ctx, id)
	}
	return out
}
