package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	taskdomain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/domain/user"
	"github.com/example/task-tracker/modules/auth"
	"github.com/example/task-tracker/modules/ratelimit"
	"github.com/example/task-tracker/modules/task"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

// mockAuthPort implements auth.AuthPort for testing. Tokens of the form
// "token-<id>" validate to a user principal, "admin-<id>" to an admin.
type mockAuthPort struct {
	registerFunc func(ctx context.Context, req auth.RegisterRequest) (*user.User, error)
	loginFunc    func(ctx context.Context, email, password string) (*user.TokenPair, error)
	refreshFunc  func(ctx context.Context, token string) (*user.TokenPair, error)
	getUserFunc  func(ctx context.Context, id string) (*user.User, error)
}

func (m *mockAuthPort) Register(ctx context.Context, req auth.RegisterRequest) (*user.User, error) {
	if m.registerFunc != nil {
		return m.registerFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthPort) Login(ctx context.Context, email, password string) (*user.TokenPair, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, email, password)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthPort) Refresh(ctx context.Context, token string) (*user.TokenPair, error) {
	if m.refreshFunc != nil {
		return m.refreshFunc(ctx, token)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthPort) ValidateToken(_ context.Context, token string) (user.Principal, error) {
	switch {
	case strings.HasPrefix(token, "token-"):
		return user.Principal{ID: strings.TrimPrefix(token, "token-"), Role: user.RoleUser}, nil
	case strings.HasPrefix(token, "admin-"):
		return user.Principal{ID: strings.TrimPrefix(token, "admin-"), Role: user.RoleAdmin}, nil
	case token == "expired":
		return user.Principal{}, auth.ErrExpiredToken
	case token == "unreachable":
		return user.Principal{}, errors.New("nats: timeout")
	}
	return user.Principal{}, auth.ErrInvalidToken
}

func (m *mockAuthPort) GetUser(ctx context.Context, id string) (*user.User, error) {
	if m.getUserFunc != nil {
		return m.getUserFunc(ctx, id)
	}
	return nil, auth.ErrUserNotFound
}

// mockTaskPort implements task.TaskPort for testing.
type mockTaskPort struct {
	createFunc      func(ctx context.Context, p user.Principal, in task.CreateInput) (*task.TaskView, error)
	getFunc         func(ctx context.Context, p user.Principal, id string) (*task.TaskView, error)
	listFunc        func(ctx context.Context, req task.ListTasksRequest) (*task.Page, error)
	updateFunc      func(ctx context.Context, p user.Principal, id string, in task.UpdateInput) (*task.TaskView, error)
	deleteFunc      func(ctx context.Context, p user.Principal, id string) error
	setStatusFunc   func(ctx context.Context, p user.Principal, id, status string) (*task.TaskView, error)
	setPriorityFunc func(ctx context.Context, p user.Principal, id, priority string) (*task.TaskView, error)
}

func (m *mockTaskPort) Create(ctx context.Context, p user.Principal, in task.CreateInput) (*task.TaskView, error) {
	return m.createFunc(ctx, p, in)
}

func (m *mockTaskPort) Get(ctx context.Context, p user.Principal, id string) (*task.TaskView, error) {
	return m.getFunc(ctx, p, id)
}

func (m *mockTaskPort) List(ctx context.Context, req task.ListTasksRequest) (*task.Page, error) {
	return m.listFunc(ctx, req)
}

func (m *mockTaskPort) Update(ctx context.Context, p user.Principal, id string, in task.UpdateInput) (*task.TaskView, error) {
	return m.updateFunc(ctx, p, id, in)
}

func (m *mockTaskPort) Delete(ctx context.Context, p user.Principal, id string) error {
	return m.deleteFunc(ctx, p, id)
}

func (m *mockTaskPort) SetStatus(ctx context.Context, p user.Principal, id, status string) (*task.TaskView, error) {
	return m.setStatusFunc(ctx, p, id, status)
}

func (m *mockTaskPort) SetPriority(ctx context.Context, p user.Principal, id, priority string) (*task.TaskView, error) {
	return m.setPriorityFunc(ctx, p, id, priority)
}

func sampleView(id, owner string) *task.TaskView {
	return &task.TaskView{
		ID:          id,
		Title:       "Write report",
		Description: "Quarterly numbers",
		DueDate:     time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Priority:    taskdomain.PriorityHigh,
		Status:      taskdomain.StatusPending,
		CreatedBy:   task.UserRef{ID: owner},
		AssignedTo:  task.UserRef{ID: owner, Summary: &user.Summary{ID: owner, Username: owner}},
	}
}

func setupTestApp(t *testing.T, authPort auth.AuthPort, taskPort task.TaskPort, limiter RateLimiter) *fiber.App {
	t.Helper()
	app, err := newApp(authPort, taskPort, limiter, "*", &mockLogger{})
	require.NoError(t, err)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, token, body string) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return resp, out
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		authHeader  string
		wantStatus  int
		wantError   string
		wantMessage string
	}{
		{"missing header", "", http.StatusUnauthorized, "unauthorized", "Authorization header is required"},
		{"not bearer", "Basic abc", http.StatusUnauthorized, "unauthorized", "Invalid authorization header format. Use: Bearer <token>"},
		{"invalid token", "Bearer garbage", http.StatusUnauthorized, "unauthorized", "Invalid or expired token"},
		{"expired token", "Bearer expired", http.StatusUnauthorized, "unauthorized", "Invalid or expired token"},
		{"auth service failure", "Bearer unreachable", http.StatusInternalServerError, "internal_error", serverErrorMessage},
		{"valid token", "Bearer token-alice", http.StatusOK, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: errorHandler(&mockLogger{})})
			app.Use(AuthMiddleware(&mockAuthPort{}))
			app.Get("/test", func(c *fiber.Ctx) error {
				p, ok := principalFrom(c)
				if !ok {
					return c.SendStatus(http.StatusTeapot)
				}
				return c.JSON(fiber.Map{"id": p.ID})
			})

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, body["message"])
				assert.Equal(t, tt.wantError, body["error"])
			} else {
				assert.Equal(t, "alice", body["id"])
			}
		})
	}
}

func TestTaskRoutes_RequireAuth(t *testing.T) {
	app := setupTestApp(t, &mockAuthPort{}, &mockTaskPort{}, nil)

	routes := []struct{ method, path string }{
		{"GET", "/api/v1/tasks"},
		{"GET", "/api/v1/tasks/t1"},
		{"POST", "/api/v1/tasks"},
		{"PUT", "/api/v1/tasks/t1"},
		{"DELETE", "/api/v1/tasks/t1"},
		{"PATCH", "/api/v1/tasks/t1/status"},
		{"PATCH", "/api/v1/tasks/t1/priority"},
		{"GET", "/api/v1/auth/me"},
	}
	for _, r := range routes {
		resp, _ := doRequest(t, app, r.method, r.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", r.method, r.path)
	}
}

func TestListTasks(t *testing.T) {
	var got task.ListTasksRequest
	tasks := &mockTaskPort{
		listFunc: func(_ context.Context, req task.ListTasksRequest) (*task.Page, error) {
			got = req
			if req.Limit == "0" {
				return nil, taskdomain.NewValidationError("limit", "Limit must be a positive integer")
			}
			return &task.Page{
				Tasks:       []task.TaskView{*sampleView("t1", req.Principal.ID)},
				CurrentPage: 2,
				TotalPages:  3,
				TotalTasks:  21,
			}, nil
		},
	}
	app := setupTestApp(t, &mockAuthPort{}, tasks, nil)

	resp, body := doRequest(t, app, "GET", "/api/v1/tasks?page=2&limit=10&status=pending&priority=high", "admin-root", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "root", got.Principal.ID)
	assert.Equal(t, user.RoleAdmin, got.Principal.Role)
	assert.Equal(t, "2", got.Page)
	assert.Equal(t, "10", got.Limit)
	assert.Equal(t, "pending", got.Status)
	assert.Equal(t, "high", got.Priority)
	assert.EqualValues(t, 2, body["currentPage"])
	assert.EqualValues(t, 3, body["totalPages"])
	assert.EqualValues(t, 21, body["totalTasks"])
	require.Len(t, body["tasks"], 1)

	first := body["tasks"].([]any)[0].(map[string]any)
	assert.Equal(t, "root", first["createdBy"])
	assert.Equal(t, "root", first["assignedTo"].(map[string]any)["username"])

	resp, body = doRequest(t, app, "GET", "/api/v1/tasks?limit=0", "token-alice", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Validation failed", body["message"])
	errs := body["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "limit", errs[0].(map[string]any)["field"])
}

func TestGetTask_ErrorMapping(t *testing.T) {
	tests := []struct {
		id          string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"t1", nil, http.StatusOK, ""},
		{"missing", taskdomain.ErrTaskNotFound, http.StatusNotFound, "Task not found"},
		{"theirs", taskdomain.ErrForbidden, http.StatusForbidden, "Access denied"},
		{"broken", errors.New("get-task request failed: nats: timeout"), http.StatusInternalServerError, "Something went wrong!"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			tasks := &mockTaskPort{
				getFunc: func(_ context.Context, p user.Principal, id string) (*task.TaskView, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					v := sampleView(id, p.ID)
					v.CreatedBy = task.UserRef{ID: p.ID, Summary: &user.Summary{ID: p.ID, Email: "a@example.com"}}
					return v, nil
				},
			}
			app := setupTestApp(t, &mockAuthPort{}, tasks, nil)

			resp, body := doRequest(t, app, "GET", "/api/v1/tasks/"+tt.id, "token-alice", "")
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, body["message"])
				assert.NotContains(t, body["message"], "nats")
				return
			}
			assert.Equal(t, "t1", body["id"])
			assert.Equal(t, "a@example.com", body["createdBy"].(map[string]any)["email"])
			assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
		})
	}
}

func TestCreateTask(t *testing.T) {
	var got task.CreateInput
	tasks := &mockTaskPort{
		createFunc: func(_ context.Context, p user.Principal, in task.CreateInput) (*task.TaskView, error) {
			got = in
			if in.Title == "" {
				return nil, taskdomain.NewValidationError("title", "Title is required")
			}
			return sampleView("new", p.ID), nil
		},
	}
	app := setupTestApp(t, &mockAuthPort{}, tasks, nil)

	resp, body := doRequest(t, app, "POST", "/api/v1/tasks", "token-alice",
		`{"title":"Write report","description":"Quarterly","dueDate":"2026-02-01","priority":"high","assignedTo":"bob"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Task created successfully", body["message"])
	assert.Equal(t, "new", body["task"].(map[string]any)["id"])
	assert.Equal(t, "2026-02-01", got.DueDate)
	assert.Equal(t, "bob", got.AssignedTo)

	resp, body = doRequest(t, app, "POST", "/api/v1/tasks", "token-alice", `{"description":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", body["error"])

	resp, body = doRequest(t, app, "POST", "/api/v1/tasks", "token-alice", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid request body", body["message"])
}

func TestMutationRoutes(t *testing.T) {
	var calls []string
	tasks := &mockTaskPort{
		updateFunc: func(_ context.Context, p user.Principal, id string, in task.UpdateInput) (*task.TaskView, error) {
			calls = append(calls, "update:"+id+":"+in.Title)
			return sampleView(id, p.ID), nil
		},
		deleteFunc: func(_ context.Context, _ user.Principal, id string) error {
			calls = append(calls, "delete:"+id)
			return nil
		},
		setStatusFunc: func(_ context.Context, p user.Principal, id, status string) (*task.TaskView, error) {
			calls = append(calls, "status:"+id+":"+status)
			return sampleView(id, p.ID), nil
		},
		setPriorityFunc: func(_ context.Context, p user.Principal, id, priority string) (*task.TaskView, error) {
			calls = append(calls, "priority:"+id+":"+priority)
			return sampleView(id, p.ID), nil
		},
	}
	app := setupTestApp(t, &mockAuthPort{}, tasks, nil)

	tests := []struct {
		method, path, body string
		wantMessage        string
	}{
		{"PUT", "/api/v1/tasks/t1", `{"title":"Renamed"}`, "Task updated successfully"},
		{"DELETE", "/api/v1/tasks/t1", "", "Task deleted successfully"},
		{"PATCH", "/api/v1/tasks/t1/status", `{"status":"completed"}`, "Task status updated successfully"},
		{"PATCH", "/api/v1/tasks/t1/priority", `{"priority":"low"}`, "Task priority updated successfully"},
	}
	for _, tt := range tests {
		resp, body := doRequest(t, app, tt.method, tt.path, "token-alice", tt.body)
		assert.Equal(t, http.StatusOK, resp.StatusCode, "%s %s", tt.method, tt.path)
		assert.Equal(t, tt.wantMessage, body["message"])
	}

	assert.Equal(t, []string{
		"update:t1:Renamed",
		"delete:t1",
		"status:t1:completed",
		"priority:t1:low",
	}, calls)
}

func TestAuthRoutes(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	authPort := &mockAuthPort{
		registerFunc: func(_ context.Context, req auth.RegisterRequest) (*user.User, error) {
			if req.Email == "taken@example.com" {
				return nil, auth.ErrUserExists
			}
			if len(req.Password) < 8 {
				return nil, &auth.ValidationFailure{Message: "password must be at least 8 characters"}
			}
			return &user.User{ID: "u1", Username: req.Username, Email: req.Email, Role: user.RoleUser, CreatedAt: created}, nil
		},
		loginFunc: func(_ context.Context, email, password string) (*user.TokenPair, error) {
			if password != "correct-horse" {
				return nil, auth.ErrInvalidCredentials
			}
			return &user.TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 900, TokenType: "Bearer"}, nil
		},
		refreshFunc: func(_ context.Context, token string) (*user.TokenPair, error) {
			return nil, auth.ErrInvalidToken
		},
		getUserFunc: func(_ context.Context, id string) (*user.User, error) {
			return &user.User{ID: id, Username: id, Email: id + "@example.com", Role: user.RoleUser}, nil
		},
	}
	app := setupTestApp(t, authPort, &mockTaskPort{}, nil)

	tests := []struct {
		name        string
		method      string
		path        string
		token       string
		body        string
		wantStatus  int
		wantMessage string
	}{
		{"register", "POST", "/api/v1/auth/register", "", `{"username":"ann","email":"ann@example.com","password":"correct-horse"}`, http.StatusCreated, ""},
		{"register duplicate", "POST", "/api/v1/auth/register", "", `{"username":"ann","email":"taken@example.com","password":"correct-horse"}`, http.StatusConflict, "User with this email already exists"},
		{"register weak", "POST", "/api/v1/auth/register", "", `{"username":"ann","email":"ann@example.com","password":"short"}`, http.StatusBadRequest, "password must be at least 8 characters"},
		{"register missing fields", "POST", "/api/v1/auth/register", "", `{"username":"ann"}`, http.StatusBadRequest, "Email and password are required"},
		{"login", "POST", "/api/v1/auth/login", "", `{"email":"ann@example.com","password":"correct-horse"}`, http.StatusOK, ""},
		{"login wrong password", "POST", "/api/v1/auth/login", "", `{"email":"ann@example.com","password":"nope-nope"}`, http.StatusUnauthorized, "Invalid email or password"},
		{"refresh invalid", "POST", "/api/v1/auth/refresh", "", `{"refreshToken":"bad"}`, http.StatusUnauthorized, "Invalid or expired token"},
		{"refresh missing", "POST", "/api/v1/auth/refresh", "", `{}`, http.StatusBadRequest, "Refresh token is required"},
		{"me", "GET", "/api/v1/auth/me", "token-ann", "", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doRequest(t, app, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, body["message"])
			}
		})
	}

	_, body := doRequest(t, app, "POST", "/api/v1/auth/login", "", `{"email":"ann@example.com","password":"correct-horse"}`)
	assert.Equal(t, "a", body["accessToken"])
	assert.Equal(t, "Bearer", body["tokenType"])

	_, body = doRequest(t, app, "GET", "/api/v1/auth/me", "token-ann", "")
	assert.Equal(t, "ann@example.com", body["email"])
	assert.NotContains(t, body, "passwordHash")
}

// denyLimiter rejects every request after the first per key.
type denyLimiter struct {
	seen map[string]bool
}

func (l *denyLimiter) Middleware(key ratelimit.KeyFunc) fiber.Handler {
	return ratelimit.Middleware(l, key, &mockLogger{})
}

func (l *denyLimiter) Allow(_ context.Context, key string) (*ratelimit.Result, error) {
	if l.seen[key] {
		return &ratelimit.Result{Allowed: false, Limit: 1, RetryAfter: 30 * time.Second}, nil
	}
	l.seen[key] = true
	return &ratelimit.Result{Allowed: true, Limit: 1, Remaining: 0}, nil
}

func TestRateLimitedByPrincipal(t *testing.T) {
	tasks := &mockTaskPort{
		listFunc: func(context.Context, task.ListTasksRequest) (*task.Page, error) {
			return &task.Page{Tasks: []task.TaskView{}, CurrentPage: 1}, nil
		},
	}
	app := setupTestApp(t, &mockAuthPort{}, tasks, &denyLimiter{seen: map[string]bool{}})

	resp, _ := doRequest(t, app, "GET", "/api/v1/tasks", "token-alice", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-RateLimit-Limit"))

	resp, body := doRequest(t, app, "GET", "/api/v1/tasks", "token-alice", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "30", resp.Header.Get("Retry-After"))
	assert.Equal(t, "Too Many Requests", body["error"])

	resp, _ = doRequest(t, app, "GET", "/api/v1/tasks", "token-bob", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doRequest(t, app, "GET", "/api/v1/tasks", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "authentication runs before limiting")
}

func TestHealthAndUnknownRoute(t *testing.T) {
	app := setupTestApp(t, &mockAuthPort{}, &mockTaskPort{}, nil)

	resp, body := doRequest(t, app, "GET", "/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	resp, body = doRequest(t, app, "GET", "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["error"])
}

func TestPanicBecomesServerError(t *testing.T) {
	tasks := &mockTaskPort{
		getFunc: func(context.Context, user.Principal, string) (*task.TaskView, error) {
			panic("boom")
		},
	}
	app := setupTestApp(t, &mockAuthPort{}, tasks, nil)

	resp, body := doRequest(t, app, "GET", "/api/v1/tasks/t1", "token-alice", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Something went wrong!", body["message"])
}
