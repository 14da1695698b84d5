package api

import (
	"github.com/example/task-tracker/domain/user"
	"github.com/example/task-tracker/modules/auth"
	"github.com/example/task-tracker/modules/task"
	"github.com/gofiber/fiber/v2"
)

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	auth  auth.AuthPort
	tasks task.TaskPort
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(authPort auth.AuthPort, taskPort task.TaskPort) *Handlers {
	return &Handlers{
		auth:  authPort,
		tasks: taskPort,
	}
}

var errInvalidBody = fiber.NewError(fiber.StatusBadRequest, "Invalid request body")

// Register handles user registration.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return errInvalidBody
	}
	if req.Email == "" || req.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Email and password are required")
	}

	u, err := h.auth.Register(c.UserContext(), auth.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(newUserResponse(u))
}

// Login handles user login.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return errInvalidBody
	}
	if req.Email == "" || req.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Email and password are required")
	}

	pair, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(newTokenResponse(pair))
}

// Refresh handles token refresh.
func (h *Handlers) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return errInvalidBody
	}
	if req.RefreshToken == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Refresh token is required")
	}

	pair, err := h.auth.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(newTokenResponse(pair))
}

// Me returns the authenticated user.
func (h *Handlers) Me(c *fiber.Ctx) error {
	p, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	u, err := h.auth.GetUser(c.UserContext(), p.ID)
	if err != nil {
		return err
	}
	return c.JSON(newUserResponse(u))
}

// ListTasks returns one page of the caller's own tasks.
func (h *Handlers) ListTasks(c *fiber.Ctx) error {
	p, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	page, err := h.tasks.List(c.UserContext(), task.ListTasksRequest{
		Principal: p,
		Page:      c.Query("page"),
		Limit:     c.Query("limit"),
		Status:    c.Query("status"),
		Priority:  c.Query("priority"),
	})
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// GetTask returns one task with both user references expanded.
func (h *Handlers) GetTask(c *fiber.Ctx) error {
	p, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	v, err := h.tasks.Get(c.UserContext(), p, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(v)
}

// CreateTask creates a task owned by the caller.
func (h *Handlers) CreateTask(c *fiber.Ctx) error {
	p, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	var in task.CreateInput
	if err := c.BodyParser(&in); err != nil {
		return errInvalidBody
	}
	v, err := h.tasks.Create(c.UserContext(), p, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(TaskMessageResponse{
		Message: "Task created successfully",
		Task:    v,
	})
}

// UpdateTask replaces the supplied fields of a task.
func (h *Handlers) UpdateTask(c *fiber.Ctx) error {
	p, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	var in task.UpdateInput
	if err := c.BodyParser(&in); err != nil {
		return errInvalidBody
	}
	v, err := h.tasks.Update(c.UserContext(), p, c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(TaskMessageResponse{
		Message: "Task updated successfully",
		Task:    v,
	})
}

// DeleteTask permanently removes a task.
func (h *Handlers) DeleteTask(c *fiber.Ctx) error {
	p, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.tasks.Delete(c.UserContext(), p, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(MessageResponse{Message: "Task deleted successfully"})
}

// UpdateStatus sets the status of a task.
func (h *Handlers) UpdateStatus(c *fiber.Ctx) error {
	p, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	var req StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return errInvalidBody
	}
	v, err := h.tasks.SetStatus(c.UserContext(), p, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(TaskMessageResponse{
		Message: "Task status updated successfully",
		Task:    v,
	})
}

// UpdatePriority sets the priority of a task.
func (h *Handlers) UpdatePriority(c *fiber.Ctx) error {
	p, err := mustPrincipal(c)
	if err != nil {
		return err
	}
	var req PriorityRequest
	if err := c.BodyParser(&req); err != nil {
		return errInvalidBody
	}
	v, err := h.tasks.SetPriority(c.UserContext(), p, c.Params("id"), req.Priority)
	if err != nil {
		return err
	}
	return c.JSON(TaskMessageResponse{
		Message: "Task priority updated successfully",
		Task:    v,
	})
}

func mustPrincipal(c *fiber.Ctx) (user.Principal, error) {
	p, ok := principalFrom(c)
	if !ok {
		return user.Principal{}, fiber.NewError(fiber.StatusUnauthorized, "User not authenticated")
	}
	return p, nil
}
