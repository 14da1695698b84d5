package api

import (
	"errors"

	taskdomain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/modules/auth"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
)

// serverErrorMessage is the only detail a client sees for unexpected failures.
const serverErrorMessage = "Something went wrong!"

// errorHandler maps handler errors onto the error envelope. Anything not
// recognised is logged with the request id and reported as a generic 500.
func errorHandler(logger types.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, body := classify(err)
		if status == fiber.StatusInternalServerError {
			logger.Error("Request failed",
				"request_id", requestID(c),
				"method", c.Method(),
				"path", c.Path(),
				"error", err)
		}
		return c.Status(status).JSON(body)
	}
}

func classify(err error) (int, ErrorResponse) {
	var (
		verr  *taskdomain.ValidationError
		averr *auth.ValidationFailure
		ferr  *fiber.Error
	)

	switch {
	case errors.As(err, &verr):
		return fiber.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Validation failed", Errors: verr.Fields}
	case errors.As(err, &averr):
		return fiber.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: averr.Message}
	case errors.Is(err, taskdomain.ErrForbidden):
		return fiber.StatusForbidden, ErrorResponse{Error: "forbidden", Message: "Access denied"}
	case errors.Is(err, taskdomain.ErrTaskNotFound):
		return fiber.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Task not found"}
	case errors.Is(err, auth.ErrUserNotFound):
		return fiber.StatusNotFound, ErrorResponse{Error: "not_found", Message: "User not found"}
	case errors.Is(err, auth.ErrInvalidCredentials):
		return fiber.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Invalid email or password"}
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return fiber.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Invalid or expired token"}
	case errors.Is(err, auth.ErrUserExists):
		return fiber.StatusConflict, ErrorResponse{Error: "conflict", Message: "User with this email already exists"}
	case errors.As(err, &ferr):
		if ferr.Code < fiber.StatusInternalServerError {
			return ferr.Code, ErrorResponse{Error: errorCode(ferr.Code), Message: ferr.Message}
		}
	}
	return fiber.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: serverErrorMessage}
}

func errorCode(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "bad_request"
	case fiber.StatusUnauthorized:
		return "unauthorized"
	case fiber.StatusForbidden:
		return "forbidden"
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	case fiber.StatusRequestEntityTooLarge:
		return "payload_too_large"
	}
	return "bad_request"
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}
