package api

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// APIError is the JSON error body of every failed request.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
	Details    any    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewBadRequestError(message string) *APIError {
	return &APIError{
		StatusCode: fiber.StatusBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
	}
}

func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		StatusCode: fiber.StatusUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
	}
}

func NewNotFoundError(resource string) *APIError {
	return &APIError{
		StatusCode: fiber.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
	}
}

func NewInternalError() *APIError {
	return &APIError{
		StatusCode: fiber.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    "An internal error occurred",
	}
}

// toAPIError maps the core error taxonomy onto HTTP statuses.
func toAPIError(err error) *APIError {
	var (
		apiErr   *APIError
		fiberErr *fiber.Error
		valErr   *core.ValidationError
		overErr  *core.OverpaymentError
		notFound *core.NotFoundError
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &fiberErr):
		return &APIError{StatusCode: fiberErr.Code, Code: "HTTP_ERROR", Message: fiberErr.Message}
	case errors.Is(err, core.ErrDebtCancelled), errors.Is(err, core.ErrDebtSettled):
		return &APIError{StatusCode: fiber.StatusUnprocessableEntity, Code: "DEBT_CLOSED", Message: err.Error()}
	case errors.As(err, &valErr):
		return &APIError{
			StatusCode: fiber.StatusBadRequest,
			Code:       "VALIDATION_FAILED",
			Message:    valErr.Err.Error(),
			Field:      valErr.Field,
		}
	case errors.As(err, &overErr):
		return &APIError{
			StatusCode: fiber.StatusUnprocessableEntity,
			Code:       "OVERPAYMENT",
			Message:    overErr.Error(),
			Details: fiber.Map{
				"requested": overErr.Requested.String(),
				"remaining": overErr.Remaining.String(),
			},
		}
	case errors.As(err, &notFound):
		return NewNotFoundError(notFound.Kind)
	case errors.Is(err, core.ErrNotFound):
		return NewNotFoundError("record")
	case errors.Is(err, core.ErrConflict):
		return &APIError{StatusCode: fiber.StatusConflict, Code: "CONFLICT", Message: "record was modified concurrently, retry"}
	default:
		return NewInternalError()
	}
}

// ErrorHandler renders errors returned by handlers as APIError bodies.
// Unexpected errors are logged and answered with a generic message.
func ErrorHandler(logger *applog.Logger) fiber.ErrorHandler {
	sl := applog.NewStructuredLogger(logger)
	return func(c fiber.Ctx, err error) error {
		apiErr := toAPIError(err)
		if apiErr.StatusCode >= fiber.StatusInternalServerError {
			sl.LogError(c.Context(), "Request failed", err, applog.ComponentHTTP, c.Method()+" "+c.Path(),
				applog.NewFields().WithRequestID(requestID(c)))
		}
		return c.Status(apiErr.StatusCode).JSON(apiErr)
	}
}
