package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Category is the stable machine-checkable error class carried in every
// error response next to the human-readable message.
type Category string

const (
	Validation       Category = "validation"
	Unauthorized     Category = "unauthorized"
	Forbidden        Category = "forbidden"
	AlreadyProcessed Category = "already_processed"
	NotFound         Category = "not_found"
	Downstream       Category = "downstream_failure"
)

type Error struct {
	Category Category
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(cat Category, msg string) *Error {
	return &Error{Category: cat, Message: msg}
}

func Newf(cat Category, format string, args ...any) *Error {
	return &Error{Category: cat, Message: fmt.Sprintf(format, args...)}
}

// Wrap keeps the underlying cause for logs while the response only ever
// shows category + message.
func Wrap(cat Category, msg string, err error) *Error {
	return &Error{Category: cat, Message: msg, Err: err}
}

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HTTPStatus maps a category to its response status. AlreadyProcessed is
// intentionally not here: guarded-transition losers are answered with a
// success-shaped body, never an error status.
func HTTPStatus(cat Category) int {
	switch cat {
	case Validation:
		return fiber.StatusUnprocessableEntity
	case Unauthorized:
		return fiber.StatusUnauthorized
	case Forbidden:
		return fiber.StatusForbidden
	case NotFound:
		return fiber.StatusNotFound
	case Downstream:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
