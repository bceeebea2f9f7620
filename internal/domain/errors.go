package domain

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError names one violated input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every violated input field, not just the first.
// Always recoverable by the caller correcting input.
type ValidationError struct {
	Fields []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NotBookableError means the schedule, bus or a terminal is not operational
// or the route has already departed. Carries every failing precondition.
type NotBookableError struct {
	Reasons []string
}

func (e NotBookableError) Error() string {
	if len(e.Reasons) == 0 {
		return "schedule is not bookable"
	}
	return "schedule is not bookable: " + strings.Join(e.Reasons, ", ")
}

// InsufficientCapacityError means the admission check under lock found less
// capacity than requested. Recoverable by reducing quantity or picking
// another schedule.
type InsufficientCapacityError struct {
	Requested int
	Available int
}

func (e InsufficientCapacityError) Error() string {
	return fmt.Sprintf("insufficient capacity: requested %d, available %d", e.Requested, e.Available)
}

// ContentionError means the admission lock could not be acquired within the
// configured timeout. Recoverable by retry.
type ContentionError struct {
	Err error
}

func (e ContentionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("admission lock timed out: %v", e.Err)
	}
	return "admission lock timed out"
}

func (e ContentionError) Unwrap() error { return e.Err }

// NotFoundError means an unknown schedule or order id.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// AuthorizationError means the actor is not permitted to perform the
// requested lifecycle operation, including state-based refusals such as
// cancelling a non-pending order.
type AuthorizationError struct {
	Msg string
}

func (e AuthorizationError) Error() string {
	if e.Msg == "" {
		return "not authorized"
	}
	return e.Msg
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsNotBookable(err error) bool {
	var target NotBookableError
	return errors.As(err, &target)
}

func IsInsufficientCapacity(err error) bool {
	var target InsufficientCapacityError
	return errors.As(err, &target)
}

func IsContention(err error) bool {
	var target ContentionError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsAuthorization(err error) bool {
	var target AuthorizationError
	return errors.As(err, &target)
}
