package apperr

import (
	"errors"
	"fmt"
)

// Machine-readable kinds surfaced to the route layer. The limiter codes are
// returned unchanged so the frontend can render upgrade prompts.
const (
	KindValidation   = "VALIDATION_ERROR"
	KindNotFound     = "NOT_FOUND"
	KindConflict     = "CONFLICT"
	KindInvalidState = "INVALID_STATE"
)

type LimitCode string

const (
	CodeInsufficientPlan      LimitCode = "INSUFFICIENT_PLAN"
	CodeFeatureNotAvailable   LimitCode = "FEATURE_NOT_AVAILABLE"
	CodeLimitExceeded         LimitCode = "LIMIT_EXCEEDED"
	CodeResourceLimitExceeded LimitCode = "RESOURCE_LIMIT_EXCEEDED"
)

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidation(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func NewNotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func NewConflict(format string, args ...any) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string { return e.Message }

func NewInvalidState(format string, args ...any) error {
	return &InvalidStateError{Message: fmt.Sprintf(format, args...)}
}

// LimitExceededError carries the structured details the plan limiter attaches
// to a rejected action: the limiter never mutates the counter on failure, so
// Current reflects the untouched value.
type LimitExceededError struct {
	Code     LimitCode
	Resource string
	Plan     string
	Limit    int
	Current  int
}

func (e *LimitExceededError) Error() string {
	switch e.Code {
	case CodeInsufficientPlan:
		return fmt.Sprintf("no active subscription covers %s", e.Resource)
	case CodeFeatureNotAvailable:
		return fmt.Sprintf("feature %s not available on plan %s", e.Resource, e.Plan)
	default:
		return fmt.Sprintf("limit for %s exceeded (%d/%d on plan %s)", e.Resource, e.Current, e.Limit, e.Plan)
	}
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

func AsLimitExceeded(err error) (*LimitExceededError, bool) {
	var target *LimitExceededError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
