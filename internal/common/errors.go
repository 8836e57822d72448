package common

import (
	"errors"
	"net/http"
)

// Error codes shared across the API surface.
const (
	CodeValidation        = "VALIDATION"
	CodeEligibility       = "ELIGIBILITY"
	CodeCollaborator      = "COLLABORATOR"
	CodeSettlementPending = "SETTLEMENT_PENDING"
	CodeNotFound          = "NOT_FOUND"
	CodeInternal          = "INTERNAL"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// ValidationError reports failed step invariants. Fields maps the offending
// field name to a human-readable message. It is always recoverable.
func ValidationError(message string, fields map[string]string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    fields,
	}
}

// EligibilityError reports that the chosen payment method cannot cover the
// amount. The user recovers by switching method or topping up.
func EligibilityError(message string) *AppError {
	return &AppError{Code: CodeEligibility, Message: message, HTTPStatus: http.StatusConflict}
}

// CollaboratorError wraps a failed catalog, payment or cart collaborator call.
// Composed state is never discarded on this class of failure.
func CollaboratorError(message string, err error) *AppError {
	return &AppError{Code: CodeCollaborator, Message: message, HTTPStatus: http.StatusBadGateway, Err: err}
}

// SettlementPending signals that a payment was dispatched but confirmation is
// still unknown. It is distinct from both success and failure and blocks a
// second charge attempt until resolved or explicitly confirmed by the user.
func SettlementPending(message string) *AppError {
	return &AppError{Code: CodeSettlementPending, Message: message, HTTPStatus: http.StatusAccepted}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// AsAppError extracts the AppError from the chain, falling back to an
// INTERNAL wrapper so handlers always have a renderable shape.
func AsAppError(err error) *AppError {
	var target *AppError
	if errors.As(err, &target) {
		return target
	}
	return &AppError{Code: CodeInternal, Message: "internal error", HTTPStatus: http.StatusInternalServerError, Err: err}
}
