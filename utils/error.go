package utils

import (
	"errors"
	"fmt"
	"strings"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrorCode is the machine-readable classification returned to callers so the
// UI can recover without guessing (bad edge vs. wrong role vs. missing field).
type ErrorCode string

const (
	ErrCodeValidation             ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidTransition      ErrorCode = "INVALID_TRANSITION"
	ErrCodeAccessDenied           ErrorCode = "ACCESS_DENIED"
	ErrCodeNotFound               ErrorCode = "NOT_FOUND"
	ErrCodeMissingRequiredField   ErrorCode = "MISSING_REQUIRED_FIELD"
	ErrCodeReturnQuantityExceeded ErrorCode = "RETURN_QUANTITY_EXCEEDED"
	ErrCodeConflict               ErrorCode = "CONFLICT"
	ErrCodeDependencyFailure      ErrorCode = "DEPENDENCY_FAILURE"
)

// ApiError is a terminal request error with actionable detail.
// LockedBy is set when a transition is reserved for another actor;
// Requires lists missing mandatory fields; Details carries per-item
// violation payloads (e.g. return guard violations).
type ApiError struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	LockedBy string    `json:"locked_by,omitempty"`
	Requires []string  `json:"requires,omitempty"`
	Details  any       `json:"details,omitempty"`
}

func (e *ApiError) Error() string {
	if len(e.Requires) > 0 {
		return fmt.Sprintf("%s: %s (requires: %s)", e.Code, e.Message, strings.Join(e.Requires, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewApiError(code ErrorCode, message string) *ApiError {
	return &ApiError{Code: code, Message: message}
}

func NewInvalidTransition(message string) *ApiError {
	return &ApiError{Code: ErrCodeInvalidTransition, Message: message}
}

func NewAccessDenied(message string, lockedBy string) *ApiError {
	return &ApiError{Code: ErrCodeAccessDenied, Message: message, LockedBy: lockedBy}
}

func NewMissingRequiredField(message string, requires []string) *ApiError {
	return &ApiError{Code: ErrCodeMissingRequiredField, Message: message, Requires: requires}
}

func NewConflict(message string) *ApiError {
	return &ApiError{Code: ErrCodeConflict, Message: message}
}

func NewDependencyFailure(message string, cause error) *ApiError {
	if cause != nil {
		message = message + ": " + cause.Error()
	}
	return &ApiError{Code: ErrCodeDependencyFailure, Message: message}
}

// AsApiError unwraps err into an *ApiError if it carries one.
func AsApiError(err error) (*ApiError, bool) {
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsErrorCode reports whether err is an ApiError with the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	apiErr, ok := AsApiError(err)
	return ok && apiErr.Code == code
}
