// Package apperr defines the error taxonomy shared by the scheduling core,
// the services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed input. Nothing was mutated and the
// caller may retry once the input is fixed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Validation builds a ValidationError
func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Domain error codes
const (
	CodeMedicationInactive = "MEDICATION_INACTIVE"
	CodeSlotNotFound       = "SLOT_NOT_FOUND"
	CodeNoInventory        = "NO_INVENTORY"
)

// DomainError reports a request that is well formed but not allowed in the
// current state of the medication.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Domain builds a DomainError
func Domain(code, format string, args ...any) error {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ConflictError signals that an action replays a cycle that is already
// resolved. It is not a failure: callers return the prior result.
type ConflictError struct {
	SlotID  string
	CycleAt string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot %s cycle %s already resolved", e.SlotID, e.CycleAt)
}

// DispatchError reports a failed notification delivery
type DispatchError struct {
	Channel string
	Target  string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch via %s failed: %v", e.Channel, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is or wraps a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsDomain reports whether err is or wraps a DomainError
func IsDomain(err error) bool {
	var d *DomainError
	return errors.As(err, &d)
}

// IsConflict reports whether err is or wraps a ConflictError
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// HTTPStatus maps an error to the status code the API responds with
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case IsDomain(err):
		return http.StatusUnprocessableEntity
	case IsConflict(err):
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the API error code for err
func Code(err error) string {
	var d *DomainError
	switch {
	case IsValidation(err):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.As(err, &d):
		return d.Code
	case IsConflict(err):
		return "ALREADY_RESOLVED"
	default:
		return "INTERNAL_ERROR"
	}
}
