package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "validation",
			err:    Validation("quantity", "must be positive"),
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "wrapped validation",
			err:    fmt.Errorf("failed to apply action: %w", Validation("", "bad input")),
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "domain",
			err:    Domain(CodeMedicationInactive, "medication not currently active"),
			status: http.StatusUnprocessableEntity,
			code:   CodeMedicationInactive,
		},
		{
			name:   "not found",
			err:    fmt.Errorf("medication abc: %w", ErrNotFound),
			status: http.StatusNotFound,
			code:   "NOT_FOUND",
		},
		{
			name:   "conflict is not a failure",
			err:    &ConflictError{SlotID: "s1", CycleAt: "2024-01-01T08:00:00Z"},
			status: http.StatusOK,
			code:   "ALREADY_RESOLVED",
		},
		{
			name:   "unknown",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			code:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
			assert.Equal(t, tt.code, Code(tt.err))
		})
	}
}

func TestDispatchError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &DispatchError{Channel: "sms", Target: "+3612345678", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "sms")
}
