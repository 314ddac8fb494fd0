package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeNotFound, "employee not found", baseErr)

	assert.Equal(t, ErrorTypeNotFound, domainErr.Type)
	assert.Equal(t, "employee not found", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name: "error with wrapped error",
			err: &DomainError{
				Type:    ErrorTypeExternal,
				Message: "model endpoint error",
				Err:     errors.New("connection refused"),
			},
			wantMsg: "external: model endpoint error (connection refused)",
		},
		{
			name: "error without wrapped error",
			err: &DomainError{
				Type:    ErrorTypeValidation,
				Message: "invalid input",
			},
			wantMsg: "validation: invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeInternal, "internal error", baseErr)

	assert.Equal(t, baseErr, errors.Unwrap(domainErr))
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same error type",
			err:    NewDomainError(ErrorTypeNotFound, "no such employee", nil),
			target: ErrEmployeeNotFound,
			want:   true,
		},
		{
			name:   "different error type",
			err:    NewDomainError(ErrorTypeValidation, "validation", nil),
			target: ErrEmployeeNotFound,
			want:   false,
		},
		{
			name:   "not a domain error",
			err:    NewDomainError(ErrorTypeNotFound, "not found", nil),
			target: errors.New("regular error"),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := NewDomainError(ErrorTypeValidation, "validation error", nil)

	err.WithDetail("field", "messages").WithDetail("index", 2)

	assert.Equal(t, "messages", err.Details["field"])
	assert.Equal(t, 2, err.Details["index"])
}

func TestDomainError_WrapLeavesSentinelUntouched(t *testing.T) {
	cause := errors.New("connection refused")

	wrapped := ErrModelUnavailable.Wrap(cause).WithDetail("provider", "ollama")

	assert.Equal(t, cause, errors.Unwrap(wrapped))
	assert.True(t, errors.Is(wrapped, ErrModelUnavailable))
	assert.Equal(t, "ollama", wrapped.Details["provider"])
	assert.Empty(t, ErrModelUnavailable.Details)
	assert.Nil(t, ErrModelUnavailable.Err)
}

func TestErrorTypeHelpers(t *testing.T) {
	internal := WrapInternal("query failed", errors.New("conn reset"))

	tests := []struct {
		name  string
		check func(error) bool
		yes   []error
		no    []error
	}{
		{
			name:  "not found",
			check: IsNotFoundError,
			yes:   []error{ErrEmployeeNotFound, fmt.Errorf("wrapped: %w", ErrEmployeeNotFound)},
			no:    []error{ErrEmptyMessages, errors.New("regular"), nil},
		},
		{
			name:  "validation",
			check: IsValidationError,
			yes:   []error{ErrEmptyMessages, ErrInvalidRole.Wrap(nil)},
			no:    []error{ErrEmployeeNotFound},
		},
		{
			name:  "timeout",
			check: IsTimeoutError,
			yes:   []error{ErrModelTimeout, ErrModelTimeout.Wrap(errors.New("deadline"))},
			no:    []error{ErrModelUnavailable},
		},
		{
			name:  "internal",
			check: IsInternalError,
			yes:   []error{internal},
			no:    []error{ErrModelUnavailable},
		},
		{
			name:  "external",
			check: IsExternalError,
			yes:   []error{ErrModelUnavailable},
			no:    []error{internal, ErrModelTimeout},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, err := range tt.yes {
				assert.True(t, tt.check(err), "expected match for %v", err)
			}
			for _, err := range tt.no {
				assert.False(t, tt.check(err), "unexpected match for %v", err)
			}
		})
	}
}

func TestGetErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"not found", ErrEmployeeNotFound, ErrorTypeNotFound},
		{"validation", ErrInvalidRole, ErrorTypeValidation},
		{"timeout", ErrModelTimeout, ErrorTypeTimeout},
		{"external", ErrModelUnavailable, ErrorTypeExternal},
		{"regular error", errors.New("regular"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorType(tt.err))
		})
	}
}

func TestGetErrorDetails(t *testing.T) {
	err := NewDomainError(ErrorTypeValidation, "validation error", nil)
	err.WithDetail("field", "role").WithDetail("reason", "unknown role")

	details := GetErrorDetails(err)
	require.NotNil(t, details)
	assert.Equal(t, "role", details["field"])
	assert.Equal(t, "unknown role", details["reason"])

	assert.Nil(t, GetErrorDetails(errors.New("regular error")))
}

func TestWrapInternal(t *testing.T) {
	baseErr := errors.New("database connection failed")
	wrapped := WrapInternal("failed to connect", baseErr)

	assert.True(t, IsInternalError(wrapped))
	assert.Equal(t, baseErr, errors.Unwrap(wrapped))
}
