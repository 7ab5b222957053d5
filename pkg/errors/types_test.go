package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "error without cause",
			err: &Error{
				Code:    CodeValidation,
				Message: "issuer name is required",
			},
			want: "VAL_001: issuer name is required",
		},
		{
			name: "error with cause",
			err: &Error{
				Code:    CodeInternalStorage,
				Message: "failed to flush session",
				Cause:   errors.New("connection refused"),
			},
			want: "INT_002: failed to flush session: connection refused",
		},
		{
			name: "error with empty message",
			err: &Error{
				Code:    CodeInternal,
				Message: "",
			},
			want: "INT_001: ",
		},
		{
			name: "error with nested platform error cause",
			err: &Error{
				Code:    CodeInternal,
				Message: "operation failed",
				Cause: &Error{
					Code:    CodeTimeout,
					Message: "key fetch timeout",
				},
			},
			want: "INT_001: operation failed: TIMEOUT_001: key fetch timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()
	cause := errors.New("underlying error")
	err := &Error{
		Code:    CodeInternal,
		Message: "operation failed",
		Cause:   cause,
	}

	assert.Equal(t, cause, err.Unwrap())

	errNoCause := &Error{
		Code:    CodeValidation,
		Message: "invalid input",
	}

	assert.Nil(t, errNoCause.Unwrap())
}

func TestError_Unwrap_ErrorsIs(t *testing.T) {
	t.Parallel()
	cause := errors.New("specific error")
	err := Wrap(cause, CodeInternal, "wrapped")

	assert.True(t, errors.Is(err, cause))
}

func TestError_HTTPStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		code Code
		want int
	}{
		{"validation maps to 400", CodeValidation, http.StatusBadRequest},
		{"required field maps to 400", CodeValidationRequired, http.StatusBadRequest},
		{"authentication maps to 401", CodeAuthentication, http.StatusUnauthorized},
		{"expired token maps to 401", CodeAuthenticationExpired, http.StatusUnauthorized},
		{"undecodable token maps to 401", CodeAuthenticationInvalid, http.StatusUnauthorized},
		{"authorization maps to 403", CodeAuthorization, http.StatusForbidden},
		{"not found maps to 404", CodeNotFound, http.StatusNotFound},
		{"unsupported maps to 501", CodeUnsupported, http.StatusNotImplemented},
		{"unhandled verb maps to 501", CodeUnsupportedVerb, http.StatusNotImplemented},
		{"configuration maps to 500", CodeConfiguration, http.StatusInternalServerError},
		{"internal maps to 500", CodeInternal, http.StatusInternalServerError},
		{"timeout maps to 504", CodeTimeout, http.StatusGatewayTimeout},
		{"unknown category maps to 500", Code("BOGUS_001"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := &Error{Code: tt.code, Message: "test"}
			assert.Equal(t, tt.want, err.HTTPStatus())
		})
	}
}

func TestError_WithDetails(t *testing.T) {
	t.Parallel()
	original := New(CodeConfigurationUnknownType, "unrecognized type")
	detailed := original.WithDetails(map[string]any{"type": "MysteryIssuer"})

	// Original is not modified.
	assert.Empty(t, original.Details)
	assert.Equal(t, "MysteryIssuer", detailed.Details["type"])
	assert.Equal(t, original.Code, detailed.Code)
	assert.Equal(t, original.Message, detailed.Message)
}

func TestError_WithDetail(t *testing.T) {
	t.Parallel()
	err := New(CodeValidation, "bad field").
		WithDetail("field", "audiences").
		WithDetail("section", "JWT")

	assert.Equal(t, "audiences", err.Details["field"])
	assert.Equal(t, "JWT", err.Details["section"])
}

func TestError_Format(t *testing.T) {
	t.Parallel()
	err := &Error{
		Code:    CodeAuthentication,
		Message: "Not Authorized",
		Cause:   errors.New("token undecodable"),
		Details: map[string]any{"source": "header"},
	}

	plain := fmt.Sprintf("%v", err)
	assert.Contains(t, plain, "AUTH_001")
	assert.Contains(t, plain, "Not Authorized")

	verbose := fmt.Sprintf("%+v", err)
	assert.Contains(t, verbose, `Code: "AUTH_001"`)
	assert.Contains(t, verbose, "Details")
	assert.Contains(t, verbose, "token undecodable")

	quoted := fmt.Sprintf("%q", err)
	assert.Contains(t, quoted, "AUTH_001")
}
