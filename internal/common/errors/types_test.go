package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name:     "basic error",
			appError: &AppError{Type: ErrTypeConfiguration, Message: "target url is invalid"},
			want:     "configuration: target url is invalid",
		},
		{
			name:     "error with code",
			appError: &AppError{Type: ErrTypeAuth, Message: "token expired", Code: CodeTokenExpired},
			want:     "authentication: token expired: code=token_expired",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeConnection,
				Message: "redis unavailable",
				Cause:   errors.New("dial tcp: refused"),
			},
			want: "connection: redis unavailable: cause=dial tcp: refused",
		},
		{
			name: "context keys are sorted",
			appError: &AppError{
				Type:    ErrTypeValidation,
				Message: "bad field",
				Context: map[string]interface{}{"value": "x", "field": "target_url"},
			},
			want: "validation: bad field: context={field=target_url, value=x}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.appError.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := InternalError("wrapped", cause)
	assert.True(t, errors.Is(err, cause))
}

func TestConstructorsCarryCodes(t *testing.T) {
	tests := []struct {
		err    *AppError
		typ    ErrorType
		code   string
		status int
	}{
		{AuthError(CodeTokenRevoked, "revoked"), ErrTypeAuth, CodeTokenRevoked, http.StatusUnauthorized},
		{ForbiddenError("admin"), ErrTypeForbidden, CodeInsufficientScope, http.StatusForbidden},
		{RateLimitError("slow down"), ErrTypeRateLimit, CodeRateLimited, http.StatusTooManyRequests},
		{ConfigurationError("bad url"), ErrTypeConfiguration, CodeInvalidConfiguration, http.StatusBadRequest},
		{ValidationError("missing"), ErrTypeValidation, CodeInvalidRequest, http.StatusBadRequest},
		{NotFoundError("subscription"), ErrTypeNotFound, CodeNotFound, http.StatusNotFound},
		{ConflictError("exists"), ErrTypeConflict, CodeConflict, http.StatusConflict},
		{InternalError("oops", nil), ErrTypeInternal, CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.err.Type)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestTypeHelpersSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("storing token: %w", AuthError(CodeTokenMalformed, "bad"))

	assert.True(t, IsType(wrapped, ErrTypeAuth))
	assert.Equal(t, ErrTypeAuth, GetType(wrapped))
	assert.Equal(t, CodeTokenMalformed, CodeOf(wrapped))

	plain := errors.New("plain")
	assert.Equal(t, ErrTypeInternal, GetType(plain))
	assert.Equal(t, CodeInternal, CodeOf(plain))
	assert.Equal(t, ErrorType(""), GetType(nil))
	assert.Empty(t, CodeOf(nil))
}

func TestWriteHTTP(t *testing.T) {
	t.Run("auth error keeps its message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteHTTP(rec, AuthError(CodeTokenExpired, "token has expired"))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, Response{Code: CodeTokenExpired, Message: "token has expired"}, body)
	})

	t.Run("internal details are hidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteHTTP(rec, InternalError("sql: connection reset on host db-3", nil))

		var body Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, CodeInternal, body.Code)
		assert.NotContains(t, body.Message, "db-3")
	})
}
