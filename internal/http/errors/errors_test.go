package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithFieldDoesNotMutateBase(t *testing.T) {
	t.Parallel()

	e := ErrInsufficientScopes.WithField("required_scope", "read:documents")
	assert.Empty(t, ErrInsufficientScopes.Fields)
	assert.Equal(t, "read:documents", e.Fields["required_scope"])

	d := ErrBadRequest.WithDetail("x")
	assert.Empty(t, ErrBadRequest.Detail)
	assert.Equal(t, "x", d.Detail)
}

func TestFromErrorUnwrapsAppError(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("ctx: %w", ErrTokenInvalid)
	assert.Same(t, ErrTokenInvalid, FromError(wrapped))

	generic := FromError(stderrors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, generic.HTTPStatus)
	assert.Equal(t, "server_error", generic.Code)
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteError(rec, ErrRateLimitExceeded.WithField("success", false).WithField("retryAfter", 12))

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit_exceeded", body["error"])
	assert.Equal(t, false, body["success"])
	assert.EqualValues(t, 12, body["retryAfter"])
	_, hasDetail := body["detail"]
	assert.False(t, hasDetail)
}
