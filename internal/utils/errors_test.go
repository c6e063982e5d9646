package utils

import (
	"context"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type fakeTimeout struct{}

func (fakeTimeout) Error() string { return "i/o timeout" }
func (fakeTimeout) Timeout() bool { return true }

func TestErrorKinds(t *testing.T) {
	serverErr := NewServerError(http.StatusNotFound, "User not found")
	assert.True(t, IsServerError(serverErr))
	assert.False(t, IsTransportError(serverErr))
	assert.Equal(t, ErrNotFound, serverErr.Code)
	assert.Equal(t, http.StatusNotFound, serverErr.Status)

	transportErr := NewTransportError("GET /posts/all", errors.New("connection refused"))
	assert.True(t, IsTransportError(transportErr))
	assert.Equal(t, ErrNetwork, transportErr.Code)

	timeoutErr := NewTransportError("GET /posts/all", fakeTimeout{})
	assert.Equal(t, ErrTimeout, timeoutErr.Code)

	deadlineErr := NewTransportError("GET /posts/all", context.DeadlineExceeded)
	assert.Equal(t, ErrTimeout, deadlineErr.Code)

	validationErr := NewValidationError(ErrEmptyComment, "comment text is required")
	assert.True(t, IsValidationError(validationErr))
}

func TestErrorsSurviveWrapping(t *testing.T) {
	wrapped := errors.Wrap(NewServerError(http.StatusUnauthorized, "Unauthorized: No Token Provided"), "load feed")

	assert.True(t, IsServerError(wrapped))
	assert.True(t, IsAuthError(wrapped))
	assert.True(t, IsErrorCode(wrapped, ErrUnauthorized))
	assert.Equal(t, "Unauthorized: No Token Provided", UserMessage(wrapped))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Post not found", UserMessage(NewServerError(http.StatusNotFound, "Post not found")))
	assert.Equal(t, GenericFailureMessage, UserMessage(NewServerError(http.StatusInternalServerError, "")))
	assert.Equal(t, GenericFailureMessage, UserMessage(NewTransportError("POST /posts/like/1", errors.New("connection refused"))))
	assert.Equal(t, GenericFailureMessage, UserMessage(errors.New("boom")))
	assert.Equal(t, "nothing to update", UserMessage(NewValidationError(ErrNoChanges, "nothing to update")))
}

func TestHTTPStatusToCode(t *testing.T) {
	assert.Equal(t, ErrBadRequest, HTTPStatusToCode(400))
	assert.Equal(t, ErrForbidden, HTTPStatusToCode(403))
	assert.Equal(t, ErrConflict, HTTPStatusToCode(409))
	assert.Equal(t, ErrRateLimited, HTTPStatusToCode(429))
	assert.Equal(t, ErrServer, HTTPStatusToCode(502))
}
