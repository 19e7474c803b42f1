package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOfWrappedError(t *testing.T) {
	err := fmt.Errorf("handle event: %w", New(CodePermissionDenied, "admins only"))

	assert.Equal(t, CodePermissionDenied, CodeOf(err))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(err))
}

func TestCodeOfPlainErrorIsInternal(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
}

func TestPublicHidesExistence(t *testing.T) {
	code, msg := Public(New(CodeNotParticipant, "user is not a participant"))
	assert.Equal(t, CodeNotParticipant, code)
	assert.Equal(t, Inaccessible, msg)

	code, msg = Public(New(CodeNotFound, "chat not found"))
	assert.Equal(t, CodeNotFound, code)
	assert.Equal(t, Inaccessible, msg)
}

func TestPublicHidesInternalDetails(t *testing.T) {
	code, msg := Public(Wrap(errors.New("dial tcp: refused"), CodeInternal, "load chat"))

	assert.Equal(t, CodeInternal, code)
	assert.Equal(t, "internal error", msg)
}

func TestSentinelMatchesWithErrorsIs(t *testing.T) {
	err := fmt.Errorf("outer: %w", ErrAuthenticationRequired)

	require.ErrorIs(t, err, ErrAuthenticationRequired)
	assert.NotErrorIs(t, err, ErrRateLimited)
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("cause")
	err := Wrap(cause, CodeInternal, "save chat")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "save chat")
}
