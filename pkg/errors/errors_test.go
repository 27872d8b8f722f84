package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("db down"))
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
}

func TestCloneMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Clone(ErrTooManyAttempts, "slow down"))
	assert.True(t, errors.Is(err, ErrTooManyAttempts))
	assert.False(t, errors.Is(err, ErrCSRF))
}

func TestFieldError(t *testing.T) {
	err := Field("username", "username is already taken")
	assert.Equal(t, ErrValidation.Code, err.Code)
	assert.Equal(t, "username is already taken", err.Fields["username"])
	assert.Nil(t, ErrValidation.Fields)
}
