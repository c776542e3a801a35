package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{NewNotFound("Referral", nil), http.StatusNotFound},
		{NewBadRequest("bad", nil), http.StatusBadRequest},
		{NewConflict("taken", nil), http.StatusConflict},
		{Unauthorized("", nil), http.StatusUnauthorized},
		{Forbidden(""), http.StatusForbidden},
		{NewInternal(errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.StatusCode(), tt.err.Message)
	}
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "Referral not found", NewNotFound("Referral", nil).Error())
	assert.Equal(t, "unauthorized", Unauthorized("", nil).Message)
	assert.Equal(t, "forbidden", Forbidden("").Message)
	assert.Equal(t, "internal server error: boom", NewInternal(errors.New("boom")).Error())
}

func TestAsThroughWrapping(t *testing.T) {
	cause := errors.New("row missing")
	wrapped := fmt.Errorf("loading slot: %w", NewNotFound("Slot", cause))

	appErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrNotFound, appErr.Code)
	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, HasCode(wrapped, ErrNotFound))
	assert.False(t, HasCode(wrapped, ErrConflict))

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, HasCode(nil, ErrNotFound))
}
