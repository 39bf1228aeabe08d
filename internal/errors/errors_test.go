package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "key missing", NotFound("key missing").Error())

	wrapped := Wrap(errors.New("dial tcp: refused"), ErrCodeUnavailable, "counter store")
	assert.Equal(t, "counter store: dial tcp: refused", wrapped.Error())
}

func TestAppError_UnwrapThroughFmt(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("create key: %w", Wrap(cause, ErrCodeInternal, "insert"))

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsAppError(err, ErrCodeInternal))
	assert.Equal(t, ErrCodeInternal, GetCode(err))
}

func TestWrap_NilError(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "x"))
	assert.Nil(t, Wrapf(nil, ErrCodeInternal, "x %d", 1))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code ErrorCode
	}{
		{"not found", NotFound("x"), ErrCodeNotFound},
		{"conflict", Conflict("x"), ErrCodeConflict},
		{"validation", Validationf("bad %s", "x"), ErrCodeValidation},
		{"internal", Internal("x"), ErrCodeInternal},
		{"unauthorized", Unauthorized("x"), ErrCodeUnauthorized},
		{"forbidden", Forbidden("x"), ErrCodeForbidden},
		{"unavailable", Unavailable(errors.New("down"), "x"), ErrCodeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.code, tt.err.Code)
		})
	}
}

func TestGetField(t *testing.T) {
	assert.Equal(t, "name", GetField(ValidationField("name", "required")))
	assert.Empty(t, GetField(errors.New("plain")))
	assert.Empty(t, GetCode(errors.New("plain")))
}
