package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	verr := &ValidationError{}
	assert.True(t, verr.Empty())
	assert.NoError(t, verr.OrNil())

	verr.Add("url", "must be a valid URL")
	verr.Add("title", "must be at most 200 characters")
	assert.False(t, verr.Empty())
	assert.Error(t, verr.OrNil())
	assert.Equal(t, "validation failed: title: must be at most 200 characters; url: must be a valid URL", verr.Error())
}

func TestIsValidation(t *testing.T) {
	err := fmt.Errorf("create link: %w", NewValidation("url", "invalid"))
	assert.True(t, IsValidation(err))
	assert.False(t, IsValidation(ErrNotFound))
	assert.False(t, IsValidation(nil))
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "validation", err: NewValidation("email", "required"), want: "validation_error"},
		{name: "authentication", err: ErrAuthentication, want: "authentication_error"},
		{name: "permission", err: fmt.Errorf("list links: %w", ErrPermission), want: "permission_error"},
		{name: "not found", err: NotFound("link", 3), want: "not_found"},
		{name: "other", err: errors.New("disk on fire"), want: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.err))
		})
	}
}

func TestNotFoundWraps(t *testing.T) {
	err := NotFound("link", 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "link 42: not found", err.Error())
}
