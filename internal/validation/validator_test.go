package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/librov/internal/apperr"
)

type sample struct {
	Title  string `json:"title" validate:"required,max=5"`
	Rating int    `json:"rating" validate:"gte=1,lte=5"`
	Email  string `json:"email,omitempty" validate:"omitempty,email"`
}

func TestValidateReportsJSONField(t *testing.T) {
	v := New()

	require.NoError(t, v.Validate(sample{Title: "Dune", Rating: 5}))

	err := v.Validate(sample{Title: "", Rating: 3})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Equal(t, "title", e.Field)
	assert.Equal(t, "This field is required.", e.Message)

	err = v.Validate(sample{Title: "Too long", Rating: 3})
	e, _ = apperr.As(err)
	assert.Equal(t, "Ensure this field has no more than 5 characters.", e.Message)

	err = v.Validate(sample{Title: "Dune", Rating: 6})
	e, _ = apperr.As(err)
	assert.Equal(t, "rating", e.Field)

	err = v.Validate(sample{Title: "Dune", Rating: 1, Email: "nope"})
	e, _ = apperr.As(err)
	assert.Equal(t, "email", e.Field)
	assert.Equal(t, 400, e.Status())
}

type note struct {
	Message string `json:"message" validate:"notblank,max=4"`
}

func TestValidateCoded(t *testing.T) {
	v := New()
	codes := Codes{"message.notblank": apperr.ErrEmptyMessage, "message.max": apperr.ErrMessageLength}

	assert.NoError(t, v.ValidateCoded(note{Message: "héé!"}, codes), "length counts characters")
	assert.ErrorIs(t, v.ValidateCoded(note{Message: " \t "}, codes), apperr.ErrEmptyMessage)
	assert.ErrorIs(t, v.ValidateCoded(note{Message: "hello"}, codes), apperr.ErrMessageLength)

	err := v.Validate(note{Message: "  "})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "message", e.Field)
	assert.Equal(t, "This field may not be blank.", e.Message)
}
