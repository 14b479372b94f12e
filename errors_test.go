package prax_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/prax"
)

func TestSyntaxError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := prax.NewSyntaxError(12, 3, "unexpected %q", "}")
		assert.Equal(t, `prax: syntax error at offset 12: unexpected "}"`, err.Error())
		assert.Equal(t, 12, err.Offset)
		assert.Equal(t, 3, err.Length)
	})

	t.Run("Is", func(t *testing.T) {
		err := prax.NewSyntaxError(0, 1, "bad")
		assert.True(t, errors.Is(err, prax.ErrSyntax))
		assert.False(t, errors.Is(err, prax.ErrValidation))
	})

	t.Run("IsSyntaxError", func(t *testing.T) {
		err := prax.NewSyntaxError(0, 1, "bad")
		assert.True(t, prax.IsSyntaxError(fmt.Errorf("wrapper: %w", err)))
		assert.False(t, prax.IsSyntaxError(errors.New("other error")))
		assert.False(t, prax.IsSyntaxError(nil))
	})
}

func TestValidationErrors(t *testing.T) {
	t.Run("Single", func(t *testing.T) {
		err := prax.NewValidationError("User", "email", "duplicate field")
		assert.Equal(t, "prax: User.email: duplicate field", err.Error())
		assert.True(t, prax.IsValidationError(err))
	})

	t.Run("EntityOnly", func(t *testing.T) {
		err := prax.NewValidationError("User", "", "no primary key")
		assert.Equal(t, "prax: User: no primary key", err.Error())
	})

	t.Run("List", func(t *testing.T) {
		errs := prax.ValidationErrors{
			prax.NewValidationError("User", "", "first"),
			prax.NewValidationError("Post", "", "second"),
		}
		var err error = errs
		assert.Contains(t, err.Error(), "2 validation errors")
		assert.Contains(t, err.Error(), "first")
		assert.Contains(t, err.Error(), "second")
		assert.True(t, errors.Is(err, prax.ErrValidation))
		assert.True(t, prax.IsValidationError(fmt.Errorf("load: %w", err)))

		var target *prax.ValidationError
		require.True(t, errors.As(err, &target))
		assert.Equal(t, "User", target.Entity)
	})
}

func TestUnsupportedError(t *testing.T) {
	err := prax.NewUnsupportedError("sqlite", "partitioning", "SQLite has no table partitions")
	assert.Contains(t, err.Error(), "unsupported")
	assert.Contains(t, err.Error(), "sqlite")
	assert.True(t, prax.IsUnsupported(err))
	assert.True(t, prax.IsUnsupported(fmt.Errorf("emit: %w", err)))
	assert.False(t, prax.IsUnsupported(prax.NewInvalidInputError("upsert", "columns", "required")))
}

func TestInvalidInputError(t *testing.T) {
	err := prax.NewInvalidInputError("upsert", "columns", "at least one column is required")
	assert.Equal(t, "prax: upsert: invalid columns: at least one column is required", err.Error())
	assert.True(t, prax.IsInvalidInput(err))
	assert.False(t, prax.IsInvalidInput(nil))

	err = prax.NewInvalidInputError("cte", "", "query is required")
	assert.Equal(t, "prax: cte: query is required", err.Error())
}

func TestAggregateError(t *testing.T) {
	t.Run("NoErrors", func(t *testing.T) {
		assert.Nil(t, prax.NewAggregateError())
		assert.Nil(t, prax.NewAggregateError(nil, nil))
	})

	t.Run("SingleError", func(t *testing.T) {
		single := errors.New("single error")
		assert.Equal(t, single, prax.NewAggregateError(nil, single))
	})

	t.Run("MultipleErrors", func(t *testing.T) {
		err1 := errors.New("error 1")
		err2 := prax.NewUnsupportedError("mysql", "trigger", "")
		err := prax.NewAggregateError(err1, err2)
		require.NotNil(t, err)
		assert.Contains(t, err.Error(), "multiple errors")
		assert.True(t, errors.Is(err, err1))
		assert.True(t, prax.IsUnsupported(err))
	})
}

func TestSentinelErrors(t *testing.T) {
	for _, err := range []error{prax.ErrSyntax, prax.ErrValidation, prax.ErrUnsupported, prax.ErrInvalidInput} {
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "prax:")
	}
}
