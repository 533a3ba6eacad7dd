package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	t.Run("matches sentinel with the same code", func(t *testing.T) {
		err := NewDomainError(CodeNotFound, "Client not found")
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.False(t, errors.Is(err, ErrInvalidState))
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		err := fmt.Errorf("load client: %w", NewDomainError(CodeAlreadyExists, "email taken"))
		assert.ErrorIs(t, err, ErrAlreadyExists)

		var domainErr *DomainError
		assert.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "email taken", domainErr.Error())
	})

	t.Run("does not match plain errors", func(t *testing.T) {
		assert.False(t, ErrNotFound.Is(errors.New("NOT_FOUND")))
	})
}
