package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Run("normalizes email and applies options", func(t *testing.T) {
		c, err := NewClient("  Asha Rao ", " Asha@Example.COM ", WithCompany("Rao Studio"), WithPhone("+91 98"))
		require.NoError(t, err)
		assert.Equal(t, "Asha Rao", c.Name)
		assert.Equal(t, "asha@example.com", c.Email)
		assert.Equal(t, "Asha Rao (Rao Studio)", c.DisplayName())
		assert.Equal(t, 1, c.Version)
	})

	t.Run("display name without company is the name", func(t *testing.T) {
		c, err := NewClient("Sam", "sam@example.com")
		require.NoError(t, err)
		assert.Equal(t, "Sam", c.DisplayName())
	})

	t.Run("rejects missing name", func(t *testing.T) {
		_, err := NewClient(" ", "a@b.c")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects malformed email", func(t *testing.T) {
		for _, email := range []string{"", "no-at-sign", "@example.com", "user@", "a@b@c"} {
			_, err := NewClient("Sam", email)
			assert.ErrorIs(t, err, ErrValidation, email)
		}
	})
}

func TestClient_Update(t *testing.T) {
	c, err := NewClient("Sam", "sam@example.com")
	require.NoError(t, err)

	t.Run("invalid update leaves client untouched", func(t *testing.T) {
		err := c.Update("", "sam@example.com", "", "", "")
		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, "Sam", c.Name)
	})

	t.Run("valid update replaces fields", func(t *testing.T) {
		require.NoError(t, c.Update("Samuel", "SAM@new.io", "123", "Acme", "1 Road"))
		assert.Equal(t, "Samuel", c.Name)
		assert.Equal(t, "sam@new.io", c.Email)
		assert.Equal(t, "Samuel (Acme)", c.DisplayName())
	})
}
