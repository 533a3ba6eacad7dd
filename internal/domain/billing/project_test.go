package billing

import (
	"testing"
	"time"

	"github.com/freelance/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProject(t *testing.T) {
	t.Run("creates active project", func(t *testing.T) {
		p, err := NewProject(uuid.New(), " Website ", "", dec("50"))
		require.NoError(t, err)
		assert.Equal(t, "Website", p.Name)
		assert.Equal(t, ProjectStatusActive, p.Status)
		assert.Empty(t, p.Billables)
		assert.False(t, p.IsInvoiced())
	})

	t.Run("requires client and name", func(t *testing.T) {
		_, err := NewProject(uuid.Nil, "Website", "", dec("50"))
		assert.ErrorIs(t, err, ErrValidation)
		_, err = NewProject(uuid.New(), "", "", dec("50"))
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects negative rate", func(t *testing.T) {
		_, err := NewProject(uuid.New(), "Website", "", dec("-1"))
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestProject_LogHours(t *testing.T) {
	t.Run("adds hourly item at project rate", func(t *testing.T) {
		p, _ := NewProject(uuid.New(), "Website", "", dec("50"))
		item, err := p.LogHours("Build pages", dec("10"))
		require.NoError(t, err)
		assert.Equal(t, LineItemKindHourly, item.Kind)
		assert.True(t, item.Amount().Equal(dec("500")))
		assert.True(t, p.HoursWorked().Equal(dec("10")))
	})

	t.Run("rejects non-positive hours", func(t *testing.T) {
		p, _ := NewProject(uuid.New(), "Website", "", dec("50"))
		_, err := p.LogHours("Nothing", decimal.Zero)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("requires an hourly rate", func(t *testing.T) {
		p, _ := NewProject(uuid.New(), "Logo", "", decimal.Zero)
		_, err := p.LogHours("Sketch", dec("1"))
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects hours on a paused project", func(t *testing.T) {
		p, _ := NewProject(uuid.New(), "Website", "", dec("50"))
		require.NoError(t, p.Pause())
		_, err := p.LogHours("Build", dec("1"))
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}

func TestProject_StatusTransitions(t *testing.T) {
	p, _ := NewProject(uuid.New(), "Website", "", dec("50"))

	assert.ErrorIs(t, p.Resume(), shared.ErrInvalidState)
	require.NoError(t, p.Pause())
	assert.ErrorIs(t, p.Pause(), shared.ErrInvalidState)
	require.NoError(t, p.Resume())
	require.NoError(t, p.Complete())
	assert.Equal(t, ProjectStatusCompleted, p.Status)
	assert.ErrorIs(t, p.Complete(), shared.ErrInvalidState)
}

func TestProject_MarkInvoiced(t *testing.T) {
	t.Run("returns an independent snapshot and freezes the project", func(t *testing.T) {
		p, _ := NewProject(uuid.New(), "Website", "", dec("50"))
		_, err := p.LogHours("Build", dec("10"))
		require.NoError(t, err)

		snapshot, err := p.MarkInvoiced(time.Now())
		require.NoError(t, err)
		require.Len(t, snapshot, 1)
		assert.True(t, p.IsInvoiced())

		snapshot[0].Description = "changed"
		assert.Equal(t, "Build", p.Billables[0].Description)

		_, err = p.LogHours("More", dec("1"))
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		_, err = p.AddFixedFee("Extra", dec("10"))
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		assert.ErrorIs(t, p.SetHourlyRate(dec("60")), shared.ErrInvalidState)
		assert.ErrorIs(t, p.Rename("New", ""), shared.ErrInvalidState)
		_, err = p.MarkInvoiced(time.Now())
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("status can still move to completed after invoicing", func(t *testing.T) {
		p, _ := NewProject(uuid.New(), "Website", "", dec("50"))
		_, _ = p.AddFixedFee("Setup", dec("100"))
		_, err := p.MarkInvoiced(time.Now())
		require.NoError(t, err)
		assert.NoError(t, p.Complete())
	})

	t.Run("requires billables", func(t *testing.T) {
		p, _ := NewProject(uuid.New(), "Website", "", dec("50"))
		_, err := p.MarkInvoiced(time.Now())
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("cancelled project cannot be invoiced", func(t *testing.T) {
		p, _ := NewProject(uuid.New(), "Website", "", dec("50"))
		_, _ = p.LogHours("Build", dec("2"))
		require.NoError(t, p.Cancel())
		_, err := p.MarkInvoiced(time.Now())
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}
