package persistence

import (
	"context"
	"testing"

	"github.com/freelance/backend/internal/domain/billing"
	"github.com/freelance/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormProjectRepository(t *testing.T) {
	ctx := context.Background()

	newProject := func(t *testing.T, repo *GormProjectRepository, clientID uuid.UUID, name string) *billing.Project {
		t.Helper()
		p, err := billing.NewProject(clientID, name, "", dec("80"))
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, p))
		return p
	}

	t.Run("round trips billables", func(t *testing.T) {
		repo := NewGormProjectRepository(newTestDB(t))
		p := newProject(t, repo, uuid.New(), "Website")

		_, err := p.LogHours("Design", dec("2.5"))
		require.NoError(t, err)
		_, err = p.AddFixedFee("Hosting setup", dec("150"))
		require.NoError(t, err)
		require.NoError(t, repo.SaveWithLock(ctx, p))

		found, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, found.Billables, 2)
		assert.True(t, found.HoursWorked().Equal(dec("2.5")))
		total, err := found.BillableTotal()
		require.NoError(t, err)
		assert.True(t, total.Equal(dec("350")), "got %s", total)
		assert.Equal(t, 2, found.Version)
	})

	t.Run("filters by client and status", func(t *testing.T) {
		repo := NewGormProjectRepository(newTestDB(t))
		clientID := uuid.New()
		newProject(t, repo, clientID, "Website")
		paused := newProject(t, repo, clientID, "Mobile app")
		newProject(t, repo, uuid.New(), "Other client")

		require.NoError(t, paused.Pause())
		require.NoError(t, repo.SaveWithLock(ctx, paused))

		projects, total, err := repo.FindAll(ctx, billing.ProjectFilter{ClientID: &clientID})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, projects, 2)

		status := billing.ProjectStatusOnHold
		projects, total, err = repo.FindAll(ctx, billing.ProjectFilter{ClientID: &clientID, Status: &status})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, paused.ID, projects[0].ID)

		count, err := repo.CountByClient(ctx, clientID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("search matches name", func(t *testing.T) {
		repo := NewGormProjectRepository(newTestDB(t))
		newProject(t, repo, uuid.New(), "Website redesign")
		newProject(t, repo, uuid.New(), "Data pipeline")

		projects, total, err := repo.FindAll(ctx, billing.ProjectFilter{Filter: shared.Filter{Search: "PIPE"}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, "Data pipeline", projects[0].Name)
	})

	t.Run("delete and not found", func(t *testing.T) {
		repo := NewGormProjectRepository(newTestDB(t))
		p := newProject(t, repo, uuid.New(), "Website")

		require.NoError(t, repo.Delete(ctx, p.ID))
		_, err := repo.FindByID(ctx, p.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, p.ID), shared.ErrNotFound)
	})
}
