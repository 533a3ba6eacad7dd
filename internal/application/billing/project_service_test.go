package billing

import (
	"testing"

	"github.com/freelance/backend/internal/domain/billing"
	"github.com/freelance/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectService_Create(t *testing.T) {
	f := newFixture(t)

	t.Run("unknown client", func(t *testing.T) {
		_, err := f.projects.Create(t.Context(), CreateProjectRequest{
			ClientID:   uuid.New(),
			Name:       "Website",
			HourlyRate: dec("50"),
		})
		requireCode(t, err, shared.CodeNotFound)
	})

	t.Run("active with no billables", func(t *testing.T) {
		c := f.createClient(t, "Jane", "jane@example.com")
		p, err := f.projects.Create(t.Context(), CreateProjectRequest{
			ClientID:   c.ID,
			Name:       "Website",
			HourlyRate: dec("50"),
		})
		require.NoError(t, err)
		assert.Equal(t, "ACTIVE", p.Status)
		assert.Empty(t, p.Billables)
		assert.True(t, p.Billable.IsZero())
		assert.Nil(t, p.InvoicedAt)
	})
}

func TestProjectService_Billables(t *testing.T) {
	f := newFixture(t)
	c := f.createClient(t, "Jane", "jane@example.com")
	p := f.createProject(t, c.ID, "Website", "10", "50")

	p, err := f.projects.AddFixedFee(t.Context(), p.ID, AddFixedFeeRequest{Description: "Hosting setup", Amount: dec("120")})
	require.NoError(t, err)
	require.Len(t, p.Billables, 2)
	assert.True(t, dec("10").Equal(p.HoursWorked))
	assert.True(t, dec("620").Equal(p.Billable), "got %s", p.Billable)

	_, err = f.projects.LogHours(t.Context(), p.ID, LogHoursRequest{Description: "Nothing", Hours: dec("0")})
	assert.ErrorIs(t, err, billing.ErrValidation)

	t.Run("paused projects take no hours", func(t *testing.T) {
		paused, err := f.projects.Pause(t.Context(), p.ID)
		require.NoError(t, err)
		assert.Equal(t, "ON_HOLD", paused.Status)

		_, err = f.projects.LogHours(t.Context(), p.ID, LogHoursRequest{Description: "More", Hours: dec("1")})
		requireCode(t, err, shared.CodeInvalidState)

		_, err = f.projects.Resume(t.Context(), p.ID)
		require.NoError(t, err)
	})
}

func TestProjectService_FrozenAfterInvoicing(t *testing.T) {
	f := newFixture(t)
	c := f.createClient(t, "Jane", "jane@example.com")
	p := f.createProject(t, c.ID, "Website", "10", "50")

	_, err := f.invoices.CreateFromProject(t.Context(), CreateInvoiceFromProjectRequest{ProjectID: p.ID})
	require.NoError(t, err)

	got, err := f.projects.Get(t.Context(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.InvoicedAt)

	_, err = f.projects.LogHours(t.Context(), p.ID, LogHoursRequest{Description: "Late", Hours: dec("2")})
	requireCode(t, err, shared.CodeInvalidState)

	name := "Renamed"
	_, err = f.projects.Update(t.Context(), p.ID, UpdateProjectRequest{Name: &name})
	requireCode(t, err, shared.CodeInvalidState)

	_, err = f.invoices.CreateFromProject(t.Context(), CreateInvoiceFromProjectRequest{ProjectID: p.ID})
	requireCode(t, err, shared.CodeInvalidState)

	requireCode(t, f.projects.Delete(t.Context(), p.ID), shared.CodeInvalidState)
}

func TestProjectService_Delete(t *testing.T) {
	f := newFixture(t)
	c := f.createClient(t, "Jane", "jane@example.com")
	p := f.createProject(t, c.ID, "Website", "", "50")

	require.NoError(t, f.projects.Delete(t.Context(), p.ID))
	_, err := f.projects.Get(t.Context(), p.ID)
	requireCode(t, err, shared.CodeNotFound)
}

func TestProjectService_List(t *testing.T) {
	f := newFixture(t)
	jane := f.createClient(t, "Jane", "jane@example.com")
	bob := f.createClient(t, "Bob", "bob@example.com")
	f.createProject(t, jane.ID, "Website", "", "50")
	paused := f.createProject(t, jane.ID, "Mobile app", "", "60")
	f.createProject(t, bob.ID, "Logo", "", "40")

	_, err := f.projects.Pause(t.Context(), paused.ID)
	require.NoError(t, err)

	page, err := f.projects.List(t.Context(), ProjectListFilter{ClientID: &jane.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	page, err = f.projects.List(t.Context(), ProjectListFilter{Status: "ON_HOLD"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Mobile app", page.Items[0].Name)

	_, err = f.projects.List(t.Context(), ProjectListFilter{Status: "SLEEPING"})
	assert.ErrorIs(t, err, billing.ErrValidation)

	byClient, err := f.projects.ListByClient(t.Context(), bob.ID)
	require.NoError(t, err)
	require.Len(t, byClient, 1)
	assert.Equal(t, "Logo", byClient[0].Name)
}

func TestProjectService_Earnings(t *testing.T) {
	f := newFixture(t)
	c := f.createClient(t, "Jane", "jane@example.com")
	inv := f.issueInvoice(t, c.ID, "10", "50", "2026-03-01")

	_, err := f.payments.Record(t.Context(), RecordPaymentRequest{
		ClientID:    c.ID,
		Amount:      dec("200"),
		Method:      "BANK_TRANSFER",
		Allocations: allocate(inv.InvoiceID, "200"),
	})
	require.NoError(t, err)

	earnings, err := f.projects.Earnings(t.Context(), inv.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, 1, earnings.InvoiceCount)
	assert.True(t, dec("500").Equal(earnings.Billed))
	assert.True(t, dec("200").Equal(earnings.Collected))
	assert.True(t, dec("300").Equal(earnings.Outstanding))
}
