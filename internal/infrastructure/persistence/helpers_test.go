package persistence

import (
	"testing"
	"time"

	"github.com/freelance/backend/internal/domain/billing"
	"github.com/freelance/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testDay = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

// newTestDB opens a migrated in-memory sqlite database
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDatabase(&config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return db.DB
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedClient(t *testing.T, repo *GormClientRepository, name, email string) *billing.Client {
	t.Helper()
	c, err := billing.NewClient(name, email)
	require.NoError(t, err)
	require.NoError(t, repo.Save(t.Context(), c))
	return c
}

func newInvoice(t *testing.T, number string, clientID uuid.UUID, amount string, issue time.Time, dueDays int) *billing.Invoice {
	t.Helper()
	item, err := billing.NewFixedItem("Milestone", dec(amount))
	require.NoError(t, err)
	inv, err := billing.NewInvoice(number, clientID, uuid.New(), billing.LineItems{item}, issue, issue.AddDate(0, 0, dueDays))
	require.NoError(t, err)
	return inv
}
