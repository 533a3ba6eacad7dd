package export

import (
	"strings"
	"testing"
	"time"

	"github.com/freelance/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoneyFormatter(t *testing.T) {
	t.Run("rejects unknown currency", func(t *testing.T) {
		_, err := NewMoneyFormatter("ZZZ", "en")
		assert.Error(t, err)
	})

	t.Run("rejects malformed locale", func(t *testing.T) {
		_, err := NewMoneyFormatter("USD", "not a locale!")
		assert.Error(t, err)
	})

	t.Run("defaults locale", func(t *testing.T) {
		f, err := NewMoneyFormatter("usd", "")
		require.NoError(t, err)
		assert.Equal(t, "USD", f.Currency())
		assert.Equal(t, 2, f.Scale())
	})

	t.Run("zero-decimal currency", func(t *testing.T) {
		f, err := NewMoneyFormatter("JPY", "en")
		require.NoError(t, err)
		assert.Equal(t, 0, f.Scale())
		assert.Equal(t, "1235", f.FormatPlain(decimal.RequireFromString("1234.5")))
	})
}

func TestMoneyFormatter_Format(t *testing.T) {
	f, err := NewMoneyFormatter("USD", "en-US")
	require.NoError(t, err)

	out := f.Format(decimal.RequireFromString("1234.5"))
	assert.True(t, strings.HasPrefix(out, f.Symbol()), out)
	assert.Contains(t, out, "1,234.50")

	neg := f.Format(decimal.RequireFromString("-20"))
	assert.True(t, strings.HasPrefix(neg, "-"+f.Symbol()), neg)
	assert.Contains(t, neg, "20.00")

	assert.Contains(t, f.Format(decimal.RequireFromString("0.005")), "0.01")
}

func TestMoneyFormatter_FormatMoney(t *testing.T) {
	f, err := NewMoneyFormatter("USD", "en-US")
	require.NoError(t, err)

	m := f.Money(decimal.NewFromInt(75))
	assert.Equal(t, valueobject.USD, m.Currency())
	out, err := f.FormatMoney(m)
	require.NoError(t, err)
	assert.Equal(t, f.Format(decimal.NewFromInt(75)), out)

	_, err = f.FormatMoney(valueobject.Zero(valueobject.EUR))
	assert.ErrorIs(t, err, valueobject.ErrCurrencyMismatch)
}

func TestMoneyFormatter_Plain(t *testing.T) {
	f, err := NewMoneyFormatter("INR", "en-IN")
	require.NoError(t, err)

	assert.Equal(t, "500.00", f.FormatPlain(decimal.NewFromInt(500)))
	assert.Equal(t, "62.50%", f.FormatPercent(decimal.RequireFromString("62.5")))
	assert.NotEmpty(t, f.Symbol())
}

func TestFormatStatus(t *testing.T) {
	f, err := NewMoneyFormatter("USD", "en")
	require.NoError(t, err)

	assert.Equal(t, "Partially Paid", f.FormatStatus("PARTIALLY_PAID"))
	assert.Equal(t, "Void", f.FormatStatus("VOID"))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "March 01, 2026", FormatDate(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "", FormatDate(time.Time{}))
}
