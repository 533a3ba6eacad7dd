package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineItem_Amount(t *testing.T) {
	t.Run("hourly item multiplies hours by rate", func(t *testing.T) {
		item, err := NewHourlyItem("Design work", decimal.NewFromInt(10), decimal.NewFromInt(50))
		require.NoError(t, err)
		assert.True(t, item.Amount().Equal(decimal.NewFromInt(500)))
	})

	t.Run("fixed item returns the fee", func(t *testing.T) {
		item, err := NewFixedItem("Logo", decimal.RequireFromString("199.99"))
		require.NoError(t, err)
		assert.Equal(t, "199.99", item.Amount().StringFixed(2))
	})
}

func TestLineItem_Validate(t *testing.T) {
	tests := []struct {
		name string
		item LineItem
	}{
		{"empty description", LineItem{Kind: LineItemKindFixed, FixedFee: decimal.NewFromInt(1)}},
		{"negative quantity", LineItem{Description: "x", Kind: LineItemKindHourly, Quantity: decimal.NewFromInt(-1), Rate: decimal.NewFromInt(10)}},
		{"negative rate", LineItem{Description: "x", Kind: LineItemKindHourly, Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(-10)}},
		{"negative fee", LineItem{Description: "x", Kind: LineItemKindFixed, FixedFee: decimal.NewFromInt(-5)}},
		{"unknown kind", LineItem{Description: "x", Kind: "BARTER"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.item.Validate(), ErrValidation)
		})
	}
}

func TestLineItems_Total(t *testing.T) {
	t.Run("sums mixed items", func(t *testing.T) {
		hourly, _ := NewHourlyItem("Dev", decimal.RequireFromString("2.5"), decimal.NewFromInt(40))
		fixed, _ := NewFixedItem("Setup", decimal.NewFromInt(100))
		total, err := LineItems{hourly, fixed}.Total()
		require.NoError(t, err)
		assert.True(t, total.Equal(decimal.NewFromInt(200)))
		assert.True(t, LineItems{hourly, fixed}.Hours().Equal(decimal.RequireFromString("2.5")))
	})

	t.Run("empty list totals zero", func(t *testing.T) {
		total, err := LineItems{}.Total()
		require.NoError(t, err)
		assert.True(t, total.IsZero())
	})

	t.Run("negative item fails the whole total", func(t *testing.T) {
		bad := LineItem{Description: "bad", Kind: LineItemKindHourly, Quantity: decimal.NewFromInt(-2), Rate: decimal.NewFromInt(10)}
		_, err := LineItems{bad}.Total()
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestLineItems_ValueScan(t *testing.T) {
	item, _ := NewHourlyItem("Dev", decimal.NewFromInt(3), decimal.NewFromInt(20))
	value, err := LineItems{item}.Value()
	require.NoError(t, err)

	var back LineItems
	require.NoError(t, back.Scan(value))
	require.Len(t, back, 1)
	assert.Equal(t, item.ID, back[0].ID)
	assert.True(t, back[0].Amount().Equal(decimal.NewFromInt(60)))

	require.NoError(t, back.Scan(nil))
	assert.Empty(t, back)
	assert.Error(t, back.Scan(42))
}
