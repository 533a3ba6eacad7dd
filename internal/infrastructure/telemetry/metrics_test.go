package telemetry

import (
	"context"
	"testing"

	"github.com/freelance/backend/internal/domain/billing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

// collectSums returns every counter total keyed by instrument name
func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]float64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := make(map[string]float64)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					sums[m.Name] += float64(dp.Value)
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	return sums
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp, err := NewMeterProvider(ctx, MetricsConfig{ServiceName: "freelance"}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("freelance/test"))
	assert.NoError(t, mp.Shutdown(ctx))

	var none *MeterProvider
	assert.False(t, none.IsEnabled())
	assert.NotNil(t, none.Meter("freelance/test"))
	assert.NoError(t, none.Shutdown(ctx))
}

func TestNewBillingMetrics_NilMeter(t *testing.T) {
	_, err := NewBillingMetrics(nil)
	assert.ErrorIs(t, err, ErrMeterNil)
}

func TestBillingMetrics_Handle(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	m, err := NewBillingMetrics(provider.Meter("freelance/billing"))
	require.NoError(t, err)
	assert.Len(t, m.EventTypes(), 5)

	inv := &billing.Invoice{Number: "INV-20260301-0001"}
	payment := &billing.Payment{
		Number: "PAY-20260301-0001",
		Amount: decimal.NewFromInt(300),
		Method: billing.PaymentMethodUPI,
	}
	allocations := []billing.Allocation{
		{Amount: decimal.NewFromInt(200)},
		{Amount: decimal.NewFromInt(100)},
	}

	require.NoError(t, m.Handle(ctx, billing.NewInvoiceIssuedEvent(inv, decimal.RequireFromString("250.50"))))
	require.NoError(t, m.Handle(ctx, billing.NewInvoiceIssuedEvent(inv, decimal.NewFromInt(100))))
	require.NoError(t, m.Handle(ctx, billing.NewInvoiceVoidedEvent(inv)))
	require.NoError(t, m.Handle(ctx, billing.NewPaymentRecordedEvent(payment)))
	require.NoError(t, m.Handle(ctx, billing.NewPaymentAllocatedEvent(payment, allocations)))
	require.NoError(t, m.Handle(ctx, billing.NewPaymentReversedEvent(payment, &billing.PaymentReversal{Reason: "bounced"})))

	sums := collectSums(t, reader)
	assert.Equal(t, 6.0, sums["billing.events"])
	assert.Equal(t, 2.0, sums["billing.invoices.issued"])
	assert.Equal(t, 1.0, sums["billing.invoices.voided"])
	assert.InDelta(t, 350.5, sums["billing.invoices.amount"], 0.001)
	assert.Equal(t, 1.0, sums["billing.payments.recorded"])
	assert.InDelta(t, 300.0, sums["billing.payments.amount"], 0.001)
	assert.Equal(t, 2.0, sums["billing.allocations"])
	assert.Equal(t, 1.0, sums["billing.payments.reversed"])
}

func TestBillingMetrics_PaymentMethodAttribute(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	m, err := NewBillingMetrics(provider.Meter("freelance/billing"))
	require.NoError(t, err)

	for _, method := range []billing.PaymentMethod{billing.PaymentMethodCash, billing.PaymentMethodCash, billing.PaymentMethodCard} {
		p := &billing.Payment{Amount: decimal.NewFromInt(10), Method: method}
		require.NoError(t, m.Handle(ctx, billing.NewPaymentRecordedEvent(p)))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	byMethod := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			if metric.Name != "billing.payments.recorded" {
				continue
			}
			for _, dp := range metric.Data.(metricdata.Sum[int64]).DataPoints {
				method, ok := dp.Attributes.Value(AttrPaymentMethod)
				require.True(t, ok)
				byMethod[method.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{"CASH": 2, "CARD": 1}, byMethod)
}
