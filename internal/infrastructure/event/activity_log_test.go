package event

import (
	"context"
	"testing"
	"time"

	"github.com/freelance/backend/internal/domain/billing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestActivityLog_RecordsAndLogsBillingEvents(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	activity := NewActivityLog(zap.New(core), 10)
	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(activity)

	p := newRecordedPayment(t)
	_, err := p.Reverse("cheque bounced", time.Now())
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), p.GetDomainEvents()...))

	recent := activity.Recent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, billing.EventTypePaymentReversed, recent[0].EventType)
	assert.Equal(t, "payment reversed", recent[0].Summary)
	assert.Equal(t, billing.EventTypePaymentRecorded, recent[1].EventType)
	assert.Equal(t, p.ID, recent[1].AggregateID)

	entries := logs.FilterMessage("payment recorded").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "PAY-20260301-0001", fields["payment_number"])
	assert.Equal(t, "500.00", fields["amount"])
	assert.Equal(t, "UPI", fields["method"])
}

func TestActivityLog_RingBufferKeepsNewest(t *testing.T) {
	activity := NewActivityLog(zap.NewNop(), 3)

	var last []string
	for i := 0; i < 5; i++ {
		event := recordedEvent(t)
		require.NoError(t, activity.Handle(context.Background(), event))
		last = append(last, event.EventID().String())
	}

	recent := activity.Recent(10)
	require.Len(t, recent, 3)
	assert.Equal(t, last[4], recent[0].EventID.String())
	assert.Equal(t, last[3], recent[1].EventID.String())
	assert.Equal(t, last[2], recent[2].EventID.String())

	assert.Len(t, activity.Recent(2), 2)
}

func TestActivityLog_EmptyAndDefaults(t *testing.T) {
	activity := NewActivityLog(zap.NewNop(), 0)
	assert.Empty(t, activity.Recent(5))
	assert.Len(t, activity.entries, DefaultActivityCapacity)
	assert.Contains(t, activity.EventTypes(), billing.EventTypeInvoiceIssued)
	assert.Len(t, activity.EventTypes(), 5)
}
