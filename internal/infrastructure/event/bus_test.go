package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/freelance/backend/internal/domain/billing"
	"github.com/freelance/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingHandler captures the events it receives
type recordingHandler struct {
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	panicMsg   string
	mu         sync.Mutex
}

func newRecordingHandler(eventTypes ...string) *recordingHandler {
	return &recordingHandler{eventTypes: eventTypes}
}

func (h *recordingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	if h.panicMsg != "" {
		panic(h.panicMsg)
	}
	return h.err
}

func (h *recordingHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *recordingHandler) getHandled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

func newRecordedPayment(t *testing.T) *billing.Payment {
	t.Helper()
	p, err := billing.NewPayment("PAY-20260301-0001", uuid.New(), decimal.NewFromInt(500),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), billing.PaymentMethodUPI, billing.WithReference("UTR123"))
	require.NoError(t, err)
	return p
}

func recordedEvent(t *testing.T) shared.DomainEvent {
	t.Helper()
	return billing.NewPaymentRecordedEvent(newRecordedPayment(t))
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newRecordingHandler(billing.EventTypePaymentRecorded)
	bus.Subscribe(handler)

	event := recordedEvent(t)
	require.NoError(t, bus.Publish(context.Background(), event))

	handled := handler.getHandled()
	require.Len(t, handled, 1)
	assert.Equal(t, event, handled[0])
}

func TestInMemoryEventBus_Publish_PreservesOrder(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newRecordingHandler()
	bus.Subscribe(handler)

	p := newRecordedPayment(t)
	reversal, err := p.Reverse("bounced", time.Now())
	require.NoError(t, err)
	events := p.GetDomainEvents()
	require.Len(t, events, 2)

	require.NoError(t, bus.Publish(context.Background(), events...))

	handled := handler.getHandled()
	require.Len(t, handled, 2)
	assert.Equal(t, billing.EventTypePaymentRecorded, handled[0].EventType())
	assert.Equal(t, billing.EventTypePaymentReversed, handled[1].EventType())
	assert.Equal(t, reversal.Reason, handled[1].(*billing.PaymentReversedEvent).Reason)
}

func TestInMemoryEventBus_Publish_OnlyMatchingTypes(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	invoices := newRecordingHandler(billing.EventTypeInvoiceIssued)
	payments := newRecordingHandler(billing.EventTypePaymentRecorded)
	bus.Subscribe(invoices)
	bus.Subscribe(payments)

	require.NoError(t, bus.Publish(context.Background(), recordedEvent(t)))

	assert.Empty(t, invoices.getHandled())
	assert.Len(t, payments.getHandled(), 1)
}

func TestInMemoryEventBus_Subscribe_ExplicitTypesOverrideHandler(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newRecordingHandler(billing.EventTypeInvoiceIssued)
	bus.Subscribe(handler, billing.EventTypePaymentRecorded)

	require.NoError(t, bus.Publish(context.Background(), recordedEvent(t)))
	assert.Len(t, handler.getHandled(), 1)
}

func TestInMemoryEventBus_Publish_FailingHandlersDoNotStopDelivery(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(h *recordingHandler)
	}{
		{name: "error", prepare: func(h *recordingHandler) { h.err = errors.New("handler error") }},
		{name: "panic", prepare: func(h *recordingHandler) { h.panicMsg = "boom" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := NewInMemoryEventBus(zap.NewNop())
			failing := newRecordingHandler(billing.EventTypePaymentRecorded)
			tt.prepare(failing)
			healthy := newRecordingHandler(billing.EventTypePaymentRecorded)
			bus.Subscribe(failing)
			bus.Subscribe(healthy)

			err := bus.Publish(context.Background(), recordedEvent(t))

			require.NoError(t, err)
			assert.Len(t, failing.getHandled(), 1)
			assert.Len(t, healthy.getHandled(), 1)
		})
	}
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newRecordingHandler(billing.EventTypePaymentRecorded)
	bus.Subscribe(handler)

	_ = bus.Publish(context.Background(), recordedEvent(t))
	bus.Unsubscribe(handler)
	_ = bus.Publish(context.Background(), recordedEvent(t))

	assert.Len(t, handler.getHandled(), 1)
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newRecordingHandler()
	bus.Subscribe(handler)
	ctx := context.Background()

	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Publish(ctx, recordedEvent(t)))

	require.NoError(t, bus.Stop(ctx))
	err := bus.Publish(ctx, recordedEvent(t))
	assert.ErrorIs(t, err, ErrBusStopped)
	assert.Len(t, handler.getHandled(), 1)

	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Publish(ctx, recordedEvent(t)))
	assert.Len(t, handler.getHandled(), 2)
}
