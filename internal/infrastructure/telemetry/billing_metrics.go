package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/freelance/backend/internal/domain/billing"
	"github.com/freelance/backend/internal/domain/shared"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics recorder is built without a meter
var ErrMeterNil = errors.New("telemetry: meter is nil")

// BillingMetrics counts ledger activity. It subscribes to the event bus so
// only committed changes are counted.
type BillingMetrics struct {
	events           metric.Int64Counter
	invoicesIssued   metric.Int64Counter
	invoicesVoided   metric.Int64Counter
	invoicedAmount   metric.Float64Counter
	paymentsRecorded metric.Int64Counter
	paymentAmount    metric.Float64Counter
	allocations      metric.Int64Counter
	paymentsReversed metric.Int64Counter
}

// NewBillingMetrics registers the billing instruments on meter
func NewBillingMetrics(meter metric.Meter) (*BillingMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &BillingMetrics{}
	var errs []error
	int64Counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{count}"))
		errs = append(errs, err)
		return c
	}
	amountCounter := func(name, desc string) metric.Float64Counter {
		c, err := meter.Float64Counter(name, metric.WithDescription(desc), metric.WithUnit("{currency}"))
		errs = append(errs, err)
		return c
	}

	m.events = int64Counter("billing.events", "Billing events handled")
	m.invoicesIssued = int64Counter("billing.invoices.issued", "Invoices issued")
	m.invoicesVoided = int64Counter("billing.invoices.voided", "Invoices voided")
	m.invoicedAmount = amountCounter("billing.invoices.amount", "Total of issued invoices")
	m.paymentsRecorded = int64Counter("billing.payments.recorded", "Payments recorded")
	m.paymentAmount = amountCounter("billing.payments.amount", "Money received")
	m.allocations = int64Counter("billing.allocations", "Allocations applied to invoices")
	m.paymentsReversed = int64Counter("billing.payments.reversed", "Payments reversed")

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("failed to create billing metrics: %w", err)
	}
	return m, nil
}

// EventTypes lists the billing events counted
func (m *BillingMetrics) EventTypes() []string {
	return []string{
		billing.EventTypeInvoiceIssued,
		billing.EventTypeInvoiceVoided,
		billing.EventTypePaymentRecorded,
		billing.EventTypePaymentAllocated,
		billing.EventTypePaymentReversed,
	}
}

// Handle updates the counters for one event
func (m *BillingMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	m.events.Add(ctx, 1, metric.WithAttributes(AttrEventType.String(event.EventType())))

	switch e := event.(type) {
	case *billing.InvoiceIssuedEvent:
		m.invoicesIssued.Add(ctx, 1)
		m.invoicedAmount.Add(ctx, e.Total.InexactFloat64())
	case *billing.InvoiceVoidedEvent:
		m.invoicesVoided.Add(ctx, 1)
	case *billing.PaymentRecordedEvent:
		method := metric.WithAttributes(AttrPaymentMethod.String(string(e.Method)))
		m.paymentsRecorded.Add(ctx, 1, method)
		m.paymentAmount.Add(ctx, e.Amount.InexactFloat64(), method)
	case *billing.PaymentAllocatedEvent:
		m.allocations.Add(ctx, int64(len(e.Allocations)))
	case *billing.PaymentReversedEvent:
		m.paymentsReversed.Add(ctx, 1)
	}
	return nil
}
