package event

import (
	"context"
	"sync"
	"time"

	"github.com/freelance/backend/internal/domain/billing"
	"github.com/freelance/backend/internal/domain/shared"
	"github.com/freelance/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultActivityCapacity is how many entries ActivityLog keeps
const DefaultActivityCapacity = 200

// Activity is one line of the ledger's audit trail
type Activity struct {
	EventID     uuid.UUID `json:"event_id"`
	EventType   string    `json:"event_type"`
	AggregateID uuid.UUID `json:"aggregate_id"`
	Summary     string    `json:"summary"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// ActivityLog writes every billing event to the log and keeps the most
// recent ones in a ring buffer.
type ActivityLog struct {
	logger *zap.Logger

	mu      sync.RWMutex
	entries []Activity
	next    int
	full    bool
}

// NewActivityLog creates a log holding up to capacity entries
func NewActivityLog(logger *zap.Logger, capacity int) *ActivityLog {
	if capacity <= 0 {
		capacity = DefaultActivityCapacity
	}
	return &ActivityLog{
		logger:  logger,
		entries: make([]Activity, capacity),
	}
}

// EventTypes lists the billing events recorded
func (l *ActivityLog) EventTypes() []string {
	return []string{
		billing.EventTypeInvoiceIssued,
		billing.EventTypeInvoiceVoided,
		billing.EventTypePaymentRecorded,
		billing.EventTypePaymentAllocated,
		billing.EventTypePaymentReversed,
	}
}

// Handle records the event
func (l *ActivityLog) Handle(ctx context.Context, event shared.DomainEvent) error {
	summary, fields := describe(event)
	fields = append(fields,
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_id", event.AggregateID().String()),
	)
	logger.For(ctx, l.logger).Info(summary, fields...)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.next] = Activity{
		EventID:     event.EventID(),
		EventType:   event.EventType(),
		AggregateID: event.AggregateID(),
		Summary:     summary,
		OccurredAt:  event.OccurredAt(),
	}
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
	return nil
}

// Recent returns up to limit entries, newest first
func (l *ActivityLog) Recent(limit int) []Activity {
	l.mu.RLock()
	defer l.mu.RUnlock()

	size := l.next
	if l.full {
		size = len(l.entries)
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	out := make([]Activity, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (l.next - i + len(l.entries)) % len(l.entries)
		out = append(out, l.entries[idx])
	}
	return out
}

func describe(event shared.DomainEvent) (string, []zap.Field) {
	switch e := event.(type) {
	case *billing.InvoiceIssuedEvent:
		return "invoice issued", []zap.Field{
			zap.String("invoice_number", e.InvoiceNumber),
			zap.String("client_id", e.ClientID.String()),
			zap.String("total", e.Total.StringFixed(2)),
			zap.Time("due_date", e.DueDate),
		}
	case *billing.InvoiceVoidedEvent:
		return "invoice voided", []zap.Field{
			zap.String("invoice_number", e.InvoiceNumber),
			zap.String("reason", e.Reason),
		}
	case *billing.PaymentRecordedEvent:
		return "payment recorded", []zap.Field{
			zap.String("payment_number", e.PaymentNumber),
			zap.String("client_id", e.ClientID.String()),
			zap.String("amount", e.Amount.StringFixed(2)),
			zap.String("method", e.Method.String()),
		}
	case *billing.PaymentAllocatedEvent:
		invoices := make([]string, 0, len(e.Allocations))
		for _, a := range e.Allocations {
			invoices = append(invoices, a.InvoiceID.String())
		}
		return "payment allocated", []zap.Field{
			zap.String("payment_number", e.PaymentNumber),
			zap.Strings("invoice_ids", invoices),
		}
	case *billing.PaymentReversedEvent:
		return "payment reversed", []zap.Field{
			zap.String("payment_number", e.PaymentNumber),
			zap.String("amount", e.Amount.StringFixed(2)),
			zap.String("reason", e.Reason),
		}
	default:
		return "domain event", nil
	}
}

var _ shared.EventHandler = (*ActivityLog)(nil)
