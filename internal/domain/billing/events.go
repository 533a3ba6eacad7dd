package billing

import (
	"time"

	"github.com/freelance/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type names
const (
	EventTypeInvoiceIssued    = "InvoiceIssued"
	EventTypeInvoiceVoided    = "InvoiceVoided"
	EventTypePaymentRecorded  = "PaymentRecorded"
	EventTypePaymentAllocated = "PaymentAllocated"
	EventTypePaymentReversed  = "PaymentReversed"
)

// InvoiceIssuedEvent is raised when a draft invoice is finalised
type InvoiceIssuedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	ClientID      uuid.UUID       `json:"client_id"`
	Total         decimal.Decimal `json:"total"`
	DueDate       time.Time       `json:"due_date"`
}

// NewInvoiceIssuedEvent creates a new InvoiceIssuedEvent
func NewInvoiceIssuedEvent(inv *Invoice, total decimal.Decimal) *InvoiceIssuedEvent {
	return &InvoiceIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceIssued, "Invoice", inv.ID),
		InvoiceNumber:   inv.Number,
		ClientID:        inv.ClientID,
		Total:           total,
		DueDate:         inv.DueDate,
	}
}

// InvoiceVoidedEvent is raised when an invoice is voided
type InvoiceVoidedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string `json:"invoice_number"`
	Reason        string `json:"reason"`
}

// NewInvoiceVoidedEvent creates a new InvoiceVoidedEvent
func NewInvoiceVoidedEvent(inv *Invoice) *InvoiceVoidedEvent {
	return &InvoiceVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceVoided, "Invoice", inv.ID),
		InvoiceNumber:   inv.Number,
		Reason:          inv.VoidReason,
	}
}

// PaymentRecordedEvent is raised when money is received
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	PaymentNumber string          `json:"payment_number"`
	ClientID      uuid.UUID       `json:"client_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method"`
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(p *Payment) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, "Payment", p.ID),
		PaymentNumber:   p.Number,
		ClientID:        p.ClientID,
		Amount:          p.Amount,
		Method:          p.Method,
	}
}

// PaymentAllocatedEvent is raised when allocations are appended to a payment
type PaymentAllocatedEvent struct {
	shared.BaseDomainEvent
	PaymentNumber string       `json:"payment_number"`
	Allocations   []Allocation `json:"allocations"`
}

// NewPaymentAllocatedEvent creates a new PaymentAllocatedEvent
func NewPaymentAllocatedEvent(p *Payment, allocations []Allocation) *PaymentAllocatedEvent {
	return &PaymentAllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentAllocated, "Payment", p.ID),
		PaymentNumber:   p.Number,
		Allocations:     allocations,
	}
}

// PaymentReversedEvent is raised when a compensating reversal is recorded
type PaymentReversedEvent struct {
	shared.BaseDomainEvent
	PaymentNumber string          `json:"payment_number"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
}

// NewPaymentReversedEvent creates a new PaymentReversedEvent
func NewPaymentReversedEvent(p *Payment, r *PaymentReversal) *PaymentReversedEvent {
	return &PaymentReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentReversed, "Payment", p.ID),
		PaymentNumber:   p.Number,
		Amount:          p.Amount,
		Reason:          r.Reason,
	}
}
