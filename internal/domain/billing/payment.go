package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/freelance/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how the money arrived
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCheque       PaymentMethod = "CHEQUE"
	PaymentMethodUPI          PaymentMethod = "UPI"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodOther        PaymentMethod = "OTHER"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCheque,
		PaymentMethodUPI, PaymentMethodCard, PaymentMethodOther:
		return true
	}
	return false
}

// String returns the string representation
func (m PaymentMethod) String() string {
	return string(m)
}

// ParsePaymentMethod parses a method name case-insensitively
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", validationError("unknown payment method %q", s)
	}
	return m, nil
}

// Allocation assigns part of a payment to one invoice. Allocations are
// append-only; a wrong allocation is corrected by reversing the payment.
type Allocation struct {
	ID          uuid.UUID       `json:"id"`
	PaymentID   uuid.UUID       `json:"payment_id"`
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	Amount      decimal.Decimal `json:"amount"`
	AllocatedAt time.Time       `json:"allocated_at"`
}

// PaymentReversal is the compensating record that cancels a payment and
// every allocation it carries.
type PaymentReversal struct {
	ID         uuid.UUID
	PaymentID  uuid.UUID
	Reason     string
	ReversedAt time.Time
}

// Payment is money received from a client. The row itself is insert-only.
type Payment struct {
	shared.BaseAggregateRoot
	Number         string
	ClientID       uuid.UUID
	Amount         decimal.Decimal
	ReceivedOn     time.Time
	Method         PaymentMethod
	Reference      string
	Notes          string
	TransactionFee decimal.Decimal
	Allocations    []Allocation
	Reversal       *PaymentReversal
}

// PaymentOption configures optional payment fields
type PaymentOption func(*Payment)

// WithReference sets the bank or transaction reference
func WithReference(ref string) PaymentOption {
	return func(p *Payment) { p.Reference = strings.TrimSpace(ref) }
}

// WithNotes sets free-text notes
func WithNotes(notes string) PaymentOption {
	return func(p *Payment) { p.Notes = strings.TrimSpace(notes) }
}

// WithTransactionFee records a fee deducted by the payment channel
func WithTransactionFee(fee decimal.Decimal) PaymentOption {
	return func(p *Payment) { p.TransactionFee = fee }
}

// NewPayment records money received. It carries no allocations yet.
func NewPayment(number string, clientID uuid.UUID, amount decimal.Decimal, receivedOn time.Time, method PaymentMethod, opts ...PaymentOption) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, shared.NewDomainError(CodeZeroAmount,
			fmt.Sprintf("payment amount must be greater than zero, got %s", amount.String()))
	}
	if strings.TrimSpace(number) == "" {
		return nil, validationError("payment number is required")
	}
	if clientID == uuid.Nil {
		return nil, validationError("payment must reference a client")
	}
	if !method.IsValid() {
		return nil, validationError("unknown payment method %q", method)
	}
	p := &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Number:            strings.TrimSpace(number),
		ClientID:          clientID,
		Amount:            amount,
		ReceivedOn:        receivedOn,
		Method:            method,
		TransactionFee:    decimal.Zero,
		Allocations:       []Allocation{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.TransactionFee.IsNegative() || p.TransactionFee.GreaterThan(p.Amount) {
		return nil, validationError("transaction fee must be between 0 and the payment amount")
	}
	p.AddDomainEvent(NewPaymentRecordedEvent(p))
	return p, nil
}

// FormatPaymentNumber renders PREFIX-YYYYMMDD-NNNN
func FormatPaymentNumber(prefix string, at time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, at.Format("20060102"), seq)
}

// NetAmount is the amount after the channel fee
func (p *Payment) NetAmount() decimal.Decimal {
	return p.Amount.Sub(p.TransactionFee)
}

// IsReversed reports whether a compensating reversal exists
func (p *Payment) IsReversed() bool {
	return p.Reversal != nil
}

// AllocatedTotal sums all allocations
func (p *Payment) AllocatedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, a := range p.Allocations {
		total = total.Add(a.Amount)
	}
	return total
}

// Unallocated is the remainder still available for allocation
func (p *Payment) Unallocated() decimal.Decimal {
	return p.Amount.Sub(p.AllocatedTotal())
}

// AllocatedTo sums allocations to one invoice
func (p *Payment) AllocatedTo(invoiceID uuid.UUID) decimal.Decimal {
	total := decimal.Zero
	for _, a := range p.Allocations {
		if a.InvoiceID == invoiceID {
			total = total.Add(a.Amount)
		}
	}
	return total
}

// AllocationMap returns invoice ID → allocated amount
func (p *Payment) AllocationMap() map[uuid.UUID]decimal.Decimal {
	m := make(map[uuid.UUID]decimal.Decimal)
	for _, a := range p.Allocations {
		m[a.InvoiceID] = m[a.InvoiceID].Add(a.Amount)
	}
	return m
}

// Reverse produces the compensating record for this payment. The payment
// is only marked in memory; persistence inserts the reversal row.
func (p *Payment) Reverse(reason string, at time.Time) (*PaymentReversal, error) {
	if p.IsReversed() {
		return nil, invalidState("payment %s is already reversed", p.Number)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationError("reversal reason is required")
	}
	r := &PaymentReversal{
		ID:         uuid.New(),
		PaymentID:  p.ID,
		Reason:     reason,
		ReversedAt: at,
	}
	p.Reversal = r
	p.AddDomainEvent(NewPaymentReversedEvent(p, r))
	return r, nil
}

// clone returns a deep copy with no pending events
func (p *Payment) clone() *Payment {
	c := *p
	c.ClearDomainEvents()
	c.Allocations = make([]Allocation, len(p.Allocations))
	copy(c.Allocations, p.Allocations)
	if p.Reversal != nil {
		r := *p.Reversal
		c.Reversal = &r
	}
	return &c
}
