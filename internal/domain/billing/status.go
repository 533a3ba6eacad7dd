package billing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is derived from an invoice's markers and balance, never stored
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"          // Not yet issued, line items editable
	InvoiceStatusIssued        InvoiceStatus = "ISSUED"         // Issued, nothing paid, not yet due
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID" // 0 < balance < total
	InvoiceStatusPaid          InvoiceStatus = "PAID"           // balance = 0 and total > 0
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"        // Nothing paid and past due date
	InvoiceStatusVoid          InvoiceStatus = "VOID"           // Explicitly voided
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusIssued, InvoiceStatusPartiallyPaid,
		InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusVoid:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further payment can change the status
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusVoid
}

// AcceptsPayment returns true if allocations may target an invoice in this status
func (s InvoiceStatus) AcceptsPayment() bool {
	switch s {
	case InvoiceStatusIssued, InvoiceStatusPartiallyPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}

// ParseInvoiceStatus parses a status name case-insensitively
func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	status := InvoiceStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", validationError("unknown invoice status %q", s)
	}
	return status, nil
}

// AllInvoiceStatuses returns all statuses in lifecycle order
func AllInvoiceStatuses() []InvoiceStatus {
	return []InvoiceStatus{
		InvoiceStatusDraft,
		InvoiceStatusIssued,
		InvoiceStatusPartiallyPaid,
		InvoiceStatusPaid,
		InvoiceStatusOverdue,
		InvoiceStatusVoid,
	}
}

// StatusInput carries everything status derivation depends on
type StatusInput struct {
	Voided  bool
	Issued  bool
	Total   decimal.Decimal
	Balance decimal.Decimal
	DueDate time.Time
	AsOf    time.Time
}

// DeriveStatus maps markers and balance to a status.
// Priority: Void > Draft > Paid > PartiallyPaid > Overdue > Issued.
func DeriveStatus(in StatusInput) InvoiceStatus {
	switch {
	case in.Voided:
		return InvoiceStatusVoid
	case !in.Issued:
		return InvoiceStatusDraft
	case in.Balance.IsZero() && in.Total.IsPositive():
		return InvoiceStatusPaid
	case in.Balance.IsPositive() && in.Balance.LessThan(in.Total):
		return InvoiceStatusPartiallyPaid
	case in.Balance.IsPositive() && isPastDue(in.DueDate, in.AsOf):
		return InvoiceStatusOverdue
	default:
		return InvoiceStatusIssued
	}
}

// isPastDue compares calendar days so an invoice is overdue only from the
// day after its due date.
func isPastDue(due, asOf time.Time) bool {
	return dateOf(asOf).After(dateOf(due))
}

// dateOf truncates t to midnight UTC of its own calendar day
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns whole calendar days from a to b
func daysBetween(a, b time.Time) int {
	return int(dateOf(b).Sub(dateOf(a)).Hours() / 24)
}
