package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/freelance/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultDueDays is the payment term used when none is configured
const DefaultDueDays = 30

// Invoice bills a snapshot of a project's line items. It stores lifecycle
// markers only; balance and status come from ComputeInvoice.
type Invoice struct {
	shared.BaseAggregateRoot
	Number     string
	ClientID   uuid.UUID
	ProjectID  uuid.UUID
	IssueDate  time.Time
	DueDate    time.Time
	LineItems  LineItems
	Notes      string
	IssuedAt   *time.Time
	VoidedAt   *time.Time
	VoidReason string
}

// NewInvoice creates a draft invoice. The line items are copied so later
// changes to the caller's slice do not leak in.
func NewInvoice(number string, clientID, projectID uuid.UUID, items LineItems, issueDate, dueDate time.Time) (*Invoice, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, validationError("invoice number is required")
	}
	if clientID == uuid.Nil {
		return nil, validationError("invoice must reference a client")
	}
	if projectID == uuid.Nil {
		return nil, validationError("invoice must reference a project")
	}
	if dateOf(dueDate).Before(dateOf(issueDate)) {
		return nil, validationError("due date %s is before issue date %s",
			dueDate.Format(time.DateOnly), issueDate.Format(time.DateOnly))
	}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, err
		}
	}
	return &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Number:            number,
		ClientID:          clientID,
		ProjectID:         projectID,
		IssueDate:         issueDate,
		DueDate:           dueDate,
		LineItems:         items.Clone(),
	}, nil
}

// FormatInvoiceNumber renders PREFIX-YYYYMMDD-NNNN
func FormatInvoiceNumber(prefix string, at time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, at.Format("20060102"), seq)
}

// IsDraft reports whether the invoice has not been issued or voided
func (i *Invoice) IsDraft() bool {
	return i.IssuedAt == nil && i.VoidedAt == nil
}

// IsIssued reports whether the invoice was finalised
func (i *Invoice) IsIssued() bool {
	return i.IssuedAt != nil
}

// IsVoid reports whether the invoice was voided
func (i *Invoice) IsVoid() bool {
	return i.VoidedAt != nil
}

// Total sums the line items
func (i *Invoice) Total() (decimal.Decimal, error) {
	return i.LineItems.Total()
}

// AddLineItem appends an item while the invoice is still a draft
func (i *Invoice) AddLineItem(item LineItem) error {
	if !i.IsDraft() {
		return invalidState("line items can only be added to a draft invoice")
	}
	if err := item.Validate(); err != nil {
		return err
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	i.LineItems = append(i.LineItems, item)
	i.Touch()
	return nil
}

// SetNotes replaces the free-text notes
func (i *Invoice) SetNotes(notes string) {
	i.Notes = strings.TrimSpace(notes)
	i.Touch()
}

// Issue finalises the invoice and freezes its line items
func (i *Invoice) Issue(at time.Time) error {
	if i.IsVoid() {
		return shared.NewDomainError(CodeVoidInvoice, fmt.Sprintf("invoice %s is void", i.Number))
	}
	if i.IsIssued() {
		return invalidState("invoice %s is already issued", i.Number)
	}
	total, err := i.Total()
	if err != nil {
		return err
	}
	if !total.IsPositive() {
		return validationError("invoice %s has nothing to bill", i.Number)
	}
	i.IssuedAt = &at
	i.Touch()
	i.AddDomainEvent(NewInvoiceIssuedEvent(i, total))
	return nil
}

// Void cancels the invoice. allocated is the sum of live payment
// allocations to it; voiding is only allowed when nothing is allocated.
func (i *Invoice) Void(reason string, allocated decimal.Decimal, at time.Time) error {
	if i.IsVoid() {
		return shared.NewDomainError(CodeVoidInvoice, fmt.Sprintf("invoice %s is already void", i.Number))
	}
	if !allocated.IsZero() {
		return invalidState("invoice %s has %s allocated and cannot be voided; reverse the payments first",
			i.Number, allocated.StringFixed(2))
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return validationError("void reason is required")
	}
	i.VoidedAt = &at
	i.VoidReason = reason
	i.Touch()
	i.AddDomainEvent(NewInvoiceVoidedEvent(i))
	return nil
}
