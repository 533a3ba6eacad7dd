package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceView is the read-only projection of an invoice against the
// payment ledger at a point in time.
type InvoiceView struct {
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	Number      string          `json:"number"`
	ClientID    uuid.UUID       `json:"client_id"`
	ProjectID   uuid.UUID       `json:"project_id"`
	IssueDate   time.Time       `json:"issue_date"`
	DueDate     time.Time       `json:"due_date"`
	LineItems   LineItems       `json:"line_items"`
	Notes       string          `json:"notes,omitempty"`
	Total       decimal.Decimal `json:"total"`
	Paid        decimal.Decimal `json:"paid"`
	Balance     decimal.Decimal `json:"balance"`
	Status      InvoiceStatus   `json:"status"`
	DaysOverdue int             `json:"days_overdue"`
}

// ComputeInvoice derives total, balance and status of an invoice.
//
// payments must contain every payment with allocations to the invoice;
// payments that do not reference it are ignored, and reversed payments
// contribute nothing. A balance below zero means the ledger was fed
// allocations that should have been rejected, and is reported as an
// invariant violation rather than clamped.
func ComputeInvoice(inv *Invoice, payments []Payment, asOf time.Time) (*InvoiceView, error) {
	total, err := inv.Total()
	if err != nil {
		return nil, err
	}

	paid := decimal.Zero
	for i := range payments {
		p := &payments[i]
		if p.IsReversed() {
			continue
		}
		for _, a := range p.Allocations {
			if a.InvoiceID != inv.ID {
				continue
			}
			if !a.Amount.IsPositive() {
				return nil, invariantViolation("payment %s has a non-positive allocation to invoice %s", p.Number, inv.Number)
			}
			paid = paid.Add(a.Amount)
		}
	}

	balance := total.Sub(paid)
	if balance.IsNegative() {
		return nil, invariantViolation("invoice %s is over-allocated: total %s, allocated %s",
			inv.Number, total.StringFixed(2), paid.StringFixed(2))
	}
	if inv.IsVoid() && paid.IsPositive() {
		return nil, invariantViolation("void invoice %s has %s allocated", inv.Number, paid.StringFixed(2))
	}

	status := DeriveStatus(StatusInput{
		Voided:  inv.IsVoid(),
		Issued:  inv.IsIssued(),
		Total:   total,
		Balance: balance,
		DueDate: inv.DueDate,
		AsOf:    asOf,
	})

	daysOverdue := 0
	if status.AcceptsPayment() && isPastDue(inv.DueDate, asOf) {
		daysOverdue = daysBetween(inv.DueDate, asOf)
	}

	return &InvoiceView{
		InvoiceID:   inv.ID,
		Number:      inv.Number,
		ClientID:    inv.ClientID,
		ProjectID:   inv.ProjectID,
		IssueDate:   inv.IssueDate,
		DueDate:     inv.DueDate,
		LineItems:   inv.LineItems.Clone(),
		Notes:       inv.Notes,
		Total:       total,
		Paid:        paid,
		Balance:     balance,
		Status:      status,
		DaysOverdue: daysOverdue,
	}, nil
}

// ComputeInvoices computes views for every invoice in order
func ComputeInvoices(invoices []Invoice, payments []Payment, asOf time.Time) ([]InvoiceView, error) {
	views := make([]InvoiceView, 0, len(invoices))
	for i := range invoices {
		view, err := ComputeInvoice(&invoices[i], payments, asOf)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}
