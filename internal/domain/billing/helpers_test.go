package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testIssueDate = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newIssuedInvoice issues an invoice of hours × rate due dueDays after testIssueDate
func newIssuedInvoice(t *testing.T, clientID uuid.UUID, number, hours, rate string, dueDays int) *Invoice {
	t.Helper()
	item, err := NewHourlyItem("Development", dec(hours), dec(rate))
	require.NoError(t, err)
	inv, err := NewInvoice(number, clientID, uuid.New(), LineItems{item}, testIssueDate, testIssueDate.AddDate(0, 0, dueDays))
	require.NoError(t, err)
	require.NoError(t, inv.Issue(testIssueDate))
	return inv
}

func newTestPayment(t *testing.T, clientID uuid.UUID, amount string) *Payment {
	t.Helper()
	p, err := NewPayment("PAY-20260301-0001", clientID, dec(amount), testIssueDate, PaymentMethodBankTransfer)
	require.NoError(t, err)
	return p
}

func ledgerOf(invoices []*Invoice, payments ...*Payment) Ledger {
	l := Ledger{}
	for _, inv := range invoices {
		l.Invoices = append(l.Invoices, *inv)
	}
	for _, p := range payments {
		l.Payments = append(l.Payments, *p)
	}
	return l
}
