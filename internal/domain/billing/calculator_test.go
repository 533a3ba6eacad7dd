package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveStatus(t *testing.T) {
	due := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	before := due.AddDate(0, 0, -1)
	after := due.AddDate(0, 0, 1)

	tests := []struct {
		name string
		in   StatusInput
		want InvoiceStatus
	}{
		{"void wins over everything", StatusInput{Voided: true, Issued: true, Total: dec("100"), Balance: decimal.Zero, DueDate: due, AsOf: after}, InvoiceStatusVoid},
		{"unissued is draft", StatusInput{Total: dec("100"), Balance: dec("100"), DueDate: due, AsOf: after}, InvoiceStatusDraft},
		{"zero balance is paid even past due", StatusInput{Issued: true, Total: dec("100"), Balance: decimal.Zero, DueDate: due, AsOf: after}, InvoiceStatusPaid},
		{"partial payment beats overdue", StatusInput{Issued: true, Total: dec("100"), Balance: dec("40"), DueDate: due, AsOf: after}, InvoiceStatusPartiallyPaid},
		{"unpaid past due is overdue", StatusInput{Issued: true, Total: dec("100"), Balance: dec("100"), DueDate: due, AsOf: after}, InvoiceStatusOverdue},
		{"unpaid on due date is issued", StatusInput{Issued: true, Total: dec("100"), Balance: dec("100"), DueDate: due, AsOf: due.Add(23 * time.Hour)}, InvoiceStatusIssued},
		{"unpaid before due is issued", StatusInput{Issued: true, Total: dec("100"), Balance: dec("100"), DueDate: due, AsOf: before}, InvoiceStatusIssued},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.in))
		})
	}
}

func TestComputeInvoice_PaymentProgression(t *testing.T) {
	clientID := uuid.New()
	inv := newIssuedInvoice(t, clientID, "INV-1", "10", "50", 30)
	asOf := testIssueDate.AddDate(0, 0, 1)

	view, err := ComputeInvoice(inv, nil, asOf)
	require.NoError(t, err)
	assert.True(t, view.Total.Equal(dec("500")))
	assert.True(t, view.Balance.Equal(dec("500")))
	assert.Equal(t, InvoiceStatusIssued, view.Status)

	first := newTestPayment(t, clientID, "300")
	res, err := Allocate(first, []AllocationRequest{{InvoiceID: inv.ID, Amount: dec("300")}}, ledgerOf([]*Invoice{inv}), asOf)
	require.NoError(t, err)
	require.Len(t, res.Invoices, 1)
	assert.True(t, res.Invoices[0].Balance.Equal(dec("200")))
	assert.Equal(t, InvoiceStatusPartiallyPaid, res.Invoices[0].Status)

	second := newTestPayment(t, clientID, "200")
	res2, err := Allocate(second, []AllocationRequest{{InvoiceID: inv.ID, Amount: dec("200")}}, ledgerOf([]*Invoice{inv}, res.Payment), asOf)
	require.NoError(t, err)
	assert.True(t, res2.Invoices[0].Balance.IsZero())
	assert.Equal(t, InvoiceStatusPaid, res2.Invoices[0].Status)

	view, err = ComputeInvoice(inv, []Payment{*res.Payment, *res2.Payment}, asOf)
	require.NoError(t, err)
	assert.True(t, view.Paid.Equal(dec("500")))
	assert.Equal(t, InvoiceStatusPaid, view.Status)
}

func TestComputeInvoice_Overdue(t *testing.T) {
	inv := newIssuedInvoice(t, uuid.New(), "INV-1", "10", "50", 30)

	t.Run("becomes overdue the day after the due date", func(t *testing.T) {
		view, err := ComputeInvoice(inv, nil, inv.DueDate.AddDate(0, 0, 5))
		require.NoError(t, err)
		assert.Equal(t, InvoiceStatusOverdue, view.Status)
		assert.Equal(t, 5, view.DaysOverdue)
	})

	t.Run("status is a pure function of asOf", func(t *testing.T) {
		early, err := ComputeInvoice(inv, nil, inv.DueDate)
		require.NoError(t, err)
		late, err := ComputeInvoice(inv, nil, inv.DueDate.AddDate(0, 0, 1))
		require.NoError(t, err)
		again, err := ComputeInvoice(inv, nil, inv.DueDate)
		require.NoError(t, err)

		assert.Equal(t, InvoiceStatusIssued, early.Status)
		assert.Equal(t, InvoiceStatusOverdue, late.Status)
		assert.Equal(t, early, again)
		assert.True(t, inv.IsIssued())
	})
}

func TestComputeInvoice_IgnoresReversedAndForeignPayments(t *testing.T) {
	clientID := uuid.New()
	inv := newIssuedInvoice(t, clientID, "INV-1", "10", "50", 30)
	other := newIssuedInvoice(t, clientID, "INV-2", "1", "50", 30)

	p := newTestPayment(t, clientID, "150")
	res, err := Allocate(p, []AllocationRequest{
		{InvoiceID: inv.ID, Amount: dec("100")},
		{InvoiceID: other.ID, Amount: dec("50")},
	}, ledgerOf([]*Invoice{inv, other}), testIssueDate)
	require.NoError(t, err)

	view, err := ComputeInvoice(inv, []Payment{*res.Payment}, testIssueDate)
	require.NoError(t, err)
	assert.True(t, view.Paid.Equal(dec("100")))

	reversed := *res.Payment
	_, err = reversed.Reverse("bounced", testIssueDate)
	require.NoError(t, err)
	view, err = ComputeInvoice(inv, []Payment{reversed}, testIssueDate)
	require.NoError(t, err)
	assert.True(t, view.Paid.IsZero())
	assert.Equal(t, InvoiceStatusIssued, view.Status)
}

func TestComputeInvoice_InvariantViolations(t *testing.T) {
	clientID := uuid.New()

	t.Run("over-allocated ledger", func(t *testing.T) {
		inv := newIssuedInvoice(t, clientID, "INV-1", "1", "50", 30)
		p := newTestPayment(t, clientID, "100")
		p.Allocations = append(p.Allocations, Allocation{ID: uuid.New(), PaymentID: p.ID, InvoiceID: inv.ID, Amount: dec("100")})

		_, err := ComputeInvoice(inv, []Payment{*p}, testIssueDate)
		assert.ErrorIs(t, err, ErrInvariantViolation)
	})

	t.Run("non-positive allocation", func(t *testing.T) {
		inv := newIssuedInvoice(t, clientID, "INV-1", "1", "50", 30)
		p := newTestPayment(t, clientID, "100")
		p.Allocations = append(p.Allocations, Allocation{ID: uuid.New(), PaymentID: p.ID, InvoiceID: inv.ID, Amount: decimal.Zero})

		_, err := ComputeInvoice(inv, []Payment{*p}, testIssueDate)
		assert.ErrorIs(t, err, ErrInvariantViolation)
	})

	t.Run("void invoice carrying payments", func(t *testing.T) {
		inv := newIssuedInvoice(t, clientID, "INV-1", "1", "50", 30)
		require.NoError(t, inv.Void("mistake", decimal.Zero, testIssueDate))
		p := newTestPayment(t, clientID, "10")
		p.Allocations = append(p.Allocations, Allocation{ID: uuid.New(), PaymentID: p.ID, InvoiceID: inv.ID, Amount: dec("10")})

		_, err := ComputeInvoice(inv, []Payment{*p}, testIssueDate)
		assert.ErrorIs(t, err, ErrInvariantViolation)
	})
}
