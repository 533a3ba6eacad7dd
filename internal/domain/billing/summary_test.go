package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeMonth(t *testing.T) {
	clientID := uuid.New()
	paid := newIssuedInvoice(t, clientID, "INV-1", "4", "100", 30)
	open := newIssuedInvoice(t, clientID, "INV-2", "1", "100", 30)

	p := newTestPayment(t, clientID, "400")
	res, err := Allocate(p, []AllocationRequest{{InvoiceID: paid.ID, Amount: dec("400")}}, ledgerOf([]*Invoice{paid}), testIssueDate)
	require.NoError(t, err)
	ledger := ledgerOf([]*Invoice{paid, open}, res.Payment)

	t.Run("summarises the month", func(t *testing.T) {
		s, err := SummarizeMonth(2026, time.March, ledger.Invoices, ledger.Payments, testIssueDate)
		require.NoError(t, err)
		assert.Equal(t, 2, s.InvoiceCount)
		assert.Equal(t, 1, s.PaidCount)
		assert.Equal(t, 1, s.OutstandingCount)
		assert.True(t, s.Billed.Equal(dec("500")))
		assert.True(t, s.Received.Equal(dec("400")))
		assert.True(t, s.CollectionRate.Equal(dec("80")))
	})

	t.Run("other months are empty", func(t *testing.T) {
		s, err := SummarizeMonth(2026, time.April, ledger.Invoices, ledger.Payments, testIssueDate)
		require.NoError(t, err)
		assert.Zero(t, s.InvoiceCount)
		assert.True(t, s.CollectionRate.IsZero())
	})

	t.Run("invalid month", func(t *testing.T) {
		_, err := SummarizeMonth(2026, time.Month(13), nil, nil, testIssueDate)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestSummarizeOutstanding(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	invoices := []*Invoice{
		newIssuedInvoice(t, a, "INV-1", "1", "100", 5),
		newIssuedInvoice(t, a, "INV-2", "1", "200", 60),
		newIssuedInvoice(t, b, "INV-3", "1", "50", 5),
	}
	ledger := ledgerOf(invoices)
	asOf := testIssueDate.AddDate(0, 0, 10)
	views, err := ComputeInvoices(ledger.Invoices, nil, asOf)
	require.NoError(t, err)

	s := SummarizeOutstanding(views, asOf)
	assert.True(t, s.TotalOutstanding.Equal(dec("350")))
	assert.Equal(t, 2, s.OverdueCount)
	assert.True(t, s.OverdueAmount.Equal(dec("150")))
	require.Len(t, s.Clients, 2)
	assert.Equal(t, a, s.Clients[0].ClientID)
	assert.True(t, s.Clients[0].Overdue.Equal(dec("100")))
	assert.Equal(t, invoices[0].DueDate, s.Clients[0].OldestDueDate)
	require.Len(t, s.Invoices, 3)
	assert.Equal(t, "INV-1", s.Invoices[0].Number)
	assert.Equal(t, "INV-3", s.Invoices[1].Number)
	assert.Equal(t, "INV-2", s.Invoices[2].Number)
}

func TestSummarizeStatuses(t *testing.T) {
	clientID := uuid.New()
	paid := newIssuedInvoice(t, clientID, "INV-1", "1", "100", 30)
	open := newIssuedInvoice(t, clientID, "INV-2", "1", "100", 30)
	item, _ := NewFixedItem("Fee", dec("10"))
	draft, err := NewInvoice("INV-3", clientID, uuid.New(), LineItems{item}, testIssueDate, testIssueDate)
	require.NoError(t, err)

	p := newTestPayment(t, clientID, "100")
	res, err := Allocate(p, []AllocationRequest{{InvoiceID: paid.ID, Amount: dec("100")}}, ledgerOf([]*Invoice{paid}), testIssueDate)
	require.NoError(t, err)
	ledger := ledgerOf([]*Invoice{paid, open, draft}, res.Payment)
	views, err := ComputeInvoices(ledger.Invoices, ledger.Payments, testIssueDate)
	require.NoError(t, err)

	s := SummarizeStatuses(views)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Counts[InvoiceStatusDraft])
	assert.Equal(t, 0, s.Counts[InvoiceStatusVoid])
	assert.True(t, s.Billed.Equal(dec("200")))
	assert.True(t, s.PaymentRate.Equal(dec("50")))
}

func TestRankClientsByRevenue(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	small := newIssuedInvoice(t, a, "INV-1", "1", "100", 30)
	big := newIssuedInvoice(t, b, "INV-2", "1", "500", 30)

	pa := newTestPayment(t, a, "100")
	ra, err := Allocate(pa, []AllocationRequest{{InvoiceID: small.ID, Amount: dec("100")}}, ledgerOf([]*Invoice{small}), testIssueDate)
	require.NoError(t, err)
	pb := newTestPayment(t, b, "200")
	rb, err := Allocate(pb, []AllocationRequest{{InvoiceID: big.ID, Amount: dec("200")}}, ledgerOf([]*Invoice{big}), testIssueDate)
	require.NoError(t, err)

	ledger := ledgerOf([]*Invoice{small, big}, ra.Payment, rb.Payment)
	views, err := ComputeInvoices(ledger.Invoices, ledger.Payments, testIssueDate)
	require.NoError(t, err)

	ranked := RankClientsByRevenue(views, ReportFilter{}, testIssueDate)
	require.Len(t, ranked, 2)
	assert.Equal(t, b, ranked[0].ClientID)
	assert.True(t, ranked[0].Collected.Equal(dec("200")))

	t.Run("honours an explicit status filter", func(t *testing.T) {
		item, _ := NewFixedItem("Retainer", dec("75"))
		draft, err := NewInvoice("INV-3", a, uuid.New(), LineItems{item}, testIssueDate, testIssueDate)
		require.NoError(t, err)
		draftViews, err := ComputeInvoices([]Invoice{*draft}, nil, testIssueDate)
		require.NoError(t, err)
		all := append(append([]InvoiceView{}, views...), draftViews...)

		drafts := RankClientsByRevenue(all, ReportFilter{Statuses: []InvoiceStatus{InvoiceStatusDraft}}, testIssueDate)
		require.Len(t, drafts, 1)
		assert.Equal(t, a, drafts[0].ClientID)
		assert.True(t, drafts[0].Billed.Equal(dec("75")))
		assert.True(t, drafts[0].Collected.IsZero())
	})
}
