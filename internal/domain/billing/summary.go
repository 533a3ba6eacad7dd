package billing

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MonthlySummary covers invoices issued and payments received in one month
type MonthlySummary struct {
	Year             int             `json:"year"`
	Month            time.Month      `json:"month"`
	InvoiceCount     int             `json:"invoice_count"`
	PaidCount        int             `json:"paid_count"`
	OutstandingCount int             `json:"outstanding_count"`
	Billed           decimal.Decimal `json:"billed"`
	Received         decimal.Decimal `json:"received"`
	CollectionRate   decimal.Decimal `json:"collection_rate"`
}

// SummarizeMonth reports invoices issued in the month and live payments
// received in it. CollectionRate is received over billed as a percentage.
func SummarizeMonth(year int, month time.Month, invoices []Invoice, payments []Payment, asOf time.Time) (*MonthlySummary, error) {
	if month < time.January || month > time.December {
		return nil, validationError("month must be between 1 and 12")
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)

	views, err := ComputeInvoices(invoices, payments, asOf)
	if err != nil {
		return nil, err
	}
	filter := ReportFilter{From: &start, To: &end}
	report := AggregateViews(views, filter, asOf)

	s := &MonthlySummary{
		Year:           year,
		Month:          month,
		InvoiceCount:   report.InvoiceCount,
		Billed:         report.Billed,
		Received:       decimal.Zero,
		CollectionRate: decimal.Zero,
	}
	for _, v := range views {
		if !filter.Matches(v) {
			continue
		}
		if v.Status == InvoiceStatusPaid {
			s.PaidCount++
		} else {
			s.OutstandingCount++
		}
	}
	for i := range payments {
		p := &payments[i]
		received := dateOf(p.ReceivedOn)
		if p.IsReversed() || received.Before(start) || received.After(end) {
			continue
		}
		s.Received = s.Received.Add(p.Amount)
	}
	if s.Billed.IsPositive() {
		s.CollectionRate = s.Received.Div(s.Billed).Mul(hundred).Round(2)
	}
	return s, nil
}

// ClientRevenue ranks clients by what they have paid
type ClientRevenue struct {
	ClientID uuid.UUID `json:"client_id"`
	Totals
}

// RankClientsByRevenue orders clients whose invoices match filter by
// collected amount descending
func RankClientsByRevenue(views []InvoiceView, filter ReportFilter, asOf time.Time) []ClientRevenue {
	report := AggregateViews(views, filter, asOf)
	out := make([]ClientRevenue, 0, len(report.Breakdown))
	for _, cb := range report.Breakdown {
		out = append(out, ClientRevenue{ClientID: cb.ClientID, Totals: cb.Totals})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Collected.Cmp(out[j].Collected); c != 0 {
			return c > 0
		}
		return bytes.Compare(out[i].ClientID[:], out[j].ClientID[:]) < 0
	})
	return out
}

// ClientOutstanding is one client's unpaid position
type ClientOutstanding struct {
	ClientID      uuid.UUID       `json:"client_id"`
	Outstanding   decimal.Decimal `json:"outstanding"`
	Overdue       decimal.Decimal `json:"overdue"`
	InvoiceCount  int             `json:"invoice_count"`
	OldestDueDate time.Time       `json:"oldest_due_date"`
}

// OutstandingSummary lists unpaid invoices grouped by client
type OutstandingSummary struct {
	AsOf             time.Time           `json:"as_of"`
	TotalOutstanding decimal.Decimal     `json:"total_outstanding"`
	OverdueAmount    decimal.Decimal     `json:"overdue_amount"`
	OverdueCount     int                 `json:"overdue_count"`
	Invoices         []InvoiceView       `json:"invoices"`
	Clients          []ClientOutstanding `json:"clients"`
}

// SummarizeOutstanding collects every invoice that still accepts payment.
// An invoice counts as overdue when it is past due, whether or not it has
// been partly paid.
func SummarizeOutstanding(views []InvoiceView, asOf time.Time) *OutstandingSummary {
	s := &OutstandingSummary{
		AsOf:             asOf,
		TotalOutstanding: decimal.Zero,
		OverdueAmount:    decimal.Zero,
		Invoices:         []InvoiceView{},
		Clients:          []ClientOutstanding{},
	}
	byClient := make(map[uuid.UUID]*ClientOutstanding)
	for _, v := range views {
		if !v.Status.AcceptsPayment() || !v.Balance.IsPositive() {
			continue
		}
		s.Invoices = append(s.Invoices, v)
		s.TotalOutstanding = s.TotalOutstanding.Add(v.Balance)

		co, ok := byClient[v.ClientID]
		if !ok {
			co = &ClientOutstanding{ClientID: v.ClientID, Outstanding: decimal.Zero, Overdue: decimal.Zero, OldestDueDate: v.DueDate}
			byClient[v.ClientID] = co
		}
		co.InvoiceCount++
		co.Outstanding = co.Outstanding.Add(v.Balance)
		if v.DueDate.Before(co.OldestDueDate) {
			co.OldestDueDate = v.DueDate
		}
		if isPastDue(v.DueDate, asOf) {
			s.OverdueCount++
			s.OverdueAmount = s.OverdueAmount.Add(v.Balance)
			co.Overdue = co.Overdue.Add(v.Balance)
		}
	}

	sort.SliceStable(s.Invoices, func(i, j int) bool {
		return dueBefore(s.Invoices[i], s.Invoices[j])
	})
	for _, co := range byClient {
		s.Clients = append(s.Clients, *co)
	}
	sort.Slice(s.Clients, func(i, j int) bool {
		return outstandingFirst(s.Clients[i].Outstanding, s.Clients[j].Outstanding, s.Clients[i].ClientID, s.Clients[j].ClientID)
	})
	return s
}

// StatusSummary counts invoices per status
type StatusSummary struct {
	Counts      map[InvoiceStatus]int `json:"counts"`
	Total       int                   `json:"total"`
	Billed      decimal.Decimal       `json:"billed"`
	Collected   decimal.Decimal       `json:"collected"`
	Outstanding decimal.Decimal       `json:"outstanding"`
	PaymentRate decimal.Decimal       `json:"payment_rate"`
}

// SummarizeStatuses counts views by status. Money figures skip drafts and
// void invoices; PaymentRate is the share of issued invoices fully paid.
func SummarizeStatuses(views []InvoiceView) *StatusSummary {
	s := &StatusSummary{
		Counts:      make(map[InvoiceStatus]int, len(AllInvoiceStatuses())),
		Billed:      decimal.Zero,
		Collected:   decimal.Zero,
		Outstanding: decimal.Zero,
		PaymentRate: decimal.Zero,
	}
	for _, status := range AllInvoiceStatuses() {
		s.Counts[status] = 0
	}
	issued := 0
	for _, v := range views {
		s.Counts[v.Status]++
		s.Total++
		if v.Status == InvoiceStatusDraft || v.Status == InvoiceStatusVoid {
			continue
		}
		issued++
		s.Billed = s.Billed.Add(v.Total)
		s.Collected = s.Collected.Add(v.Paid)
		s.Outstanding = s.Outstanding.Add(v.Balance)
	}
	if issued > 0 {
		s.PaymentRate = decimal.NewFromInt(int64(s.Counts[InvoiceStatusPaid])).
			Div(decimal.NewFromInt(int64(issued))).Mul(hundred).Round(2)
	}
	return s
}
