package billing

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReportFilter selects invoices for a report. From and To are inclusive
// calendar days on the issue date. An empty Statuses matches every status
// except DRAFT and VOID, which carry no receivable.
type ReportFilter struct {
	From      *time.Time
	To        *time.Time
	ClientID  *uuid.UUID
	ProjectID *uuid.UUID
	Statuses  []InvoiceStatus
}

// DefaultReportStatuses are matched when a filter names no statuses
func DefaultReportStatuses() []InvoiceStatus {
	return []InvoiceStatus{
		InvoiceStatusIssued,
		InvoiceStatusPartiallyPaid,
		InvoiceStatusPaid,
		InvoiceStatusOverdue,
	}
}

// Validate rejects inverted ranges and unknown statuses
func (f ReportFilter) Validate() error {
	if f.From != nil && f.To != nil && dateOf(*f.To).Before(dateOf(*f.From)) {
		return validationError("report range ends before it starts")
	}
	for _, s := range f.Statuses {
		if !s.IsValid() {
			return validationError("unknown invoice status %q", s)
		}
	}
	return nil
}

// Matches reports whether a computed invoice falls inside the filter
func (f ReportFilter) Matches(v InvoiceView) bool {
	issued := dateOf(v.IssueDate)
	if f.From != nil && issued.Before(dateOf(*f.From)) {
		return false
	}
	if f.To != nil && issued.After(dateOf(*f.To)) {
		return false
	}
	if f.ClientID != nil && v.ClientID != *f.ClientID {
		return false
	}
	if f.ProjectID != nil && v.ProjectID != *f.ProjectID {
		return false
	}
	statuses := f.Statuses
	if len(statuses) == 0 {
		statuses = DefaultReportStatuses()
	}
	for _, s := range statuses {
		if v.Status == s {
			return true
		}
	}
	return false
}

// Totals are the money figures shared by every report level
type Totals struct {
	InvoiceCount int             `json:"invoice_count"`
	Billed       decimal.Decimal `json:"billed"`
	Collected    decimal.Decimal `json:"collected"`
	Outstanding  decimal.Decimal `json:"outstanding"`
}

func zeroTotals() Totals {
	return Totals{Billed: decimal.Zero, Collected: decimal.Zero, Outstanding: decimal.Zero}
}

func (t *Totals) add(v InvoiceView) {
	t.InvoiceCount++
	t.Billed = t.Billed.Add(v.Total)
	t.Collected = t.Collected.Add(v.Paid)
	t.Outstanding = t.Outstanding.Add(v.Balance)
}

// ProjectBreakdown is the per-project slice of a client breakdown
type ProjectBreakdown struct {
	ProjectID uuid.UUID `json:"project_id"`
	Totals
}

// ClientBreakdown groups a client's matching invoices by project
type ClientBreakdown struct {
	ClientID uuid.UUID `json:"client_id"`
	Totals
	Projects []ProjectBreakdown `json:"projects"`
}

// Report summarises matching invoices
type Report struct {
	Totals
	AsOf      time.Time         `json:"as_of"`
	Breakdown []ClientBreakdown `json:"breakdown"`
}

// Aggregate computes every invoice, keeps those matching filter and sums
// them. Clients and projects are ordered by outstanding balance descending,
// ties by ascending ID, so identical inputs yield identical reports.
func Aggregate(invoices []Invoice, payments []Payment, filter ReportFilter, asOf time.Time) (*Report, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	views, err := ComputeInvoices(invoices, payments, asOf)
	if err != nil {
		return nil, err
	}
	return AggregateViews(views, filter, asOf), nil
}

// AggregateViews sums already computed views
func AggregateViews(views []InvoiceView, filter ReportFilter, asOf time.Time) *Report {
	report := &Report{AsOf: asOf, Totals: zeroTotals(), Breakdown: []ClientBreakdown{}}

	clients := make(map[uuid.UUID]*ClientBreakdown)
	projects := make(map[uuid.UUID]map[uuid.UUID]*ProjectBreakdown)
	for _, v := range views {
		if !filter.Matches(v) {
			continue
		}
		report.add(v)

		cb, ok := clients[v.ClientID]
		if !ok {
			cb = &ClientBreakdown{ClientID: v.ClientID, Totals: zeroTotals()}
			clients[v.ClientID] = cb
			projects[v.ClientID] = make(map[uuid.UUID]*ProjectBreakdown)
		}
		cb.add(v)

		pb, ok := projects[v.ClientID][v.ProjectID]
		if !ok {
			pb = &ProjectBreakdown{ProjectID: v.ProjectID, Totals: zeroTotals()}
			projects[v.ClientID][v.ProjectID] = pb
		}
		pb.add(v)
	}

	for clientID, cb := range clients {
		cb.Projects = make([]ProjectBreakdown, 0, len(projects[clientID]))
		for _, pb := range projects[clientID] {
			cb.Projects = append(cb.Projects, *pb)
		}
		sort.Slice(cb.Projects, func(i, j int) bool {
			return outstandingFirst(cb.Projects[i].Outstanding, cb.Projects[j].Outstanding,
				cb.Projects[i].ProjectID, cb.Projects[j].ProjectID)
		})
		report.Breakdown = append(report.Breakdown, *cb)
	}
	sort.Slice(report.Breakdown, func(i, j int) bool {
		return outstandingFirst(report.Breakdown[i].Outstanding, report.Breakdown[j].Outstanding,
			report.Breakdown[i].ClientID, report.Breakdown[j].ClientID)
	})
	return report
}

// outstandingFirst orders by amount descending, then ID ascending
func outstandingFirst(a, b decimal.Decimal, idA, idB uuid.UUID) bool {
	if c := a.Cmp(b); c != 0 {
		return c > 0
	}
	return bytes.Compare(idA[:], idB[:]) < 0
}
