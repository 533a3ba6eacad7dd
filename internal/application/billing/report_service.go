package billing

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/freelance/backend/internal/domain/billing"
	"github.com/freelance/backend/internal/infrastructure/export"
	"github.com/freelance/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
)

// ReportService builds read-only reports over the ledger
type ReportService struct {
	serviceBase
}

// NewReportService creates a new ReportService
func NewReportService(repos Repositories, opts ...Option) *ReportService {
	return &ReportService{serviceBase: newServiceBase(repos, opts)}
}

// Generate aggregates the invoices selected by req per client and project
func (s *ReportService) Generate(ctx context.Context, req ReportRequest) (*billing.Report, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "generate")
	defer span.End()

	filter, err := toReportFilter(req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	invoices, err := s.repos.Invoices.FindAll(ctx, toInvoiceFilter(filter))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}
	payments, err := s.repos.Payments.FindByInvoices(ctx, invoiceIDs(invoices))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}

	report, err := billing.Aggregate(invoices, payments, filter, s.clock.Now())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceCount, report.InvoiceCount)
	telemetry.SetOK(span)
	return report, nil
}

// Monthly summarises invoices issued and payments received in one month
func (s *ReportService) Monthly(ctx context.Context, year int, month time.Month) (*billing.MonthlySummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "monthly")
	defer span.End()

	if month < time.January || month > time.December {
		return nil, validationError("month must be between 1 and 12")
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := endOfDay(start.AddDate(0, 1, -1))

	invoices, err := s.repos.Invoices.FindAll(ctx, billing.InvoiceFilter{IssuedFrom: &start, IssuedTo: &end})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}
	allocating, err := s.repos.Payments.FindByInvoices(ctx, invoiceIDs(invoices))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	received, err := s.repos.Payments.FindAll(ctx, billing.PaymentFilter{ReceivedFrom: &start, ReceivedTo: &end})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}

	summary, err := billing.SummarizeMonth(year, month, invoices, mergePayments(allocating, received), s.clock.Now())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)
	return summary, nil
}

// ClientRevenue ranks clients by collected amount within the filter
func (s *ReportService) ClientRevenue(ctx context.Context, req ReportRequest) ([]NamedClientRevenue, error) {
	filter, err := toReportFilter(req)
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, toInvoiceFilter(filter))
	if err != nil {
		return nil, err
	}
	ranked := billing.RankClientsByRevenue(views, filter, s.clock.Now())
	ids := make([]uuid.UUID, len(ranked))
	for i, r := range ranked {
		ids[i] = r.ClientID
	}
	names, err := s.clientNames(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]NamedClientRevenue, len(ranked))
	for i, r := range ranked {
		out[i] = NamedClientRevenue{ClientRevenue: r, Name: names.Of(r.ClientID)}
	}
	return out, nil
}

// Outstanding lists every unpaid invoice with per-client totals
func (s *ReportService) Outstanding(ctx context.Context, clientID *uuid.UUID) (*billing.OutstandingSummary, error) {
	views, err := s.views(ctx, billing.InvoiceFilter{ClientID: clientID})
	if err != nil {
		return nil, err
	}
	return billing.SummarizeOutstanding(views, s.clock.Now()), nil
}

// ExportCSV writes the report selected by req as CSV with client and
// project names resolved
func (s *ReportService) ExportCSV(ctx context.Context, w io.Writer, req ReportRequest) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "export_csv")
	defer span.End()

	report, err := s.Generate(ctx, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	var clientIDs []uuid.UUID
	names := export.Names{}
	for _, c := range report.Breakdown {
		clientIDs = append(clientIDs, c.ClientID)
		for _, p := range c.Projects {
			project, err := s.repos.Projects.FindByID(ctx, p.ProjectID)
			if err != nil {
				if isNotFound(err) {
					continue
				}
				return err
			}
			names[p.ProjectID] = project.Name
		}
	}
	clients, err := s.clientNames(ctx, clientIDs)
	if err != nil {
		return err
	}
	for id, name := range clients {
		names[id] = name
	}

	if err := export.WriteReportCSV(w, report, names); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.SetOK(span)
	return nil
}

func (s *ReportService) views(ctx context.Context, f billing.InvoiceFilter) ([]billing.InvoiceView, error) {
	invoices, err := s.repos.Invoices.FindAll(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}
	return s.computeViews(ctx, invoices, s.clock.Now())
}

func toReportFilter(req ReportRequest) (billing.ReportFilter, error) {
	from, err := parseOptionalDate(req.From)
	if err != nil {
		return billing.ReportFilter{}, err
	}
	to, err := parseOptionalDate(req.To)
	if err != nil {
		return billing.ReportFilter{}, err
	}
	filter := billing.ReportFilter{
		From:      from,
		To:        to,
		ClientID:  req.ClientID,
		ProjectID: req.ProjectID,
	}
	for _, raw := range req.Statuses {
		status, err := billing.ParseInvoiceStatus(raw)
		if err != nil {
			return billing.ReportFilter{}, err
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	return filter, filter.Validate()
}

// toInvoiceFilter narrows the repository query to the report's range and
// scope; status is applied after computing views
func toInvoiceFilter(f billing.ReportFilter) billing.InvoiceFilter {
	out := billing.InvoiceFilter{ClientID: f.ClientID, ProjectID: f.ProjectID, IssuedFrom: f.From}
	if f.To != nil {
		end := endOfDay(*f.To)
		out.IssuedTo = &end
	}
	return out
}

func invoiceIDs(invoices []billing.Invoice) []uuid.UUID {
	ids := make([]uuid.UUID, len(invoices))
	for i := range invoices {
		ids[i] = invoices[i].ID
	}
	return ids
}

// mergePayments concatenates payment lists dropping repeated IDs
func mergePayments(lists ...[]billing.Payment) []billing.Payment {
	seen := make(map[uuid.UUID]bool)
	var out []billing.Payment
	for _, list := range lists {
		for _, p := range list {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			out = append(out, p)
		}
	}
	return out
}
