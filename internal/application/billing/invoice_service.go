package billing

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/freelance/backend/internal/domain/billing"
	"github.com/freelance/backend/internal/domain/shared"
	"github.com/freelance/backend/internal/infrastructure/export"
	"github.com/freelance/backend/internal/infrastructure/printing"
	"github.com/freelance/backend/internal/infrastructure/storage"
	"github.com/freelance/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceService handles invoice business operations
type InvoiceService struct {
	serviceBase
	printer   *printing.InvoicePrinter
	documents storage.DocumentStorage
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(repos Repositories, opts ...Option) *InvoiceService {
	return &InvoiceService{serviceBase: newServiceBase(repos, opts)}
}

// SetDocumentPipeline enables invoice documents. documents may be nil, in
// which case rendered PDFs are returned but not stored.
func (s *InvoiceService) SetDocumentPipeline(printer *printing.InvoicePrinter, documents storage.DocumentStorage) {
	s.printer = printer
	s.documents = documents
}

// CreateFromProject snapshots a project's billables into a new invoice and
// freezes the project. With req.Issue the invoice is issued right away.
func (s *InvoiceService) CreateFromProject(ctx context.Context, req CreateInvoiceFromProjectRequest) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create_from_project",
		telemetry.SpanAttrProjectID, req.ProjectID.String())
	defer span.End()

	now := s.clock.Now()
	issueDate, dueDate, err := s.invoiceDates(req.IssueDate, req.DueDate, now)
	if err != nil {
		return nil, err
	}

	var invoice *billing.Invoice
	err = s.repos.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		project, err := s.findProject(txCtx, req.ProjectID)
		if err != nil {
			return err
		}
		items, err := project.MarkInvoiced(now)
		if err != nil {
			return err
		}

		number, err := s.nextInvoiceNumber(txCtx, issueDate)
		if err != nil {
			return err
		}
		invoice, err = billing.NewInvoice(number, project.ClientID, project.ID, items, issueDate, dueDate)
		if err != nil {
			return err
		}
		if req.Notes != "" {
			invoice.SetNotes(req.Notes)
		}
		if req.Issue {
			if err := invoice.Issue(now); err != nil {
				return err
			}
		}

		if err := s.repos.Invoices.Save(txCtx, invoice); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}
		return s.repos.Projects.SaveWithLock(txCtx, project)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, invoice)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, invoice.ID.String(),
		telemetry.SpanAttrInvoiceNumber, invoice.Number)
	telemetry.SetOK(span)
	s.log(ctx).Info("invoice created from project",
		zap.String("invoice_number", invoice.Number),
		zap.String("project_id", req.ProjectID.String()),
		zap.Bool("issued", invoice.IsIssued()))

	return s.respond(invoice, nil, now)
}

// CreateManual creates a draft invoice from explicit line items
func (s *InvoiceService) CreateManual(ctx context.Context, req CreateManualInvoiceRequest) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create_manual",
		telemetry.SpanAttrClientID, req.ClientID.String())
	defer span.End()

	now := s.clock.Now()
	issueDate, dueDate, err := s.invoiceDates(req.IssueDate, req.DueDate, now)
	if err != nil {
		return nil, err
	}

	items := make(billing.LineItems, 0, len(req.Items))
	for _, r := range req.Items {
		item, err := r.ToLineItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	client, err := s.findClient(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	project, err := s.findProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.ClientID != client.ID {
		return nil, validationError("project %q does not belong to client %s", project.Name, client.DisplayName())
	}

	var invoice *billing.Invoice
	err = s.repos.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		number, err := s.nextInvoiceNumber(txCtx, issueDate)
		if err != nil {
			return err
		}
		invoice, err = billing.NewInvoice(number, client.ID, project.ID, items, issueDate, dueDate)
		if err != nil {
			return err
		}
		if req.Notes != "" {
			invoice.SetNotes(req.Notes)
		}
		return s.repos.Invoices.Save(txCtx, invoice)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceNumber, invoice.Number)
	telemetry.SetOK(span)
	s.log(ctx).Info("draft invoice created", zap.String("invoice_number", invoice.Number))
	return s.respond(invoice, nil, now)
}

// AddLineItem appends a line to a draft invoice
func (s *InvoiceService) AddLineItem(ctx context.Context, id uuid.UUID, req LineItemRequest) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "add_line_item", telemetry.SpanAttrInvoiceID, id.String())
	defer span.End()

	item, err := req.ToLineItem()
	if err != nil {
		return nil, err
	}
	invoice, err := s.findInvoice(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := invoice.AddLineItem(item); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.repos.Invoices.SaveWithLock(ctx, invoice); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetOK(span)
	return s.respond(invoice, nil, s.clock.Now())
}

// Issue finalises a draft so it can receive payments
func (s *InvoiceService) Issue(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "issue", telemetry.SpanAttrInvoiceID, id.String())
	defer span.End()

	now := s.clock.Now()
	invoice, err := s.findInvoice(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := invoice.Issue(now); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.repos.Invoices.SaveWithLock(ctx, invoice); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, invoice)
	resp, err := s.respond(invoice, nil, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceStatus, string(resp.Status))
	telemetry.SetOK(span)
	s.log(ctx).Info("invoice issued", zap.String("invoice_number", invoice.Number), zap.String("status", string(resp.Status)))
	return resp, nil
}

// Void cancels an invoice that has no live allocations. The invoice lock
// keeps a concurrent allocation from landing between the check and the
// write.
func (s *InvoiceService) Void(ctx context.Context, id uuid.UUID, req VoidInvoiceRequest) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "void", telemetry.SpanAttrInvoiceID, id.String())
	defer span.End()

	unlock := s.locks.Lock(id)
	defer unlock()

	now := s.clock.Now()
	var (
		invoice  *billing.Invoice
		payments []billing.Payment
	)
	err := s.repos.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		invoice, err = s.findInvoice(txCtx, id)
		if err != nil {
			return err
		}
		payments, err = s.repos.Payments.FindByInvoices(txCtx, []uuid.UUID{id})
		if err != nil {
			return fmt.Errorf("failed to load payments: %w", err)
		}
		allocated := decimal.Zero
		for i := range payments {
			if !payments[i].IsReversed() {
				allocated = allocated.Add(payments[i].AllocatedTo(id))
			}
		}
		if err := invoice.Void(req.Reason, allocated, now); err != nil {
			return err
		}
		return s.repos.Invoices.SaveWithLock(txCtx, invoice)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, invoice)
	telemetry.SetOK(span)
	s.log(ctx).Info("invoice voided",
		zap.String("invoice_number", invoice.Number),
		zap.String("reason", invoice.VoidReason))
	return s.respond(invoice, payments, now)
}

// Get returns an invoice with its derived balance and status
func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error) {
	invoice, err := s.findInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	payments, err := s.repos.Payments.FindByInvoices(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	return s.respond(invoice, payments, s.clock.Now())
}

// GetByNumber returns an invoice looked up by its number
func (s *InvoiceService) GetByNumber(ctx context.Context, number string) (*InvoiceResponse, error) {
	invoice, err := s.repos.Invoices.FindByNumber(ctx, number)
	if err != nil {
		return nil, notFound(err, "invoice %s not found", number)
	}
	return s.Get(ctx, invoice.ID)
}

// List returns invoices matching the filter ordered by issue date. The
// status filter applies to the status derived as of now.
func (s *InvoiceService) List(ctx context.Context, filter InvoiceListFilter) ([]InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "list")
	defer span.End()

	f := billing.InvoiceFilter{ClientID: filter.ClientID, ProjectID: filter.ProjectID}
	from, err := parseOptionalDate(filter.From)
	if err != nil {
		return nil, err
	}
	to, err := parseOptionalDate(filter.To)
	if err != nil {
		return nil, err
	}
	f.IssuedFrom = from
	if to != nil {
		end := endOfDay(*to)
		f.IssuedTo = &end
	}
	var status billing.InvoiceStatus
	if filter.Status != "" {
		if status, err = billing.ParseInvoiceStatus(filter.Status); err != nil {
			return nil, err
		}
	}

	invoices, err := s.repos.Invoices.FindAll(ctx, f)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	views, err := s.computeViews(ctx, invoices, s.clock.Now())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	items := make([]InvoiceResponse, 0, len(views))
	for i := range views {
		if status != "" && views[i].Status != status {
			continue
		}
		items = append(items, ToInvoiceResponse(&invoices[i], &views[i]))
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceCount, len(items))
	telemetry.SetOK(span)
	return items, nil
}

// Overdue lists overdue invoices, most overdue first
func (s *InvoiceService) Overdue(ctx context.Context) ([]billing.InvoiceView, error) {
	views, err := s.allViews(ctx, billing.InvoiceFilter{})
	if err != nil {
		return nil, err
	}
	overdue := make([]billing.InvoiceView, 0)
	for _, v := range views {
		if v.Status == billing.InvoiceStatusOverdue {
			overdue = append(overdue, v)
		}
	}
	sort.SliceStable(overdue, func(i, j int) bool {
		if overdue[i].DaysOverdue != overdue[j].DaysOverdue {
			return overdue[i].DaysOverdue > overdue[j].DaysOverdue
		}
		return overdue[i].Number < overdue[j].Number
	})
	return overdue, nil
}

// Summary counts invoices per status with billed, collected and
// outstanding totals, optionally for one client
func (s *InvoiceService) Summary(ctx context.Context, clientID *uuid.UUID) (*billing.StatusSummary, error) {
	views, err := s.allViews(ctx, billing.InvoiceFilter{ClientID: clientID})
	if err != nil {
		return nil, err
	}
	return billing.SummarizeStatuses(views), nil
}

// ExportCSV writes the invoices selected by filter as CSV
func (s *InvoiceService) ExportCSV(ctx context.Context, w io.Writer, filter InvoiceListFilter) error {
	items, err := s.List(ctx, filter)
	if err != nil {
		return err
	}
	views := make([]billing.InvoiceView, len(items))
	ids := make([]uuid.UUID, len(items))
	for i := range items {
		views[i] = items[i].InvoiceView
		ids[i] = items[i].ClientID
	}
	names, err := s.clientNames(ctx, ids)
	if err != nil {
		return err
	}
	return export.WriteInvoicesCSV(w, views, names)
}

// DocumentHTML renders the printable layout of an invoice
func (s *InvoiceService) DocumentHTML(ctx context.Context, id uuid.UUID) (string, error) {
	if s.printer == nil {
		return "", shared.NewDomainError(shared.CodeInvalidState, "invoice documents are not configured")
	}
	view, client, err := s.documentInputs(ctx, id)
	if err != nil {
		return "", err
	}
	return s.printer.HTML(view, client)
}

// Document renders an invoice to PDF and stores it under its invoice key
func (s *InvoiceService) Document(ctx context.Context, id uuid.UUID) (*InvoiceDocument, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "document", telemetry.SpanAttrInvoiceID, id.String())
	defer span.End()

	if s.printer == nil || !s.printer.Enabled() {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "PDF rendering is not enabled")
	}
	view, client, err := s.documentInputs(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result, err := s.printer.Print(ctx, view, client)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to render invoice %s: %w", view.Number, err)
	}

	doc := &InvoiceDocument{
		InvoiceNumber: view.Number,
		PageCount:     result.PageCount,
		PDF:           result.PDFData,
	}
	if s.documents != nil {
		doc.Key = storage.InvoiceKey(view.Number)
		if err := s.documents.Put(ctx, doc.Key, result.PDFData, "application/pdf"); err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to store invoice %s: %w", view.Number, err)
		}
		if doc.URL, err = s.documents.URL(ctx, doc.Key); err != nil {
			s.log(ctx).Warn("failed to resolve document URL", zap.String("key", doc.Key), zap.Error(err))
		}
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceNumber, view.Number)
	telemetry.SetOK(span)
	s.log(ctx).Info("invoice document rendered",
		zap.String("invoice_number", view.Number),
		zap.Int("pages", result.PageCount),
		zap.Duration("render_duration", result.RenderDuration))
	return doc, nil
}

func (s *InvoiceService) documentInputs(ctx context.Context, id uuid.UUID) (*billing.InvoiceView, *billing.Client, error) {
	invoice, err := s.findInvoice(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	view, err := s.computeView(ctx, invoice, s.clock.Now())
	if err != nil {
		return nil, nil, err
	}
	client, err := s.repos.Clients.FindByID(ctx, invoice.ClientID)
	if err != nil && !isNotFound(err) {
		return nil, nil, err
	}
	return view, client, nil
}

func (s *InvoiceService) allViews(ctx context.Context, f billing.InvoiceFilter) ([]billing.InvoiceView, error) {
	invoices, err := s.repos.Invoices.FindAll(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return s.computeViews(ctx, invoices, s.clock.Now())
}

// invoiceDates resolves the issue and due dates, defaulting to today and
// the configured payment term
func (s *InvoiceService) invoiceDates(issue, due string, now time.Time) (time.Time, time.Time, error) {
	issueDate, err := parseDate(issue, today(now))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	dueDate, err := parseDate(due, issueDate.AddDate(0, 0, s.settings.DefaultDueDays))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return issueDate, dueDate, nil
}

func (s *InvoiceService) nextInvoiceNumber(ctx context.Context, day time.Time) (string, error) {
	seq, err := s.repos.Invoices.NextSequence(ctx, s.settings.InvoicePrefix, day)
	if err != nil {
		return "", fmt.Errorf("failed to allocate invoice number: %w", err)
	}
	return billing.FormatInvoiceNumber(s.settings.InvoicePrefix, day, seq), nil
}

func (s *InvoiceService) respond(invoice *billing.Invoice, payments []billing.Payment, asOf time.Time) (*InvoiceResponse, error) {
	view, err := billing.ComputeInvoice(invoice, payments, asOf)
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(invoice, view)
	return &resp, nil
}
