package printing

import (
	"context"
	"time"

	"github.com/freelance/backend/internal/domain/billing"
	"github.com/freelance/backend/internal/infrastructure/export"
	"go.uber.org/zap"
)

const pageNumberFooter = `<div style="font-size:8px;width:100%;text-align:center;color:#666;">` +
	`Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`

// InvoicePrinter turns computed invoices into PDF documents
type InvoicePrinter struct {
	renderer  PDFRenderer
	formatter *export.MoneyFormatter
	issuer    Issuer
	paper     PaperSize
	now       func() time.Time
	logger    *zap.Logger
}

// InvoicePrinterOption configures an InvoicePrinter
type InvoicePrinterOption func(*InvoicePrinter)

// WithPaperSize overrides the default A4 page
func WithPaperSize(size PaperSize) InvoicePrinterOption {
	return func(p *InvoicePrinter) {
		if size.IsValid() {
			p.paper = size
		}
	}
}

// WithPrinterLogger sets the logger
func WithPrinterLogger(logger *zap.Logger) InvoicePrinterOption {
	return func(p *InvoicePrinter) {
		p.logger = logger
	}
}

// WithClock sets the time source for the "generated" stamp
func WithClock(now func() time.Time) InvoicePrinterOption {
	return func(p *InvoicePrinter) {
		p.now = now
	}
}

// NewInvoicePrinter creates a printer. renderer may be nil when only HTML
// output is needed.
func NewInvoicePrinter(renderer PDFRenderer, formatter *export.MoneyFormatter, issuer Issuer, opts ...InvoicePrinterOption) *InvoicePrinter {
	p := &InvoicePrinter{
		renderer:  renderer,
		formatter: formatter,
		issuer:    issuer,
		paper:     PaperSizeA4,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HTML renders the invoice layout without converting it
func (p *InvoicePrinter) HTML(view *billing.InvoiceView, client *billing.Client) (string, error) {
	doc := NewInvoiceDocument(view, client, p.issuer, p.formatter, p.now())
	return RenderInvoiceHTML(doc)
}

// Print renders the invoice to PDF
func (p *InvoicePrinter) Print(ctx context.Context, view *billing.InvoiceView, client *billing.Client) (*RenderResult, error) {
	if p.renderer == nil {
		return nil, NewRenderError(ErrCodeRenderFailed, "PDF rendering is disabled", nil)
	}
	page, err := p.HTML(view, client)
	if err != nil {
		return nil, err
	}

	result, err := p.renderer.Render(ctx, &RenderRequest{
		HTML:       page,
		PaperSize:  p.paper,
		Margins:    DefaultMargins(),
		Title:      "Invoice " + view.Number,
		FooterHTML: pageNumberFooter,
	})
	if err != nil {
		p.logger.Error("failed to print invoice",
			zap.String("invoice_number", view.Number),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

// Enabled reports whether Print can produce PDFs
func (p *InvoicePrinter) Enabled() bool {
	return p.renderer != nil
}

// Close releases the renderer
func (p *InvoicePrinter) Close() error {
	if p.renderer == nil {
		return nil
	}
	return p.renderer.Close()
}
