package printing

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"time"

	"github.com/freelance/backend/internal/domain/billing"
	"github.com/freelance/backend/internal/infrastructure/export"
)

//go:embed templates/invoice.html
var invoiceLayout string

var invoiceTemplate = template.Must(template.New("invoice").Parse(invoiceLayout))

// Issuer is the freelancer or business sending the invoice
type Issuer struct {
	Name    string
	Address string
	Email   string
	Phone   string
}

// InvoiceDocument is the data the invoice layout is executed with. Money
// and dates are preformatted strings.
type InvoiceDocument struct {
	Issuer       Issuer
	Number       string
	Status       string
	IssueDate    string
	DueDate      string
	ClientName   string
	ClientEmail  string
	ClientPhone  string
	ClientAddr   string
	Items        []DocumentLine
	Total        string
	Paid         string
	Balance      string
	HasPayments  bool
	Overdue      bool
	DaysOverdue  int
	Notes        string
	Currency     string
	GeneratedAt  string
	PaymentTerms string
}

// DocumentLine is one row of the items table
type DocumentLine struct {
	Description string
	Quantity    string
	Rate        string
	Amount      string
}

// NewInvoiceDocument formats a computed invoice for printing
func NewInvoiceDocument(view *billing.InvoiceView, client *billing.Client, issuer Issuer, f *export.MoneyFormatter, now time.Time) InvoiceDocument {
	doc := InvoiceDocument{
		Issuer:      issuer,
		Number:      view.Number,
		Status:      f.FormatStatus(string(view.Status)),
		IssueDate:   export.FormatDate(view.IssueDate),
		DueDate:     export.FormatDate(view.DueDate),
		Total:       f.Format(view.Total),
		Paid:        f.Format(view.Paid),
		Balance:     f.Format(view.Balance),
		HasPayments: view.Paid.IsPositive(),
		Overdue:     view.Status == billing.InvoiceStatusOverdue,
		DaysOverdue: view.DaysOverdue,
		Notes:       view.Notes,
		Currency:    f.Currency(),
		GeneratedAt: export.FormatDate(now),
	}
	if days := int(view.DueDate.Sub(view.IssueDate).Hours() / 24); days > 0 {
		doc.PaymentTerms = fmt.Sprintf("Net %d", days)
	}
	if client != nil {
		doc.ClientName = client.DisplayName()
		doc.ClientEmail = client.Email
		doc.ClientPhone = client.Phone
		doc.ClientAddr = client.Address
	}

	doc.Items = make([]DocumentLine, 0, len(view.LineItems))
	for _, item := range view.LineItems {
		line := DocumentLine{
			Description: item.Description,
			Amount:      f.Format(item.Amount()),
		}
		if item.Kind == billing.LineItemKindHourly {
			line.Quantity = item.Quantity.String() + " h"
			line.Rate = f.Format(item.Rate) + "/h"
		}
		doc.Items = append(doc.Items, line)
	}
	return doc
}

// RenderInvoiceHTML executes the invoice layout. Text fields are escaped.
func RenderInvoiceHTML(doc InvoiceDocument) (string, error) {
	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, doc); err != nil {
		return "", NewRenderError(ErrCodeTemplateFailed, "failed to execute invoice template", err)
	}
	return buf.String(), nil
}
