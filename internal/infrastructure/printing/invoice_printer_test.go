package printing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/freelance/backend/internal/domain/billing"
	"github.com/freelance/backend/internal/infrastructure/export"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	args := m.Called(ctx, req)
	if res := args.Get(0); res != nil {
		return res.(*RenderResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRenderer) Close() error {
	return m.Called().Error(0)
}

var printedOn = time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)

func testFormatter(t *testing.T) *export.MoneyFormatter {
	t.Helper()
	f, err := export.NewMoneyFormatter("USD", "en-US")
	require.NoError(t, err)
	return f
}

func testView(t *testing.T) *billing.InvoiceView {
	t.Helper()
	hourly, err := billing.NewHourlyItem("Design work", decimal.NewFromInt(10), decimal.NewFromInt(50))
	require.NoError(t, err)
	fee, err := billing.NewFixedItem("Hosting <setup>", decimal.NewFromInt(100))
	require.NoError(t, err)

	return &billing.InvoiceView{
		InvoiceID:   uuid.New(),
		Number:      "INV-20260301-0001",
		ClientID:    uuid.New(),
		ProjectID:   uuid.New(),
		IssueDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:     time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		LineItems:   billing.LineItems{hourly, fee},
		Notes:       "Wire to account 42",
		Total:       decimal.NewFromInt(600),
		Paid:        decimal.NewFromInt(200),
		Balance:     decimal.NewFromInt(400),
		Status:      billing.InvoiceStatusOverdue,
		DaysOverdue: 15,
	}
}

func testClient(t *testing.T) *billing.Client {
	t.Helper()
	c, err := billing.NewClient("Jane Doe", "jane@example.com", billing.WithCompany("Acme"))
	require.NoError(t, err)
	return c
}

func TestNewInvoiceDocument(t *testing.T) {
	doc := NewInvoiceDocument(testView(t), testClient(t), Issuer{Name: "Studio"}, testFormatter(t), printedOn)

	assert.Equal(t, "INV-20260301-0001", doc.Number)
	assert.Equal(t, "Overdue", doc.Status)
	assert.Equal(t, "March 01, 2026", doc.IssueDate)
	assert.Equal(t, "Net 30", doc.PaymentTerms)
	assert.Equal(t, "Jane Doe (Acme)", doc.ClientName)
	assert.True(t, doc.HasPayments)
	assert.True(t, doc.Overdue)
	assert.Equal(t, "USD", doc.Currency)

	require.Len(t, doc.Items, 2)
	assert.Equal(t, "10 h", doc.Items[0].Quantity)
	assert.Contains(t, doc.Items[0].Amount, "500.00")
	assert.Empty(t, doc.Items[1].Quantity, "fixed fees have no hours")
	assert.Contains(t, doc.Balance, "400.00")
}

func TestRenderInvoiceHTML(t *testing.T) {
	doc := NewInvoiceDocument(testView(t), testClient(t), Issuer{Name: "Studio", Email: "me@studio.test"}, testFormatter(t), printedOn)

	page, err := RenderInvoiceHTML(doc)
	require.NoError(t, err)

	assert.Contains(t, page, "<title>Invoice INV-20260301-0001</title>")
	assert.Contains(t, page, "Jane Doe (Acme)")
	assert.Contains(t, page, "Email: me@studio.test")
	assert.Contains(t, page, "Hosting &lt;setup&gt;", "text is escaped")
	assert.Contains(t, page, "(15 days)")
	assert.Contains(t, page, "Wire to account 42")
	assert.Contains(t, page, "Generated April 15, 2026")
}

func TestRenderInvoiceHTML_NoItems(t *testing.T) {
	view := testView(t)
	view.LineItems = nil
	view.Paid = decimal.Zero

	page, err := RenderInvoiceHTML(NewInvoiceDocument(view, nil, Issuer{}, testFormatter(t), printedOn))
	require.NoError(t, err)

	assert.Contains(t, page, "No line items")
	assert.NotContains(t, page, "<td>Paid</td>")
}

func TestInvoicePrinter_Print(t *testing.T) {
	renderer := new(mockRenderer)
	renderer.On("Render", mock.Anything, mock.MatchedBy(func(req *RenderRequest) bool {
		return req.PaperSize == PaperSizeLetter &&
			req.Title == "Invoice INV-20260301-0001" &&
			req.FooterHTML != ""
	})).Return(&RenderResult{PDFData: []byte("%PDF-1.7"), PageCount: 1}, nil)

	p := NewInvoicePrinter(renderer, testFormatter(t), Issuer{Name: "Studio"},
		WithPaperSize(PaperSizeLetter),
		WithClock(func() time.Time { return printedOn }))

	result, err := p.Print(context.Background(), testView(t), testClient(t))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), result.PDFData)
	assert.True(t, p.Enabled())
	renderer.AssertExpectations(t)
}

func TestInvoicePrinter_PrintError(t *testing.T) {
	renderer := new(mockRenderer)
	failure := NewRenderError(ErrCodeRenderTimeout, "PDF rendering timed out", nil)
	renderer.On("Render", mock.Anything, mock.Anything).Return(nil, failure)

	p := NewInvoicePrinter(renderer, testFormatter(t), Issuer{})

	_, err := p.Print(context.Background(), testView(t), testClient(t))
	assert.True(t, errors.Is(err, failure))
}

func TestInvoicePrinter_Disabled(t *testing.T) {
	p := NewInvoicePrinter(nil, testFormatter(t), Issuer{})

	_, err := p.Print(context.Background(), testView(t), testClient(t))
	var renderErr *RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Close())

	page, err := p.HTML(testView(t), testClient(t))
	require.NoError(t, err)
	assert.Contains(t, page, "INVOICE")
}

func TestInvoicePrinter_Close(t *testing.T) {
	renderer := new(mockRenderer)
	renderer.On("Close").Return(nil)

	assert.NoError(t, NewInvoicePrinter(renderer, testFormatter(t), Issuer{}).Close())
	renderer.AssertExpectations(t)
}
