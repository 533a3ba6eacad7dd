package handler

import (
	"io"
	"net/http"

	billingapp "github.com/freelance/backend/internal/application/billing"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InvoiceHandler handles invoice endpoints
type InvoiceHandler struct {
	BaseHandler
	invoiceService *billingapp.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService *billingapp.InvoiceService, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		BaseHandler:    BaseHandler{logger: logger},
		invoiceService: invoiceService,
	}
}

// CreateFromProject bills a project's logged work
// POST /invoices/from-project
func (h *InvoiceHandler) CreateFromProject(c *gin.Context) {
	var req billingapp.CreateInvoiceFromProjectRequest
	if !h.bindJSON(c, &req) {
		return
	}

	invoice, err := h.invoiceService.CreateFromProject(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, invoice)
}

// CreateManual creates a draft invoice from explicit line items
// POST /invoices
func (h *InvoiceHandler) CreateManual(c *gin.Context) {
	var req billingapp.CreateManualInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}

	invoice, err := h.invoiceService.CreateManual(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, invoice)
}

// AddLineItem appends a line to a draft
// POST /invoices/:id/items
func (h *InvoiceHandler) AddLineItem(c *gin.Context) {
	id, ok := h.pathID(c, "invoice")
	if !ok {
		return
	}
	var req billingapp.LineItemRequest
	if !h.bindJSON(c, &req) {
		return
	}

	invoice, err := h.invoiceService.AddLineItem(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoice)
}

// Issue sends a draft to the client
// POST /invoices/:id/issue
func (h *InvoiceHandler) Issue(c *gin.Context) {
	id, ok := h.pathID(c, "invoice")
	if !ok {
		return
	}

	invoice, err := h.invoiceService.Issue(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoice)
}

// Void cancels an invoice with no live payments
// POST /invoices/:id/void
func (h *InvoiceHandler) Void(c *gin.Context) {
	id, ok := h.pathID(c, "invoice")
	if !ok {
		return
	}
	var req billingapp.VoidInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}

	invoice, err := h.invoiceService.Void(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoice)
}

// Get returns an invoice with its computed status and balance
// GET /invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "invoice")
	if !ok {
		return
	}

	invoice, err := h.invoiceService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoice)
}

// GetByNumber looks an invoice up by its number
// GET /invoices/number/:number
func (h *InvoiceHandler) GetByNumber(c *gin.Context) {
	invoice, err := h.invoiceService.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoice)
}

// List returns invoices matching the filter
// GET /invoices?client_id=&project_id=&status=&from=&to=
func (h *InvoiceHandler) List(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}

	invoices, err := h.invoiceService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoices)
}

// Overdue returns unpaid invoices past their due date, oldest first
// GET /invoices/overdue
func (h *InvoiceHandler) Overdue(c *gin.Context) {
	invoices, err := h.invoiceService.Overdue(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoices)
}

// Summary counts invoices per status
// GET /invoices/summary?client_id=
func (h *InvoiceHandler) Summary(c *gin.Context) {
	clientID, ok := h.optionalUUIDQuery(c, "client_id")
	if !ok {
		return
	}

	summary, err := h.invoiceService.Summary(c.Request.Context(), clientID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// ExportCSV downloads the filtered invoices as CSV
// GET /invoices/export
func (h *InvoiceHandler) ExportCSV(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}

	h.sendCSV(c, "invoices.csv", func(w io.Writer) error {
		return h.invoiceService.ExportCSV(c.Request.Context(), w, filter)
	})
}

// HTML renders the printable invoice
// GET /invoices/:id/html
func (h *InvoiceHandler) HTML(c *gin.Context) {
	id, ok := h.pathID(c, "invoice")
	if !ok {
		return
	}

	html, err := h.invoiceService.DocumentHTML(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// PDF renders, stores and downloads the invoice PDF
// GET /invoices/:id/pdf
func (h *InvoiceHandler) PDF(c *gin.Context) {
	id, ok := h.pathID(c, "invoice")
	if !ok {
		return
	}

	doc, err := h.invoiceService.Document(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if doc.Key != "" {
		c.Header("X-Document-Key", doc.Key)
	}
	c.Header("Content-Disposition", `attachment; filename="`+doc.InvoiceNumber+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", doc.PDF)
}

func (h *InvoiceHandler) listFilter(c *gin.Context) (billingapp.InvoiceListFilter, bool) {
	var filter billingapp.InvoiceListFilter
	if !h.bindQuery(c, &filter) {
		return filter, false
	}
	clientID, ok := h.optionalUUIDQuery(c, "client_id")
	if !ok {
		return filter, false
	}
	projectID, ok := h.optionalUUIDQuery(c, "project_id")
	if !ok {
		return filter, false
	}
	filter.ClientID = clientID
	filter.ProjectID = projectID
	return filter, true
}
