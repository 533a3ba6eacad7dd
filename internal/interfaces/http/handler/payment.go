package handler

import (
	"net/http"

	billingapp "github.com/freelance/backend/internal/application/billing"
	"github.com/freelance/backend/internal/interfaces/http/dto"
	"github.com/freelance/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaymentHandler handles payment endpoints
type PaymentHandler struct {
	BaseHandler
	paymentService *billingapp.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *billingapp.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		BaseHandler:    BaseHandler{logger: logger},
		paymentService: paymentService,
	}
}

// Record stores a payment and applies it to invoices. A repeated
// Idempotency-Key returns the first result with status 200.
// POST /payments
func (h *PaymentHandler) Record(c *gin.Context) {
	var req billingapp.RecordPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.IdempotencyKey = c.GetHeader(middleware.IdempotencyKeyHeader)

	result, err := h.paymentService.Record(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if result.Replayed {
		c.Header("Idempotent-Replayed", "true")
		c.JSON(http.StatusOK, dto.NewSuccessResponse(result))
		return
	}
	h.Created(c, result)
}

// Allocate applies what is left of a payment
// POST /payments/:id/allocate
func (h *PaymentHandler) Allocate(c *gin.Context) {
	id, ok := h.pathID(c, "payment")
	if !ok {
		return
	}
	var req billingapp.AllocatePaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.paymentService.AllocateRemainder(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Reverse cancels a payment and its allocations
// POST /payments/:id/reverse
func (h *PaymentHandler) Reverse(c *gin.Context) {
	id, ok := h.pathID(c, "payment")
	if !ok {
		return
	}
	var req billingapp.ReversePaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.paymentService.Reverse(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Get returns a payment with its allocations
// GET /payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "payment")
	if !ok {
		return
	}

	payment, err := h.paymentService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, payment)
}

// ListByInvoice returns payments allocated to an invoice
// GET /invoices/:id/payments
func (h *PaymentHandler) ListByInvoice(c *gin.Context) {
	invoiceID, ok := h.pathID(c, "invoice")
	if !ok {
		return
	}

	payments, err := h.paymentService.ListByInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, payments)
}

// List returns payments received in a date range
// GET /payments?client_id=&from=&to=
func (h *PaymentHandler) List(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}

	payments, err := h.paymentService.ListByDateRange(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, payments)
}

// Summary totals received payments by method
// GET /payments/summary?client_id=&from=&to=
func (h *PaymentHandler) Summary(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}

	summary, err := h.paymentService.Summary(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

func (h *PaymentHandler) listFilter(c *gin.Context) (billingapp.PaymentListFilter, bool) {
	var filter billingapp.PaymentListFilter
	if !h.bindQuery(c, &filter) {
		return filter, false
	}
	clientID, ok := h.optionalUUIDQuery(c, "client_id")
	if !ok {
		return filter, false
	}
	filter.ClientID = clientID
	return filter, true
}
