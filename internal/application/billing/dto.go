package billing

import (
	"time"

	"github.com/freelance/backend/internal/domain/billing"
	"github.com/freelance/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Client DTOs
// =============================================================================

// CreateClientRequest represents a request to create a new client
type CreateClientRequest struct {
	Name    string `json:"name" binding:"required,min=1,max=200"`
	Email   string `json:"email" binding:"required,email,max=200"`
	Phone   string `json:"phone" binding:"max=50"`
	Company string `json:"company" binding:"max=200"`
	Address string `json:"address" binding:"max=500"`
}

// UpdateClientRequest represents a request to update a client. Nil fields
// keep their current value; an empty string clears an optional field.
type UpdateClientRequest struct {
	Name    *string `json:"name" binding:"omitempty,min=1,max=200"`
	Email   *string `json:"email" binding:"omitempty,email,max=200"`
	Phone   *string `json:"phone" binding:"omitempty,max=50"`
	Company *string `json:"company" binding:"omitempty,max=200"`
	Address *string `json:"address" binding:"omitempty,max=500"`
}

// ClientListFilter narrows client listings
type ClientListFilter struct {
	Search   string `form:"search"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// ClientResponse represents a client in API responses
type ClientResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Company     string    `json:"company,omitempty"`
	Address     string    `json:"address,omitempty"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ToClientResponse converts a domain client to a response
func ToClientResponse(c *billing.Client) ClientResponse {
	return ClientResponse{
		ID:          c.ID,
		Name:        c.Name,
		DisplayName: c.DisplayName(),
		Email:       c.Email,
		Phone:       c.Phone,
		Company:     c.Company,
		Address:     c.Address,
		Version:     c.Version,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// =============================================================================
// Project DTOs
// =============================================================================

// CreateProjectRequest represents a request to create a new project
type CreateProjectRequest struct {
	ClientID    uuid.UUID       `json:"client_id" binding:"required"`
	Name        string          `json:"name" binding:"required,min=1,max=200"`
	Description string          `json:"description" binding:"max=2000"`
	HourlyRate  decimal.Decimal `json:"hourly_rate"`
}

// UpdateProjectRequest represents a request to rename or reprice a project
type UpdateProjectRequest struct {
	Name        *string          `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string          `json:"description" binding:"omitempty,max=2000"`
	HourlyRate  *decimal.Decimal `json:"hourly_rate"`
}

// LogHoursRequest adds hours at the project's rate
type LogHoursRequest struct {
	Description string          `json:"description" binding:"required,max=500"`
	Hours       decimal.Decimal `json:"hours"`
}

// AddFixedFeeRequest adds a flat fee to a project
type AddFixedFeeRequest struct {
	Description string          `json:"description" binding:"required,max=500"`
	Amount      decimal.Decimal `json:"amount"`
}

// ProjectListFilter narrows project listings
type ProjectListFilter struct {
	ClientID *uuid.UUID `form:"-"`
	Status   string     `form:"status" binding:"omitempty,oneof=ACTIVE ON_HOLD COMPLETED CANCELLED"`
	Search   string     `form:"search"`
	Page     int        `form:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string     `form:"order_by"`
	OrderDir string     `form:"order_dir" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// ProjectResponse represents a project in API responses
type ProjectResponse struct {
	ID          uuid.UUID         `json:"id"`
	ClientID    uuid.UUID         `json:"client_id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	HourlyRate  decimal.Decimal   `json:"hourly_rate"`
	Status      string            `json:"status"`
	Billables   billing.LineItems `json:"billables"`
	HoursWorked decimal.Decimal   `json:"hours_worked"`
	Billable    decimal.Decimal   `json:"billable_total"`
	InvoicedAt  *time.Time        `json:"invoiced_at,omitempty"`
	Version     int               `json:"version"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ToProjectResponse converts a domain project to a response
func ToProjectResponse(p *billing.Project) ProjectResponse {
	billable, err := p.BillableTotal()
	if err != nil {
		billable = decimal.Zero
	}
	billables := p.Billables
	if billables == nil {
		billables = billing.LineItems{}
	}
	return ProjectResponse{
		ID:          p.ID,
		ClientID:    p.ClientID,
		Name:        p.Name,
		Description: p.Description,
		HourlyRate:  p.HourlyRate,
		Status:      string(p.Status),
		Billables:   billables,
		HoursWorked: p.HoursWorked(),
		Billable:    billable,
		InvoicedAt:  p.InvoicedAt,
		Version:     p.Version,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// ProjectEarnings is what a project has billed and collected
type ProjectEarnings struct {
	ProjectID    uuid.UUID       `json:"project_id"`
	InvoiceCount int             `json:"invoice_count"`
	Billed       decimal.Decimal `json:"billed"`
	Collected    decimal.Decimal `json:"collected"`
	Outstanding  decimal.Decimal `json:"outstanding"`
}

// =============================================================================
// Invoice DTOs
// =============================================================================

// LineItemRequest describes one invoice line. Hourly lines need hours and
// rate, fixed lines an amount.
type LineItemRequest struct {
	Description string          `json:"description" binding:"required,max=500"`
	Kind        string          `json:"kind" binding:"required,oneof=HOURLY FIXED"`
	Hours       decimal.Decimal `json:"hours"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
}

// ToLineItem validates the request as a domain line item
func (r LineItemRequest) ToLineItem() (billing.LineItem, error) {
	if billing.LineItemKind(r.Kind) == billing.LineItemKindHourly {
		return billing.NewHourlyItem(r.Description, r.Hours, r.Rate)
	}
	if billing.LineItemKind(r.Kind) == billing.LineItemKindFixed {
		return billing.NewFixedItem(r.Description, r.Amount)
	}
	return billing.LineItem{}, shared.NewDomainError(billing.CodeValidation, "line item kind must be HOURLY or FIXED")
}

// CreateInvoiceFromProjectRequest snapshots a project's billables
type CreateInvoiceFromProjectRequest struct {
	ProjectID uuid.UUID `json:"project_id" binding:"required"`
	IssueDate string    `json:"issue_date" binding:"omitempty,datetime=2006-01-02"`
	DueDate   string    `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	Notes     string    `json:"notes" binding:"max=2000"`
	Issue     bool      `json:"issue"`
}

// CreateManualInvoiceRequest creates a draft from explicit lines
type CreateManualInvoiceRequest struct {
	ClientID  uuid.UUID         `json:"client_id" binding:"required"`
	ProjectID uuid.UUID         `json:"project_id" binding:"required"`
	Items     []LineItemRequest `json:"items" binding:"dive"`
	IssueDate string            `json:"issue_date" binding:"omitempty,datetime=2006-01-02"`
	DueDate   string            `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	Notes     string            `json:"notes" binding:"max=2000"`
}

// VoidInvoiceRequest cancels an invoice
type VoidInvoiceRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// InvoiceListFilter narrows invoice listings. Status applies to the derived
// status.
type InvoiceListFilter struct {
	ClientID  *uuid.UUID `form:"-"`
	ProjectID *uuid.UUID `form:"-"`
	Status    string     `form:"status" binding:"omitempty,oneof=DRAFT ISSUED PARTIALLY_PAID PAID OVERDUE VOID"`
	From      string     `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To        string     `form:"to" binding:"omitempty,datetime=2006-01-02"`
}

// InvoiceResponse is a computed invoice with its lifecycle markers
type InvoiceResponse struct {
	billing.InvoiceView
	IssuedAt   *time.Time `json:"issued_at,omitempty"`
	VoidedAt   *time.Time `json:"voided_at,omitempty"`
	VoidReason string     `json:"void_reason,omitempty"`
	Version    int        `json:"version"`
}

// ToInvoiceResponse combines an invoice and its view
func ToInvoiceResponse(inv *billing.Invoice, view *billing.InvoiceView) InvoiceResponse {
	return InvoiceResponse{
		InvoiceView: *view,
		IssuedAt:    inv.IssuedAt,
		VoidedAt:    inv.VoidedAt,
		VoidReason:  inv.VoidReason,
		Version:     inv.Version,
	}
}

// InvoiceDocument is a rendered invoice PDF and where it was stored
type InvoiceDocument struct {
	InvoiceNumber string `json:"invoice_number"`
	Key           string `json:"key"`
	URL           string `json:"url"`
	PageCount     int    `json:"page_count"`
	PDF           []byte `json:"-"`
}

// =============================================================================
// Payment DTOs
// =============================================================================

// AllocationInput assigns part of a payment to one invoice
type AllocationInput struct {
	InvoiceID uuid.UUID       `json:"invoice_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

// RecordPaymentRequest records money received. With Allocations the amounts
// are applied exactly; with AutoAllocate the payment pays down the oldest
// invoices first, limited to InvoiceIDs when given. With neither the whole
// amount stays unallocated.
type RecordPaymentRequest struct {
	ClientID       uuid.UUID         `json:"client_id" binding:"required"`
	Amount         decimal.Decimal   `json:"amount"`
	ReceivedOn     string            `json:"received_on" binding:"omitempty,datetime=2006-01-02"`
	Method         string            `json:"method" binding:"required"`
	Reference      string            `json:"reference" binding:"max=200"`
	Notes          string            `json:"notes" binding:"max=2000"`
	TransactionFee decimal.Decimal   `json:"transaction_fee"`
	Allocations    []AllocationInput `json:"allocations" binding:"dive"`
	AutoAllocate   bool              `json:"auto_allocate"`
	InvoiceIDs     []uuid.UUID       `json:"invoice_ids"`
	IdempotencyKey string            `json:"-"` // from the Idempotency-Key header
}

// AllocatePaymentRequest allocates what is left of a recorded payment
type AllocatePaymentRequest struct {
	Allocations []AllocationInput `json:"allocations" binding:"dive"`
	InvoiceIDs  []uuid.UUID       `json:"invoice_ids"`
}

// ReversePaymentRequest cancels a payment and all its allocations
type ReversePaymentRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// PaymentListFilter selects payments by received date
type PaymentListFilter struct {
	ClientID *uuid.UUID `form:"-"`
	From     string     `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To       string     `form:"to" binding:"omitempty,datetime=2006-01-02"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID             uuid.UUID            `json:"id"`
	Number         string               `json:"number"`
	ClientID       uuid.UUID            `json:"client_id"`
	Amount         decimal.Decimal      `json:"amount"`
	NetAmount      decimal.Decimal      `json:"net_amount"`
	TransactionFee decimal.Decimal      `json:"transaction_fee"`
	ReceivedOn     time.Time            `json:"received_on"`
	Method         string               `json:"method"`
	Reference      string               `json:"reference,omitempty"`
	Notes          string               `json:"notes,omitempty"`
	Allocated      decimal.Decimal      `json:"allocated"`
	Unallocated    decimal.Decimal      `json:"unallocated"`
	Allocations    []billing.Allocation `json:"allocations"`
	Reversed       bool                 `json:"reversed"`
	ReversedAt     *time.Time           `json:"reversed_at,omitempty"`
	ReversalReason string               `json:"reversal_reason,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

// ToPaymentResponse converts a domain payment to a response
func ToPaymentResponse(p *billing.Payment) PaymentResponse {
	allocations := p.Allocations
	if allocations == nil {
		allocations = []billing.Allocation{}
	}
	resp := PaymentResponse{
		ID:             p.ID,
		Number:         p.Number,
		ClientID:       p.ClientID,
		Amount:         p.Amount,
		NetAmount:      p.NetAmount(),
		TransactionFee: p.TransactionFee,
		ReceivedOn:     p.ReceivedOn,
		Method:         p.Method.String(),
		Reference:      p.Reference,
		Notes:          p.Notes,
		Allocated:      p.AllocatedTotal(),
		Unallocated:    p.Unallocated(),
		Allocations:    allocations,
		Reversed:       p.IsReversed(),
		CreatedAt:      p.CreatedAt,
	}
	if p.Reversal != nil {
		at := p.Reversal.ReversedAt
		resp.ReversedAt = &at
		resp.ReversalReason = p.Reversal.Reason
	}
	return resp
}

// PaymentResult is the outcome of recording or allocating a payment
type PaymentResult struct {
	Payment  PaymentResponse       `json:"payment"`
	Invoices []billing.InvoiceView `json:"invoices"`
	// Replayed is true when an Idempotency-Key matched an earlier request
	Replayed bool `json:"replayed"`
}

// PaymentSummary totals payments received in a period
type PaymentSummary struct {
	From      time.Time                  `json:"from"`
	To        time.Time                  `json:"to"`
	Count     int                        `json:"count"`
	Received  decimal.Decimal            `json:"received"`
	Fees      decimal.Decimal            `json:"fees"`
	Net       decimal.Decimal            `json:"net"`
	Reversed  int                        `json:"reversed"`
	ByMethod  map[string]decimal.Decimal `json:"by_method"`
	Allocated decimal.Decimal            `json:"allocated"`
}

// =============================================================================
// Report DTOs
// =============================================================================

// ReportRequest selects invoices for a report
type ReportRequest struct {
	From      string     `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To        string     `form:"to" binding:"omitempty,datetime=2006-01-02"`
	ClientID  *uuid.UUID `form:"-"`
	ProjectID *uuid.UUID `form:"-"`
	Statuses  []string   `form:"status" binding:"omitempty,dive,oneof=DRAFT ISSUED PARTIALLY_PAID PAID OVERDUE VOID"`
}

// NamedClientRevenue is a ranked client with its display name
type NamedClientRevenue struct {
	billing.ClientRevenue
	Name string `json:"name"`
}
