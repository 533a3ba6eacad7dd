package models

import (
	"time"

	"github.com/freelance/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ClientModel is the persistence model for the Client aggregate root.
type ClientModel struct {
	AggregateModel
	Name    string `gorm:"type:varchar(200);not null;index"`
	Email   string `gorm:"type:varchar(320);not null;uniqueIndex:idx_client_email"`
	Phone   string `gorm:"type:varchar(50)"`
	Company string `gorm:"type:varchar(200)"`
	Address string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ClientModel) TableName() string {
	return "clients"
}

// ToDomain converts the persistence model to a domain Client
func (m *ClientModel) ToDomain() *billing.Client {
	return &billing.Client{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Name:              m.Name,
		Email:             m.Email,
		Phone:             m.Phone,
		Company:           m.Company,
		Address:           m.Address,
	}
}

// FromDomain populates the persistence model from a domain Client
func (m *ClientModel) FromDomain(c *billing.Client) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.Name = c.Name
	m.Email = c.Email
	m.Phone = c.Phone
	m.Company = c.Company
	m.Address = c.Address
}

// ClientModelFromDomain creates a persistence model from a domain Client
func ClientModelFromDomain(c *billing.Client) *ClientModel {
	m := &ClientModel{}
	m.FromDomain(c)
	return m
}

// ProjectModel is the persistence model for the Project aggregate root.
type ProjectModel struct {
	AggregateModel
	ClientID    uuid.UUID             `gorm:"type:uuid;not null;index"`
	Name        string                `gorm:"type:varchar(200);not null"`
	Description string                `gorm:"type:text"`
	HourlyRate  decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Status      billing.ProjectStatus `gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
	Billables   billing.LineItems     `gorm:"type:text;not null"`
	InvoicedAt  *time.Time
}

// TableName returns the table name for GORM
func (ProjectModel) TableName() string {
	return "projects"
}

// ToDomain converts the persistence model to a domain Project
func (m *ProjectModel) ToDomain() *billing.Project {
	return &billing.Project{
		BaseAggregateRoot: m.ToAggregateRoot(),
		ClientID:          m.ClientID,
		Name:              m.Name,
		Description:       m.Description,
		HourlyRate:        m.HourlyRate,
		Status:            m.Status,
		Billables:         m.Billables.Clone(),
		InvoicedAt:        m.InvoicedAt,
	}
}

// FromDomain populates the persistence model from a domain Project
func (m *ProjectModel) FromDomain(p *billing.Project) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.ClientID = p.ClientID
	m.Name = p.Name
	m.Description = p.Description
	m.HourlyRate = p.HourlyRate
	m.Status = p.Status
	m.Billables = p.Billables.Clone()
	m.InvoicedAt = p.InvoicedAt
}

// ProjectModelFromDomain creates a persistence model from a domain Project
func ProjectModelFromDomain(p *billing.Project) *ProjectModel {
	m := &ProjectModel{}
	m.FromDomain(p)
	return m
}

// InvoiceModel is the persistence model for the Invoice aggregate root.
// Balance and status are derived on read and never stored.
type InvoiceModel struct {
	AggregateModel
	Number     string            `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoice_number"`
	ClientID   uuid.UUID         `gorm:"type:uuid;not null;index"`
	ProjectID  uuid.UUID         `gorm:"type:uuid;not null;index"`
	IssueDate  time.Time         `gorm:"not null;index"`
	DueDate    time.Time         `gorm:"not null;index"`
	LineItems  billing.LineItems `gorm:"type:text;not null"`
	Notes      string            `gorm:"type:text"`
	IssuedAt   *time.Time
	VoidedAt   *time.Time
	VoidReason string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	return &billing.Invoice{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Number:            m.Number,
		ClientID:          m.ClientID,
		ProjectID:         m.ProjectID,
		IssueDate:         m.IssueDate,
		DueDate:           m.DueDate,
		LineItems:         m.LineItems.Clone(),
		Notes:             m.Notes,
		IssuedAt:          m.IssuedAt,
		VoidedAt:          m.VoidedAt,
		VoidReason:        m.VoidReason,
	}
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	m.Number = inv.Number
	m.ClientID = inv.ClientID
	m.ProjectID = inv.ProjectID
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.LineItems = inv.LineItems.Clone()
	m.Notes = inv.Notes
	m.IssuedAt = inv.IssuedAt
	m.VoidedAt = inv.VoidedAt
	m.VoidReason = inv.VoidReason
}

// InvoiceModelFromDomain creates a persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// PaymentModel is the persistence model for the Payment aggregate root.
// Rows are inserted once and never updated.
type PaymentModel struct {
	AggregateModel
	Number         string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_payment_number"`
	ClientID       uuid.UUID             `gorm:"type:uuid;not null;index"`
	Amount         decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	ReceivedOn     time.Time             `gorm:"not null;index"`
	Method         billing.PaymentMethod `gorm:"type:varchar(20);not null"`
	Reference      string                `gorm:"type:varchar(100);index"`
	Notes          string                `gorm:"type:text"`
	TransactionFee decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the payment row plus its allocation and reversal rows
func (m *PaymentModel) ToDomain(allocations []AllocationModel, reversal *PaymentReversalModel) *billing.Payment {
	p := &billing.Payment{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Number:            m.Number,
		ClientID:          m.ClientID,
		Amount:            m.Amount,
		ReceivedOn:        m.ReceivedOn,
		Method:            m.Method,
		Reference:         m.Reference,
		Notes:             m.Notes,
		TransactionFee:    m.TransactionFee,
		Allocations:       make([]billing.Allocation, 0, len(allocations)),
	}
	for i := range allocations {
		p.Allocations = append(p.Allocations, allocations[i].ToDomain())
	}
	if reversal != nil {
		p.Reversal = reversal.ToDomain()
	}
	return p
}

// FromDomain populates the persistence model from a domain Payment
func (m *PaymentModel) FromDomain(p *billing.Payment) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.Number = p.Number
	m.ClientID = p.ClientID
	m.Amount = p.Amount
	m.ReceivedOn = p.ReceivedOn
	m.Method = p.Method
	m.Reference = p.Reference
	m.Notes = p.Notes
	m.TransactionFee = p.TransactionFee
}

// PaymentModelFromDomain creates a persistence model from a domain Payment
func PaymentModelFromDomain(p *billing.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// AllocationModel is one append-only allocation row
type AllocationModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	PaymentID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	AllocatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AllocationModel) TableName() string {
	return "payment_allocations"
}

// ToDomain converts the persistence model to a domain Allocation
func (m *AllocationModel) ToDomain() billing.Allocation {
	return billing.Allocation{
		ID:          m.ID,
		PaymentID:   m.PaymentID,
		InvoiceID:   m.InvoiceID,
		Amount:      m.Amount,
		AllocatedAt: m.AllocatedAt,
	}
}

// AllocationModelFromDomain creates a persistence model from a domain Allocation
func AllocationModelFromDomain(a billing.Allocation) AllocationModel {
	return AllocationModel{
		ID:          a.ID,
		PaymentID:   a.PaymentID,
		InvoiceID:   a.InvoiceID,
		Amount:      a.Amount,
		AllocatedAt: a.AllocatedAt,
	}
}

// PaymentReversalModel is the compensating record for a payment
type PaymentReversalModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	PaymentID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reversal_payment"`
	Reason     string    `gorm:"type:varchar(500);not null"`
	ReversedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentReversalModel) TableName() string {
	return "payment_reversals"
}

// ToDomain converts the persistence model to a domain PaymentReversal
func (m *PaymentReversalModel) ToDomain() *billing.PaymentReversal {
	return &billing.PaymentReversal{
		ID:         m.ID,
		PaymentID:  m.PaymentID,
		Reason:     m.Reason,
		ReversedAt: m.ReversedAt,
	}
}

// PaymentReversalModelFromDomain creates a persistence model from a domain PaymentReversal
func PaymentReversalModelFromDomain(r *billing.PaymentReversal) *PaymentReversalModel {
	return &PaymentReversalModel{
		ID:         r.ID,
		PaymentID:  r.PaymentID,
		Reason:     r.Reason,
		ReversedAt: r.ReversedAt,
	}
}

// All lists every model in dependency order, for AutoMigrate
func All() []any {
	return []any{
		&ClientModel{},
		&ProjectModel{},
		&InvoiceModel{},
		&PaymentModel{},
		&AllocationModel{},
		&PaymentReversalModel{},
	}
}
