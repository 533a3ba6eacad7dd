package billing

import (
	"context"
	"time"

	"github.com/freelance/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ClientFilter narrows client listings
type ClientFilter struct {
	shared.Filter
}

// ClientRepository persists clients
type ClientRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Client, error)
	FindByEmail(ctx context.Context, email string) (*Client, error)
	FindAll(ctx context.Context, filter ClientFilter) ([]Client, int64, error)
	ExistsByEmail(ctx context.Context, email string, excludeID uuid.UUID) (bool, error)
	Save(ctx context.Context, client *Client) error
	SaveWithLock(ctx context.Context, client *Client) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProjectFilter narrows project listings
type ProjectFilter struct {
	shared.Filter
	ClientID *uuid.UUID
	Status   *ProjectStatus
}

// ProjectRepository persists projects
type ProjectRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Project, error)
	FindAll(ctx context.Context, filter ProjectFilter) ([]Project, int64, error)
	CountByClient(ctx context.Context, clientID uuid.UUID) (int64, error)
	Save(ctx context.Context, project *Project) error
	SaveWithLock(ctx context.Context, project *Project) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// InvoiceFilter narrows invoice queries. Status is derived, so status
// filtering happens on computed views, not here.
type InvoiceFilter struct {
	ClientID   *uuid.UUID
	ProjectID  *uuid.UUID
	IssuedFrom *time.Time
	IssuedTo   *time.Time
}

// InvoiceRepository persists invoices
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindByNumber(ctx context.Context, number string) (*Invoice, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Invoice, error)
	FindAll(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
	CountByProject(ctx context.Context, projectID uuid.UUID) (int64, error)
	NextSequence(ctx context.Context, prefix string, day time.Time) (int, error)
	Save(ctx context.Context, invoice *Invoice) error
	SaveWithLock(ctx context.Context, invoice *Invoice) error
}

// PaymentFilter narrows payment queries
type PaymentFilter struct {
	ClientID     *uuid.UUID
	ReceivedFrom *time.Time
	ReceivedTo   *time.Time
}

// PaymentRepository is insert-only: payments, allocations and reversals
// are appended, never updated or deleted.
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByReference(ctx context.Context, reference string) (*Payment, error)
	FindByInvoices(ctx context.Context, invoiceIDs []uuid.UUID) ([]Payment, error)
	FindAll(ctx context.Context, filter PaymentFilter) ([]Payment, error)
	NextSequence(ctx context.Context, prefix string, day time.Time) (int, error)
	Create(ctx context.Context, payment *Payment) error
	AppendAllocations(ctx context.Context, allocations []Allocation) error
	CreateReversal(ctx context.Context, reversal *PaymentReversal) error
}

// TransactionManager runs fn inside one storage transaction. Repositories
// called with the ctx passed to fn take part in it.
type TransactionManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
