package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/freelance/backend/internal/domain/billing"
	"github.com/freelance/backend/internal/domain/shared"
	"github.com/freelance/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements billing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice by its ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber finds an invoice by its number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, number string) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := conn(ctx, r.db).Where("number = ?", number).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs returns the invoices that exist among ids, in due date order
func (r *GormInvoiceRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]billing.Invoice, error) {
	if len(ids) == 0 {
		return []billing.Invoice{}, nil
	}
	var invoiceModels []models.InvoiceModel
	if err := conn(ctx, r.db).
		Where("id IN ?", ids).
		Order("due_date ASC, id ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return invoicesToDomain(invoiceModels), nil
}

// FindAll returns invoices matching filter ordered by issue date
func (r *GormInvoiceRepository) FindAll(ctx context.Context, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	query := conn(ctx, r.db).Model(&models.InvoiceModel{})
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.IssuedFrom != nil {
		query = query.Where("issue_date >= ?", *filter.IssuedFrom)
	}
	if filter.IssuedTo != nil {
		query = query.Where("issue_date <= ?", *filter.IssuedTo)
	}

	var invoiceModels []models.InvoiceModel
	if err := query.Order("issue_date ASC, number ASC").Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return invoicesToDomain(invoiceModels), nil
}

// CountByProject counts invoices raised against a project
func (r *GormInvoiceRepository) CountByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var count int64
	if err := conn(ctx, r.db).
		Model(&models.InvoiceModel{}).
		Where("project_id = ?", projectID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// NextSequence returns the next per-day sequence for invoice numbers
func (r *GormInvoiceRepository) NextSequence(ctx context.Context, prefix string, day time.Time) (int, error) {
	return nextSequence(conn(ctx, r.db).Model(&models.InvoiceModel{}), prefix, day)
}

// Save creates or updates an invoice
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	if err := conn(ctx, r.db).Save(models.InvoiceModelFromDomain(invoice)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewDomainError(shared.CodeAlreadyExists, "Invoice number already exists")
		}
		return err
	}
	return nil
}

// SaveWithLock updates an invoice only if its stored version still matches
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	model.Version = invoice.Version + 1
	if err := updateWithVersion(ctx, r.db, model, invoice.ID, invoice.Version); err != nil {
		return err
	}
	invoice.IncrementVersion()
	return nil
}

func invoicesToDomain(invoiceModels []models.InvoiceModel) []billing.Invoice {
	invoices := make([]billing.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = *invoiceModels[i].ToDomain()
	}
	return invoices
}

// nextSequence counts the numbers already issued as PREFIX-YYYYMMDD-* and
// returns the following one. Numbered rows are never deleted.
func nextSequence(query *gorm.DB, prefix string, day time.Time) (int, error) {
	stem := billing.FormatInvoiceNumber(prefix, day, 0)
	stem = stem[:len(stem)-4]
	pattern := likeEscaper.Replace(stem) + "%"

	var count int64
	if err := query.Where("number LIKE ? ESCAPE '\\'", pattern).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count) + 1, nil
}

var _ billing.InvoiceRepository = (*GormInvoiceRepository)(nil)
