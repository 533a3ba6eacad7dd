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

// GormPaymentRepository implements billing.PaymentRepository using GORM.
// Payments, allocations and reversals are only ever inserted.
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment with its allocations and reversal
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Payment, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByReference finds a payment by its external reference
func (r *GormPaymentRepository) FindByReference(ctx context.Context, reference string) (*billing.Payment, error) {
	if reference == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Reference cannot be empty")
	}
	return r.findOne(ctx, "reference = ?", reference)
}

// FindByInvoices returns every payment with at least one allocation to the
// given invoices. Each payment carries all of its allocations.
func (r *GormPaymentRepository) FindByInvoices(ctx context.Context, invoiceIDs []uuid.UUID) ([]billing.Payment, error) {
	if len(invoiceIDs) == 0 {
		return []billing.Payment{}, nil
	}
	db := conn(ctx, r.db)
	sub := db.Model(&models.AllocationModel{}).Select("payment_id").Where("invoice_id IN ?", invoiceIDs)

	var paymentModels []models.PaymentModel
	if err := db.
		Where("id IN (?)", sub).
		Order("received_on ASC, id ASC").
		Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	return r.assemble(ctx, paymentModels)
}

// FindAll returns payments matching filter ordered by receipt date
func (r *GormPaymentRepository) FindAll(ctx context.Context, filter billing.PaymentFilter) ([]billing.Payment, error) {
	query := conn(ctx, r.db).Model(&models.PaymentModel{})
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.ReceivedFrom != nil {
		query = query.Where("received_on >= ?", *filter.ReceivedFrom)
	}
	if filter.ReceivedTo != nil {
		query = query.Where("received_on <= ?", *filter.ReceivedTo)
	}

	var paymentModels []models.PaymentModel
	if err := query.Order("received_on ASC, number ASC").Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	return r.assemble(ctx, paymentModels)
}

// NextSequence returns the next per-day sequence for payment numbers
func (r *GormPaymentRepository) NextSequence(ctx context.Context, prefix string, day time.Time) (int, error) {
	return nextSequence(conn(ctx, r.db).Model(&models.PaymentModel{}), prefix, day)
}

// Create inserts a payment together with any allocations it already holds
func (r *GormPaymentRepository) Create(ctx context.Context, payment *billing.Payment) error {
	if err := conn(ctx, r.db).Create(models.PaymentModelFromDomain(payment)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewDomainError(shared.CodeAlreadyExists, "Payment number already exists")
		}
		return err
	}
	return r.AppendAllocations(ctx, payment.Allocations)
}

// AppendAllocations inserts allocation rows
func (r *GormPaymentRepository) AppendAllocations(ctx context.Context, allocations []billing.Allocation) error {
	if len(allocations) == 0 {
		return nil
	}
	rows := make([]models.AllocationModel, len(allocations))
	for i, a := range allocations {
		rows[i] = models.AllocationModelFromDomain(a)
	}
	return conn(ctx, r.db).Create(&rows).Error
}

// CreateReversal inserts the compensating record for a payment
func (r *GormPaymentRepository) CreateReversal(ctx context.Context, reversal *billing.PaymentReversal) error {
	if err := conn(ctx, r.db).Create(models.PaymentReversalModelFromDomain(reversal)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewDomainError(shared.CodeInvalidState, "Payment is already reversed")
		}
		return err
	}
	return nil
}

func (r *GormPaymentRepository) findOne(ctx context.Context, query string, args ...any) (*billing.Payment, error) {
	var model models.PaymentModel
	if err := conn(ctx, r.db).Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	payments, err := r.assemble(ctx, []models.PaymentModel{model})
	if err != nil {
		return nil, err
	}
	return &payments[0], nil
}

// assemble loads allocation and reversal rows for paymentModels and builds
// the domain payments in the same order
func (r *GormPaymentRepository) assemble(ctx context.Context, paymentModels []models.PaymentModel) ([]billing.Payment, error) {
	if len(paymentModels) == 0 {
		return []billing.Payment{}, nil
	}
	ids := make([]uuid.UUID, len(paymentModels))
	for i := range paymentModels {
		ids[i] = paymentModels[i].ID
	}

	var allocationRows []models.AllocationModel
	if err := conn(ctx, r.db).
		Where("payment_id IN ?", ids).
		Order("allocated_at ASC, id ASC").
		Find(&allocationRows).Error; err != nil {
		return nil, err
	}
	var reversalRows []models.PaymentReversalModel
	if err := conn(ctx, r.db).Where("payment_id IN ?", ids).Find(&reversalRows).Error; err != nil {
		return nil, err
	}

	allocationsByPayment := make(map[uuid.UUID][]models.AllocationModel, len(ids))
	for _, a := range allocationRows {
		allocationsByPayment[a.PaymentID] = append(allocationsByPayment[a.PaymentID], a)
	}
	reversalByPayment := make(map[uuid.UUID]*models.PaymentReversalModel, len(reversalRows))
	for i := range reversalRows {
		reversalByPayment[reversalRows[i].PaymentID] = &reversalRows[i]
	}

	payments := make([]billing.Payment, len(paymentModels))
	for i := range paymentModels {
		id := paymentModels[i].ID
		payments[i] = *paymentModels[i].ToDomain(allocationsByPayment[id], reversalByPayment[id])
	}
	return payments, nil
}

var _ billing.PaymentRepository = (*GormPaymentRepository)(nil)
