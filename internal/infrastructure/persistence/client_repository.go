package persistence

import (
	"context"
	"errors"

	"github.com/freelance/backend/internal/domain/billing"
	"github.com/freelance/backend/internal/domain/shared"
	"github.com/freelance/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormClientRepository implements billing.ClientRepository using GORM
type GormClientRepository struct {
	db *gorm.DB
}

// NewGormClientRepository creates a new GormClientRepository
func NewGormClientRepository(db *gorm.DB) *GormClientRepository {
	return &GormClientRepository{db: db}
}

// FindByID finds a client by its ID
func (r *GormClientRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Client, error) {
	var model models.ClientModel
	if err := conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByEmail finds a client by normalized email
func (r *GormClientRepository) FindByEmail(ctx context.Context, email string) (*billing.Client, error) {
	normalized := billing.NormalizeEmail(email)
	if normalized == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Email cannot be empty")
	}
	var model models.ClientModel
	if err := conn(ctx, r.db).Where("email = ?", normalized).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns one page of clients and the total matching count
func (r *GormClientRepository) FindAll(ctx context.Context, filter billing.ClientFilter) ([]billing.Client, int64, error) {
	query := r.applyFilter(conn(ctx, r.db).Model(&models.ClientModel{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var clientModels []models.ClientModel
	if err := paginate(query, filter.Filter, ClientSortFields).Find(&clientModels).Error; err != nil {
		return nil, 0, err
	}

	clients := make([]billing.Client, len(clientModels))
	for i := range clientModels {
		clients[i] = *clientModels[i].ToDomain()
	}
	return clients, total, nil
}

// ExistsByEmail reports whether another client already uses email
func (r *GormClientRepository) ExistsByEmail(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
	normalized := billing.NormalizeEmail(email)
	if normalized == "" {
		return false, nil
	}
	query := conn(ctx, r.db).Model(&models.ClientModel{}).Where("email = ?", normalized)
	if excludeID != uuid.Nil {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a client
func (r *GormClientRepository) Save(ctx context.Context, client *billing.Client) error {
	if err := conn(ctx, r.db).Save(models.ClientModelFromDomain(client)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewDomainError(shared.CodeAlreadyExists, "Client email already exists")
		}
		return err
	}
	return nil
}

// SaveWithLock updates a client only if its stored version still matches.
// On success the client's version is advanced.
func (r *GormClientRepository) SaveWithLock(ctx context.Context, client *billing.Client) error {
	model := models.ClientModelFromDomain(client)
	model.Version = client.Version + 1
	if err := updateWithVersion(ctx, r.db, model, client.ID, client.Version); err != nil {
		return err
	}
	client.IncrementVersion()
	return nil
}

// Delete deletes a client
func (r *GormClientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := conn(ctx, r.db).Delete(&models.ClientModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormClientRepository) applyFilter(query *gorm.DB, filter billing.ClientFilter) *gorm.DB {
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		query = query.Where(
			"LOWER(name) LIKE ? ESCAPE '\\' OR LOWER(email) LIKE ? ESCAPE '\\' OR LOWER(company) LIKE ? ESCAPE '\\'",
			pattern, pattern, pattern,
		)
	}
	return query
}

// updateWithVersion writes every column of model except created_at where
// the row still carries expectedVersion
func updateWithVersion(ctx context.Context, db *gorm.DB, model any, id uuid.UUID, expectedVersion int) error {
	result := conn(ctx, db).
		Model(model).
		Select("*").
		Omit("id", "created_at").
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

var _ billing.ClientRepository = (*GormClientRepository)(nil)
