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

// GormProjectRepository implements billing.ProjectRepository using GORM
type GormProjectRepository struct {
	db *gorm.DB
}

// NewGormProjectRepository creates a new GormProjectRepository
func NewGormProjectRepository(db *gorm.DB) *GormProjectRepository {
	return &GormProjectRepository{db: db}
}

// FindByID finds a project by its ID
func (r *GormProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Project, error) {
	var model models.ProjectModel
	if err := conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns one page of projects and the total matching count
func (r *GormProjectRepository) FindAll(ctx context.Context, filter billing.ProjectFilter) ([]billing.Project, int64, error) {
	query := conn(ctx, r.db).Model(&models.ProjectModel{})
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		query = query.Where("LOWER(name) LIKE ? ESCAPE '\\' OR LOWER(description) LIKE ? ESCAPE '\\'", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var projectModels []models.ProjectModel
	if err := paginate(query, filter.Filter, ProjectSortFields).Find(&projectModels).Error; err != nil {
		return nil, 0, err
	}

	projects := make([]billing.Project, len(projectModels))
	for i := range projectModels {
		projects[i] = *projectModels[i].ToDomain()
	}
	return projects, total, nil
}

// CountByClient counts the projects owned by a client
func (r *GormProjectRepository) CountByClient(ctx context.Context, clientID uuid.UUID) (int64, error) {
	var count int64
	if err := conn(ctx, r.db).
		Model(&models.ProjectModel{}).
		Where("client_id = ?", clientID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a project
func (r *GormProjectRepository) Save(ctx context.Context, project *billing.Project) error {
	return conn(ctx, r.db).Save(models.ProjectModelFromDomain(project)).Error
}

// SaveWithLock updates a project only if its stored version still matches
func (r *GormProjectRepository) SaveWithLock(ctx context.Context, project *billing.Project) error {
	model := models.ProjectModelFromDomain(project)
	model.Version = project.Version + 1
	if err := updateWithVersion(ctx, r.db, model, project.ID, project.Version); err != nil {
		return err
	}
	project.IncrementVersion()
	return nil
}

// Delete deletes a project
func (r *GormProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := conn(ctx, r.db).Delete(&models.ProjectModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ billing.ProjectRepository = (*GormProjectRepository)(nil)
