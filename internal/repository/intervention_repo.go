package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/univpredict/early-warning-api/internal/models"
)

// InterventionCounts summarises a subject's interventions for the follow-up rollup.
type InterventionCounts struct {
	Total      int
	Successful int
}

// InterventionRepository handles persistence for intervention entities.
type InterventionRepository interface {
	Create(ctx context.Context, intervention *models.Intervention) error
	FindByID(ctx context.Context, id uint) (models.Intervention, error)
	Update(ctx context.Context, intervention *models.Intervention) error
	ListBySubject(ctx context.Context, subjectID uint, limit, offset int) ([]models.Intervention, error)
	CountsForSubject(ctx context.Context, subjectID uint) (InterventionCounts, error)
}

type interventionRepository struct {
	db *gorm.DB
}

// NewInterventionRepository constructs a repository backed by GORM.
func NewInterventionRepository(db *gorm.DB) InterventionRepository {
	return &interventionRepository{db: db}
}

func (r *interventionRepository) Create(ctx context.Context, intervention *models.Intervention) error {
	return r.db.WithContext(ctx).Create(intervention).Error
}

func (r *interventionRepository) FindByID(ctx context.Context, id uint) (models.Intervention, error) {
	var intervention models.Intervention
	if err := r.db.WithContext(ctx).First(&intervention, id).Error; err != nil {
		return models.Intervention{}, err
	}

	return intervention, nil
}

func (r *interventionRepository) Update(ctx context.Context, intervention *models.Intervention) error {
	return r.db.WithContext(ctx).Save(intervention).Error
}

func (r *interventionRepository) ListBySubject(ctx context.Context, subjectID uint, limit, offset int) ([]models.Intervention, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var interventions []models.Intervention
	if err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("performed_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&interventions).Error; err != nil {
		return nil, err
	}

	return interventions, nil
}

func (r *interventionRepository) CountsForSubject(ctx context.Context, subjectID uint) (InterventionCounts, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Intervention{}).
		Where("subject_id = ?", subjectID).
		Count(&total).Error; err != nil {
		return InterventionCounts{}, err
	}

	var successful int64
	if err := r.db.WithContext(ctx).Model(&models.Intervention{}).
		Where("subject_id = ? AND outcome = ?", subjectID, models.InterventionOutcomeSuccessful).
		Count(&successful).Error; err != nil {
		return InterventionCounts{}, err
	}

	return InterventionCounts{Total: int(total), Successful: int(successful)}, nil
}
