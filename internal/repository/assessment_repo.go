package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/univpredict/early-warning-api/internal/models"
)

// ErrMultipleActiveAssessments signals a broken single-active invariant. It is
// not user-recoverable and must halt the subject's pipeline.
var ErrMultipleActiveAssessments = errors.New("multiple active assessments for subject")

// AssessmentRepository handles persistence for the prediction ledger.
type AssessmentRepository interface {
	FindActive(ctx context.Context, subjectID uint) (models.RiskAssessment, error)
	Supersede(ctx context.Context, next *models.RiskAssessment) error
	History(ctx context.Context, subjectID uint, since *time.Time, limit, offset int) ([]models.RiskAssessment, int64, error)
	FindByID(ctx context.Context, id uint) (models.RiskAssessment, error)
}

type assessmentRepository struct {
	db *gorm.DB
}

// NewAssessmentRepository constructs a repository backed by GORM.
func NewAssessmentRepository(db *gorm.DB) AssessmentRepository {
	return &assessmentRepository{db: db}
}

func (r *assessmentRepository) FindActive(ctx context.Context, subjectID uint) (models.RiskAssessment, error) {
	var assessments []models.RiskAssessment
	if err := r.db.WithContext(ctx).
		Where("subject_id = ? AND active = ?", subjectID, true).
		Limit(2).
		Find(&assessments).Error; err != nil {
		return models.RiskAssessment{}, err
	}

	switch len(assessments) {
	case 0:
		return models.RiskAssessment{}, gorm.ErrRecordNotFound
	case 1:
		return assessments[0], nil
	default:
		return models.RiskAssessment{}, ErrMultipleActiveAssessments
	}
}

// Supersede atomically deactivates the subject's current active assessment and
// inserts next as the new active one.
func (r *assessmentRepository) Supersede(ctx context.Context, next *models.RiskAssessment) error {
	next.Active = true

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.RiskAssessment{}).
			Where("subject_id = ? AND active = ?", next.SubjectID, true).
			Update("active", false).Error; err != nil {
			return err
		}

		return tx.Create(next).Error
	})
}

func (r *assessmentRepository) History(ctx context.Context, subjectID uint, since *time.Time, limit, offset int) ([]models.RiskAssessment, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := r.db.WithContext(ctx).Model(&models.RiskAssessment{}).Where("subject_id = ?", subjectID)
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var assessments []models.RiskAssessment
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&assessments).Error; err != nil {
		return nil, 0, err
	}

	return assessments, total, nil
}

func (r *assessmentRepository) FindByID(ctx context.Context, id uint) (models.RiskAssessment, error) {
	var assessment models.RiskAssessment
	if err := r.db.WithContext(ctx).First(&assessment, id).Error; err != nil {
		return models.RiskAssessment{}, err
	}

	return assessment, nil
}
