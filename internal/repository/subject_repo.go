package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/univpredict/early-warning-api/internal/models"
)

// SubjectRepository provides read access to the externally-owned student directory.
type SubjectRepository interface {
	GetByID(ctx context.Context, id uint) (models.Subject, error)
	GetByCode(ctx context.Context, code string) (models.Subject, error)
	Exists(ctx context.Context, id uint) (bool, error)
}

type subjectRepository struct {
	db *gorm.DB
}

// NewSubjectRepository constructs a subject repository.
func NewSubjectRepository(db *gorm.DB) SubjectRepository {
	return &subjectRepository{db: db}
}

func (r *subjectRepository) GetByID(ctx context.Context, id uint) (models.Subject, error) {
	var subject models.Subject
	if err := r.db.WithContext(ctx).First(&subject, id).Error; err != nil {
		return models.Subject{}, err
	}

	return subject, nil
}

func (r *subjectRepository) GetByCode(ctx context.Context, code string) (models.Subject, error) {
	var subject models.Subject
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&subject).Error; err != nil {
		return models.Subject{}, err
	}

	return subject, nil
}

func (r *subjectRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Subject{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}
