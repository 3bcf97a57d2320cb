package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/univpredict/early-warning-api/internal/models"
)

// FollowUpRepository handles the per-subject follow-up rollup table.
type FollowUpRepository interface {
	Get(ctx context.Context, subjectID uint) (models.FollowUpRecord, error)
	GetOrCreate(ctx context.Context, subjectID uint) (models.FollowUpRecord, error)
	Save(ctx context.Context, record *models.FollowUpRecord) error
}

type followUpRepository struct {
	db *gorm.DB
}

// NewFollowUpRepository constructs a repository backed by GORM.
func NewFollowUpRepository(db *gorm.DB) FollowUpRepository {
	return &followUpRepository{db: db}
}

func (r *followUpRepository) Get(ctx context.Context, subjectID uint) (models.FollowUpRecord, error) {
	var record models.FollowUpRecord
	if err := r.db.WithContext(ctx).Where("subject_id = ?", subjectID).First(&record).Error; err != nil {
		return models.FollowUpRecord{}, err
	}

	return record, nil
}

func (r *followUpRepository) GetOrCreate(ctx context.Context, subjectID uint) (models.FollowUpRecord, error) {
	record, err := r.Get(ctx, subjectID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.FollowUpRecord{}, err
	}

	record = models.FollowUpRecord{SubjectID: subjectID}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return models.FollowUpRecord{}, err
	}

	return record, nil
}

func (r *followUpRepository) Save(ctx context.Context, record *models.FollowUpRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}
