package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/univpredict/early-warning-api/internal/models"
)

// AlertFilter narrows alert listings for dashboard queries.
type AlertFilter struct {
	State        models.AlertState
	Priority     models.AlertPriority
	SubjectQuery string
	Page         int
	PageSize     int
}

// AlertCounts summarises a subject's alerts for the follow-up rollup.
type AlertCounts struct {
	Total int
	Open  int
}

// AlertRepository handles persistence for alert entities.
type AlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) error
	FindByID(ctx context.Context, id uint) (models.Alert, error)
	FindOpenBySubject(ctx context.Context, subjectID uint) (models.Alert, error)
	Update(ctx context.Context, alert *models.Alert) error
	List(ctx context.Context, filter AlertFilter) ([]models.Alert, int64, error)
	CountsForSubject(ctx context.Context, subjectID uint) (AlertCounts, error)
}

type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository constructs a repository backed by GORM.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

func (r *alertRepository) Create(ctx context.Context, alert *models.Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *alertRepository) FindByID(ctx context.Context, id uint) (models.Alert, error) {
	var alert models.Alert
	if err := r.db.WithContext(ctx).First(&alert, id).Error; err != nil {
		return models.Alert{}, err
	}

	return alert, nil
}

// FindOpenBySubject returns the newest visible pending or in-review alert for
// the subject. It backs the dedup check performed before alert creation.
func (r *alertRepository) FindOpenBySubject(ctx context.Context, subjectID uint) (models.Alert, error) {
	var alert models.Alert
	if err := r.db.WithContext(ctx).
		Where("subject_id = ? AND visible = ? AND state IN ?", subjectID, true, []models.AlertState{models.AlertStatePending, models.AlertStateInReview}).
		Order("created_at DESC").
		First(&alert).Error; err != nil {
		return models.Alert{}, err
	}

	return alert, nil
}

func (r *alertRepository) Update(ctx context.Context, alert *models.Alert) error {
	return r.db.WithContext(ctx).Save(alert).Error
}

func (r *alertRepository) List(ctx context.Context, filter AlertFilter) ([]models.Alert, int64, error) {
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	query := r.db.WithContext(ctx).Model(&models.Alert{}).Where("visible = ?", true)

	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if trimmed := strings.TrimSpace(filter.SubjectQuery); trimmed != "" {
		pattern := "%" + strings.ToLower(trimmed) + "%"
		query = query.
			Joins("JOIN subjects ON subjects.id = alerts.subject_id").
			Where("LOWER(subjects.code) LIKE ? OR LOWER(subjects.name) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var alerts []models.Alert
	if err := query.
		Preload("Subject").
		Order("alerts.created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&alerts).Error; err != nil {
		return nil, 0, err
	}

	return alerts, total, nil
}

func (r *alertRepository) CountsForSubject(ctx context.Context, subjectID uint) (AlertCounts, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Alert{}).
		Where("subject_id = ?", subjectID).
		Count(&total).Error; err != nil {
		return AlertCounts{}, err
	}

	var open int64
	if err := r.db.WithContext(ctx).Model(&models.Alert{}).
		Where("subject_id = ? AND visible = ? AND state IN ?", subjectID, true, []models.AlertState{models.AlertStatePending, models.AlertStateInReview}).
		Count(&open).Error; err != nil {
		return AlertCounts{}, err
	}

	return AlertCounts{Total: int(total), Open: int(open)}, nil
}
