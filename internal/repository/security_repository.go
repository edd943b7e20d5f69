package repository

import (
	"quiz_engine_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type SecurityRepository struct {
	DB *gorm.DB
}

func NewSecurityRepository(db *gorm.DB) *SecurityRepository {
	return &SecurityRepository{DB: db}
}

func (r *SecurityRepository) Create(event *model.SecurityEvent) error {
	return r.DB.Create(event).Error
}

func (r *SecurityRepository) CreateBatch(events []model.SecurityEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.DB.Create(&events).Error
}

func (r *SecurityRepository) ListByAttempt(attemptID uint) ([]model.SecurityEvent, error) {
	var events []model.SecurityEvent
	err := r.DB.Where("attempt_id = ?", attemptID).Order("occurred_at asc").Find(&events).Error
	return events, err
}

// CountByAttemptAndType 用于按类型的升级判定（如第 3 次切屏升为 HIGH）
func (r *SecurityRepository) CountByAttemptAndType(attemptID uint, t model.ViolationType) (int64, error) {
	var count int64
	err := r.DB.Model(&model.SecurityEvent{}).
		Where("attempt_id = ? AND event_type = ?", attemptID, t).
		Count(&count).Error
	return count, err
}

type SecurityEventFilter struct {
	StudentID uint
	CourseID  uint
	Severity  model.Severity
	Page      int
	Limit     int
}

func (r *SecurityRepository) List(filter SecurityEventFilter) ([]model.SecurityEvent, int64, error) {
	query := r.DB.Model(&model.SecurityEvent{})
	if filter.StudentID != 0 {
		query = query.Where("student_id = ?", filter.StudentID)
	}
	if filter.CourseID != 0 {
		query = query.Where("course_id = ?", filter.CourseID)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var events []model.SecurityEvent
	offset := (filter.Page - 1) * filter.Limit
	err := query.Order("occurred_at desc").Offset(offset).Limit(filter.Limit).Find(&events).Error
	return events, total, err
}

func (r *SecurityRepository) Resolve(id uint, resolvedBy uint, notes string) error {
	now := time.Now()
	return r.DB.Model(&model.SecurityEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"resolved_by":      resolvedBy,
			"resolved_at":      now,
			"resolution_notes": notes,
		}).Error
}
