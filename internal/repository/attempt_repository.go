package repository

import (
	"errors"
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

// Create 依赖 active_key 唯一索引防止同一 (student, source) 并发开启
// 两个未完成尝试；应用层的 check-then-act 有竞态，数据库约束没有
func (r *AttemptRepository) Create(attempt *model.QuizAttempt) error {
	err := r.DB.Create(attempt).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return util.ErrConflict
	}
	return err
}

func (r *AttemptRepository) FindByID(id uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.DB.First(&attempt, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) FindPassed(studentID uint, st model.QuizSourceType, sourceID uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.DB.Where("student_id = ? AND source_type = ? AND source_id = ? AND passed = ?",
		studentID, st, sourceID, true).First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// FindLatestFailed 最近一次已完成且未通过的尝试，用于冷却期判断
func (r *AttemptRepository) FindLatestFailed(studentID uint, st model.QuizSourceType, sourceID uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.DB.Where("student_id = ? AND source_type = ? AND source_id = ? AND is_complete = ? AND passed = ?",
		studentID, st, sourceID, true, false).
		Order("completed_at desc").First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) CountCompleted(studentID uint, st model.QuizSourceType, sourceID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.QuizAttempt{}).
		Where("student_id = ? AND source_type = ? AND source_id = ? AND is_complete = ?",
			studentID, st, sourceID, true).
		Count(&count).Error
	return count, err
}

func (r *AttemptRepository) ListByStudent(studentID uint, page, limit int) ([]model.QuizAttempt, int64, error) {
	var total int64
	query := r.DB.Model(&model.QuizAttempt{}).Where("student_id = ?", studentID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var attempts []model.QuizAttempt
	offset := (page - 1) * limit
	err := query.Order("started_at desc").Offset(offset).Limit(limit).Find(&attempts).Error
	return attempts, total, err
}

// FinalizeSubmission 对 is_complete 做 compare-and-set：并发的两次提交
// 恰好一次成功写入评分结果，另一次拿到 ErrAlreadySubmitted
func (r *AttemptRepository) FinalizeSubmission(attempt *model.QuizAttempt) error {
	now := time.Now()
	res := r.DB.Model(&model.QuizAttempt{}).
		Where("id = ? AND is_complete = ?", attempt.ID, false).
		Updates(map[string]interface{}{
			"is_complete":      true,
			"active_key":       nil,
			"completed_at":     now,
			"answers_json":     attempt.AnswersJSON,
			"score":            attempt.Score,
			"max_score":        attempt.MaxScore,
			"percentage":       attempt.Percentage,
			"raw_score":        attempt.RawScore,
			"raw_percentage":   attempt.RawPercentage,
			"penalty_applied":  attempt.PenaltyApplied,
			"passed":           attempt.Passed,
			"auto_submitted":   attempt.AutoSubmitted,
			"tab_switch_count": attempt.TabSwitchCount,
			"time_exceeded":    attempt.TimeExceeded,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrAlreadySubmitted
	}
	attempt.IsComplete = true
	attempt.ActiveKey = nil
	attempt.CompletedAt = &now
	return nil
}

// CountStaleOpen 开放中但已超时的尝试数，仅用于监控
func (r *AttemptRepository) CountStaleOpen(grace time.Duration) (int64, error) {
	var count int64
	cutoff := time.Now().Add(-grace)
	err := r.DB.Model(&model.QuizAttempt{}).
		Where("is_complete = ? AND TIMESTAMPADD(MINUTE, time_limit_minutes, started_at) < ?", false, cutoff).
		Count(&count).Error
	return count, err
}
