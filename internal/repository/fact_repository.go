package repository

import (
	"quiz_engine_backend/internal/model"

	"gorm.io/gorm"
)

// FactRepository 实现引擎消费的协作方事实查询：选课、单元视频进度、
// 追加尝试授权。这些表由外部系统写入，引擎只读
type FactRepository struct {
	DB *gorm.DB
}

func NewFactRepository(db *gorm.DB) *FactRepository {
	return &FactRepository{DB: db}
}

func (r *FactRepository) IsEnrolled(studentID, courseID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Enrollment{}).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Count(&count).Error
	return count > 0, err
}

func (r *FactRepository) AllVideosWatched(studentID, unitID uint) (bool, error) {
	var progress model.UnitProgress
	err := r.DB.Where("student_id = ? AND unit_id = ?", studentID, unitID).
		First(&progress).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return progress.AllVideosWatched, nil
}

func (r *FactRepository) GrantedExtraAttempts(studentID, unitID uint) (int, error) {
	var total int64
	err := r.DB.Model(&model.ExtraAttemptGrant{}).
		Where("student_id = ? AND unit_id = ?", studentID, unitID).
		Select("COALESCE(SUM(attempts), 0)").Scan(&total).Error
	return int(total), err
}
