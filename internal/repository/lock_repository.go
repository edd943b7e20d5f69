package repository

import (
	"errors"
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LockRepository struct {
	DB *gorm.DB
}

func NewLockRepository(db *gorm.DB) *LockRepository {
	return &LockRepository{DB: db}
}

func (r *LockRepository) Find(studentID uint, st model.QuizSourceType, sourceID uint) (*model.QuizLock, error) {
	var lock model.QuizLock
	err := r.DB.Where("student_id = ? AND source_type = ? AND source_id = ?",
		studentID, st, sourceID).First(&lock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lock, nil
}

func (r *LockRepository) FindByID(id uint) (*model.QuizLock, error) {
	var lock model.QuizLock
	err := r.DB.First(&lock, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrLockNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lock, nil
}

// Mutate 在 SELECT ... FOR UPDATE 事务内 get-or-create 并修改锁记录。
// 同一 (student, quiz) 的并发失败/解锁在此串行化，解锁计数和层级
// 计算不会被交错破坏
func (r *LockRepository) Mutate(studentID uint, st model.QuizSourceType, sourceID uint,
	seed func(*model.QuizLock), fn func(*model.QuizLock) error) error {

	return r.DB.Transaction(func(tx *gorm.DB) error {
		var lock model.QuizLock
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("student_id = ? AND source_type = ? AND source_id = ?",
				studentID, st, sourceID).
			First(&lock).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			lock = model.QuizLock{
				StudentID:  studentID,
				SourceType: st,
				SourceID:   sourceID,
				AuthLevel:  model.LevelTeacher,
			}
			if seed != nil {
				seed(&lock)
			}
			if err := tx.Create(&lock).Error; err != nil {
				// 并发创建输掉的一方重新读取赢家的行
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
						Where("student_id = ? AND source_type = ? AND source_id = ?",
							studentID, st, sourceID).
						First(&lock).Error; err != nil {
						return err
					}
				} else {
					return err
				}
			}
		} else if err != nil {
			return err
		}

		if err := fn(&lock); err != nil {
			return err
		}
		return tx.Save(&lock).Error
	})
}

// MutateExisting 同 Mutate，但记录不存在时直接返回 ErrLockNotFound
func (r *LockRepository) MutateExisting(id uint, fn func(*model.QuizLock) error) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var lock model.QuizLock
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&lock, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrLockNotFound
		}
		if err != nil {
			return err
		}

		if err := fn(&lock); err != nil {
			return err
		}
		return tx.Save(&lock).Error
	})
}
