package repository

import (
	"errors"
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/util"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

// FindQuizByID 只返回启用中的测验；下架测验对引擎不可见
func (r *QuizRepository) FindQuizByID(id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("`order` asc, id asc")
	}).Where("is_active = ?", true).First(&quiz, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSourceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

// FindPoolByID 连同全部贡献测验及其题目一起加载
func (r *QuizRepository) FindPoolByID(id uint) (*model.QuizPool, error) {
	var pool model.QuizPool
	err := r.DB.Preload("Quizzes.Questions").
		Where("is_active = ?", true).First(&pool, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSourceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

func (r *QuizRepository) CreateQuiz(quiz *model.Quiz) error {
	return r.DB.Create(quiz).Error
}

func (r *QuizRepository) CreateQuestions(questions []model.Question) error {
	return r.DB.Create(&questions).Error
}

func (r *QuizRepository) CreatePool(pool *model.QuizPool) error {
	return r.DB.Create(pool).Error
}

func (r *QuizRepository) AttachQuizToPool(poolID, quizID uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var pool model.QuizPool
		if err := tx.First(&pool, poolID).Error; err != nil {
			return err
		}
		var quiz model.Quiz
		if err := tx.First(&quiz, quizID).Error; err != nil {
			return err
		}
		return tx.Model(&pool).Association("Quizzes").Append(&quiz)
	})
}

func (r *QuizRepository) ListQuizzesByCourse(courseID uint, page, limit int) ([]model.Quiz, int64, error) {
	var total int64
	query := r.DB.Model(&model.Quiz{}).Where("course_id = ?", courseID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var quizzes []model.Quiz
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&quizzes).Error
	return quizzes, total, err
}

func (r *QuizRepository) SetQuizActive(id uint, active bool) error {
	return r.DB.Model(&model.Quiz{}).Where("id = ?", id).Update("is_active", active).Error
}
