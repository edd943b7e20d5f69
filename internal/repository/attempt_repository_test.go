package repository

import (
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/util"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	driver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to open gorm database: %v", err)
	}

	return gormDB, mock
}

func openAttempt() *model.QuizAttempt {
	key := model.ActiveKeyFor(7, model.SourceQuiz, 5)
	return &model.QuizAttempt{
		StudentID:           7,
		CourseID:            3,
		UnitID:              11,
		SourceType:          model.SourceQuiz,
		SourceID:            5,
		ActiveKey:           &key,
		QuestionsJSON:       []byte(`[]`),
		TimeLimitMinutes:    30,
		PassingScorePercent: 70,
		StartedAt:           time.Now(),
	}
}

func TestAttemptRepositoryCreate(t *testing.T) {
	t.Run("正向测试: 创建尝试", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewAttemptRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `quiz_attempts`").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		if err := repo.Create(openAttempt()); err != nil {
			t.Errorf("创建尝试失败: %v", err)
		}
	})

	t.Run("反向测试: active key 唯一索引冲突映射为业务冲突", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewAttemptRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `quiz_attempts`").
			WillReturnError(&driver.MySQLError{Number: 1062, Message: "Duplicate entry '7-quiz-5'"})
		mock.ExpectRollback()

		err := repo.Create(openAttempt())
		if err != util.ErrConflict {
			t.Errorf("期望 ErrConflict, 实际 %v", err)
		}
	})
}

func TestAttemptRepositoryFinalizeSubmission(t *testing.T) {
	t.Run("正向测试: CAS 提交成功", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewAttemptRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE `quiz_attempts`").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		attempt := openAttempt()
		attempt.ID = 1
		attempt.Percentage = 85

		if err := repo.FinalizeSubmission(attempt); err != nil {
			t.Errorf("提交失败: %v", err)
		}
		if !attempt.IsComplete {
			t.Error("提交后应标记完成")
		}
		if attempt.ActiveKey != nil {
			t.Error("提交后 active key 应清空")
		}
		if attempt.CompletedAt == nil {
			t.Error("提交后应记录完成时间")
		}
	})

	t.Run("反向测试: 并发提交输家拿 ErrAlreadySubmitted", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewAttemptRepository(db)

		// WHERE is_complete = 0 未命中任何行
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE `quiz_attempts`").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		attempt := openAttempt()
		attempt.ID = 1

		err := repo.FinalizeSubmission(attempt)
		if err != util.ErrAlreadySubmitted {
			t.Errorf("期望 ErrAlreadySubmitted, 实际 %v", err)
		}
	})
}

func TestAttemptRepositoryFindByID(t *testing.T) {
	t.Run("反向测试: 不存在的尝试", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewAttemptRepository(db)

		mock.ExpectQuery("SELECT \\* FROM `quiz_attempts`").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.FindByID(99)
		if err != util.ErrAttemptNotFound {
			t.Errorf("期望 ErrAttemptNotFound, 实际 %v", err)
		}
	})
}
