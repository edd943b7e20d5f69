package service

import (
	"encoding/json"
	"fmt"
	"quiz_engine_backend/internal/config"
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/repository"
	"quiz_engine_backend/pkg/logger"

	"go.uber.org/zap"
)

// QuizService 测验与题库的创作接口。题目一经创建即视为不可变，
// 进行中的尝试只依赖自己的快照，不受后续改动影响
type QuizService struct {
	Quizzes *repository.QuizRepository
	cfg     *config.Config
}

func NewQuizService(quizzes *repository.QuizRepository, cfg *config.Config) *QuizService {
	return &QuizService{Quizzes: quizzes, cfg: cfg}
}

type QuestionInput struct {
	Text          string   `json:"text" binding:"required"`
	Options       []string `json:"options" binding:"required"`
	CorrectOption int      `json:"correctOption"`
	Points        int      `json:"points"`
}

type CreateQuizInput struct {
	CourseID            uint            `json:"courseId" binding:"required"`
	UnitID              uint            `json:"unitId" binding:"required"`
	Title               string          `json:"title" binding:"required,max=255"`
	Description         string          `json:"description"`
	TimeLimitMinutes    int             `json:"timeLimitMinutes"`
	PassingScorePercent float64         `json:"passingScorePercent"`
	QuestionsPerAttempt int             `json:"questionsPerAttempt"`
	SecureMode          *bool           `json:"secureMode"`
	Questions           []QuestionInput `json:"questions" binding:"required,min=1"`
}

func validateQuestion(q QuestionInput, idx int) error {
	if len(q.Options) < model.MinQuestionOptions || len(q.Options) > model.MaxQuestionOptions {
		return fmt.Errorf("question %d: option count must be between %d and %d",
			idx+1, model.MinQuestionOptions, model.MaxQuestionOptions)
	}
	if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
		return fmt.Errorf("question %d: correct option index %d out of range", idx+1, q.CorrectOption)
	}
	return nil
}

func (s *QuizService) CreateQuiz(input CreateQuizInput) (*model.Quiz, error) {
	for i, q := range input.Questions {
		if err := validateQuestion(q, i); err != nil {
			return nil, err
		}
	}
	if input.QuestionsPerAttempt < 0 || input.QuestionsPerAttempt > len(input.Questions) {
		return nil, fmt.Errorf("questions per attempt %d exceeds question count %d",
			input.QuestionsPerAttempt, len(input.Questions))
	}

	timeLimit := input.TimeLimitMinutes
	if timeLimit <= 0 {
		timeLimit = 30
	}
	passingScore := input.PassingScorePercent
	if passingScore <= 0 {
		passingScore = s.cfg.Quiz.DefaultPassingScore
	}
	secureMode := true
	if input.SecureMode != nil {
		secureMode = *input.SecureMode
	}

	quiz := &model.Quiz{
		CourseID:            input.CourseID,
		UnitID:              input.UnitID,
		Title:               input.Title,
		Description:         input.Description,
		TimeLimitMinutes:    timeLimit,
		PassingScorePercent: passingScore,
		QuestionsPerAttempt: input.QuestionsPerAttempt,
		SecureMode:          secureMode,
		IsActive:            true,
	}

	questions := make([]model.Question, 0, len(input.Questions))
	for i, q := range input.Questions {
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return nil, err
		}
		points := q.Points
		if points <= 0 {
			points = 1
		}
		questions = append(questions, model.Question{
			Text:          q.Text,
			Options:       opts,
			CorrectOption: q.CorrectOption,
			Points:        points,
			Order:         i,
		})
	}
	quiz.Questions = questions

	if err := s.Quizzes.CreateQuiz(quiz); err != nil {
		return nil, err
	}

	logger.Log.Info("quiz created",
		zap.Uint("quizId", quiz.ID),
		zap.Uint("courseId", quiz.CourseID),
		zap.Int("questions", len(questions)))
	return quiz, nil
}

type CreatePoolInput struct {
	CourseID            uint    `json:"courseId" binding:"required"`
	UnitID              uint    `json:"unitId" binding:"required"`
	Title               string  `json:"title" binding:"required,max=255"`
	QuestionsPerAttempt int     `json:"questionsPerAttempt" binding:"required"`
	TimeLimitMinutes    int     `json:"timeLimitMinutes"`
	PassingScorePercent float64 `json:"passingScorePercent"`
	SecureMode          *bool   `json:"secureMode"`
	QuizIDs             []uint  `json:"quizIds"`
}

func (s *QuizService) CreatePool(input CreatePoolInput) (*model.QuizPool, error) {
	if input.QuestionsPerAttempt < model.PoolMinQuestionsPerAttempt ||
		input.QuestionsPerAttempt > model.PoolMaxQuestionsPerAttempt {
		return nil, fmt.Errorf("questions per attempt must be between %d and %d",
			model.PoolMinQuestionsPerAttempt, model.PoolMaxQuestionsPerAttempt)
	}

	timeLimit := input.TimeLimitMinutes
	if timeLimit <= 0 {
		timeLimit = 30
	}
	passingScore := input.PassingScorePercent
	if passingScore <= 0 {
		passingScore = s.cfg.Quiz.DefaultPassingScore
	}
	secureMode := true
	if input.SecureMode != nil {
		secureMode = *input.SecureMode
	}

	pool := &model.QuizPool{
		CourseID:            input.CourseID,
		UnitID:              input.UnitID,
		Title:               input.Title,
		QuestionsPerAttempt: input.QuestionsPerAttempt,
		TimeLimitMinutes:    timeLimit,
		PassingScorePercent: passingScore,
		SecureMode:          secureMode,
		IsActive:            true,
	}
	if err := s.Quizzes.CreatePool(pool); err != nil {
		return nil, err
	}

	for _, quizID := range input.QuizIDs {
		if err := s.Quizzes.AttachQuizToPool(pool.ID, quizID); err != nil {
			return nil, err
		}
	}

	logger.Log.Info("quiz pool created",
		zap.Uint("poolId", pool.ID),
		zap.Int("contributingQuizzes", len(input.QuizIDs)))
	return pool, nil
}

func (s *QuizService) AttachQuiz(poolID, quizID uint) error {
	return s.Quizzes.AttachQuizToPool(poolID, quizID)
}

func (s *QuizService) ListByCourse(courseID uint, page, limit int) ([]model.Quiz, int64, error) {
	return s.Quizzes.ListQuizzesByCourse(courseID, page, limit)
}

func (s *QuizService) SetActive(id uint, active bool) error {
	return s.Quizzes.SetQuizActive(id, active)
}
