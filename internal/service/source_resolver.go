package service

import (
	"math/rand"
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/repository"
	"quiz_engine_backend/internal/util"
)

// QuizSource 测验来源的和类型：单份测验或题库。
// 调用方只面对这个接口，不做运行时属性嗅探
type QuizSource interface {
	Kind() model.QuizSourceType
	Ref() uint
	CourseRef() uint
	UnitRef() uint
	TimeLimitMinutes() int
	PassingScore() float64
	Secure() bool
	// SampleSize 0 表示使用全部候选题
	SampleSize() int
	// Candidates 全部候选题快照，已带来源测验标记
	Candidates() []model.AttemptQuestion
}

type quizSource struct {
	quiz *model.Quiz
}

func (s *quizSource) Kind() model.QuizSourceType { return model.SourceQuiz }
func (s *quizSource) Ref() uint                  { return s.quiz.ID }
func (s *quizSource) CourseRef() uint            { return s.quiz.CourseID }
func (s *quizSource) UnitRef() uint              { return s.quiz.UnitID }
func (s *quizSource) TimeLimitMinutes() int      { return s.quiz.TimeLimitMinutes }
func (s *quizSource) PassingScore() float64      { return s.quiz.PassingScorePercent }
func (s *quizSource) Secure() bool               { return s.quiz.SecureMode }
func (s *quizSource) SampleSize() int            { return s.quiz.QuestionsPerAttempt }

func (s *quizSource) Candidates() []model.AttemptQuestion {
	return snapshotQuestions(s.quiz.ID, s.quiz.Questions)
}

type poolSource struct {
	pool *model.QuizPool
}

func (s *poolSource) Kind() model.QuizSourceType { return model.SourcePool }
func (s *poolSource) Ref() uint                  { return s.pool.ID }
func (s *poolSource) CourseRef() uint            { return s.pool.CourseID }
func (s *poolSource) UnitRef() uint              { return s.pool.UnitID }
func (s *poolSource) TimeLimitMinutes() int      { return s.pool.TimeLimitMinutes }
func (s *poolSource) PassingScore() float64      { return s.pool.PassingScorePercent }
func (s *poolSource) Secure() bool               { return s.pool.SecureMode }
func (s *poolSource) SampleSize() int            { return s.pool.QuestionsPerAttempt }

func (s *poolSource) Candidates() []model.AttemptQuestion {
	var all []model.AttemptQuestion
	for i := range s.pool.Quizzes {
		q := &s.pool.Quizzes[i]
		all = append(all, snapshotQuestions(q.ID, q.Questions)...)
	}
	return all
}

func snapshotQuestions(originQuizID uint, questions []model.Question) []model.AttemptQuestion {
	snaps := make([]model.AttemptQuestion, 0, len(questions))
	for i := range questions {
		q := &questions[i]
		opts, err := q.OptionList()
		if err != nil {
			continue
		}
		points := q.Points
		if points <= 0 {
			points = 1
		}
		snaps = append(snaps, model.AttemptQuestion{
			QuestionID:    q.ID,
			OriginQuizID:  originQuizID,
			Text:          q.Text,
			Options:       opts,
			CorrectOption: q.CorrectOption,
			Points:        points,
		})
	}
	return snaps
}

// SourceResolving 供尝试生命周期使用的来源解析入口
type SourceResolving interface {
	Resolve(st model.QuizSourceType, id uint) (QuizSource, error)
}

// SourceResolver 解析测验来源并构建冻结题目快照
type SourceResolver struct {
	Quizzes *repository.QuizRepository
}

func NewSourceResolver(quizzes *repository.QuizRepository) *SourceResolver {
	return &SourceResolver{Quizzes: quizzes}
}

func (r *SourceResolver) Resolve(st model.QuizSourceType, id uint) (QuizSource, error) {
	switch st {
	case model.SourceQuiz:
		quiz, err := r.Quizzes.FindQuizByID(id)
		if err != nil {
			return nil, err
		}
		return &quizSource{quiz: quiz}, nil
	case model.SourcePool:
		pool, err := r.Quizzes.FindPoolByID(id)
		if err != nil {
			return nil, err
		}
		return &poolSource{pool: pool}, nil
	default:
		return nil, util.ErrSourceNotFound
	}
}

// BuildSnapshot 无放回均匀抽样：洗牌后取前 n，任何题目不会出现两次，
// 抽取结果与题目原始顺序无关
func BuildSnapshot(src QuizSource) ([]model.AttemptQuestion, error) {
	candidates := src.Candidates()
	n := src.SampleSize()

	if n <= 0 || n >= len(candidates) {
		if n > len(candidates) {
			return nil, util.ErrInsufficientQuestions
		}
		// 整卷出题也洗牌，避免按原顺序可预测
		shuffled := make([]model.AttemptQuestion, len(candidates))
		copy(shuffled, candidates)
		rand.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		return shuffled, nil
	}

	shuffled := make([]model.AttemptQuestion, len(candidates))
	copy(shuffled, candidates)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n], nil
}
