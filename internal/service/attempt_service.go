package service

import (
	"encoding/json"
	"math"
	"quiz_engine_backend/internal/config"
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/util"
	"quiz_engine_backend/pkg/logger"
	"quiz_engine_backend/pkg/monitoring"
	"time"

	"go.uber.org/zap"
)

// 外部协作系统只以接口形式出现：选课、单元进度、加试授权、结果通知。
// 引擎不实现这些系统，也不通过隐藏单例去找它们
type EnrollmentChecker interface {
	IsEnrolled(studentID, courseID uint) (bool, error)
}

type ProgressChecker interface {
	AllVideosWatched(studentID, unitID uint) (bool, error)
}

type ExtraAttemptGranter interface {
	GrantedExtraAttempts(studentID, unitID uint) (int, error)
}

// AttemptSummary 评分结束后推给通知系统的摘要
type AttemptSummary struct {
	StudentID     uint    `json:"studentId"`
	CourseID      uint    `json:"courseId"`
	UnitID        uint    `json:"unitId"`
	Score         float64 `json:"score"`
	MaxScore      float64 `json:"maxScore"`
	Percentage    float64 `json:"percentage"`
	Passed        bool    `json:"passed"`
	AutoSubmitted bool    `json:"autoSubmitted"`
}

type Notifier interface {
	OnQuizPassed(studentID, unitID uint)
	OnAttemptGraded(attemptID uint, summary AttemptSummary)
}

// AttemptStore 尝试记录的持久化接口，由 gorm 仓库实现
type AttemptStore interface {
	Create(attempt *model.QuizAttempt) error
	FindByID(id uint) (*model.QuizAttempt, error)
	FindPassed(studentID uint, st model.QuizSourceType, sourceID uint) (*model.QuizAttempt, error)
	FindLatestFailed(studentID uint, st model.QuizSourceType, sourceID uint) (*model.QuizAttempt, error)
	CountCompleted(studentID uint, st model.QuizSourceType, sourceID uint) (int64, error)
	ListByStudent(studentID uint, page, limit int) ([]model.QuizAttempt, int64, error)
	FinalizeSubmission(attempt *model.QuizAttempt) error
}

// ScopeChecker 教师是否有权查看某学生某课程
type ScopeChecker interface {
	CanViewStudentCourse(teacherID, studentID, courseID uint) (bool, error)
}

type AttemptService struct {
	Attempts   AttemptStore
	Resolver   SourceResolving
	Locks      *LockService
	Violations *ViolationService
	Enrollment EnrollmentChecker
	Progress   ProgressChecker
	Grants     ExtraAttemptGranter
	Notifier   Notifier
	Scope      ScopeChecker
	cfg        *config.Config
}

func NewAttemptService(
	attempts AttemptStore,
	resolver SourceResolving,
	locks *LockService,
	violations *ViolationService,
	enrollment EnrollmentChecker,
	progress ProgressChecker,
	grants ExtraAttemptGranter,
	notifier Notifier,
	scope ScopeChecker,
	cfg *config.Config,
) *AttemptService {
	return &AttemptService{
		Attempts:   attempts,
		Resolver:   resolver,
		Locks:      locks,
		Violations: violations,
		Enrollment: enrollment,
		Progress:   progress,
		Grants:     grants,
		Notifier:   notifier,
		Scope:      scope,
		cfg:        cfg,
	}
}

func (s *AttemptService) cooldown() time.Duration {
	hours := 8
	if s.cfg != nil && s.cfg.Quiz.CooldownHours > 0 {
		hours = s.cfg.Quiz.CooldownHours
	}
	return time.Duration(hours) * time.Hour
}

func (s *AttemptService) submitGrace() time.Duration {
	seconds := 30
	if s.cfg != nil && s.cfg.Quiz.SubmitGraceSeconds > 0 {
		seconds = s.cfg.Quiz.SubmitGraceSeconds
	}
	return time.Duration(seconds) * time.Second
}

// CreateAttempt 按资格阶梯依次校验后创建尝试。
// 每一级失败都有独立的错误分类，前端据此给出不同提示
func (s *AttemptService) CreateAttempt(studentID uint, st model.QuizSourceType, sourceID uint) (*model.QuizAttempt, error) {
	// 1. 解析来源
	src, err := s.Resolver.Resolve(st, sourceID)
	if err != nil {
		return nil, err
	}

	// 2. 选课校验
	enrolled, err := s.Enrollment.IsEnrolled(studentID, src.CourseRef())
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.ErrNotEnrolled
	}

	// 3. 单元视频看完才允许出卷
	watched, err := s.Progress.AllVideosWatched(studentID, src.UnitRef())
	if err != nil {
		return nil, err
	}
	if !watched {
		return nil, util.ErrUnitNotReady
	}

	// 4. 已通过则不再开卷
	passed, err := s.Attempts.FindPassed(studentID, st, sourceID)
	if err != nil {
		return nil, err
	}
	if passed != nil {
		return nil, &util.AlreadyPassedError{AttemptID: passed.ID}
	}

	// 5. 冷却期：距最近一次失败尝试不足 8 小时
	lastFailed, err := s.Attempts.FindLatestFailed(studentID, st, sourceID)
	if err != nil {
		return nil, err
	}
	if lastFailed != nil && lastFailed.CompletedAt != nil {
		elapsed := time.Since(*lastFailed.CompletedAt)
		if elapsed < s.cooldown() {
			remaining := s.cooldown() - elapsed
			return nil, &util.CooldownActiveError{
				RemainingHours: int(math.Ceil(remaining.Hours())),
				LastScore:      lastFailed.Percentage,
			}
		}
	}

	// 6. 尝试上限 = 基础 1 次 + 外部加试授权 + 各层级累计解锁次数
	lock, err := s.Locks.Status(studentID, st, sourceID)
	if err != nil {
		return nil, err
	}
	extra, err := s.Grants.GrantedExtraAttempts(studentID, src.UnitRef())
	if err != nil {
		return nil, err
	}
	limit := 1 + extra
	if lock != nil {
		limit += lock.UnlockTotal()
	}
	completed, err := s.Attempts.CountCompleted(studentID, st, sourceID)
	if err != nil {
		return nil, err
	}
	if completed >= int64(limit) {
		return nil, util.ErrAttemptLimitReached
	}

	// 7. 锁定门禁
	if lock != nil && lock.IsLocked {
		return nil, &util.QuizLockedError{Reason: lock.FailureReason, Tier: lock.AuthLevel}
	}

	// 8. 冻结题目快照并落库
	questions, err := BuildSnapshot(src)
	if err != nil {
		return nil, err
	}

	settings := model.SecuritySettings{
		FullscreenRequired:    true,
		TabSwitchesAllowed:    s.cfg.Quiz.TabSwitchesAllowed,
		GraceSeconds:          s.cfg.Quiz.ViolationGraceSecond,
		AutoSubmitOnViolation: true,
	}
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return nil, err
	}

	activeKey := model.ActiveKeyFor(studentID, st, sourceID)
	attempt := &model.QuizAttempt{
		StudentID:           studentID,
		CourseID:            src.CourseRef(),
		UnitID:              src.UnitRef(),
		SourceType:          st,
		SourceID:            sourceID,
		ActiveKey:           &activeKey,
		SettingsJSON:        settingsJSON,
		TimeLimitMinutes:    src.TimeLimitMinutes(),
		PassingScorePercent: src.PassingScore(),
		SecureMode:          src.Secure(),
		StartedAt:           time.Now(),
	}
	if err := attempt.SetQuestions(questions); err != nil {
		return nil, err
	}

	if err := s.Attempts.Create(attempt); err != nil {
		return nil, err
	}

	monitoring.AttemptsCreated.Inc()
	logger.Log.Info("attempt created",
		zap.Uint("attemptId", attempt.ID),
		zap.Uint("studentId", studentID),
		zap.String("sourceType", string(st)),
		zap.Uint("sourceId", sourceID),
		zap.Int("questions", len(questions)))
	return attempt, nil
}

// AttemptQuestionView 下发给学生的题目，正确答案字段已剥离
type AttemptQuestionView struct {
	QuestionID uint     `json:"questionId"`
	Text       string   `json:"text"`
	Options    []string `json:"options"`
	Points     int      `json:"points"`
}

type AttemptView struct {
	ID               uint                  `json:"id"`
	SourceType       model.QuizSourceType  `json:"sourceType"`
	SourceID         uint                  `json:"sourceId"`
	Questions        []AttemptQuestionView `json:"questions"`
	Settings         json.RawMessage       `json:"securitySettings"`
	StartedAt        time.Time             `json:"startedAt"`
	EndsAt           time.Time             `json:"endsAt"`
	RemainingSeconds int64                 `json:"remainingSeconds"`
	IsComplete       bool                  `json:"isComplete"`
	TimeLimitMinutes int                   `json:"timeLimitMinutes"`
	PassingScore     float64               `json:"passingScore"`

	// 已完成的尝试才回传成绩
	Score          *float64 `json:"score,omitempty"`
	MaxScore       *float64 `json:"maxScore,omitempty"`
	Percentage     *float64 `json:"percentage,omitempty"`
	Passed         *bool    `json:"passed,omitempty"`
	PenaltyApplied *float64 `json:"penaltyApplied,omitempty"`
}

// GetAttempt 学生本人或其任课教师可见；下发的题目一律剥掉正确选项
func (s *AttemptService) GetAttempt(attemptID uint, requester *util.Claims) (*AttemptView, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeView(attempt, requester); err != nil {
		return nil, err
	}

	questions, err := attempt.Questions()
	if err != nil {
		return nil, err
	}

	views := make([]AttemptQuestionView, 0, len(questions))
	for i := range questions {
		q := &questions[i]
		views = append(views, AttemptQuestionView{
			QuestionID: q.QuestionID,
			Text:       q.Text,
			Options:    q.Options,
			Points:     q.Points,
		})
	}

	now := time.Now()
	view := &AttemptView{
		ID:               attempt.ID,
		SourceType:       attempt.SourceType,
		SourceID:         attempt.SourceID,
		Questions:        views,
		Settings:         attempt.SettingsJSON,
		StartedAt:        attempt.StartedAt,
		EndsAt:           attempt.EndsAt(),
		RemainingSeconds: attempt.RemainingSeconds(now),
		IsComplete:       attempt.IsComplete,
		TimeLimitMinutes: attempt.TimeLimitMinutes,
		PassingScore:     attempt.PassingScorePercent,
	}

	if attempt.IsComplete {
		view.Score = &attempt.Score
		view.MaxScore = &attempt.MaxScore
		view.Percentage = &attempt.Percentage
		view.Passed = &attempt.Passed
		view.PenaltyApplied = &attempt.PenaltyApplied
	}

	return view, nil
}

func (s *AttemptService) authorizeView(attempt *model.QuizAttempt, requester *util.Claims) error {
	switch requester.Role {
	case model.Student:
		if attempt.StudentID != requester.UserID {
			return util.ErrPermissionDenied
		}
	case model.Admin:
		// 管理员直接放行
	default:
		ok, err := s.Scope.CanViewStudentCourse(requester.UserID, attempt.StudentID, attempt.CourseID)
		if err != nil {
			return err
		}
		if !ok {
			return util.ErrPermissionDenied
		}
	}
	return nil
}

// SubmitResult 提交后的评分结果
type SubmitResult struct {
	AttemptID      uint    `json:"attemptId"`
	Score          float64 `json:"score"`
	MaxScore       float64 `json:"maxScore"`
	RawPercentage  float64 `json:"rawPercentage"`
	PenaltyApplied float64 `json:"penaltyApplied"`
	Percentage     float64 `json:"percentage"`
	Passed         bool    `json:"passed"`
	PassingScore   float64 `json:"passingScore"`
	TimeExceeded   bool    `json:"timeExceeded"`
	Locked         bool    `json:"locked"`
}

// SubmitAttempt 评分、扣分、落锁一条龙。对 is_complete 的 CAS 保证
// 并发提交恰好一次成功；评分结果与违规副作用都只发生在赢家这边
func (s *AttemptService) SubmitAttempt(attemptID, studentID uint, answers []model.AttemptAnswer, sig SecuritySignals, userAgent, ip string) (*SubmitResult, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.StudentID != studentID {
		return nil, util.ErrPermissionDenied
	}
	if attempt.IsComplete {
		return nil, util.ErrAlreadySubmitted
	}

	now := time.Now()
	// 迟交策略：宽限期内照常收卷；超过宽限仍然评分（不丢弃学生作答），
	// 但标记超时，失败时以 TIME_EXCEEDED 落锁
	timeExceeded := now.After(attempt.EndsAt().Add(s.submitGrace()))

	questions, err := attempt.Questions()
	if err != nil {
		return nil, err
	}

	score, maxScore := GradeAnswers(questions, answers)
	rawPercentage := Percentage(score, maxScore)

	var penalty float64
	if attempt.SecureMode {
		penalty = SecureModePenalty(sig)
	} else {
		penalty = PracticeModePenalty(len(sig.Events), sig.TabSwitchCount)
	}
	finalPercentage := FinalPercentage(rawPercentage, penalty)
	passed := finalPercentage >= attempt.PassingScorePercent

	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}

	attempt.AnswersJSON = answersJSON
	attempt.Score = score
	attempt.MaxScore = maxScore
	attempt.RawScore = score
	attempt.RawPercentage = rawPercentage
	attempt.PenaltyApplied = penalty
	attempt.Percentage = finalPercentage
	attempt.Passed = passed
	attempt.AutoSubmitted = sig.AutoSubmitted
	attempt.TabSwitchCount = sig.TabSwitchCount
	attempt.TimeExceeded = timeExceeded

	// 并发提交在这里分出胜负；输家直接拿 ErrAlreadySubmitted 返回，
	// 不产生任何副作用
	if err := s.Attempts.FinalizeSubmission(attempt); err != nil {
		return nil, err
	}

	violationCount := s.Violations.RecordSubmissionSignals(attempt, sig, userAgent, ip)

	// 安全违规达到阈值时，即便分数过线也要落锁待管理员复核
	securityTriggered := sig.AutoSubmitted && (sig.TabSwitchCount >= 3 || sig.FullscreenExitCount >= 3)
	locked := false
	switch {
	case securityTriggered:
		if err := s.Locks.HandleFailure(attempt, model.ReasonSecurityViolation); err != nil {
			logger.Log.Error("lock on security violation failed", zap.Uint("attemptId", attempt.ID), zap.Error(err))
		} else {
			locked = true
		}
	case !passed && timeExceeded:
		if err := s.Locks.HandleFailure(attempt, model.ReasonTimeExceeded); err != nil {
			logger.Log.Error("lock on timeout failed", zap.Uint("attemptId", attempt.ID), zap.Error(err))
		} else {
			locked = true
		}
	case !passed:
		if err := s.Locks.HandleFailure(attempt, model.ReasonBelowPassingScore); err != nil {
			logger.Log.Error("lock on failing grade failed", zap.Uint("attemptId", attempt.ID), zap.Error(err))
		} else {
			locked = true
		}
	default:
		if err := s.Locks.HandlePass(attempt); err != nil {
			logger.Log.Error("clear lock on pass failed", zap.Uint("attemptId", attempt.ID), zap.Error(err))
		}
	}

	summary := AttemptSummary{
		StudentID:     attempt.StudentID,
		CourseID:      attempt.CourseID,
		UnitID:        attempt.UnitID,
		Score:         score,
		MaxScore:      maxScore,
		Percentage:    finalPercentage,
		Passed:        passed,
		AutoSubmitted: sig.AutoSubmitted,
	}
	s.Notifier.OnAttemptGraded(attempt.ID, summary)
	if passed {
		s.Notifier.OnQuizPassed(attempt.StudentID, attempt.UnitID)
	}

	monitoring.AttemptsGraded.WithLabelValues(boolLabel(passed)).Inc()
	logger.Log.Info("attempt graded",
		zap.Uint("attemptId", attempt.ID),
		zap.Float64("rawPercentage", rawPercentage),
		zap.Float64("penalty", penalty),
		zap.Float64("percentage", finalPercentage),
		zap.Bool("passed", passed),
		zap.Int("violations", violationCount))

	return &SubmitResult{
		AttemptID:      attempt.ID,
		Score:          score,
		MaxScore:       maxScore,
		RawPercentage:  rawPercentage,
		PenaltyApplied: penalty,
		Percentage:     finalPercentage,
		Passed:         passed,
		PassingScore:   attempt.PassingScorePercent,
		TimeExceeded:   timeExceeded,
		Locked:         locked,
	}, nil
}

// ReportViolation 作答期间的实时违规上报
func (s *AttemptService) ReportViolation(attemptID, studentID uint, raw RawSignalEvent, userAgent, ip string) (*model.SecurityEvent, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.StudentID != studentID {
		return nil, util.ErrPermissionDenied
	}
	if attempt.IsComplete {
		return nil, util.ErrAlreadySubmitted
	}

	return s.Violations.RecordLiveEvent(attempt, raw, userAgent, ip)
}

func (s *AttemptService) ListAttempts(studentID uint, page, limit int) ([]model.QuizAttempt, int64, error) {
	return s.Attempts.ListByStudent(studentID, page, limit)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
