package service

import (
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAttemptStore struct {
	attempts map[uint]*model.QuizAttempt
	nextID   uint
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{attempts: make(map[uint]*model.QuizAttempt), nextID: 1}
}

func (f *fakeAttemptStore) Create(attempt *model.QuizAttempt) error {
	if attempt.ActiveKey != nil {
		for _, a := range f.attempts {
			if a.ActiveKey != nil && *a.ActiveKey == *attempt.ActiveKey {
				return util.ErrConflict
			}
		}
	}
	attempt.ID = f.nextID
	f.nextID++
	stored := *attempt
	f.attempts[attempt.ID] = &stored
	return nil
}

func (f *fakeAttemptStore) FindByID(id uint) (*model.QuizAttempt, error) {
	a, ok := f.attempts[id]
	if !ok {
		return nil, util.ErrAttemptNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeAttemptStore) FindPassed(studentID uint, st model.QuizSourceType, sourceID uint) (*model.QuizAttempt, error) {
	for _, a := range f.attempts {
		if a.StudentID == studentID && a.SourceType == st && a.SourceID == sourceID && a.Passed {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeAttemptStore) FindLatestFailed(studentID uint, st model.QuizSourceType, sourceID uint) (*model.QuizAttempt, error) {
	var latest *model.QuizAttempt
	for _, a := range f.attempts {
		if a.StudentID != studentID || a.SourceType != st || a.SourceID != sourceID {
			continue
		}
		if !a.IsComplete || a.Passed {
			continue
		}
		if latest == nil || a.CompletedAt.After(*latest.CompletedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeAttemptStore) CountCompleted(studentID uint, st model.QuizSourceType, sourceID uint) (int64, error) {
	var count int64
	for _, a := range f.attempts {
		if a.StudentID == studentID && a.SourceType == st && a.SourceID == sourceID && a.IsComplete {
			count++
		}
	}
	return count, nil
}

func (f *fakeAttemptStore) ListByStudent(studentID uint, page, limit int) ([]model.QuizAttempt, int64, error) {
	var out []model.QuizAttempt
	for _, a := range f.attempts {
		if a.StudentID == studentID {
			out = append(out, *a)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeAttemptStore) FinalizeSubmission(attempt *model.QuizAttempt) error {
	stored, ok := f.attempts[attempt.ID]
	if !ok {
		return util.ErrAttemptNotFound
	}
	if stored.IsComplete {
		return util.ErrAlreadySubmitted
	}
	now := time.Now()
	attempt.IsComplete = true
	attempt.ActiveKey = nil
	attempt.CompletedAt = &now
	*stored = *attempt
	return nil
}

// stubSource 固定属性的测验来源
type stubSource struct {
	timeLimit int
	passing   float64
	secure    bool
	sample    int
	questions []model.AttemptQuestion
}

func (s *stubSource) Kind() model.QuizSourceType { return model.SourceQuiz }
func (s *stubSource) Ref() uint                  { return 5 }
func (s *stubSource) CourseRef() uint            { return 3 }
func (s *stubSource) UnitRef() uint              { return 11 }
func (s *stubSource) TimeLimitMinutes() int      { return s.timeLimit }
func (s *stubSource) PassingScore() float64      { return s.passing }
func (s *stubSource) Secure() bool               { return s.secure }
func (s *stubSource) SampleSize() int            { return s.sample }

func (s *stubSource) Candidates() []model.AttemptQuestion { return s.questions }

type fakeResolver struct {
	src QuizSource
	err error
}

func (f *fakeResolver) Resolve(st model.QuizSourceType, id uint) (QuizSource, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.src, nil
}

// fakeFacts 同时扮演选课、进度和加试授权三个协作方
type fakeFacts struct {
	enrolled bool
	watched  bool
	extra    int
}

func (f *fakeFacts) IsEnrolled(studentID, courseID uint) (bool, error)        { return f.enrolled, nil }
func (f *fakeFacts) AllVideosWatched(studentID, unitID uint) (bool, error)    { return f.watched, nil }
func (f *fakeFacts) GrantedExtraAttempts(studentID, unitID uint) (int, error) { return f.extra, nil }

type fakeNotifier struct {
	passedUnits []uint
	graded      []AttemptSummary
}

func (f *fakeNotifier) OnQuizPassed(studentID, unitID uint) {
	f.passedUnits = append(f.passedUnits, unitID)
}

func (f *fakeNotifier) OnAttemptGraded(attemptID uint, summary AttemptSummary) {
	f.graded = append(f.graded, summary)
}

type fakeScope struct{ allow bool }

func (f *fakeScope) CanViewStudentCourse(teacherID, studentID, courseID uint) (bool, error) {
	return f.allow, nil
}

type attemptFixture struct {
	svc       *AttemptService
	attempts  *fakeAttemptStore
	lockStore *fakeLockStore
	facts     *fakeFacts
	notifier  *fakeNotifier
	scope     *fakeScope
	source    *stubSource
}

func newAttemptFixture() *attemptFixture {
	cfg := testQuizConfig()
	attempts := newFakeAttemptStore()
	lockStore := newFakeLockStore()
	facts := &fakeFacts{enrolled: true, watched: true}
	notifier := &fakeNotifier{}
	scope := &fakeScope{}
	source := &stubSource{
		timeLimit: 30,
		passing:   70,
		secure:    true,
		questions: []model.AttemptQuestion{
			{QuestionID: 1, CorrectOption: 0, Points: 1, Options: []string{"a", "b"}},
			{QuestionID: 2, CorrectOption: 1, Points: 1, Options: []string{"a", "b"}},
			{QuestionID: 3, CorrectOption: 0, Points: 1, Options: []string{"a", "b"}},
			{QuestionID: 4, CorrectOption: 1, Points: 1, Options: []string{"a", "b"}},
		},
	}

	locks := NewLockService(lockStore, cfg)
	violations := NewViolationService(newFakeViolationStore(), nil, nil)

	svc := NewAttemptService(attempts, &fakeResolver{src: source}, locks, violations,
		facts, facts, facts, notifier, scope, cfg)

	return &attemptFixture{
		svc:       svc,
		attempts:  attempts,
		lockStore: lockStore,
		facts:     facts,
		notifier:  notifier,
		scope:     scope,
		source:    source,
	}
}

const studentID = uint(7)

func TestCreateAttempt(t *testing.T) {
	t.Run("冻结题目快照并设置 active key", func(t *testing.T) {
		fx := newAttemptFixture()
		attempt, err := fx.svc.CreateAttempt(studentID, model.SourceQuiz, 5)
		require.NoError(t, err)

		questions, err := attempt.Questions()
		require.NoError(t, err)
		assert.Len(t, questions, 4)
		require.NotNil(t, attempt.ActiveKey)
		assert.Equal(t, "7-quiz-5", *attempt.ActiveKey)
		assert.Equal(t, 30, attempt.TimeLimitMinutes)
		assert.Equal(t, 70.0, attempt.PassingScorePercent)
		assert.True(t, attempt.SecureMode)
	})

	t.Run("未选课拒绝", func(t *testing.T) {
		fx := newAttemptFixture()
		fx.facts.enrolled = false
		_, err := fx.svc.CreateAttempt(studentID, model.SourceQuiz, 5)
		assert.ErrorIs(t, err, util.ErrNotEnrolled)
	})

	t.Run("视频未看完拒绝", func(t *testing.T) {
		fx := newAttemptFixture()
		fx.facts.watched = false
		_, err := fx.svc.CreateAttempt(studentID, model.SourceQuiz, 5)
		assert.ErrorIs(t, err, util.ErrUnitNotReady)
	})

	t.Run("并发开卷只成功一次", func(t *testing.T) {
		fx := newAttemptFixture()
		_, err := fx.svc.CreateAttempt(studentID, model.SourceQuiz, 5)
		require.NoError(t, err)

		_, err = fx.svc.CreateAttempt(studentID, model.SourceQuiz, 5)
		assert.ErrorIs(t, err, util.ErrConflict)
	})

	t.Run("已通过不可再开", func(t *testing.T) {
		fx := newAttemptFixture()
		passed := &model.QuizAttempt{
			StudentID: studentID, SourceType: model.SourceQuiz, SourceID: 5,
			IsComplete: true, Passed: true,
		}
		require.NoError(t, fx.attempts.Create(passed))

		_, err := fx.svc.CreateAttempt(studentID, model.SourceQuiz, 5)
		var alreadyPassed *util.AlreadyPassedError
		require.ErrorAs(t, err, &alreadyPassed)
		assert.Equal(t, passed.ID, alreadyPassed.AttemptID)
	})

	t.Run("冷却期内拒绝并报剩余小时", func(t *testing.T) {
		fx := newAttemptFixture()
		completedAt := time.Now().Add(-2 * time.Hour)
		failed := &model.QuizAttempt{
			StudentID: studentID, SourceType: model.SourceQuiz, SourceID: 5,
			IsComplete: true, Passed: false, Percentage: 55,
			CompletedAt: &completedAt,
		}
		require.NoError(t, fx.attempts.Create(failed))
		// 留出解锁名额，先考上限之前的冷却分支
		fx.facts.extra = 1

		_, err := fx.svc.CreateAttempt(studentID, model.SourceQuiz, 5)
		var cooldown *util.CooldownActiveError
		require.ErrorAs(t, err, &cooldown)
		assert.Equal(t, 6, cooldown.RemainingHours)
		assert.Equal(t, 55.0, cooldown.LastScore)
	})

	t.Run("次数上限为基础一次加解锁与加试", func(t *testing.T) {
		fx := newAttemptFixture()
		completedAt := time.Now().Add(-24 * time.Hour)
		failed := &model.QuizAttempt{
			StudentID: studentID, SourceType: model.SourceQuiz, SourceID: 5,
			IsComplete: true, Passed: false,
			CompletedAt: &completedAt,
		}
		require.NoError(t, fx.attempts.Create(failed))

		// 已用掉基础 1 次，没有任何授权
		_, err := fx.svc.CreateAttempt(studentID, model.SourceQuiz, 5)
		assert.ErrorIs(t, err, util.ErrAttemptLimitReached)

		// 外部加试授权放行
		fx.facts.extra = 1
		_, err = fx.svc.CreateAttempt(studentID, model.SourceQuiz, 5)
		assert.NoError(t, err)
	})

	t.Run("锁定时拒绝并报层级", func(t *testing.T) {
		fx := newAttemptFixture()
		require.NoError(t, fx.svc.Locks.HandleFailure(&model.QuizAttempt{
			StudentID: studentID, SourceType: model.SourceQuiz, SourceID: 5,
			Percentage: 40, PassingScorePercent: 70,
		}, model.ReasonBelowPassingScore))
		fx.facts.extra = 2

		_, err := fx.svc.CreateAttempt(studentID, model.SourceQuiz, 5)
		var locked *util.QuizLockedError
		require.ErrorAs(t, err, &locked)
		assert.Equal(t, model.ReasonBelowPassingScore, locked.Reason)
		assert.Equal(t, model.LevelTeacher, locked.Tier)
	})

	t.Run("解锁后次数上限随之增加", func(t *testing.T) {
		fx := newAttemptFixture()
		completedAt := time.Now().Add(-24 * time.Hour)
		failed := &model.QuizAttempt{
			StudentID: studentID, SourceType: model.SourceQuiz, SourceID: 5,
			IsComplete: true, Passed: false, Percentage: 40,
			CompletedAt: &completedAt,
		}
		require.NoError(t, fx.attempts.Create(failed))
		require.NoError(t, fx.svc.Locks.HandleFailure(failed, model.ReasonBelowPassingScore))

		lock, _ := fx.lockStore.Find(studentID, model.SourceQuiz, 5)
		_, err := fx.svc.Locks.Unlock(lock.ID, claims(20, model.Teacher), "再给一次机会", "")
		require.NoError(t, err)

		_, err = fx.svc.CreateAttempt(studentID, model.SourceQuiz, 5)
		assert.NoError(t, err)
	})
}

func TestSubmitAttempt(t *testing.T) {
	answersFor := func(correct int) []model.AttemptAnswer {
		answers := []model.AttemptAnswer{
			{QuestionID: 1, SelectedOption: intPtr(0)},
			{QuestionID: 2, SelectedOption: intPtr(1)},
			{QuestionID: 3, SelectedOption: intPtr(0)},
			{QuestionID: 4, SelectedOption: intPtr(1)},
		}
		for i := correct; i < len(answers); i++ {
			answers[i].SelectedOption = intPtr(1 - *answers[i].SelectedOption)
		}
		return answers
	}

	t.Run("通过后清锁并发出通知", func(t *testing.T) {
		fx := newAttemptFixture()
		attempt, err := fx.svc.CreateAttempt(studentID, model.SourceQuiz, 5)
		require.NoError(t, err)

		result, err := fx.svc.SubmitAttempt(attempt.ID, studentID, answersFor(4), SecuritySignals{}, "ua", "::1")
		require.NoError(t, err)
		assert.True(t, result.Passed)
		assert.Equal(t, 100.0, result.Percentage)
		assert.False(t, result.Locked)

		require.Len(t, fx.notifier.passedUnits, 1)
		assert.Equal(t, uint(11), fx.notifier.passedUnits[0])
		require.Len(t, fx.notifier.graded, 1)
		assert.True(t, fx.notifier.graded[0].Passed)
	})

	t.Run("不及格落锁", func(t *testing.T) {
		fx := newAttemptFixture()
		attempt, err := fx.svc.CreateAttempt(studentID, model.SourceQuiz, 5)
		require.NoError(t, err)

		result, err := fx.svc.SubmitAttempt(attempt.ID, studentID, answersFor(1), SecuritySignals{}, "ua", "::1")
		require.NoError(t, err)
		assert.False(t, result.Passed)
		assert.Equal(t, 25.0, result.Percentage)
		assert.True(t, result.Locked)

		lock, _ := fx.lockStore.Find(studentID, model.SourceQuiz, 5)
		require.NotNil(t, lock)
		assert.True(t, lock.IsLocked)
		assert.Equal(t, model.ReasonBelowPassingScore, lock.FailureReason)
		assert.Empty(t, fx.notifier.passedUnits)
	})

	t.Run("监考扣分可把及格分拉到不及格", func(t *testing.T) {
		fx := newAttemptFixture()
		attempt, err := fx.svc.CreateAttempt(studentID, model.SourceQuiz, 5)
		require.NoError(t, err)

		// 全对 100 分，但强制交卷 + 切屏超限扣 25
		sig := SecuritySignals{AutoSubmitted: true, TabSwitchCount: 4}
		result, err := fx.svc.SubmitAttempt(attempt.ID, studentID, answersFor(4), sig, "ua", "::1")
		require.NoError(t, err)
		assert.Equal(t, 100.0, result.RawPercentage)
		assert.Equal(t, 25.0, result.PenaltyApplied)
		assert.Equal(t, 75.0, result.Percentage)
		// 及格了，但安全违规锁优先
		assert.True(t, result.Passed)
		assert.True(t, result.Locked)

		lock, _ := fx.lockStore.Find(studentID, model.SourceQuiz, 5)
		assert.Equal(t, model.ReasonSecurityViolation, lock.FailureReason)
	})

	t.Run("重复提交第二次拿冲突", func(t *testing.T) {
		fx := newAttemptFixture()
		attempt, err := fx.svc.CreateAttempt(studentID, model.SourceQuiz, 5)
		require.NoError(t, err)

		_, err = fx.svc.SubmitAttempt(attempt.ID, studentID, answersFor(4), SecuritySignals{}, "ua", "::1")
		require.NoError(t, err)

		_, err = fx.svc.SubmitAttempt(attempt.ID, studentID, answersFor(4), SecuritySignals{}, "ua", "::1")
		assert.ErrorIs(t, err, util.ErrAlreadySubmitted)
		// 副作用只发生一次
		assert.Len(t, fx.notifier.graded, 1)
	})

	t.Run("他人尝试不可提交", func(t *testing.T) {
		fx := newAttemptFixture()
		attempt, err := fx.svc.CreateAttempt(studentID, model.SourceQuiz, 5)
		require.NoError(t, err)

		_, err = fx.svc.SubmitAttempt(attempt.ID, studentID+1, answersFor(4), SecuritySignals{}, "ua", "::1")
		assert.ErrorIs(t, err, util.ErrPermissionDenied)
	})

	t.Run("超过宽限期仍评分但标记超时", func(t *testing.T) {
		fx := newAttemptFixture()
		attempt, err := fx.svc.CreateAttempt(studentID, model.SourceQuiz, 5)
		require.NoError(t, err)

		// 把开卷时间拨回到超出时限加宽限之外
		stored := fx.attempts.attempts[attempt.ID]
		stored.StartedAt = time.Now().Add(-31 * time.Minute)

		result, err := fx.svc.SubmitAttempt(attempt.ID, studentID, answersFor(1), SecuritySignals{}, "ua", "::1")
		require.NoError(t, err)
		assert.True(t, result.TimeExceeded)
		assert.Equal(t, 25.0, result.Percentage)

		lock, _ := fx.lockStore.Find(studentID, model.SourceQuiz, 5)
		assert.Equal(t, model.ReasonTimeExceeded, lock.FailureReason)
	})
}

func TestGetAttempt(t *testing.T) {
	t.Run("下发题目不含正确答案", func(t *testing.T) {
		fx := newAttemptFixture()
		attempt, err := fx.svc.CreateAttempt(studentID, model.SourceQuiz, 5)
		require.NoError(t, err)

		view, err := fx.svc.GetAttempt(attempt.ID, claims(studentID, model.Student))
		require.NoError(t, err)
		assert.Len(t, view.Questions, 4)
		for _, q := range view.Questions {
			assert.NotEmpty(t, q.Options)
		}
		assert.False(t, view.IsComplete)
		assert.Nil(t, view.Percentage)
		assert.Greater(t, view.RemainingSeconds, int64(0))
	})

	t.Run("其他学生不可见", func(t *testing.T) {
		fx := newAttemptFixture()
		attempt, err := fx.svc.CreateAttempt(studentID, model.SourceQuiz, 5)
		require.NoError(t, err)

		_, err = fx.svc.GetAttempt(attempt.ID, claims(studentID+1, model.Student))
		assert.ErrorIs(t, err, util.ErrPermissionDenied)
	})

	t.Run("教师按授课范围可见", func(t *testing.T) {
		fx := newAttemptFixture()
		attempt, err := fx.svc.CreateAttempt(studentID, model.SourceQuiz, 5)
		require.NoError(t, err)

		_, err = fx.svc.GetAttempt(attempt.ID, claims(20, model.Teacher))
		assert.ErrorIs(t, err, util.ErrPermissionDenied)

		fx.scope.allow = true
		view, err := fx.svc.GetAttempt(attempt.ID, claims(20, model.Teacher))
		require.NoError(t, err)
		assert.Equal(t, attempt.ID, view.ID)
	})

	t.Run("完成后回传成绩", func(t *testing.T) {
		fx := newAttemptFixture()
		attempt, err := fx.svc.CreateAttempt(studentID, model.SourceQuiz, 5)
		require.NoError(t, err)

		_, err = fx.svc.SubmitAttempt(attempt.ID, studentID, []model.AttemptAnswer{
			{QuestionID: 1, SelectedOption: intPtr(0)},
			{QuestionID: 2, SelectedOption: intPtr(1)},
			{QuestionID: 3, SelectedOption: intPtr(0)},
			{QuestionID: 4, SelectedOption: intPtr(1)},
		}, SecuritySignals{}, "ua", "::1")
		require.NoError(t, err)

		view, err := fx.svc.GetAttempt(attempt.ID, claims(studentID, model.Student))
		require.NoError(t, err)
		assert.True(t, view.IsComplete)
		require.NotNil(t, view.Percentage)
		assert.Equal(t, 100.0, *view.Percentage)
		require.NotNil(t, view.Passed)
		assert.True(t, *view.Passed)
	})
}
