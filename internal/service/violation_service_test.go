package service

import (
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/repository"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		vType    model.ViolationType
		count    int
		severity model.Severity
		action   model.SecurityAction
	}{
		{"首次切屏", model.ViolationTabSwitch, 1, model.SeverityMedium, model.ActionPenalty},
		{"第三次切屏升级", model.ViolationTabSwitch, 3, model.SeverityHigh, model.ActionPenalty},
		{"首次退出全屏", model.ViolationFullscreenExit, 1, model.SeverityMedium, model.ActionPenalty},
		{"第二次退出全屏升级", model.ViolationFullscreenExit, 2, model.SeverityHigh, model.ActionPenalty},
		{"最小化窗口", model.ViolationWindowMinimize, 1, model.SeverityHigh, model.ActionPenalty},
		{"零星快捷键仅警告", model.ViolationKeyboardShortcut, 1, model.SeverityLow, model.ActionWarning},
		{"第五次快捷键升级", model.ViolationKeyboardShortcut, 5, model.SeverityMedium, model.ActionPenalty},
		{"右键菜单", model.ViolationContextMenu, 1, model.SeverityLow, model.ActionWarning},
		{"剪贴板", model.ViolationClipboard, 1, model.SeverityMedium, model.ActionPenalty},
		{"开发者工具", model.ViolationDevTools, 1, model.SeverityHigh, model.ActionPenalty},
		{"作答节奏异常", model.ViolationSuspiciousTiming, 1, model.SeverityMedium, model.ActionWarning},
		{"强制交卷", model.ViolationAutoSubmit, 1, model.SeverityCritical, model.ActionAutoSubmit},
		{"切屏过多汇总", model.ViolationExcessiveTabSwitching, 4, model.SeverityHigh, model.ActionPenalty},
		{"未知类型兜底", model.ViolationType("unknown"), 1, model.SeverityLow, model.ActionWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			severity, action := Classify(tt.vType, tt.count)
			assert.Equal(t, tt.severity, severity)
			assert.Equal(t, tt.action, action)
		})
	}
}

type fakeViolationStore struct {
	events  []model.SecurityEvent
	counts  map[model.ViolationType]int64
	created int
}

func newFakeViolationStore() *fakeViolationStore {
	return &fakeViolationStore{counts: make(map[model.ViolationType]int64)}
}

func (f *fakeViolationStore) Create(event *model.SecurityEvent) error {
	event.ID = uint(len(f.events) + 1)
	f.events = append(f.events, *event)
	f.counts[event.EventType]++
	f.created++
	return nil
}

func (f *fakeViolationStore) CreateBatch(events []model.SecurityEvent) error {
	for i := range events {
		if err := f.Create(&events[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeViolationStore) ListByAttempt(attemptID uint) ([]model.SecurityEvent, error) {
	var out []model.SecurityEvent
	for _, e := range f.events {
		if e.AttemptID == attemptID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeViolationStore) CountByAttemptAndType(attemptID uint, t model.ViolationType) (int64, error) {
	return f.counts[t], nil
}

func (f *fakeViolationStore) List(filter repository.SecurityEventFilter) ([]model.SecurityEvent, int64, error) {
	return f.events, int64(len(f.events)), nil
}

func (f *fakeViolationStore) Resolve(id uint, resolvedBy uint, notes string) error {
	return nil
}

func secureAttempt() *model.QuizAttempt {
	a := &model.QuizAttempt{
		StudentID:  7,
		CourseID:   3,
		UnitID:     11,
		SourceType: model.SourceQuiz,
		SourceID:   5,
		SecureMode: true,
	}
	a.ID = 42
	return a
}

func TestRecordSubmissionSignals(t *testing.T) {
	t.Run("切屏超限时追加汇总事件", func(t *testing.T) {
		store := newFakeViolationStore()
		svc := NewViolationService(store, nil, nil)

		count := svc.RecordSubmissionSignals(secureAttempt(), SecuritySignals{
			TabSwitchCount: 5,
			Events: []RawSignalEvent{
				{Type: model.ViolationTabSwitch},
				{Type: model.ViolationTabSwitch},
			},
		}, "ua", "127.0.0.1")

		require.Equal(t, 3, count)
		last := store.events[len(store.events)-1]
		assert.Equal(t, model.ViolationExcessiveTabSwitching, last.EventType)
		assert.Equal(t, model.SeverityHigh, last.Severity)
	})

	t.Run("同类事件按次序升级", func(t *testing.T) {
		store := newFakeViolationStore()
		svc := NewViolationService(store, nil, nil)

		svc.RecordSubmissionSignals(secureAttempt(), SecuritySignals{
			Events: []RawSignalEvent{
				{Type: model.ViolationFullscreenExit},
				{Type: model.ViolationFullscreenExit},
			},
		}, "ua", "127.0.0.1")

		require.Len(t, store.events, 2)
		assert.Equal(t, model.SeverityMedium, store.events[0].Severity)
		assert.Equal(t, model.SeverityHigh, store.events[1].Severity)
	})

	t.Run("升级判定续接实时上报的计数", func(t *testing.T) {
		store := newFakeViolationStore()
		svc := NewViolationService(store, nil, nil)
		attempt := secureAttempt()

		_, err := svc.RecordLiveEvent(attempt, RawSignalEvent{Type: model.ViolationTabSwitch}, "ua", "::1")
		require.NoError(t, err)
		_, err = svc.RecordLiveEvent(attempt, RawSignalEvent{Type: model.ViolationTabSwitch}, "ua", "::1")
		require.NoError(t, err)

		svc.RecordSubmissionSignals(attempt, SecuritySignals{
			Events: []RawSignalEvent{
				{Type: model.ViolationTabSwitch},
				{Type: model.ViolationTabSwitch},
			},
		}, "ua", "::1")

		// 实时上报了两次，提交批次里的第一条已是第三次切屏
		require.Len(t, store.events, 4)
		assert.Equal(t, model.SeverityMedium, store.events[1].Severity)
		assert.Equal(t, model.SeverityHigh, store.events[2].Severity)
		assert.Equal(t, model.SeverityHigh, store.events[3].Severity)
	})

	t.Run("无信号不落库", func(t *testing.T) {
		store := newFakeViolationStore()
		svc := NewViolationService(store, nil, nil)

		count := svc.RecordSubmissionSignals(secureAttempt(), SecuritySignals{}, "ua", "127.0.0.1")
		assert.Equal(t, 0, count)
		assert.Empty(t, store.events)
	})
}

func TestRecordLiveEvent(t *testing.T) {
	store := newFakeViolationStore()
	svc := NewViolationService(store, nil, nil)
	attempt := secureAttempt()

	first, err := svc.RecordLiveEvent(attempt, RawSignalEvent{Type: model.ViolationTabSwitch}, "ua", "::1")
	require.NoError(t, err)
	assert.Equal(t, model.SeverityMedium, first.Severity)

	svc.RecordLiveEvent(attempt, RawSignalEvent{Type: model.ViolationTabSwitch}, "ua", "::1")
	third, err := svc.RecordLiveEvent(attempt, RawSignalEvent{Type: model.ViolationTabSwitch}, "ua", "::1")
	require.NoError(t, err)
	assert.Equal(t, model.SeverityHigh, third.Severity)
	assert.Equal(t, attempt.ID, third.AttemptID)
}
