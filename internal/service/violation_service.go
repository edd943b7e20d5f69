package service

import (
	"context"
	"encoding/json"
	"fmt"
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/repository"
	"quiz_engine_backend/pkg/logger"
	"quiz_engine_backend/pkg/monitoring"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ViolationStore 审计记录的持久化接口
type ViolationStore interface {
	Create(event *model.SecurityEvent) error
	CreateBatch(events []model.SecurityEvent) error
	ListByAttempt(attemptID uint) ([]model.SecurityEvent, error)
	CountByAttemptAndType(attemptID uint, t model.ViolationType) (int64, error)
	List(filter repository.SecurityEventFilter) ([]model.SecurityEvent, int64, error)
	Resolve(id uint, resolvedBy uint, notes string) error
}

// ViolationService 把不可信的客户端信号归类为严重度分级的审计记录，
// 并在 redis 中维护学生风险分
type ViolationService struct {
	Store    ViolationStore
	Evidence EvidenceStorage
	Redis    *redis.Client
}

func NewViolationService(store ViolationStore, evidence EvidenceStorage, rdb *redis.Client) *ViolationService {
	return &ViolationService{Store: store, Evidence: evidence, Redis: rdb}
}

// Classify 违规类型 → (严重度, 处置)。count 为同类信号在本次尝试内的累计次数，
// 用于升级判定
func Classify(t model.ViolationType, count int) (model.Severity, model.SecurityAction) {
	switch t {
	case model.ViolationTabSwitch:
		if count >= 3 {
			return model.SeverityHigh, model.ActionPenalty
		}
		return model.SeverityMedium, model.ActionPenalty
	case model.ViolationFullscreenExit:
		if count >= 2 {
			return model.SeverityHigh, model.ActionPenalty
		}
		return model.SeverityMedium, model.ActionPenalty
	case model.ViolationWindowMinimize:
		return model.SeverityHigh, model.ActionPenalty
	case model.ViolationKeyboardShortcut:
		if count >= 5 {
			return model.SeverityMedium, model.ActionPenalty
		}
		return model.SeverityLow, model.ActionWarning
	case model.ViolationContextMenu:
		return model.SeverityLow, model.ActionWarning
	case model.ViolationClipboard:
		return model.SeverityMedium, model.ActionPenalty
	case model.ViolationDevTools:
		return model.SeverityHigh, model.ActionPenalty
	case model.ViolationSuspiciousTiming:
		return model.SeverityMedium, model.ActionWarning
	case model.ViolationAutoSubmit:
		return model.SeverityCritical, model.ActionAutoSubmit
	case model.ViolationExcessiveTabSwitching:
		return model.SeverityHigh, model.ActionPenalty
	default:
		return model.SeverityLow, model.ActionWarning
	}
}

var violationDescriptions = map[model.ViolationType]string{
	model.ViolationTabSwitch:             "切换浏览器标签页",
	model.ViolationFullscreenExit:        "退出全屏",
	model.ViolationWindowMinimize:        "最小化窗口",
	model.ViolationKeyboardShortcut:      "触发被屏蔽的快捷键",
	model.ViolationContextMenu:           "打开右键菜单",
	model.ViolationClipboard:             "剪贴板操作",
	model.ViolationDevTools:              "疑似打开开发者工具",
	model.ViolationSuspiciousTiming:      "作答节奏异常",
	model.ViolationAutoSubmit:            "违规达到阈值，强制交卷",
	model.ViolationExcessiveTabSwitching: "切屏次数超过阈值",
}

// RecordSubmissionSignals 提交时落库全部原始事件；tabSwitchCount > 3 时
// 追加一条综合性"切屏过多"记录。返回归类后的违规条数（供练习模式扣分公式使用）
func (s *ViolationService) RecordSubmissionSignals(attempt *model.QuizAttempt, sig SecuritySignals, userAgent, ip string) int {
	counts := make(map[model.ViolationType]int)
	events := make([]model.SecurityEvent, 0, len(sig.Events)+1)

	for _, raw := range sig.Events {
		// 升级判定按整次尝试累计，续接作答期间实时上报的同类事件
		if _, seen := counts[raw.Type]; !seen {
			prior, err := s.Store.CountByAttemptAndType(attempt.ID, raw.Type)
			if err != nil {
				logger.Log.Warn("count prior violations failed",
					zap.Uint("attemptId", attempt.ID), zap.Error(err))
			}
			counts[raw.Type] = int(prior)
		}
		counts[raw.Type]++
		events = append(events, s.buildEvent(attempt, raw, counts[raw.Type], userAgent, ip))
	}

	if sig.TabSwitchCount > 3 {
		severity, action := Classify(model.ViolationExcessiveTabSwitching, sig.TabSwitchCount)
		events = append(events, model.SecurityEvent{
			StudentID:      attempt.StudentID,
			CourseID:       attempt.CourseID,
			UnitID:         attempt.UnitID,
			AttemptID:      attempt.ID,
			EventType:      model.ViolationExcessiveTabSwitching,
			Severity:       severity,
			Description:    violationDescriptions[model.ViolationExcessiveTabSwitching],
			OccurredAt:     time.Now(),
			UserAgent:      userAgent,
			IPAddress:      ip,
			PenaltyApplied: attempt.SecureMode,
			Action:         action,
		})
	}

	if err := s.Store.CreateBatch(events); err != nil {
		logger.Log.Error("persist security events failed",
			zap.Uint("attemptId", attempt.ID), zap.Error(err))
	}

	for i := range events {
		monitoring.Violations.WithLabelValues(string(events[i].Severity)).Inc()
		s.bumpRiskScore(attempt.StudentID, events[i].Severity)
	}

	return len(events)
}

// RecordLiveEvent 作答期间的实时上报，单条归类落库
func (s *ViolationService) RecordLiveEvent(attempt *model.QuizAttempt, raw RawSignalEvent, userAgent, ip string) (*model.SecurityEvent, error) {
	prior, err := s.Store.CountByAttemptAndType(attempt.ID, raw.Type)
	if err != nil {
		return nil, err
	}

	event := s.buildEvent(attempt, raw, int(prior)+1, userAgent, ip)
	if err := s.Store.Create(&event); err != nil {
		return nil, err
	}

	monitoring.Violations.WithLabelValues(string(event.Severity)).Inc()
	s.bumpRiskScore(attempt.StudentID, event.Severity)
	return &event, nil
}

func (s *ViolationService) buildEvent(attempt *model.QuizAttempt, raw RawSignalEvent, count int, userAgent, ip string) model.SecurityEvent {
	severity, action := Classify(raw.Type, count)

	occurredAt := time.Now()
	if raw.OccurredAt > 0 {
		occurredAt = time.UnixMilli(raw.OccurredAt)
	}

	var payload json.RawMessage
	if raw.Payload != nil {
		payload, _ = json.Marshal(raw.Payload)
	}

	event := model.SecurityEvent{
		StudentID:      attempt.StudentID,
		CourseID:       attempt.CourseID,
		UnitID:         attempt.UnitID,
		AttemptID:      attempt.ID,
		EventType:      raw.Type,
		Severity:       severity,
		Description:    violationDescriptions[raw.Type],
		OccurredAt:     occurredAt,
		UserAgent:      userAgent,
		IPAddress:      ip,
		PayloadJSON:    payload,
		PenaltyApplied: attempt.SecureMode && action != model.ActionWarning,
		Action:         action,
	}

	if raw.Screenshot != "" && s.Evidence != nil {
		url, err := s.Evidence.PutScreenshot(context.Background(), attempt.ID, raw.Screenshot)
		if err != nil {
			logger.Log.Warn("store violation evidence failed",
				zap.Uint("attemptId", attempt.ID), zap.Error(err))
		} else {
			event.EvidenceURL = url
		}
	}

	return event
}

var severityWeights = map[model.Severity]float64{
	model.SeverityLow:      1,
	model.SeverityMedium:   3,
	model.SeverityHigh:     7,
	model.SeverityCritical: 15,
}

const riskScoreTTL = 30 * 24 * time.Hour

func riskKey(studentID uint) string {
	return fmt.Sprintf("quiz:risk:%d", studentID)
}

func (s *ViolationService) bumpRiskScore(studentID uint, severity model.Severity) {
	if s.Redis == nil {
		return
	}
	ctx := context.Background()
	key := riskKey(studentID)
	if err := s.Redis.IncrByFloat(ctx, key, severityWeights[severity]).Err(); err != nil {
		logger.Log.Warn("bump risk score failed", zap.Uint("studentId", studentID), zap.Error(err))
		return
	}
	s.Redis.Expire(ctx, key, riskScoreTTL)
}

// RiskScore 学生当前风险分（30 天滑动累计）
func (s *ViolationService) RiskScore(studentID uint) (float64, error) {
	if s.Redis == nil {
		return 0, nil
	}
	val, err := s.Redis.Get(context.Background(), riskKey(studentID)).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

func (s *ViolationService) ListByAttempt(attemptID uint) ([]model.SecurityEvent, error) {
	return s.Store.ListByAttempt(attemptID)
}

func (s *ViolationService) List(filter repository.SecurityEventFilter) ([]model.SecurityEvent, int64, error) {
	return s.Store.List(filter)
}

func (s *ViolationService) Resolve(id uint, resolvedBy uint, notes string) error {
	return s.Store.Resolve(id, resolvedBy, notes)
}
