package util

import (
	"errors"
	"fmt"
	"quiz_engine_backend/internal/model"
)

// 引擎错误分类。所有错误都是调用方可恢复的业务错误，
// 控制器据此映射到不同的 HTTP 状态码；真正的基础设施故障
// 原样向上传播并记入日志
var (
	ErrSourceNotFound        = errors.New("quiz source not found")
	ErrNotEnrolled           = errors.New("student not enrolled in course")
	ErrUnitNotReady          = errors.New("unit videos not finished")
	ErrAttemptLimitReached   = errors.New("attempt limit reached")
	ErrInsufficientQuestions = errors.New("insufficient questions in pool")
	ErrAlreadySubmitted      = errors.New("attempt already submitted")
	ErrAttemptNotFound       = errors.New("attempt not found")
	ErrLockNotFound          = errors.New("lock record not found")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrConflict              = errors.New("concurrent attempt conflict")
	ErrUserNotFound          = errors.New("用户不存在")
	ErrEmailRegistered       = errors.New("该邮箱已被注册")
)

// AlreadyPassedError 学生已通过该测验；附带既有尝试 ID 供客户端跳转
type AlreadyPassedError struct {
	AttemptID uint
}

func (e *AlreadyPassedError) Error() string {
	return fmt.Sprintf("quiz already passed (attempt %d)", e.AttemptID)
}

// CooldownActiveError 距上次失败尝试不足冷却期
type CooldownActiveError struct {
	RemainingHours int     // 剩余整小时数，向上取整
	LastScore      float64 // 上次尝试得分
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("cooldown active, %d hour(s) remaining", e.RemainingHours)
}

// QuizLockedError 测验被锁定，携带原因与当前审批层级供前端展示
type QuizLockedError struct {
	Reason model.FailureReason
	Tier   model.AuthorizationLevel
}

func (e *QuizLockedError) Error() string {
	return fmt.Sprintf("quiz locked (%s), unlock requires %s", e.Reason, e.Tier)
}

// TierLimitExceededError 操作者层级不足或本层级解锁次数已耗尽；
// Required 告诉前端应将申请转给哪个层级
type TierLimitExceededError struct {
	Required model.AuthorizationLevel
}

func (e *TierLimitExceededError) Error() string {
	return fmt.Sprintf("unlock requires %s authorization", e.Required)
}
