package util

import (
	"errors"
	"net/http"
	"quiz_engine_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error", zap.Error(err))
	InternalServerError(c)
}

// EngineError 把引擎的错误分类映射为可区分的 HTTP 响应，
// 未识别的错误按基础设施故障处理
func EngineError(c *gin.Context, err error) {
	var alreadyPassed *AlreadyPassedError
	var cooldown *CooldownActiveError
	var locked *QuizLockedError
	var tier *TierLimitExceededError

	switch {
	case errors.Is(err, ErrSourceNotFound),
		errors.Is(err, ErrAttemptNotFound),
		errors.Is(err, ErrLockNotFound):
		Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotEnrolled),
		errors.Is(err, ErrUnitNotReady),
		errors.Is(err, ErrPermissionDenied):
		Error(c, http.StatusForbidden, err.Error())
	case errors.As(err, &alreadyPassed):
		ErrorWithData(c, http.StatusConflict, err.Error(), gin.H{
			"attemptId": alreadyPassed.AttemptID,
		})
	case errors.As(err, &cooldown):
		ErrorWithData(c, http.StatusTooManyRequests, err.Error(), gin.H{
			"remainingHours": cooldown.RemainingHours,
			"lastScore":      cooldown.LastScore,
		})
	case errors.Is(err, ErrAttemptLimitReached):
		Error(c, http.StatusForbidden, err.Error())
	case errors.As(err, &locked):
		ErrorWithData(c, http.StatusLocked, err.Error(), gin.H{
			"reason":             locked.Reason,
			"authorizationLevel": locked.Tier,
		})
	case errors.As(err, &tier):
		ErrorWithData(c, http.StatusForbidden, err.Error(), gin.H{
			"requiredTier": tier.Required,
		})
	case errors.Is(err, ErrInsufficientQuestions):
		Error(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrAlreadySubmitted),
		errors.Is(err, ErrConflict):
		Error(c, http.StatusConflict, err.Error())
	default:
		LogInternalError(c, err)
	}
}
