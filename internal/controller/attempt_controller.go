package controller

import (
	"strconv"

	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/service"
	"quiz_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	AttemptService *service.AttemptService
}

func NewAttemptController(attemptService *service.AttemptService) *AttemptController {
	return &AttemptController{AttemptService: attemptService}
}

// swagger:model CreateAttemptRequest
type CreateAttemptRequest struct {
	SourceType model.QuizSourceType `json:"sourceType" binding:"required,oneof=quiz pool"`
	SourceID   uint                 `json:"sourceId" binding:"required"`
}

// CreateAttempt godoc
// @Summary 开始测验尝试
// @Description 校验选课、单元进度、冷却期、次数上限与锁定状态后冻结题目快照
// @Tags 测验尝试
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body CreateAttemptRequest true "测验来源"
// @Success 201 {object} util.Response{data=object} "创建成功"
// @Failure 403 {object} util.Response "未选课/视频未看完/次数耗尽"
// @Failure 409 {object} util.Response "已通过或存在未完成尝试"
// @Failure 423 {object} util.Response "测验被锁定"
// @Failure 429 {object} util.Response "冷却期未过"
// @Router /api/v1/attempts [post]
func (c *AttemptController) CreateAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req CreateAttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attempt, err := c.AttemptService.CreateAttempt(claims.UserID, req.SourceType, req.SourceID)
	if err != nil {
		util.EngineError(ctx, err)
		return
	}

	view, err := c.AttemptService.GetAttempt(attempt.ID, claims)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, view)
}

// GetAttempt godoc
// @Summary 查看尝试
// @Description 学生本人或其任课教师可见；下发题目不含正确答案
// @Tags 测验尝试
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "尝试 ID"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 403 {object} util.Response "无权查看"
// @Failure 404 {object} util.Response "尝试不存在"
// @Router /api/v1/attempts/{id} [get]
func (c *AttemptController) GetAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid attempt id")
		return
	}

	view, err := c.AttemptService.GetAttempt(uint(id), claims)
	if err != nil {
		util.EngineError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// swagger:model SubmitAttemptRequest
type SubmitAttemptRequest struct {
	Answers  []model.AttemptAnswer   `json:"answers"`
	Security service.SecuritySignals `json:"security"`
}

// SubmitAttempt godoc
// @Summary 提交尝试
// @Description 评分、套用监考扣分并按结果更新锁定状态；重复提交只有第一次生效
// @Tags 测验尝试
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "尝试 ID"
// @Param   body body SubmitAttemptRequest true "作答与监考信号"
// @Success 200 {object} util.Response{data=object} "评分结果"
// @Failure 403 {object} util.Response "不是本人的尝试"
// @Failure 404 {object} util.Response "尝试不存在"
// @Failure 409 {object} util.Response "已提交过"
// @Router /api/v1/attempts/{id}/submit [post]
func (c *AttemptController) SubmitAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid attempt id")
		return
	}

	var req SubmitAttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.AttemptService.SubmitAttempt(uint(id), claims.UserID, req.Answers, req.Security,
		ctx.Request.UserAgent(), ctx.ClientIP())
	if err != nil {
		util.EngineError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// ReportViolation godoc
// @Summary 上报实时违规
// @Description 作答期间客户端实时上报监考事件，带截图证据时存入对象存储
// @Tags 测验尝试
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "尝试 ID"
// @Param   body body service.RawSignalEvent true "违规事件"
// @Success 201 {object} util.Response{data=object} "已记录"
// @Failure 409 {object} util.Response "尝试已结束"
// @Router /api/v1/attempts/{id}/violations [post]
func (c *AttemptController) ReportViolation(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid attempt id")
		return
	}

	var req service.RawSignalEvent
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if req.Type == "" {
		util.BadRequest(ctx, "violation type is required")
		return
	}

	event, err := c.AttemptService.ReportViolation(uint(id), claims.UserID, req,
		ctx.Request.UserAgent(), ctx.ClientIP())
	if err != nil {
		util.EngineError(ctx, err)
		return
	}
	util.Created(ctx, gin.H{
		"id":       event.ID,
		"severity": event.Severity,
		"action":   event.Action,
	})
}

// ListAttempts godoc
// @Summary 我的尝试历史
// @Tags 测验尝试
// @Produce  json
// @Security ApiKeyAuth
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/v1/attempts [get]
func (c *AttemptController) ListAttempts(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	page, limit := pagination(ctx)
	attempts, total, err := c.AttemptService.ListAttempts(claims.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  attempts,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

func pagination(ctx *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
