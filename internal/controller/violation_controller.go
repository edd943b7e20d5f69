package controller

import (
	"strconv"

	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/repository"
	"quiz_engine_backend/internal/service"
	"quiz_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ViolationController struct {
	ViolationService *service.ViolationService
}

func NewViolationController(violationService *service.ViolationService) *ViolationController {
	return &ViolationController{ViolationService: violationService}
}

// List godoc
// @Summary 违规审计记录
// @Description 按学生、课程、严重度过滤的违规记录，供教务复核
// @Tags 监考审计
// @Produce  json
// @Security ApiKeyAuth
// @Param   studentId query int false "学生 ID"
// @Param   courseId query int false "课程 ID"
// @Param   severity query string false "严重度 LOW|MEDIUM|HIGH|CRITICAL"
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/v1/violations [get]
func (c *ViolationController) List(ctx *gin.Context) {
	page, limit := pagination(ctx)
	studentID, _ := strconv.ParseUint(ctx.Query("studentId"), 10, 64)
	courseID, _ := strconv.ParseUint(ctx.Query("courseId"), 10, 64)

	events, total, err := c.ViolationService.List(repository.SecurityEventFilter{
		StudentID: uint(studentID),
		CourseID:  uint(courseID),
		Severity:  model.Severity(ctx.Query("severity")),
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  events,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// ListByAttempt godoc
// @Summary 某次尝试的违规记录
// @Tags 监考审计
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "尝试 ID"
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/v1/attempts/{id}/violations [get]
func (c *ViolationController) ListByAttempt(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid attempt id")
		return
	}

	events, err := c.ViolationService.ListByAttempt(uint(id))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"events": events, "total": len(events)})
}

// swagger:model ResolveViolationRequest
type ResolveViolationRequest struct {
	Notes string `json:"notes" binding:"required,max=2000"`
}

// Resolve godoc
// @Summary 复核违规记录
// @Description 教务复核后标记处理完成，附处理意见
// @Tags 监考审计
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "记录 ID"
// @Param   body body ResolveViolationRequest true "处理意见"
// @Success 200 {object} util.Response "已复核"
// @Router /api/v1/violations/{id}/resolve [post]
func (c *ViolationController) Resolve(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid event id")
		return
	}

	var req ResolveViolationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.ViolationService.Resolve(uint(id), claims.UserID, req.Notes); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// RiskScore godoc
// @Summary 学生风险分
// @Description 近 30 天按严重度加权累计的风险分
// @Tags 监考审计
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "学生 ID"
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/v1/students/{id}/risk-score [get]
func (c *ViolationController) RiskScore(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid student id")
		return
	}

	score, err := c.ViolationService.RiskScore(uint(id))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"studentId": uint(id), "riskScore": score})
}
