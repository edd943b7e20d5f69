package controller

import (
	"strconv"

	"quiz_engine_backend/internal/service"
	"quiz_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService *service.QuizService
}

func NewQuizController(quizService *service.QuizService) *QuizController {
	return &QuizController{QuizService: quizService}
}

// CreateQuiz godoc
// @Summary 创建测验
// @Description 创建测验及其题目；题目一经创建不可变更
// @Tags 测验管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.CreateQuizInput true "测验内容"
// @Success 201 {object} util.Response{data=object} "创建成功"
// @Failure 400 {object} util.Response "校验失败"
// @Router /api/v1/quizzes [post]
func (c *QuizController) CreateQuiz(ctx *gin.Context) {
	var req service.CreateQuizInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.QuizService.CreateQuiz(req)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	util.Created(ctx, quiz)
}

// CreatePool godoc
// @Summary 创建题库
// @Description 创建随机抽题题库，每次尝试抽取 5~30 题
// @Tags 测验管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.CreatePoolInput true "题库配置"
// @Success 201 {object} util.Response{data=object} "创建成功"
// @Failure 400 {object} util.Response "校验失败"
// @Router /api/v1/pools [post]
func (c *QuizController) CreatePool(ctx *gin.Context) {
	var req service.CreatePoolInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	pool, err := c.QuizService.CreatePool(req)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	util.Created(ctx, pool)
}

// AttachQuiz godoc
// @Summary 向题库追加测验
// @Tags 测验管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "题库 ID"
// @Param   quizId path int true "测验 ID"
// @Success 200 {object} util.Response "成功"
// @Router /api/v1/pools/{id}/quizzes/{quizId} [post]
func (c *QuizController) AttachQuiz(ctx *gin.Context) {
	poolID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid pool id")
		return
	}
	quizID, err := strconv.ParseUint(ctx.Param("quizId"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	if err := c.QuizService.AttachQuiz(uint(poolID), uint(quizID)); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ListByCourse godoc
// @Summary 课程下的测验列表
// @Tags 测验管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId query int true "课程 ID"
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/v1/quizzes [get]
func (c *QuizController) ListByCourse(ctx *gin.Context) {
	courseID, err := strconv.ParseUint(ctx.Query("courseId"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid course id")
		return
	}

	page, limit := pagination(ctx)
	quizzes, total, err := c.QuizService.ListByCourse(uint(courseID), page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  quizzes,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// SetActive godoc
// @Summary 上架/下架测验
// @Description 下架测验对新尝试不可见；进行中的尝试不受影响
// @Tags 测验管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测验 ID"
// @Param   body body object true "{\"active\": bool}"
// @Success 200 {object} util.Response "成功"
// @Router /api/v1/quizzes/{id}/active [put]
func (c *QuizController) SetActive(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.QuizService.SetActive(uint(id), *req.Active); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
