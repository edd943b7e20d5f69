package controller

import (
	"strconv"

	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/service"
	"quiz_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LockController struct {
	LockService   *service.LockService
	AccessService *service.AccessService
}

func NewLockController(lockService *service.LockService, accessService *service.AccessService) *LockController {
	return &LockController{LockService: lockService, AccessService: accessService}
}

// ListPending godoc
// @Summary 待处理锁定列表
// @Description 按操作者角色返回其可处理的锁定：教师看班级内教师层级，系主任看本系 HOD 层级，院长看本院 DEAN 层级，管理员看全部
// @Tags 锁定管理
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 403 {object} util.Response "角色无权查看"
// @Router /api/v1/locks [get]
func (c *LockController) ListPending(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	rows, err := c.AccessService.PendingLocks(claims)
	if err != nil {
		util.EngineError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"locks": rows, "total": len(rows)})
}

// swagger:model UnlockRequest
type UnlockRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
	Notes  string `json:"notes" binding:"max=2000"`
}

// Unlock godoc
// @Summary 解锁测验
// @Description 操作者只能处理停留在自己审批层级的锁；层级不符返回所需层级。管理员可旁路任意锁
// @Tags 锁定管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "锁定 ID"
// @Param   body body UnlockRequest true "解锁理由"
// @Success 200 {object} util.Response{data=object} "已解锁"
// @Failure 403 {object} util.Response "层级不符或次数耗尽"
// @Failure 404 {object} util.Response "锁定不存在或已解除"
// @Router /api/v1/locks/{id}/unlock [post]
func (c *LockController) Unlock(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid lock id")
		return
	}

	var req UnlockRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lock, err := c.LockService.Unlock(uint(id), claims, req.Reason, req.Notes)
	if err != nil {
		util.EngineError(ctx, err)
		return
	}
	util.Success(ctx, lock)
}

// swagger:model ManualLockRequest
type ManualLockRequest struct {
	StudentID    uint                 `json:"studentId" binding:"required"`
	SourceType   model.QuizSourceType `json:"sourceType" binding:"required,oneof=quiz pool"`
	SourceID     uint                 `json:"sourceId" binding:"required"`
	CourseID     uint                 `json:"courseId" binding:"required"`
	UnitID       uint                 `json:"unitId" binding:"required"`
	PassingScore float64              `json:"passingScore"`
}

// ManualLock godoc
// @Summary 人工锁定
// @Description 教务在调查等场景下冻结学生的作答资格
// @Tags 锁定管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body ManualLockRequest true "锁定对象"
// @Success 201 {object} util.Response{data=object} "已锁定"
// @Router /api/v1/locks [post]
func (c *LockController) ManualLock(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req ManualLockRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	lock, err := c.LockService.ManualLock(req.StudentID, req.SourceType, req.SourceID,
		req.CourseID, req.UnitID, claims, req.PassingScore)
	if err != nil {
		util.EngineError(ctx, err)
		return
	}
	util.Created(ctx, lock)
}

// GetStatus godoc
// @Summary 查询学生锁定状态
// @Description 学生查询自己在某测验上的锁定与解锁历史
// @Tags 锁定管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   sourceType query string true "来源类型 quiz|pool"
// @Param   sourceId query int true "来源 ID"
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/v1/locks/status [get]
func (c *LockController) GetStatus(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	st := model.QuizSourceType(ctx.Query("sourceType"))
	if st != model.SourceQuiz && st != model.SourcePool {
		util.BadRequest(ctx, "sourceType must be quiz or pool")
		return
	}
	sourceID, err := strconv.ParseUint(ctx.Query("sourceId"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid source id")
		return
	}

	lock, err := c.LockService.Status(claims.UserID, st, uint(sourceID))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	if lock == nil {
		util.Success(ctx, gin.H{"isLocked": false})
		return
	}
	util.Success(ctx, gin.H{
		"isLocked":      lock.IsLocked,
		"lock":          lock,
		"unlockHistory": lock.History(),
	})
}
