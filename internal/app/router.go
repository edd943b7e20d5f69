package app

import (
	"quiz_engine_backend/docs"
	"quiz_engine_backend/internal/config"
	"quiz_engine_backend/internal/middleware"
	"quiz_engine_backend/internal/model"

	"quiz_engine_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api/v1")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		// 学生接口
		a.registerStudentRoutes(authGroup, c)

		// 教务审批与审计接口
		a.registerStaffRoutes(authGroup, c)

		// 测验创作接口
		a.registerAuthoringRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/register", c.auth.Register)
		auth.POST("/login", c.auth.Login)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/profile", c.auth.GetProfile)

	// 测验尝试：所有权与可见性在服务层校验
	rg.POST("/attempts", c.attempt.CreateAttempt)
	rg.GET("/attempts", c.attempt.ListAttempts)
	rg.GET("/attempts/:id", c.attempt.GetAttempt)
	rg.POST("/attempts/:id/submit", c.attempt.SubmitAttempt)
	rg.POST("/attempts/:id/violations", c.attempt.ReportViolation)

	rg.GET("/locks/status", c.lock.GetStatus)
}

func (a *App) registerStaffRoutes(rg *gin.RouterGroup, c *controllers) {
	staff := rg.Group("/")
	staff.Use(middleware.RoleMiddleware(model.Teacher, model.HOD, model.Dean))
	{
		staff.GET("/locks", c.lock.ListPending)
		staff.POST("/locks", c.lock.ManualLock)
		staff.POST("/locks/:id/unlock", c.lock.Unlock)

		staff.GET("/violations", c.violation.List)
		staff.POST("/violations/:id/resolve", c.violation.Resolve)
		staff.GET("/attempts/:id/violations", c.violation.ListByAttempt)
		staff.GET("/students/:id/risk-score", c.violation.RiskScore)
	}
}

func (a *App) registerAuthoringRoutes(rg *gin.RouterGroup, c *controllers) {
	authoring := rg.Group("/")
	authoring.Use(middleware.RoleMiddleware(model.Teacher))
	{
		authoring.POST("/quizzes", c.quiz.CreateQuiz)
		authoring.GET("/quizzes", c.quiz.ListByCourse)
		authoring.PUT("/quizzes/:id/active", c.quiz.SetActive)
		authoring.POST("/pools", c.quiz.CreatePool)
		authoring.POST("/pools/:id/quizzes/:quizId", c.quiz.AttachQuiz)
	}
}
