package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"quiz_engine_backend/internal/config"
	"quiz_engine_backend/internal/controller"
	"quiz_engine_backend/internal/repository"
	"quiz_engine_backend/internal/service"
	"quiz_engine_backend/pkg/configwatcher"
	"quiz_engine_backend/pkg/database"
	"quiz_engine_backend/pkg/logger"
	"quiz_engine_backend/pkg/monitoring"
	"quiz_engine_backend/pkg/security"
	"quiz_engine_backend/pkg/tracing"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client
	repos  *repositories
}

type repositories struct {
	user     *repository.UserRepository
	quiz     *repository.QuizRepository
	attempt  *repository.AttemptRepository
	lock     *repository.LockRepository
	security *repository.SecurityRepository
	access   *repository.AccessRepository
	fact     *repository.FactRepository
}

type services struct {
	auth      *service.AuthService
	quiz      *service.QuizService
	attempt   *service.AttemptService
	lock      *service.LockService
	violation *service.ViolationService
	access    *service.AccessService
}

type controllers struct {
	auth      *controller.AuthController
	quiz      *controller.QuizController
	attempt   *controller.AttemptController
	lock      *controller.LockController
	violation *controller.ViolationController
	health    *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:     repository.NewUserRepository(db),
		quiz:     repository.NewQuizRepository(db),
		attempt:  repository.NewAttemptRepository(db),
		lock:     repository.NewLockRepository(db),
		security: repository.NewSecurityRepository(db),
		access:   repository.NewAccessRepository(db),
		fact:     repository.NewFactRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.auth = service.NewAuthService(repos.user, cfg)
	s.quiz = service.NewQuizService(repos.quiz, cfg)
	s.lock = service.NewLockService(repos.lock, cfg)
	s.access = service.NewAccessService(repos.access, repos.user)

	// 证据存储未配置时退化为仅记录事件，不影响主流程
	var evidence service.EvidenceStorage
	if cfg.Storage.MinioEndpoint != "" {
		store, err := service.NewMinioEvidenceStorage(&cfg.Storage)
		if err != nil {
			logger.Log.Warn("evidence storage unavailable", zap.Error(err))
		} else {
			evidence = store
		}
	}
	s.violation = service.NewViolationService(repos.security, evidence, rdb)

	var notifier service.Notifier
	if rdb != nil {
		notifier = service.NewRedisNotifier(rdb)
	} else {
		notifier = service.NoopNotifier{}
	}

	resolver := service.NewSourceResolver(repos.quiz)
	s.attempt = service.NewAttemptService(
		repos.attempt,
		resolver,
		s.lock,
		s.violation,
		repos.fact,
		repos.fact,
		repos.fact,
		notifier,
		repos.access,
		cfg,
	)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:      controller.NewAuthController(s.auth),
		quiz:      controller.NewQuizController(s.quiz),
		attempt:   controller.NewAttemptController(s.attempt),
		lock:      controller.NewLockController(s.lock, s.access),
		violation: controller.NewViolationController(s.violation),
		health:    controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(&cfg.RateLimit))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks() {
	// 超时未交卷的尝试数，供告警面板观察；引擎不主动替学生交卷，
	// 过期尝试由下一次提交按迟交策略处理
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		grace := time.Duration(a.Config.Quiz.SubmitGraceSeconds) * time.Second
		for range ticker.C {
			count, err := a.repos.attempt.CountStaleOpen(grace)
			if err != nil {
				logger.Log.Error("stale attempt sweep failed", zap.Error(err))
				continue
			}
			monitoring.StaleAttempts.Set(float64(count))
		}
	}()

	// 测验策略热更新：冷却期、解锁上限、宽限窗口改配置即生效
	go configwatcher.WatchConfig("configs/config.yaml", func(newCfg *config.Config) {
		a.Config.Quiz = newCfg.Quiz
		logger.Log.Info("quiz policy reloaded",
			zap.Int("cooldownHours", newCfg.Quiz.CooldownHours),
			zap.Int("teacherUnlockLimit", newCfg.Quiz.TeacherUnlockLimit),
			zap.Int("hodUnlockLimit", newCfg.Quiz.HODUnlockLimit))
	})
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, database.ShouldMigrate(cfg.Server.Mode, cfg.ForceMigrate))
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// redis 不可用时风险分与结果通知降级，核心流程不受影响
		logger.Log.Warn("Failed to initialize redis, running degraded", zap.Error(err))
		rdb = nil
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	app.repos = repos
	services := app.initServices(repos, cfg, rdb)
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("quiz-engine", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
			}
		}()
	}

	app.registerRoutes(router, controllers, cfg)

	app.startBackgroundTasks()

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
