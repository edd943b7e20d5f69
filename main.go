// @title Secure Quiz Engine API
// @version 1.0
// @description 安全测验与多级解锁审批引擎后端服务。

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"flag"
	"log"
	"quiz_engine_backend/internal/app"
	"quiz_engine_backend/internal/config"
	"quiz_engine_backend/pkg/database"
	"quiz_engine_backend/pkg/logger"
)

func main() {
	// 命令行参数
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	migrate := flag.Bool("migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	flag.Parse()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cfg.ForceMigrate = *migrate

	if *migrateOnly {
		// 不拉起路由和后台任务，迁移完成即退出
		if _, err := database.InitDB(&cfg.Database, true); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		log.Println("数据库迁移完成，退出程序")
		return
	}

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	application.Run()
}
