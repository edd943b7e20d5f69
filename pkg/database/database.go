package database

import (
	"fmt"
	"log"
	"quiz_engine_backend/internal/config"
	"quiz_engine_backend/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ShouldMigrate release 模式下默认跳过 AutoMigrate，结构变更需显式带
// -migrate / -migrate-only 执行；其他模式启动即迁移
func ShouldMigrate(mode string, force bool) bool {
	return mode != "release" || force
}

func InitDB(cfg *config.DatabaseConfig, migrate bool) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
		// 把 1062 等驱动错误翻译成 gorm.ErrDuplicatedKey，
		// 单一未完成尝试的唯一索引冲突依赖这个行为
		TranslateError: true,
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	if !migrate {
		log.Println("Database migration skipped")
		return db, nil
	}

	err = db.AutoMigrate(
		&model.User{},
		&model.Section{},
		&model.SectionTeacher{},
		&model.SectionStudent{},
		&model.SectionCourse{},
		&model.Enrollment{},
		&model.UnitProgress{},
		&model.ExtraAttemptGrant{},
		&model.Quiz{},
		&model.Question{},
		&model.QuizPool{},
		&model.QuizAttempt{},
		&model.QuizLock{},
		&model.SecurityEvent{},
	)

	if err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	return db, nil
}
