package db

import (
	"context"
	"fmt"
	"time"

	"localeloop/internal/config"
	"localeloop/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init opens the connection pool, runs migrations and sets DB.
func Init(cfg config.DBConfig, log *zap.SugaredLogger) error {
	gdb, err := Open(cfg)
	if err != nil {
		return err
	}
	log.Info("Database connection established")

	if err := Migrate(gdb); err != nil {
		return err
	}
	log.Info("Database migration completed")

	DB = gdb
	return nil
}

func Open(cfg config.DBConfig) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.MaxIdleTime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return gdb, nil
}

func Migrate(gdb *gorm.DB) error {
	err := gdb.AutoMigrate(
		&models.User{},
		&models.Loop{},
		&models.Place{},
		&models.Comment{},
		&models.Like{},
		&models.CommentLike{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// tags 上的 && 和 unnest 查询走 GIN 索引
	return gdb.Exec("CREATE INDEX IF NOT EXISTS idx_loops_tags ON loops USING GIN (tags)").Error
}

func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping 健康检查用
func Ping(ctx context.Context) error {
	if DB == nil {
		return fmt.Errorf("database not initialised")
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
