// Package database 负责初始化 MySQL 与 Redis 连接。
package database

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/szhou12/rag-clean-energy/internal/model"
	"github.com/szhou12/rag-clean-energy/pkg/log"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 数据库连接并建表。
func InitMySQL(dsn string) {
	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("连接 MySQL 失败", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("获取底层 sql.DB 失败", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 元数据表不存在时自动创建。
	if err := DB.AutoMigrate(
		&model.WebPage{},
		&model.WebPageChunk{},
		&model.FilePage{},
		&model.FilePageChunk{},
	); err != nil {
		log.Fatal("元数据表迁移失败", err)
	}

	log.Info("MySQL 连接成功")
}
