package models

import (
	"fmt"
	"log"

	"github.com/Jeet1511/FF-LIKE/internal/config"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB() error {
	logLevel := logger.Info
	if config.AppConfig.GinMode == "release" {
		logLevel = logger.Error
	}

	db, err := Open(config.AppConfig.DBDriver, config.AppConfig.GetDSN(), logLevel)
	if err != nil {
		return err
	}
	DB = db

	if err := Migrate(DB); err != nil {
		return err
	}

	if err := createDefaultAdmin(DB, config.AppConfig.AdminUsername, config.AppConfig.AdminPassword, config.AppConfig.AdminEmail); err != nil {
		return err
	}

	log.Println("✅ Database connected and migrated successfully")
	return nil
}

// Open connects with the named driver ("postgres" or "sqlite").
func Open(driver, dsn string, level logger.LogLevel) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	}

	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// sqlite allows a single writer; serialize through one connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Account{}, &Token{}, &DailyUsage{}, &Activity{}, &User{}, &SystemConfig{})
}

func createDefaultAdmin(db *gorm.DB, username, password, email string) error {
	var count int64
	if err := db.Model(&User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	admin := &User{
		Username: username,
		Email:    email,
		Role:     "admin",
		Status:   "active",
	}
	if err := admin.SetPassword(password); err != nil {
		return err
	}
	if err := db.Create(admin).Error; err != nil {
		return err
	}
	log.Printf("✅ Default admin user created (%s)", username)
	return nil
}

// Ping reports whether the database answers.
func Ping(db *gorm.DB) bool {
	if db == nil {
		return false
	}
	sqlDB, err := db.DB()
	if err != nil {
		return false
	}
	return sqlDB.Ping() == nil
}

func GetDB() *gorm.DB {
	return DB
}
