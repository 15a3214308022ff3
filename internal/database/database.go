package database

import (
	"fmt"
	"time"

	"dbwatch/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

var DB *gorm.DB

// InitDB opens the backing store, migrates the schema and seeds the
// default alert email templates.
func InitDB(config Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch config.Driver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			config.User, config.Password, config.Host, config.Port, config.DBName)
		dialector = mysql.Open(dsn)
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(config.DBName)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", config.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	DB = db

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate runs schema migration and default-row seeding on an open store.
// Split out so tests can run it against an in-memory sqlite database.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Group{},
		&models.Database{},
		&models.FileSystem{},
		&models.Threshold{},
		&models.Alert{},
		&models.Setting{},
		&models.EmailTemplate{},
		&models.ItsdIntegration{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := seedDefaultEmailTemplates(db); err != nil {
		return fmt.Errorf("failed to seed email templates: %w", err)
	}

	return nil
}

// seedDefaultEmailTemplates inserts the stock alert templates if none exist.
func seedDefaultEmailTemplates(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.EmailTemplate{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	templates := []models.EmailTemplate{
		{
			Name:    "critical_alert",
			Subject: "[CRITICAL] {database}: {metric} alert",
			Body: "<h2>Critical alert</h2>" +
				"<p>Database: {database}</p>" +
				"<p>Metric: {metric}</p>" +
				"<p>Value: {value}</p>" +
				"<p>{message}</p>" +
				"<p>Severity: {severity}</p>" +
				"<p>Time: {time}</p>" +
				"<p>Ticket: {ticket_id}</p>",
		},
		{
			Name:    "warning_alert",
			Subject: "[WARNING] {database}: {metric} alert",
			Body: "<h2>Warning alert</h2>" +
				"<p>Database: {database}</p>" +
				"<p>Metric: {metric}</p>" +
				"<p>Value: {value}</p>" +
				"<p>{message}</p>" +
				"<p>Severity: {severity}</p>" +
				"<p>Time: {time}</p>",
		},
	}

	for _, tmpl := range templates {
		if err := db.Create(&tmpl).Error; err != nil {
			return err
		}
	}

	return nil
}

func GetDB() *gorm.DB {
	return DB
}
