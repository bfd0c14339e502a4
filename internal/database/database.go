package database

import (
	"fmt"
	"time"

	"listing-portal/internal/config"
	"listing-portal/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB wraps the gorm handle and exposes the narrow read/write contracts used
// by the sync orchestrator and the query service.
type DB struct {
	db *gorm.DB
}

// New opens a database connection based on configuration. MySQL is the
// production driver; SQLite serves local development and tests.
func New(cfg config.DatabaseConfig) (*DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	var db *gorm.DB
	var err error

	switch cfg.Type {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.SQLite.Path), gormCfg)
	default:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.MySQL.User, cfg.MySQL.Password, cfg.MySQL.Host, cfg.MySQL.Port, cfg.MySQL.Database)
		db, err = gorm.Open(mysql.Open(dsn), gormCfg)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}

	return &DB{db: db}, nil
}

// NewFromGorm wraps an existing gorm.DB instance (used by tests).
func NewFromGorm(db *gorm.DB) *DB {
	return &DB{db: db}
}

// Gorm returns the underlying gorm.DB instance
func (d *DB) Gorm() *gorm.DB {
	return d.db
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InitSchema creates tables using GORM AutoMigrate
func (d *DB) InitSchema() error {
	return d.db.AutoMigrate(
		&models.Listing{},
		&models.Media{},
		&models.PriceHistory{},
		&models.StatusHistory{},
		&models.DataSource{},
		&models.Office{},
		&models.Member{},
		&models.SyncRun{},
		&models.EnrichmentQueue{},
		&models.PurgeLog{},
	)
}
