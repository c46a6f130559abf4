package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tg-scriptguard/internal/config"
	"tg-scriptguard/internal/logger"
	"tg-scriptguard/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	// DB is the global database connection
	DB *gorm.DB
)

// AllModels lists every table owned by the bot, in migration order.
var AllModels = []interface{}{
	&models.GroupInfo{},
	&models.UserProfile{},
	&models.WarningRecord{},
	&models.WarningHistory{},
	&models.WarningOverride{},
	&models.BypassEntry{},
	&models.RemovedUser{},
	&models.PermissionRole{},
	&models.Operator{},
	&models.OperatorLink{},
}

// Initialize sets up the database connection based on configuration
func Initialize(cfg *config.Config) error {
	db, err := Open(cfg)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open connects to the configured driver without touching the global.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: NewCustomGormLogger(cfg.Logger.Level),
	}

	switch cfg.Database.Driver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
			cfg.Database.Username,
			cfg.Database.Password,
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.DBName,
			cfg.Database.Charset,
		)
		logger.Infof("Connecting to database: %s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)

		db, err := gorm.Open(mysql.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get SQL DB: %w", err)
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
		logger.Infof("Database connection established successfully")
		return db, nil

	case "sqlite":
		if dir := filepath.Dir(cfg.Database.Path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		logger.Infof("Opening sqlite database: %s", cfg.Database.Path)
		return OpenSQLite(cfg.Database.Path+"?_busy_timeout=5000&_foreign_keys=on", gormCfg)

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// OpenSQLite opens a sqlite database with a single connection, so that
// transactions serialize instead of failing with SQLITE_BUSY.
func OpenSQLite(dsn string, gormCfg *gorm.Config) (*gorm.DB, error) {
	if gormCfg == nil {
		gormCfg = &gorm.Config{Logger: NewCustomGormLogger("WARNING")}
	}
	db, err := gorm.Open(sqlite.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get SQL DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Reset drops and recreates every table.
func Reset(db *gorm.DB) error {
	if err := db.Migrator().DropTable(AllModels...); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return Migrate(db)
}

// TableStatus reports existence and row count per table.
type TableStatus struct {
	Name   string
	Exists bool
	Rows   int64
}

func Status(db *gorm.DB) ([]TableStatus, error) {
	out := make([]TableStatus, 0, len(AllModels))
	for _, m := range AllModels {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return nil, fmt.Errorf("parse model: %w", err)
		}
		st := TableStatus{Name: stmt.Schema.Table, Exists: db.Migrator().HasTable(m)}
		if st.Exists {
			if err := db.Model(m).Count(&st.Rows).Error; err != nil {
				return nil, fmt.Errorf("count %s: %w", st.Name, err)
			}
		}
		out = append(out, st)
	}
	return out, nil
}

// GetDB returns the database connection
func GetDB() *gorm.DB {
	return DB
}
