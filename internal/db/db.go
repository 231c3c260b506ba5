package db

import (
	"fmt"

	"gorm.io/gorm"

	"rescueboard/internal/config"
	"rescueboard/internal/model"
)

// Open connects to the database selected by cfg.DBDriver.
func Open(cfg *config.Config) (*gorm.DB, error) {
	switch cfg.DBDriver {
	case "mysql":
		return NewMySQL(cfg.MySQLDSN)
	case "sqlite":
		return NewSQLite(cfg.SQLiteDSN)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// Migrate creates or updates the users and foods tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.User{}, &model.Food{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
