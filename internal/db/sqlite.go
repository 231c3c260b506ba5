package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLite opens a SQLite database with foreign keys enforced. ":memory:" is
// pinned to a single connection so every query sees the same database.
func NewSQLite(dsn string) (*gorm.DB, error) {
	memory := dsn == ":memory:"
	switch {
	case memory:
		dsn = "file::memory:?_foreign_keys=on"
	case !strings.Contains(dsn, "_foreign_keys"):
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_foreign_keys=on"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	if memory {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}
