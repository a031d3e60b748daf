package repo

import (
	"fmt"
	"strings"

	"MDShelf/internal/model"

	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// SQLitePrefix — префикс DSN, выбирающий встроенную SQLite вместо PostgreSQL.
const SQLitePrefix = "sqlite:"

// InitDB открывает БД по DSN и применяет миграции моделей.
// "sqlite:<path>" — файл SQLite (":memory:" в памяти), иначе DSN PostgreSQL.
func InitDB(dsn string) (*gorm.DB, error) {
	var dial gorm.Dialector
	if path, ok := strings.CutPrefix(dsn, SQLitePrefix); ok {
		if path == "" || path == ":memory:" {
			path = "file::memory:?cache=shared"
		}
		dial = gormsqlite.Dialector{DriverName: "sqlite", DSN: path}
	} else {
		if dsn == "" {
			return nil, fmt.Errorf("database DSN is empty")
		}
		dial = postgres.Open(dsn)
	}

	db, err := gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate создаёт/обновляет таблицы серверных моделей.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.User{}, &model.Article{}, &model.IdempotencyKey{}); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}
