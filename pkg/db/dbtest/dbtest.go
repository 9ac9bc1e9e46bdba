// Package dbtest opens throwaway SQLite databases migrated with the real schema.
package dbtest

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/grocery-backend/pkg/config"
	"github.com/angelmondragon/grocery-backend/pkg/db"
	"github.com/angelmondragon/grocery-backend/pkg/migrate"
)

// Open returns a migrated GORM handle backed by a file in t.TempDir.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "grocery_test.db")
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)

	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.New(log.New(io.Discard, "", 0), gormlogger.Config{LogLevel: gormlogger.Silent}),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate.Run(context.Background(), sqlDB, config.DBDriverSQLite, "up"); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// Client wraps Open in a db.Client so services get a real transaction runner.
func Client(t *testing.T) *db.Client {
	t.Helper()
	return db.NewFromConn(Open(t), config.DBDriverSQLite)
}

// MustCreate inserts rows and fails the test on error.
func MustCreate(t *testing.T, conn *gorm.DB, rows ...any) {
	t.Helper()
	for _, row := range rows {
		if err := conn.Create(row).Error; err != nil {
			t.Fatalf("seed %T: %v", row, err)
		}
	}
}
