// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"testing"

	"github.com/zulandar/frontdesk/internal/config"
	"github.com/zulandar/frontdesk/internal/db"
	"gorm.io/gorm"
)

// New returns a fresh, migrated in-memory sqlite database that is closed when
// the test ends.
func New(tb testing.TB) *gorm.DB {
	tb.Helper()
	gdb, err := db.Connect(config.StorageConfig{Driver: "sqlite", Path: db.MemoryPath})
	if err != nil {
		tb.Fatalf("dbtest: connect: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		tb.Fatalf("dbtest: migrate: %v", err)
	}
	tb.Cleanup(func() { db.Close(gdb) })
	return gdb
}

// Seed creates the given rows, failing the test on error.
func Seed(tb testing.TB, gdb *gorm.DB, rows ...interface{}) {
	tb.Helper()
	for _, r := range rows {
		if err := gdb.Create(r).Error; err != nil {
			tb.Fatalf("dbtest: seed %T: %v", r, err)
		}
	}
}
