// Package db opens the front-desk store and manages its schema.
package db

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/zulandar/frontdesk/internal/apperr"
	"github.com/zulandar/frontdesk/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryPath opens a private in-memory sqlite database.
const MemoryPath = ":memory:"

// SQLiteDSN builds the sqlite DSN for path. File databases run in WAL mode
// with a busy timeout so readers do not block the single writer.
func SQLiteDSN(path string) string {
	if path == MemoryPath {
		return path
	}
	return path + "?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
}

// MySQLDSN builds a MySQL DSN from storage configuration.
func MySQLDSN(cfg config.StorageConfig) string {
	mc := mysqldrv.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc.FormatDSN()
}

// Connect opens a GORM connection for the configured storage driver.
//
// Writes are serialised through a single connection on sqlite, which keeps
// an in-memory database shared across callers.
func Connect(cfg config.StorageConfig) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(SQLiteDSN(cfg.Path))
	case "mysql":
		dialector = mysql.Open(MySQLDSN(cfg))
	default:
		return nil, fmt.Errorf("db: unknown driver %q", cfg.Driver)
	}

	gdb, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("db: connect %s: %w", describe(cfg), err)
	}
	if cfg.Driver == "" || cfg.Driver == "sqlite" {
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("db: connect %s: %w", describe(cfg), err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return gdb, nil
}

// Close releases the underlying connection pool.
func Close(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("db: close: %w", err)
	}
	return sqlDB.Close()
}

func describe(cfg config.StorageConfig) string {
	if cfg.Driver == "mysql" {
		return fmt.Sprintf("mysql %s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
	}
	return "sqlite " + cfg.Path
}

// MySQL error numbers for lock contention.
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// IsBusy reports whether err is transient lock contention in the store.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var me *mysqldrv.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlLockWaitTimeout || me.Number == mysqlDeadlock
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// TranslateError maps a driver error onto the shared failure taxonomy:
// gorm.ErrRecordNotFound becomes NotFound, lock contention becomes Busy, and
// anything else is a StorageFailure. Errors that already carry a kind pass
// through unchanged.
func TranslateError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case apperr.KindOf(err) != apperr.KindUnknown:
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	case IsBusy(err):
		return fmt.Errorf("%s: %w: %w", op, apperr.ErrBusy, err)
	default:
		return apperr.Storage(op, err)
	}
}
