package db

import (
	"errors"
	"strings"
	"testing"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/zulandar/frontdesk/internal/apperr"
	"github.com/zulandar/frontdesk/internal/config"
	"github.com/zulandar/frontdesk/internal/models"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := Connect(config.StorageConfig{Driver: "sqlite", Path: MemoryPath})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	t.Cleanup(func() { Close(gdb) })
	return gdb
}

func TestSQLiteDSN(t *testing.T) {
	if got := SQLiteDSN(MemoryPath); got != MemoryPath {
		t.Errorf("SQLiteDSN(memory) = %q, want %q", got, MemoryPath)
	}
	got := SQLiteDSN("/tmp/fd.db")
	for _, want := range []string{"/tmp/fd.db?", "_journal_mode=WAL", "_busy_timeout=5000"} {
		if !strings.Contains(got, want) {
			t.Errorf("SQLiteDSN = %q, want to contain %q", got, want)
		}
	}
}

func TestMySQLDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StorageConfig
		want []string
	}{
		{
			name: "default local",
			cfg:  config.StorageConfig{Host: "127.0.0.1", Port: 3306, User: "root", Database: "frontdesk"},
			want: []string{"root@tcp(127.0.0.1:3306)/frontdesk", "parseTime=true"},
		},
		{
			name: "with password",
			cfg:  config.StorageConfig{Host: "db.internal", Port: 3307, User: "desk", Password: "s3cret", Database: "fd"},
			want: []string{"desk:s3cret@tcp(db.internal:3307)/fd"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MySQLDSN(tt.cfg)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("MySQLDSN() = %q, want to contain %q", got, w)
				}
			}
		})
	}
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect(config.StorageConfig{Driver: "postgres"})
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if !strings.Contains(err.Error(), "unknown driver") {
		t.Errorf("error = %q, want to contain 'unknown driver'", err)
	}
}

func TestAllModels_Count(t *testing.T) {
	if got := len(AllModels()); got != 8 {
		t.Errorf("AllModels() count = %d, want 8", got)
	}
}

func TestAutoMigrate_Tables(t *testing.T) {
	gdb := testDB(t)
	for _, m := range AllModels() {
		if !gdb.Migrator().HasTable(m) {
			t.Errorf("table for %T not created", m)
		}
	}
	// Idempotent.
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("second AutoMigrate: %v", err)
	}
}

func TestReset(t *testing.T) {
	gdb := testDB(t)
	if err := gdb.Create(&models.KBEntry{Title: "t", Content: "c", Enabled: true}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := Reset(gdb); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	var n int64
	gdb.Model(&models.KBEntry{}).Count(&n)
	if n != 0 {
		t.Errorf("kb entries after reset = %d, want 0", n)
	}
}

func TestSeedRoster(t *testing.T) {
	gdb := testDB(t)
	inactive := false
	roster := []config.EmployeeEntry{
		{ID: "E1", Name: "Alice", Phone: "13800000001"},
		{ID: "E2", Name: "Bob", Phone: "13800000002", Active: &inactive},
	}
	if err := SeedRoster(gdb, roster); err != nil {
		t.Fatalf("SeedRoster: %v", err)
	}

	var e1, e2 models.Employee
	gdb.First(&e1, "id = ?", "E1")
	gdb.First(&e2, "id = ?", "E2")
	if !e1.Active || e1.Phone != "13800000001" {
		t.Errorf("E1 = %+v", e1)
	}
	if e2.Active {
		t.Error("E2 should be inactive")
	}

	// Re-seed with a renamed E1 and without E2.
	roster = []config.EmployeeEntry{{ID: "E1", Name: "Alicia", Phone: "13800000001"}}
	if err := SeedRoster(gdb, roster); err != nil {
		t.Fatalf("SeedRoster again: %v", err)
	}
	var count int64
	gdb.Model(&models.Employee{}).Count(&count)
	if count != 2 {
		t.Errorf("employee count = %d, want 2", count)
	}
	gdb.First(&e1, "id = ?", "E1")
	if e1.Name != "Alicia" {
		t.Errorf("E1 name = %q, want %q", e1.Name, "Alicia")
	}
	gdb.First(&e2, "id = ?", "E2")
	if e2.Active {
		t.Error("E2 should be deactivated when dropped from roster")
	}
}

func TestSeedRoster_NameDefaultsToID(t *testing.T) {
	gdb := testDB(t)
	if err := SeedRoster(gdb, []config.EmployeeEntry{{ID: "E9", Phone: "139"}}); err != nil {
		t.Fatalf("SeedRoster: %v", err)
	}
	var e models.Employee
	gdb.First(&e, "id = ?", "E9")
	if e.Name != "E9" {
		t.Errorf("Name = %q, want %q", e.Name, "E9")
	}
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"nil", nil, apperr.KindNone},
		{"not found", gorm.ErrRecordNotFound, apperr.KindNotFound},
		{"sqlite locked", errors.New("database is locked"), apperr.KindBusy},
		{"mysql deadlock", &mysqldrv.MySQLError{Number: 1213, Message: "Deadlock found"}, apperr.KindBusy},
		{"mysql lock wait", &mysqldrv.MySQLError{Number: 1205, Message: "Lock wait timeout"}, apperr.KindBusy},
		{"mysql other", &mysqldrv.MySQLError{Number: 1062, Message: "Duplicate entry"}, apperr.KindStorage},
		{"other", errors.New("disk I/O error"), apperr.KindStorage},
		{"closed", errors.New("sql: database is closed"), apperr.KindStorage},
		{"conflict kept", &apperr.ConflictError{EmployeeID: "E1", JobIDs: []string{"job-a"}}, apperr.KindConflict},
		{"transition kept", apperr.ErrInvalidTransition, apperr.KindInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := apperr.KindOf(TranslateError("op", tt.err)); got != tt.want {
				t.Errorf("KindOf(TranslateError()) = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTranslateError_ClassifiedUnchanged(t *testing.T) {
	err := &apperr.ConflictError{EmployeeID: "E1"}
	if got := TranslateError("op", err); got != error(err) {
		t.Errorf("TranslateError() = %v, want the original error", got)
	}
}
