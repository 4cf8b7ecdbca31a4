package db

import (
	"fmt"

	"github.com/zulandar/frontdesk/internal/config"
	"github.com/zulandar/frontdesk/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Contact{},
		&models.Employee{},
		&models.Session{},
		&models.Message{},
		&models.Job{},
		&models.JobEvent{},
		&models.LeaveRequest{},
		&models.KBEntry{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// Reset drops every table and migrates a fresh schema.
func Reset(db *gorm.DB) error {
	if err := db.Migrator().DropTable(AllModels()...); err != nil {
		return fmt.Errorf("db: reset: %w", err)
	}
	return AutoMigrate(db)
}

// SeedRoster upserts Employee rows from the configured roster and marks
// every employee missing from it inactive.
func SeedRoster(db *gorm.DB, roster []config.EmployeeEntry) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		ids := make([]string, 0, len(roster))
		for _, e := range roster {
			emp := models.Employee{
				ID:     e.ID,
				Name:   e.Name,
				Phone:  e.Phone,
				Active: e.IsActive(),
			}
			if emp.Name == "" {
				emp.Name = e.ID
			}
			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "phone", "active", "updated_at"}),
			}).Create(&emp)
			if result.Error != nil {
				return fmt.Errorf("db: seed employee %q: %w", e.ID, result.Error)
			}
			ids = append(ids, e.ID)
		}

		q := tx.Model(&models.Employee{})
		if len(ids) > 0 {
			q = q.Where("id NOT IN ?", ids)
		} else {
			q = q.Where("1 = 1")
		}
		if err := q.Update("active", false).Error; err != nil {
			return fmt.Errorf("db: deactivate employees: %w", err)
		}
		return nil
	})
	return TranslateError("db: seed roster", err)
}
