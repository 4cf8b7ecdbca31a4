package models

import "time"

// Employee is a roster member who can be assigned jobs.
type Employee struct {
	ID        string `gorm:"primaryKey;size:32"`
	Name      string `gorm:"size:128;not null"`
	Phone     string `gorm:"size:32;not null;uniqueIndex"`
	Active    bool   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
