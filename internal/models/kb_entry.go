package models

import "time"

// KBEntry is an operator-curated knowledge snippet used as reply context.
type KBEntry struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Title     string `gorm:"size:256;not null"`
	Content   string `gorm:"type:text;not null"`
	Tags      string `gorm:"size:256"`
	Enabled   bool   `gorm:"not null"`
	Version   int    `gorm:"not null;default:1"`
	UpdatedAt time.Time
}
