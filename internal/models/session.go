package models

import "time"

// Session is the single conversation thread for one phone number. It is
// derived from the message log; ID order is creation order.
type Session struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	Phone          string    `gorm:"size:32;not null;uniqueIndex"`
	LastActivityAt time.Time `gorm:"index"`
	UnreadCount    int       `gorm:"not null;default:0"`
	LastMessage    string    `gorm:"size:512"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Contact *Contact `gorm:"foreignKey:Phone;references:Phone"`
}
