package models

import (
	"time"

	"gorm.io/datatypes"
)

// Direction records which way a message travelled.
type Direction string

// Message directions.
const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Message is one SMS-style message. Rows are append-only.
type Message struct {
	ID        string            `gorm:"primaryKey;size:64"`
	Phone     string            `gorm:"size:32;not null;index:idx_message_phone_time"`
	Direction Direction         `gorm:"size:8;not null"`
	Body      string            `gorm:"type:text"`
	Timestamp time.Time         `gorm:"not null;index:idx_message_phone_time"`
	SessionID uint              `gorm:"not null;index"`
	Meta      datatypes.JSONMap `gorm:"type:json"`
	CreatedAt time.Time
}
