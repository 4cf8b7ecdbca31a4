// Package messaging is the append-only log of inbound and outbound messages.
package messaging

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/frontdesk/internal/db"
	"github.com/zulandar/frontdesk/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Keys stored in Message.Meta.
const (
	MetaChannel       = "channel"
	MetaGatewayID     = "gateway_id"
	MetaGatewayStatus = "gateway_status"
)

// NewID returns a fresh message ID.
func NewID() string {
	return uuid.NewString()
}

// Append stores msg unless a message with the same ID already exists. It
// reports whether a row was written. A missing ID or timestamp is filled in;
// timestamps are stored in UTC.
func Append(tx *gorm.DB, msg *models.Message) (bool, error) {
	if msg.Phone == "" {
		return false, fmt.Errorf("messaging: phone is required")
	}
	if msg.Direction != models.Inbound && msg.Direction != models.Outbound {
		return false, fmt.Errorf("messaging: invalid direction %q", msg.Direction)
	}
	if msg.ID == "" {
		msg.ID = NewID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	msg.Timestamp = msg.Timestamp.UTC()

	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(msg)
	if result.Error != nil {
		return false, db.TranslateError("messaging: append "+msg.ID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Get returns the message with the given ID.
func Get(tx *gorm.DB, id string) (*models.Message, error) {
	var msg models.Message
	if err := tx.Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, db.TranslateError("messaging: get "+id, err)
	}
	return &msg, nil
}

// List returns the newest limit messages for phone in chronological order.
// A limit <= 0 returns the whole conversation.
func List(tx *gorm.DB, phone string, limit int) ([]models.Message, error) {
	if phone == "" {
		return nil, fmt.Errorf("messaging: phone is required")
	}
	q := tx.Where("phone = ?", phone).Order("timestamp DESC").Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var msgs []models.Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, db.TranslateError("messaging: list "+phone, err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
