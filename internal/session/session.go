// Package session keeps one conversation thread per phone number.
package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zulandar/frontdesk/internal/apperr"
	"github.com/zulandar/frontdesk/internal/db"
	"github.com/zulandar/frontdesk/internal/models"
	"github.com/zulandar/frontdesk/internal/phone"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// previewRunes bounds the stored last-message preview.
const previewRunes = 120

// RecordMessage folds msg into its phone's session, creating the session on
// first sight, and sets msg.SessionID. Activity only moves forward, so
// replaying messages in any order yields the same session state.
func RecordMessage(tx *gorm.DB, msg *models.Message) (uint, error) {
	if msg.Phone == "" {
		return 0, fmt.Errorf("session: phone is required")
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	s := models.Session{Phone: msg.Phone, LastActivityAt: msg.Timestamp}
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&s)
	if result.Error != nil {
		return 0, db.TranslateError("session: create "+msg.Phone, result.Error)
	}
	if result.RowsAffected == 0 {
		if err := tx.Where("phone = ?", msg.Phone).First(&s).Error; err != nil {
			return 0, db.TranslateError("session: load "+msg.Phone, err)
		}
	}

	updates := map[string]interface{}{}
	if !msg.Timestamp.Before(s.LastActivityAt) {
		updates["last_activity_at"] = msg.Timestamp
		updates["last_message"] = preview(msg.Body)
	}
	if msg.Direction == models.Inbound {
		updates["unread_count"] = gorm.Expr("unread_count + ?", 1)
	}
	if len(updates) > 0 {
		if err := tx.Model(&models.Session{}).Where("id = ?", s.ID).Updates(updates).Error; err != nil {
			return 0, db.TranslateError("session: update "+msg.Phone, err)
		}
	}

	msg.SessionID = s.ID
	return s.ID, nil
}

// Get returns the session for a phone number.
func Get(tx *gorm.DB, phoneNumber string) (*models.Session, error) {
	p := phone.Normalize(phoneNumber)
	var s models.Session
	if err := tx.Preload("Contact").Where("phone = ?", p).First(&s).Error; err != nil {
		return nil, db.TranslateError("session: get "+p, err)
	}
	return &s, nil
}

// MarkRead resets the unread count of a phone's session.
func MarkRead(tx *gorm.DB, phoneNumber string) error {
	p := phone.Normalize(phoneNumber)
	result := tx.Model(&models.Session{}).Where("phone = ?", p).Update("unread_count", 0)
	if result.Error != nil {
		return db.TranslateError("session: mark read "+p, result.Error)
	}
	if result.RowsAffected == 0 {
		var n int64
		if err := tx.Model(&models.Session{}).Where("phone = ?", p).Count(&n).Error; err != nil {
			return db.TranslateError("session: mark read "+p, err)
		}
		if n == 0 {
			return fmt.Errorf("session: %s: %w", p, apperr.ErrNotFound)
		}
	}
	return nil
}

// ListFilters narrows List.
type ListFilters struct {
	Kind       models.ContactKind
	Query      string // matches phone, display name or last message
	UnreadOnly bool
}

// List returns sessions newest activity first. Ties keep creation order.
func List(tx *gorm.DB, f ListFilters) ([]models.Session, error) {
	q := tx.Preload("Contact")
	if f.Kind != "" {
		q = q.Joins("JOIN contacts ON contacts.phone = sessions.phone").
			Where("contacts.kind = ?", f.Kind)
	}
	if f.UnreadOnly {
		q = q.Where("sessions.unread_count > 0")
	}

	var sessions []models.Session
	if err := q.Find(&sessions).Error; err != nil {
		return nil, db.TranslateError("session: list", err)
	}

	if needle := strings.ToLower(strings.TrimSpace(f.Query)); needle != "" {
		kept := sessions[:0]
		for _, s := range sessions {
			if matches(s, needle) {
				kept = append(kept, s)
			}
		}
		sessions = kept
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.LastActivityAt.Equal(b.LastActivityAt) {
			return a.LastActivityAt.After(b.LastActivityAt)
		}
		return a.ID < b.ID
	})
	return sessions, nil
}

func matches(s models.Session, needle string) bool {
	if strings.Contains(s.Phone, needle) || strings.Contains(strings.ToLower(s.LastMessage), needle) {
		return true
	}
	return s.Contact != nil && strings.Contains(strings.ToLower(s.Contact.DisplayName), needle)
}

// TotalUnread sums unread counts across all sessions.
func TotalUnread(tx *gorm.DB) (int64, error) {
	var total int64
	err := tx.Model(&models.Session{}).Select("COALESCE(SUM(unread_count), 0)").Scan(&total).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, db.TranslateError("session: total unread", err)
	}
	return total, nil
}

func preview(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	r := []rune(body)
	if len(r) <= previewRunes {
		return body
	}
	return string(r[:previewRunes]) + "…"
}
