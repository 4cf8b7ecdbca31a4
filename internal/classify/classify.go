// Package classify maps phone numbers to contacts and detects leave requests
// in employee messages.
package classify

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/frontdesk/internal/apperr"
	"github.com/zulandar/frontdesk/internal/db"
	"github.com/zulandar/frontdesk/internal/models"
	"github.com/zulandar/frontdesk/internal/phone"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Result is the outcome of classifying one message.
type Result struct {
	Contact    *models.Contact
	Kind       models.ContactKind
	EmployeeID string
	Created    bool // contact was first seen with this message
	Leave      *LeaveIntent
}

// Classifier resolves contacts and runs leave detection for employees.
type Classifier struct {
	Detector LeaveDetector
	Log      *zap.Logger
}

// New returns a Classifier using detector, or a RuleDetector in loc when
// detector is nil.
func New(detector LeaveDetector, loc *time.Location, log *zap.Logger) *Classifier {
	if detector == nil {
		detector = NewRuleDetector(loc)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{Detector: detector, Log: log}
}

// Classify returns the contact kind for phoneNumber and, for employees, any
// leave intent in body. An unknown number is classified against the roster
// and persisted as a Contact in tx.
func (c *Classifier) Classify(tx *gorm.DB, phoneNumber, body string, at time.Time) (*Result, error) {
	p := phone.Normalize(phoneNumber)
	if p == "" {
		return nil, fmt.Errorf("classify: phone is required")
	}

	contact, created, err := resolveContact(tx, p)
	if err != nil {
		return nil, err
	}
	res := &Result{Contact: contact, Kind: contact.Kind, Created: created}
	if contact.EmployeeID != nil {
		res.EmployeeID = *contact.EmployeeID
	}
	if res.Kind == models.KindEmployee && res.EmployeeID != "" {
		res.Leave = c.detect(body, at)
	}
	return res, nil
}

// detect runs the leave detector, treating a panic as no intent.
func (c *Classifier) detect(body string, at time.Time) (intent *LeaveIntent) {
	defer func() {
		if r := recover(); r != nil {
			c.Log.Error("leave detector panicked", zap.Any("panic", r))
			intent = nil
		}
	}()
	li, ok := c.Detector.Detect(body, at)
	if !ok {
		return nil
	}
	if li.Window != nil && !li.Window.Valid() {
		li.Window = nil
	}
	return &li
}

// resolveContact returns the stored contact for p, creating it from the
// roster on first sight.
func resolveContact(tx *gorm.DB, p string) (*models.Contact, bool, error) {
	var contact models.Contact
	err := tx.Where("phone = ?", p).First(&contact).Error
	if err == nil {
		return &contact, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, db.TranslateError("classify: lookup contact "+p, err)
	}

	contact = models.Contact{Phone: p, Kind: models.KindCustomer}
	var emp models.Employee
	err = tx.Where("phone = ? AND active = ?", p, true).First(&emp).Error
	switch {
	case err == nil:
		contact.Kind = models.KindEmployee
		contact.EmployeeID = &emp.ID
		contact.DisplayName = emp.Name
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, db.TranslateError("classify: lookup roster "+p, err)
	}

	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&contact)
	if result.Error != nil {
		return nil, false, db.TranslateError("classify: create contact "+p, result.Error)
	}
	if result.RowsAffected == 0 {
		// Created concurrently; the stored kind wins.
		if err := tx.Where("phone = ?", p).First(&contact).Error; err != nil {
			return nil, false, db.TranslateError("classify: reload contact "+p, err)
		}
		return &contact, false, nil
	}
	return &contact, true, nil
}

// GetContact returns the contact stored for phoneNumber.
func GetContact(tx *gorm.DB, phoneNumber string) (*models.Contact, error) {
	p := phone.Normalize(phoneNumber)
	var contact models.Contact
	if err := tx.Where("phone = ?", p).First(&contact).Error; err != nil {
		return nil, db.TranslateError("classify: contact "+p, err)
	}
	return &contact, nil
}

// ListContacts returns contacts in first-seen order, optionally filtered by
// kind.
func ListContacts(tx *gorm.DB, kind models.ContactKind) ([]models.Contact, error) {
	q := tx.Order("created_at ASC").Order("phone ASC")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var contacts []models.Contact
	if err := q.Find(&contacts).Error; err != nil {
		return nil, db.TranslateError("classify: list contacts", err)
	}
	return contacts, nil
}

// Reclassify changes a contact's kind on operator request. Reclassifying as
// employee requires a roster entry with the same phone.
func Reclassify(tx *gorm.DB, phoneNumber string, kind models.ContactKind) (*models.Contact, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("classify: invalid contact kind %q", kind)
	}
	contact, err := GetContact(tx, phoneNumber)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"kind": kind}
	if kind == models.KindEmployee {
		var emp models.Employee
		if err := tx.Where("phone = ?", contact.Phone).First(&emp).Error; err != nil {
			return nil, fmt.Errorf("classify: reclassify %s: no roster entry: %w", contact.Phone, apperr.ErrNotFound)
		}
		updates["employee_id"] = emp.ID
		if contact.DisplayName == "" {
			updates["display_name"] = emp.Name
		}
	} else {
		updates["employee_id"] = nil
	}

	if err := tx.Model(contact).Updates(updates).Error; err != nil {
		return nil, db.TranslateError("classify: reclassify "+contact.Phone, err)
	}
	return GetContact(tx, contact.Phone)
}
