package models

import "time"

// ContactKind classifies who is on the other end of a phone number.
type ContactKind string

// Contact kinds.
const (
	KindCustomer ContactKind = "customer"
	KindEmployee ContactKind = "employee"
)

// Valid reports whether k is a known contact kind.
func (k ContactKind) Valid() bool {
	return k == KindCustomer || k == KindEmployee
}

// Contact is a phone number the front desk has seen. Kind is fixed at first
// classification and only changes through an explicit operator reclassify.
type Contact struct {
	Phone       string      `gorm:"primaryKey;size:32"`
	DisplayName string      `gorm:"size:128"`
	Kind        ContactKind `gorm:"size:16;not null;default:customer;index"`
	EmployeeID  *string     `gorm:"size:32;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
