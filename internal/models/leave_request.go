package models

import "time"

// LeaveStatus tracks an employee leave request through operator review.
type LeaveStatus string

// Leave request statuses.
const (
	LeavePending      LeaveStatus = "pending"
	LeaveAcknowledged LeaveStatus = "acknowledged"
)

// Resolution is the operator's answer to a leave conflict.
type Resolution string

// Leave conflict resolutions.
const (
	Reschedule Resolution = "reschedule"
	Override   Resolution = "override"
)

// LeaveRequest is an employee's request for time off, detected from an
// inbound message. A nil window means the requested time was not understood.
type LeaveRequest struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	EmployeeID      string `gorm:"size:32;not null;index"`
	WindowStart     *time.Time
	WindowEnd       *time.Time
	Content         string      `gorm:"type:text"`
	SourceMessageID string      `gorm:"size:64;index"`
	Status          LeaveStatus `gorm:"size:16;not null;default:pending;index"`
	Override        bool        `gorm:"default:false"`
	Resolution      Resolution  `gorm:"size:16"`
	ConflictJobIDs  string      `gorm:"type:json"` // JSON array of job IDs at creation time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ResolvedAt      *time.Time
}

// Window returns the requested window and whether it is known.
func (r *LeaveRequest) Window() (Window, bool) {
	if r.WindowStart == nil || r.WindowEnd == nil {
		return Window{}, false
	}
	return Window{Start: *r.WindowStart, End: *r.WindowEnd}, true
}
