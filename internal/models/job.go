package models

import "time"

// JobState is a position in the dispatch state machine.
type JobState string

// Job states. Done and Cancelled are terminal.
const (
	JobOpen      JobState = "open"
	JobHeld      JobState = "held"
	JobConfirmed JobState = "confirmed"
	JobDone      JobState = "done"
	JobCancelled JobState = "cancelled"
)

// Active reports whether a job in this state occupies its employee's time.
func (s JobState) Active() bool {
	return s == JobHeld || s == JobConfirmed
}

// Terminal reports whether no further transitions are possible.
func (s JobState) Terminal() bool {
	return s == JobDone || s == JobCancelled
}

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether the window has positive length.
func (w Window) Valid() bool {
	return w.Start.Before(w.End)
}

// Overlaps reports whether two half-open windows intersect. Windows that only
// touch at an endpoint do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Job is a schedulable unit of work owned by the dispatch engine.
type Job struct {
	ID            string    `gorm:"primaryKey;size:32"`
	Title         string    `gorm:"size:256;not null"`
	Address       string    `gorm:"size:256"`
	ContactPhone  string    `gorm:"size:32"`
	Notes         string    `gorm:"type:text"`
	SourcePhone   string    `gorm:"size:32;index"`
	EmployeeID    *string   `gorm:"size:32;index:idx_job_employee_state"`
	State         JobState  `gorm:"size:16;not null;default:open;index:idx_job_employee_state"`
	WindowStart   time.Time `gorm:"not null;index"`
	WindowEnd     time.Time `gorm:"not null"`
	HoldExpiresAt *time.Time
	HeldAt        *time.Time
	ConfirmedAt   *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Events []JobEvent `gorm:"foreignKey:JobID"`
}

// Window returns the job's time window.
func (j *Job) Window() Window {
	return Window{Start: j.WindowStart, End: j.WindowEnd}
}

// Assignee returns the assigned employee ID, or "" when unassigned.
func (j *Job) Assignee() string {
	if j.EmployeeID == nil {
		return ""
	}
	return *j.EmployeeID
}

// JobEvent records one state change of a job.
type JobEvent struct {
	ID         uint     `gorm:"primaryKey;autoIncrement"`
	JobID      string   `gorm:"size:32;not null;index"`
	FromState  JobState `gorm:"size:16"`
	ToState    JobState `gorm:"size:16;not null"`
	EmployeeID string   `gorm:"size:32"`
	Reason     string   `gorm:"size:256"`
	CreatedAt  time.Time
}
