// Package dispatch owns jobs: creation, the hold/confirm/complete/cancel
// state machine with per-employee conflict protection, hold expiry and
// employee leave requests.
package dispatch

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/zulandar/frontdesk/internal/apperr"
	"github.com/zulandar/frontdesk/internal/db"
	"github.com/zulandar/frontdesk/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ValidTransitions maps each state to the states an operator action may move
// it to. Releasing a held or confirmed job back to open happens only through
// hold expiry and leave rescheduling.
var ValidTransitions = map[models.JobState][]models.JobState{
	models.JobOpen:      {models.JobHeld, models.JobCancelled},
	models.JobHeld:      {models.JobConfirmed, models.JobCancelled},
	models.JobConfirmed: {models.JobDone, models.JobCancelled},
}

// CanTransition reports whether an operator action may move a job from one
// state to another.
func CanTransition(from, to models.JobState) bool {
	for _, s := range ValidTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// DefaultLockTimeout bounds the wait for an employee lock.
const DefaultLockTimeout = 2 * time.Second

// Options tunes an Engine.
type Options struct {
	HoldTTL     time.Duration // 0 disables hold expiry
	LockTimeout time.Duration
	Now         func() time.Time
	Log         *zap.Logger
}

// Engine runs dispatch operations against the store.
type Engine struct {
	db          *gorm.DB
	locks       *employeeLocks
	holdTTL     atomic.Int64 // nanoseconds
	lockTimeout time.Duration
	now         func() time.Time
	log         *zap.Logger
}

// New returns an Engine over gdb.
func New(gdb *gorm.DB, opts Options) *Engine {
	if opts.LockTimeout == 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	e := &Engine{
		db:          gdb,
		locks:       newEmployeeLocks(),
		lockTimeout: opts.LockTimeout,
		now:         opts.Now,
		log:         opts.Log,
	}
	e.holdTTL.Store(int64(opts.HoldTTL))
	return e
}

// SetHoldTTL changes the expiry applied to new holds.
func (e *Engine) SetHoldTTL(ttl time.Duration) {
	e.holdTTL.Store(int64(ttl))
}

// HoldTTL returns the expiry applied to new holds, 0 for none.
func (e *Engine) HoldTTL() time.Duration {
	return time.Duration(e.holdTTL.Load())
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

// CreateOpts holds parameters for creating a job.
type CreateOpts struct {
	Title        string
	Window       models.Window
	Address      string
	ContactPhone string
	Notes        string
	SourcePhone  string
}

// GenerateID creates a job ID in job-xxxxx format (5-char hex).
func GenerateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("dispatch: generate ID: %w", err)
	}
	return "job-" + hex.EncodeToString(b)[:5], nil
}

// CreateJob creates an open, unassigned job.
func (e *Engine) CreateJob(ctx context.Context, opts CreateOpts) (*models.Job, error) {
	if opts.Title == "" {
		return nil, fmt.Errorf("dispatch: title is required")
	}
	if !opts.Window.Valid() {
		return nil, fmt.Errorf("dispatch: window [%s, %s): %w",
			opts.Window.Start.Format(time.RFC3339), opts.Window.End.Format(time.RFC3339), apperr.ErrInvalidWindow)
	}

	var job models.Job
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := generateUniqueID(tx)
		if err != nil {
			return err
		}
		job = models.Job{
			ID:           id,
			Title:        opts.Title,
			Address:      opts.Address,
			ContactPhone: opts.ContactPhone,
			Notes:        opts.Notes,
			SourcePhone:  opts.SourcePhone,
			State:        models.JobOpen,
			WindowStart:  opts.Window.Start.UTC(),
			WindowEnd:    opts.Window.End.UTC(),
		}
		if err := tx.Create(&job).Error; err != nil {
			return db.TranslateError("dispatch: create job", err)
		}
		return recordEvent(tx, job.ID, "", models.JobOpen, "", "created")
	})
	if err != nil {
		return nil, db.TranslateError("dispatch: create job", err)
	}
	e.log.Info("job created", zap.String("job", job.ID), zap.Time("start", job.WindowStart), zap.Time("end", job.WindowEnd))
	return &job, nil
}

// Get returns a job with its event history.
func (e *Engine) Get(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	err := e.db.WithContext(ctx).
		Preload("Events", func(q *gorm.DB) *gorm.DB { return q.Order("id ASC") }).
		Where("id = ?", jobID).First(&job).Error
	if err != nil {
		return nil, jobError(jobID, err)
	}
	return &job, nil
}

// ListFilters holds optional filters for listing jobs.
type ListFilters struct {
	State      models.JobState
	EmployeeID string
	From, To   time.Time // window intersects [From, To) when both are set
}

// List returns jobs matching the filters, ordered by window start then
// creation time.
func (e *Engine) List(ctx context.Context, f ListFilters) ([]models.Job, error) {
	q := e.db.WithContext(ctx).Model(&models.Job{})
	if f.State != "" {
		q = q.Where("state = ?", f.State)
	}
	if f.EmployeeID != "" {
		q = q.Where("employee_id = ?", f.EmployeeID)
	}

	var jobs []models.Job
	if err := q.Order("window_start ASC, created_at ASC").Find(&jobs).Error; err != nil {
		return nil, db.TranslateError("dispatch: list jobs", err)
	}
	if f.From.IsZero() || f.To.IsZero() {
		return jobs, nil
	}
	span := models.Window{Start: f.From, End: f.To}
	kept := jobs[:0]
	for _, j := range jobs {
		if j.Window().Overlaps(span) {
			kept = append(kept, j)
		}
	}
	return kept, nil
}

// History returns a job's state changes, oldest first.
func (e *Engine) History(ctx context.Context, jobID string) ([]models.JobEvent, error) {
	if _, err := e.Get(ctx, jobID); err != nil {
		return nil, err
	}
	var events []models.JobEvent
	if err := e.db.WithContext(ctx).Where("job_id = ?", jobID).Order("id ASC").Find(&events).Error; err != nil {
		return nil, db.TranslateError("dispatch: history "+jobID, err)
	}
	return events, nil
}

// Employees returns the roster, active members first.
func (e *Engine) Employees(ctx context.Context) ([]models.Employee, error) {
	var emps []models.Employee
	if err := e.db.WithContext(ctx).Order("active DESC, id ASC").Find(&emps).Error; err != nil {
		return nil, db.TranslateError("dispatch: list employees", err)
	}
	return emps, nil
}

func recordEvent(tx *gorm.DB, jobID string, from, to models.JobState, employeeID, reason string) error {
	ev := models.JobEvent{JobID: jobID, FromState: from, ToState: to, EmployeeID: employeeID, Reason: reason}
	if err := tx.Create(&ev).Error; err != nil {
		return db.TranslateError("dispatch: record event "+jobID, err)
	}
	return nil
}

func jobError(jobID string, err error) error {
	return db.TranslateError("dispatch: job "+jobID, err)
}

// generateUniqueID generates an ID and retries once on collision.
func generateUniqueID(tx *gorm.DB) (string, error) {
	for range 2 {
		id, err := GenerateID()
		if err != nil {
			return "", err
		}
		var count int64
		if err := tx.Model(&models.Job{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return "", db.TranslateError("dispatch: check ID uniqueness", err)
		}
		if count == 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("dispatch: failed to generate unique ID after retries")
}
