package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/zulandar/frontdesk/internal/apperr"
	"github.com/zulandar/frontdesk/internal/db"
	"github.com/zulandar/frontdesk/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// leaveContentRunes bounds the stored request text.
const leaveContentRunes = 500

// LeaveOpts describes a detected leave request.
type LeaveOpts struct {
	EmployeeID      string
	Window          *models.Window // nil when the requested time is unknown
	Content         string
	SourceMessageID string
}

// OpenLeaveRequest records a pending leave request in tx along with a
// snapshot of the employee's held or confirmed jobs that overlap the
// requested window. It returns the request and those jobs.
func OpenLeaveRequest(tx *gorm.DB, opts LeaveOpts) (*models.LeaveRequest, []models.Job, error) {
	if opts.EmployeeID == "" {
		return nil, nil, fmt.Errorf("dispatch: employee is required")
	}

	req := models.LeaveRequest{
		EmployeeID:      opts.EmployeeID,
		Content:         truncateRunes(opts.Content, leaveContentRunes),
		SourceMessageID: opts.SourceMessageID,
		Status:          models.LeavePending,
		ConflictJobIDs:  "[]",
	}

	var conflicts []models.Job
	if opts.Window != nil && opts.Window.Valid() {
		start, end := opts.Window.Start.UTC(), opts.Window.End.UTC()
		req.WindowStart, req.WindowEnd = &start, &end

		var err error
		conflicts, err = overlapping(tx, opts.EmployeeID, models.Window{Start: start, End: end}, "")
		if err != nil {
			return nil, nil, err
		}
		snapshot, err := json.Marshal(jobIDs(conflicts))
		if err != nil {
			return nil, nil, fmt.Errorf("dispatch: marshal conflict snapshot: %w", err)
		}
		req.ConflictJobIDs = string(snapshot)
	}

	if err := tx.Create(&req).Error; err != nil {
		return nil, nil, db.TranslateError("dispatch: open leave request for "+opts.EmployeeID, err)
	}
	return &req, conflicts, nil
}

// ConflictSnapshot returns the job IDs that overlapped a request when it was
// opened.
func ConflictSnapshot(r *models.LeaveRequest) []string {
	var ids []string
	if r.ConflictJobIDs == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(r.ConflictJobIDs), &ids); err != nil {
		return nil
	}
	return ids
}

// LeaveResolution is the outcome of resolving a leave request.
type LeaveResolution struct {
	Request *models.LeaveRequest `json:"request"`
	Jobs    []models.Job         `json:"jobs"` // overlapping jobs, after the resolution
}

// ResolveLeaveConflict acknowledges a pending leave request. Reschedule
// returns every held or confirmed job of the employee that overlaps the
// requested window to open and clears its assignee; Override keeps the jobs
// and flags the request. A request with an unknown window has no overlaps
// and is simply acknowledged.
func (e *Engine) ResolveLeaveConflict(ctx context.Context, requestID uint, action models.Resolution) (*LeaveResolution, error) {
	if action != models.Reschedule && action != models.Override {
		return nil, fmt.Errorf("dispatch: unknown resolution %q", action)
	}
	req, err := e.GetLeave(ctx, requestID)
	if err != nil {
		return nil, err
	}

	release, err := e.locks.acquire(ctx, req.EmployeeID, e.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	out := &LeaveResolution{}
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r models.LeaveRequest
		if err := tx.Where("id = ?", requestID).First(&r).Error; err != nil {
			return leaveError(requestID, err)
		}
		if r.Status != models.LeavePending {
			return fmt.Errorf("dispatch: leave request %d is %s: %w", r.ID, r.Status, apperr.ErrInvalidTransition)
		}

		var affected []models.Job
		if w, ok := r.Window(); ok {
			jobs, err := overlapping(tx, r.EmployeeID, w, "")
			if err != nil {
				return err
			}
			affected = jobs
		}

		reason := "leave request " + strconv.FormatUint(uint64(r.ID), 10) + " " + string(action)
		if action == models.Reschedule {
			for i := range affected {
				if err := releaseJob(tx, &affected[i], reason); err != nil {
					return err
				}
			}
		}

		now := e.clock()
		result := tx.Model(&models.LeaveRequest{}).
			Where("id = ? AND status = ?", r.ID, models.LeavePending).
			Updates(map[string]interface{}{
				"status":      models.LeaveAcknowledged,
				"resolution":  action,
				"override":    action == models.Override,
				"resolved_at": now,
			})
		if result.Error != nil {
			return db.TranslateError(fmt.Sprintf("dispatch: resolve leave request %d", r.ID), result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("dispatch: leave request %d changed concurrently: %w", r.ID, apperr.ErrInvalidTransition)
		}

		if err := tx.Where("id = ?", r.ID).First(&r).Error; err != nil {
			return leaveError(r.ID, err)
		}
		out.Request = &r
		out.Jobs = affected
		return nil
	})
	if err != nil {
		return nil, leaveError(requestID, err)
	}
	e.log.Info("leave request resolved",
		zap.Uint("request", requestID),
		zap.String("employee", out.Request.EmployeeID),
		zap.String("resolution", string(action)),
		zap.Int("jobs", len(out.Jobs)))
	return out, nil
}

// releaseJob returns a held or confirmed job to open and clears its
// assignee. job is refreshed in place.
func releaseJob(tx *gorm.DB, job *models.Job, reason string) error {
	from, emp := job.State, job.Assignee()
	err := guardedUpdate(tx, job, models.JobOpen, map[string]interface{}{
		"state":           models.JobOpen,
		"employee_id":     nil,
		"hold_expires_at": nil,
		"held_at":         nil,
		"confirmed_at":    nil,
	})
	if err != nil {
		return err
	}
	if err := recordEvent(tx, job.ID, from, models.JobOpen, emp, reason); err != nil {
		return err
	}
	return reload(tx, job)
}

// GetLeave returns a leave request by ID.
func (e *Engine) GetLeave(ctx context.Context, requestID uint) (*models.LeaveRequest, error) {
	var r models.LeaveRequest
	if err := e.db.WithContext(ctx).Where("id = ?", requestID).First(&r).Error; err != nil {
		return nil, leaveError(requestID, err)
	}
	return &r, nil
}

// ListLeave returns leave requests, oldest first, optionally filtered by
// status.
func (e *Engine) ListLeave(ctx context.Context, status models.LeaveStatus) ([]models.LeaveRequest, error) {
	q := e.db.WithContext(ctx).Order("created_at ASC, id ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var reqs []models.LeaveRequest
	if err := q.Find(&reqs).Error; err != nil {
		return nil, db.TranslateError("dispatch: list leave requests", err)
	}
	return reqs, nil
}

// PendingLeave returns leave requests awaiting operator review.
func (e *Engine) PendingLeave(ctx context.Context) ([]models.LeaveRequest, error) {
	return e.ListLeave(ctx, models.LeavePending)
}

// LeaveConflicts returns the employee's held or confirmed jobs that overlap
// a request's window now.
func (e *Engine) LeaveConflicts(ctx context.Context, requestID uint) ([]models.Job, error) {
	r, err := e.GetLeave(ctx, requestID)
	if err != nil {
		return nil, err
	}
	w, ok := r.Window()
	if !ok {
		return nil, nil
	}
	return overlapping(e.db.WithContext(ctx), r.EmployeeID, w, "")
}

func leaveError(id uint, err error) error {
	return db.TranslateError(fmt.Sprintf("dispatch: leave request %d", id), err)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
