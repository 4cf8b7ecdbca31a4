package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/frontdesk/internal/apperr"
	"github.com/zulandar/frontdesk/internal/db"
	"github.com/zulandar/frontdesk/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Hold assigns an open job to an employee, provided none of the employee's
// held or confirmed jobs overlaps its window. The check and the write share
// one transaction under the employee's lock.
func (e *Engine) Hold(ctx context.Context, jobID, employeeID string) (*models.Job, error) {
	var emp models.Employee
	err := e.db.WithContext(ctx).Where("id = ? AND active = ?", employeeID, true).First(&emp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("dispatch: employee not found: %s: %w", employeeID, apperr.ErrNotFound)
		}
		return nil, db.TranslateError("dispatch: employee "+employeeID, err)
	}

	release, err := e.locks.acquire(ctx, employeeID, e.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	var job models.Job
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", jobID).First(&job).Error; err != nil {
			return jobError(jobID, err)
		}
		if job.State != models.JobOpen {
			return invalidTransition(job.ID, job.State, models.JobHeld)
		}

		conflicts, err := overlapping(tx, employeeID, job.Window(), job.ID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return fmt.Errorf("dispatch: hold %s: %w", job.ID, &apperr.ConflictError{
				EmployeeID: employeeID,
				JobIDs:     jobIDs(conflicts),
			})
		}

		now := e.clock()
		updates := map[string]interface{}{
			"state":           models.JobHeld,
			"employee_id":     employeeID,
			"held_at":         now,
			"hold_expires_at": nil,
		}
		if ttl := e.HoldTTL(); ttl > 0 {
			updates["hold_expires_at"] = now.Add(ttl)
		}
		if err := guardedUpdate(tx, &job, models.JobHeld, updates); err != nil {
			return err
		}
		if err := recordEvent(tx, job.ID, models.JobOpen, models.JobHeld, employeeID, "hold"); err != nil {
			return err
		}
		return reload(tx, &job)
	})
	if err != nil {
		return nil, db.TranslateError("dispatch: hold "+jobID, err)
	}
	e.log.Info("job held", zap.String("job", job.ID), zap.String("employee", employeeID))
	return &job, nil
}

// Confirm moves a held job to confirmed and clears its hold expiry.
func (e *Engine) Confirm(ctx context.Context, jobID string) (*models.Job, error) {
	return e.transition(ctx, jobID, models.JobConfirmed, nil, func(now time.Time) map[string]interface{} {
		return map[string]interface{}{"confirmed_at": now, "hold_expires_at": nil}
	})
}

// Complete moves a confirmed job to done.
func (e *Engine) Complete(ctx context.Context, jobID string) (*models.Job, error) {
	return e.transition(ctx, jobID, models.JobDone, nil, func(now time.Time) map[string]interface{} {
		return map[string]interface{}{"completed_at": now}
	})
}

// Cancel moves an open, held or confirmed job to cancelled under the
// assignee's lock. The assignee is kept for history; cancelled jobs never
// take part in conflict checks, so the slot is free immediately.
//
// The assignee read before locking is checked again inside the transaction.
// If the job was reassigned in between, Cancel starts over with the new
// assignee's lock.
func (e *Engine) Cancel(ctx context.Context, jobID string) (*models.Job, error) {
	for attempt := 1; ; attempt++ {
		var current models.Job
		if err := e.db.WithContext(ctx).Where("id = ?", jobID).First(&current).Error; err != nil {
			return nil, jobError(jobID, err)
		}
		job, err := e.cancelAs(ctx, jobID, current.Assignee())
		if errors.Is(err, errAssigneeChanged) && attempt < maxCancelAttempts {
			continue
		}
		return job, err
	}
}

const maxCancelAttempts = 3

var errAssigneeChanged = fmt.Errorf("dispatch: assignee changed during cancel: %w", apperr.ErrBusy)

func (e *Engine) cancelAs(ctx context.Context, jobID, employeeID string) (*models.Job, error) {
	if employeeID != "" {
		release, err := e.locks.acquire(ctx, employeeID, e.lockTimeout)
		if err != nil {
			return nil, err
		}
		defer release()
	}
	check := func(job *models.Job) error {
		if job.Assignee() != employeeID {
			return errAssigneeChanged
		}
		return nil
	}
	return e.transition(ctx, jobID, models.JobCancelled, check, func(now time.Time) map[string]interface{} {
		return map[string]interface{}{"cancelled_at": now, "hold_expires_at": nil}
	})
}

// transition applies an operator state change in one transaction. The
// update is guarded by the state read inside the transaction, so a
// concurrent change surfaces as an invalid transition. check, when set,
// vets the job as read inside the transaction.
func (e *Engine) transition(ctx context.Context, jobID string, to models.JobState, check func(*models.Job) error, extra func(now time.Time) map[string]interface{}) (*models.Job, error) {
	var job models.Job
	var from models.JobState
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", jobID).First(&job).Error; err != nil {
			return jobError(jobID, err)
		}
		from = job.State
		if !CanTransition(from, to) {
			return invalidTransition(job.ID, from, to)
		}
		if check != nil {
			if err := check(&job); err != nil {
				return err
			}
		}
		updates := extra(e.clock())
		updates["state"] = to
		if err := guardedUpdate(tx, &job, to, updates); err != nil {
			return err
		}
		if err := recordEvent(tx, job.ID, from, to, job.Assignee(), string(to)); err != nil {
			return err
		}
		return reload(tx, &job)
	})
	if err != nil {
		return nil, db.TranslateError("dispatch: "+string(to)+" "+jobID, err)
	}
	e.log.Info("job transition", zap.String("job", job.ID), zap.String("from", string(from)), zap.String("to", string(to)))
	return &job, nil
}

// guardedUpdate writes updates only if the job is still in the state it was
// read in.
func guardedUpdate(tx *gorm.DB, job *models.Job, to models.JobState, updates map[string]interface{}) error {
	result := tx.Model(&models.Job{}).
		Where("id = ? AND state = ?", job.ID, job.State).
		Updates(updates)
	if result.Error != nil {
		return db.TranslateError("dispatch: update job "+job.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("dispatch: job %s changed concurrently: %w", job.ID, apperr.ErrInvalidTransition)
	}
	return nil
}

// overlapping returns the employee's held or confirmed jobs whose windows
// overlap w, excluding excludeID.
func overlapping(tx *gorm.DB, employeeID string, w models.Window, excludeID string) ([]models.Job, error) {
	var active []models.Job
	q := tx.Where("employee_id = ? AND state IN ?", employeeID, []models.JobState{models.JobHeld, models.JobConfirmed})
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Order("window_start ASC, id ASC").Find(&active).Error; err != nil {
		return nil, db.TranslateError("dispatch: scan jobs of "+employeeID, err)
	}
	var out []models.Job
	for _, j := range active {
		if j.Window().Overlaps(w) {
			out = append(out, j)
		}
	}
	return out, nil
}

// reload refreshes job from the store after a write.
func reload(tx *gorm.DB, job *models.Job) error {
	return jobError(job.ID, tx.Where("id = ?", job.ID).First(job).Error)
}

func invalidTransition(jobID string, from, to models.JobState) error {
	if from.Terminal() {
		return fmt.Errorf("dispatch: job %s is already %s: %w", jobID, from, apperr.ErrInvalidTransition)
	}
	return fmt.Errorf("dispatch: job %s cannot move from %s to %s; valid transitions: %v: %w",
		jobID, from, to, ValidTransitions[from], apperr.ErrInvalidTransition)
}

func jobIDs(jobs []models.Job) []string {
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	return ids
}
